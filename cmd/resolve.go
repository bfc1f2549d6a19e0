package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/jeeftor/rowpilot/internal/params"
	"github.com/jeeftor/rowpilot/internal/styles"
	"github.com/jeeftor/rowpilot/internal/variables"
)

var (
	resolveMacro    string
	resolveRowsFile string
	resolveRow      int
	resolveEnvFiles []string
	resolveVars     []string
)

var resolveCmd = &cobra.Command{
	Use:   "resolve <text>",
	Short: "Expand ${name} and {{name}} placeholders the way a run would",
	Long: `Resolve substitutes variables into text using, in increasing priority,
the macro's variables, --env-file files, --var values and the columns of
--row in the --rows data file. Unknown placeholders are left as written.

Example:
  rowpilot resolve 'Hello ${name}' --rows people.csv --row 1`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		vars := map[string]string{}
		if resolveMacro != "" {
			m, err := loadMacroWithVars(resolveMacro, resolveEnvFiles, resolveVars)
			if err != nil {
				return err
			}
			vars = m.Variables
		} else {
			fromEnv, err := variables.LoadEnvFiles(resolveEnvFiles...)
			if err != nil {
				return err
			}
			fromFlags, err := variables.ParseAssignments(resolveVars)
			if err != nil {
				return err
			}
			vars = variables.Merge(vars, fromEnv, fromFlags)
		}

		table, err := openRows(params.NewParameterResolver(), resolveRowsFile)
		if err != nil {
			return err
		}
		if table != nil && resolveRow >= 0 {
			data, err := table.RowData(resolveRow)
			if err != nil {
				return err
			}
			vars = variables.Merge(vars, data)
		}

		w := cmd.OutOrStdout()
		fmt.Fprintln(w, variables.Resolve(args[0], vars))

		var missing []string
		for _, name := range variables.Names(args[0]) {
			if _, ok := vars[name]; !ok {
				missing = append(missing, name)
			}
		}
		sort.Strings(missing)
		for _, name := range missing {
			styles.PrintStyledln(cmd.ErrOrStderr(), styles.WarningStyle, "unresolved: "+name)
		}
		return nil
	},
}

func init() {
	f := resolveCmd.Flags()
	f.StringVar(&resolveMacro, "macro", "", "macro whose variables to use")
	f.StringVar(&resolveRowsFile, "rows", "", "data file supplying row columns")
	f.IntVar(&resolveRow, "row", -1, "row index (0-based) to take columns from")
	f.StringSliceVar(&resolveEnvFiles, "env-file", nil, "dotenv file(s) with variables")
	f.StringArrayVar(&resolveVars, "var", nil, "variable NAME=value (repeatable)")
	rootCmd.AddCommand(resolveCmd)
}
