package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jeeftor/rowpilot/internal/embedded"
	"github.com/jeeftor/rowpilot/internal/styles"
)

var (
	initForce bool
	initList  bool
)

var initCmd = &cobra.Command{
	Use:   "init [dir]",
	Short: "Write a sample macro, data file and config to start from",
	Long: `Write signup.yaml, people.csv and rowpilot.example.yaml into dir
(default: the current directory). Existing files are kept unless --force.

  rowpilot init demo && cd demo
  rowpilot run signup.yaml --rows people.csv --dry-run`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		w := cmd.OutOrStdout()
		if initList {
			names, err := embedded.List()
			if err != nil {
				return err
			}
			for _, n := range names {
				fmt.Fprintln(w, n)
			}
			return nil
		}

		dir := "."
		if len(args) == 1 {
			dir = args[0]
		}
		written, err := embedded.Extract(dir, initForce)
		for _, p := range written {
			styles.PrintStyledln(w, styles.SuccessStyle, "✓ "+p)
		}
		return err
	},
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "overwrite existing files")
	initCmd.Flags().BoolVar(&initList, "list", false, "list the samples without writing them")
	rootCmd.AddCommand(initCmd)
}
