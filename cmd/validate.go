package cmd

import (
	"errors"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/jeeftor/rowpilot/internal/macro"
	"github.com/jeeftor/rowpilot/internal/repeat"
	"github.com/jeeftor/rowpilot/internal/variables"
)

var validateCmd = &cobra.Command{
	Use:   "validate <macro-file>...",
	Short: "Check macros for schema and structure problems",
	Long: `Validate decodes each macro and reports every problem found: missing or
out-of-range fields, duplicate step ids, unresolved loop references and
unpaired repeat markers. Type steps with use_variables off whose text holds
placeholders are listed as warnings since they will be typed literally.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		w := cmd.OutOrStdout()
		ok := color.New(color.FgGreen, color.Bold)
		bad := color.New(color.FgRed, color.Bold)
		warn := color.New(color.FgYellow)

		failed := 0
		for _, path := range args {
			warnings, err := validateFile(path)
			if err == nil {
				fmt.Fprintf(w, "%s %s\n", ok.Sprint("✓"), path)
				for _, msg := range warnings {
					fmt.Fprintf(w, "    %s %s\n", warn.Sprint("!"), msg)
				}
				continue
			}
			failed++
			fmt.Fprintf(w, "%s %s\n", bad.Sprint("✗"), path)
			var verr *macro.ValidationError
			if errors.As(err, &verr) {
				for _, p := range verr.Problems {
					fmt.Fprintf(w, "    %s\n", p)
				}
			} else {
				fmt.Fprintf(w, "    %v\n", err)
			}
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d macros are invalid", failed, len(args))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

// validateFile runs schema validation and block pairing, merging problems
func validateFile(path string) ([]string, error) {
	m, err := macro.LoadFile(path)
	if err != nil {
		return nil, err
	}
	verr := &macro.ValidationError{}
	if err := macro.Validate(m); err != nil {
		var v *macro.ValidationError
		if !errors.As(err, &v) {
			return nil, err
		}
		verr.Merge(v)
	}
	if _, err := repeat.FindBlocks(m.Steps); err != nil {
		var v *macro.ValidationError
		if !errors.As(err, &v) {
			return nil, err
		}
		verr.Merge(v)
	}
	return literalPlaceholders(m.Steps), verr.Err()
}

// literalPlaceholders lists type steps, nested ones included, that will
// type a placeholder verbatim
func literalPlaceholders(steps []macro.Step) []string {
	var out []string
	macro.Walk(steps, func(s macro.Step, _ int) {
		if a, ok := s.Action.(macro.TypeText); ok && !a.UseVariables && variables.HasPlaceholder(a.Text) {
			out = append(out, fmt.Sprintf("step %s: %q is typed literally (use_variables is false)", s.ID, a.Text))
		}
	})
	return out
}
