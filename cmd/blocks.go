package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jeeftor/rowpilot/internal/constants"
	"github.com/jeeftor/rowpilot/internal/macro"
	"github.com/jeeftor/rowpilot/internal/params"
	"github.com/jeeftor/rowpilot/internal/repeat"
	"github.com/jeeftor/rowpilot/internal/styles"
)

var blocksRowsFile string

var blocksCmd = &cobra.Command{
	Use:   "blocks <macro-file>",
	Short: "List the repeat blocks of a macro and the rows each would run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := macro.LoadFile(args[0])
		if err != nil {
			return err
		}
		blocks, err := repeat.FindBlocks(m.Steps)
		if err != nil {
			return err
		}

		w := cmd.OutOrStdout()
		if len(blocks) == 0 {
			styles.PrintStyledln(w, styles.MutedStyle, "No repeat blocks; the macro runs once per pending row.")
			return nil
		}

		table, err := openRows(params.NewParameterResolver(), blocksRowsFile)
		if err != nil {
			return err
		}

		styles.PrintStyledln(w, styles.HeaderStyle, fmt.Sprintf("%s: %d repeat blocks", m.Name, len(blocks)))
		for _, b := range blocks {
			styles.PrintKeyValue(w, "Block", b.PairID)
			styles.PrintKeyValue(w, "Steps", fmt.Sprintf("%d-%d (%d in body)", b.Begin, b.End, b.End-b.Begin-1))
			styles.PrintKeyValue(w, "Mode", describeMode(b.Spec))
			if b.Close.MarkComplete {
				status := b.Close.Status
				if status == "" {
					status = constants.StatusDone
				}
				styles.PrintKeyValue(w, "Marks rows", status)
			}
			if table != nil {
				set := repeat.RowSet(b.Spec, table.RowCount(), table.PendingRows())
				styles.PrintKeyValue(w, "Rows", formatRows(set))
			}
			fmt.Fprintln(w)
		}
		return nil
	},
}

func init() {
	blocksCmd.Flags().StringVar(&blocksRowsFile, "rows", "", "data file used to show each block's rows")
	rootCmd.AddCommand(blocksCmd)
}

func describeMode(spec macro.RepeatBegin) string {
	switch spec.Mode {
	case macro.RepeatSpecificCount:
		return fmt.Sprintf("%s (%d)", spec.Mode, spec.Count)
	case macro.RepeatRange:
		return fmt.Sprintf("%s (%d-%d)", spec.Mode, spec.Start, spec.End)
	default:
		return string(spec.Mode)
	}
}

func formatRows(set []int) string {
	if len(set) == 0 {
		return "none"
	}
	parts := make([]string, len(set))
	for i, r := range set {
		parts[i] = fmt.Sprint(r)
	}
	return strings.Join(parts, ", ")
}
