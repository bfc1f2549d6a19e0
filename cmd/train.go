package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jeeftor/rowpilot/internal/logging"
	"github.com/jeeftor/rowpilot/internal/ocr"
	"github.com/jeeftor/rowpilot/internal/params"
)

var (
	trainSource    screenSource
	trainChars     string
	trainCharsFile string
	trainUpdate    bool
)

var trainOcrCmd = &cobra.Command{
	Use:   "train-ocr [output-file]",
	Short: "Build OCR training data from a screen of known characters",
	Long: `Print a known character set on the guest console, then run train-ocr
with the same characters. Each non-empty cell, in reading order, is mapped
to the next non-space character given.

Examples:
  # on the guest: echo 'ABCDEFGHIJKLMNOPQRSTUVWXYZ abcdefghijklmnopqrstuvwxyz 0123456789'
  rowpilot train-ocr --vmid 106 --chars-file charset.txt
  rowpilot train-ocr training.json --image charset.ppm --chars 'ABC abc 123' --update`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		known := trainChars
		if trainCharsFile != "" {
			data, err := os.ReadFile(trainCharsFile)
			if err != nil {
				return err
			}
			known = string(data)
		}
		if known == "" {
			return errors.New("the known characters are required: use --chars or --chars-file")
		}

		r := params.NewParameterResolver()
		output := r.ResolveTrainingData(trainSource.trainingData).Value
		if len(args) == 1 {
			output = args[0]
		}
		grid, err := r.ResolveGrid(trainSource.columns, trainSource.rows)
		if err != nil {
			return err
		}

		img, err := trainSource.capture(cmd.Context())
		if err != nil {
			return err
		}
		learned, err := ocr.Train(img, grid, known)
		if err != nil {
			return err
		}

		td := learned
		if trainUpdate {
			existing, err := ocr.LoadTrainingData(output)
			switch {
			case err == nil:
				existing.Merge(learned)
				td = existing
			case errors.Is(err, os.ErrNotExist):
				logging.Info("No existing training data, creating it", "path", output)
			default:
				return err
			}
		}
		if err := td.Save(output); err != nil {
			return err
		}
		logging.Success("Training data saved", "path", output, "learned", len(learned.BitmapMap), "total", len(td.BitmapMap))
		fmt.Fprintf(cmd.OutOrStdout(), "%d glyphs learned, %d in %s\n", len(learned.BitmapMap), len(td.BitmapMap), output)
		return nil
	},
}

func init() {
	f := trainOcrCmd.Flags()
	trainSource.addFlags(f)
	f.StringVar(&trainChars, "chars", "", "the characters shown on screen, in reading order")
	f.StringVar(&trainCharsFile, "chars-file", "", "file holding the characters shown on screen")
	f.BoolVar(&trainUpdate, "update", false, "merge into the existing training data")
	rootCmd.AddCommand(trainOcrCmd)
}
