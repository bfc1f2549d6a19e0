package cmd

import (
	"context"
	"fmt"
	"image"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/jeeftor/rowpilot/internal/device"
	"github.com/jeeftor/rowpilot/internal/logging"
	"github.com/jeeftor/rowpilot/internal/macro"
	"github.com/jeeftor/rowpilot/internal/ocr"
	"github.com/jeeftor/rowpilot/internal/params"
	"github.com/jeeftor/rowpilot/internal/styles"
	"github.com/jeeftor/rowpilot/internal/textmatch"
)

// screenSource is the input shared by the OCR commands: an image file or
// a live screendump of the VM.
type screenSource struct {
	image        string
	trainingData string
	columns      string
	rows         string
}

func (s *screenSource) addFlags(f *pflag.FlagSet) {
	f.StringVar(&s.image, "image", "", "read a PNG/PPM file instead of the VM screen")
	f.StringVar(&s.trainingData, "training-data", "", "OCR training data file")
	f.StringVarP(&s.columns, "columns", "c", "", "console columns")
	f.StringVarP(&s.rows, "rows", "r", "", "console rows")
}

func (s *screenSource) capture(ctx context.Context) (image.Image, error) {
	if s.image != "" {
		return loadImage(s.image)
	}
	client, err := connectVM(ctx, params.NewParameterResolver(), "")
	if err != nil {
		return nil, err
	}
	defer client.Close()
	return client.Screenshot(ctx, nil)
}

// recognize captures and reads the screen
func (s *screenSource) recognize(ctx context.Context) (*ocr.Screen, error) {
	r := params.NewParameterResolver()
	grid, err := r.ResolveGrid(s.columns, s.rows)
	if err != nil {
		return nil, err
	}
	tdPath := r.ResolveTrainingData(s.trainingData)
	logging.Debug("Resolved training data", "path", tdPath.Value, "source", tdPath.Source)
	td, err := ocr.LoadTrainingData(tdPath.Value)
	if err != nil {
		return nil, fmt.Errorf("failed to load training data %s: %w", tdPath.Value, err)
	}
	img, err := s.capture(ctx)
	if err != nil {
		return nil, err
	}
	return ocr.Recognize(img, grid, td)
}

var (
	ocrSource      screenSource
	ocrLineNumbers bool
	ocrFilterBlank bool
	ocrFragments   bool
)

var ocrCmd = &cobra.Command{
	Use:   "ocr [output-file]",
	Short: "Read the console text from the VM screen or an image",
	Long: `Split the screen into character cells and look each one up in the
training data. Unrecognized cells print as ` + ocr.UnknownChar + `.

Examples:
  rowpilot ocr --vmid 106
  rowpilot ocr --image screen.ppm --columns 160 --rows 50 --line-numbers
  rowpilot ocr --vmid 106 --fragments   # the text fragments macros match against`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		screen, err := ocrSource.recognize(cmd.Context())
		if err != nil {
			return err
		}

		var out strings.Builder
		if ocrFragments {
			for _, f := range screen.Fragments() {
				fmt.Fprintf(&out, "%4d,%-4d %3.0f%%  %s\n", f.Box.X, f.Box.Y, f.Confidence*100, f.Text)
			}
		} else {
			for i, line := range strings.Split(screen.Text(), "\n") {
				if ocrFilterBlank && strings.TrimSpace(line) == "" {
					continue
				}
				if ocrLineNumbers {
					fmt.Fprintf(&out, "%s ", styles.MutedStyle.Render(fmt.Sprintf("%3d", i)))
				}
				out.WriteString(line + "\n")
			}
		}

		if len(args) == 1 {
			if err := os.WriteFile(args[0], []byte(out.String()), 0o644); err != nil {
				return err
			}
			logging.Success("Text written", "path", args[0])
			return nil
		}
		fmt.Fprint(cmd.OutOrStdout(), out.String())
		return nil
	},
}

var (
	findSource    screenSource
	findConfig    ocr.SearchConfig
	findRegex     bool
	findFuzzy     bool
	findAll       bool
	findThreshold float64
)

var findTextCmd = &cobra.Command{
	Use:   "find-text <query>",
	Short: "Search the screen text for a string or regex",
	Long: `Search OCR text for a string, bottom line first so the newest console
output wins. With --regex the query is a regular expression and capture
groups are printed. With --fuzzy the best matching fragment is reported
using the same similarity scoring as the find_text step; add --all to list
every fragment scoring at least --threshold, best first.

Exit codes: 0 = found, 1 = not found, 2 = OCR error, 3 = invalid regex`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		code := findText(cmd, args[0])
		if code != ocr.ExitFound {
			return &exitError{code: code}
		}
		return nil
	},
}

func findText(cmd *cobra.Command, query string) int {
	w := cmd.OutOrStdout()
	screen, err := findSource.recognize(cmd.Context())
	if err != nil {
		logging.Error("OCR failed", "error", err)
		return ocr.ExitError
	}

	if findFuzzy {
		matches, err := fuzzyMatches(cmd.Context(), screen.Fragments(), query, findThreshold, findAll)
		if err != nil {
			logging.Error("Search failed", "error", err)
			return ocr.ExitError
		}
		if len(matches) == 0 {
			return ocr.ExitNotFound
		}
		if !findConfig.Quiet {
			for _, m := range matches {
				fmt.Fprintf(w, "%s at (%d,%d) score %.2f\n", m.Text, m.Center.X, m.Center.Y, m.Score)
			}
		}
		return ocr.ExitFound
	}

	var results *ocr.SearchResults
	if findRegex {
		results, err = ocr.FindRegex(screen, query, findConfig)
		if err != nil {
			logging.Error("Search failed", "error", err)
			return ocr.ExitCode(results, err)
		}
	} else {
		results = ocr.FindString(screen, query, findConfig)
	}
	fmt.Fprint(w, ocr.FormatResults(results, findConfig))
	return ocr.ExitCode(results, nil)
}

// fragmentList serves already recognized fragments to a text matcher
type fragmentList []device.Fragment

func (f fragmentList) Scan(context.Context, *macro.Region) ([]device.Fragment, error) {
	return f, nil
}

// fuzzyMatches scores fragments the way the find_text step does and keeps
// those at or above threshold, best first. Only the best is kept unless all.
func fuzzyMatches(ctx context.Context, frags []device.Fragment, query string, threshold float64, all bool) ([]textmatch.Match, error) {
	matches, err := textmatch.New(fragmentList(frags)).FindAll(ctx, query, textmatch.Options{})
	if err != nil {
		return nil, err
	}
	var kept []textmatch.Match
	for _, m := range matches {
		if m.Score >= threshold {
			kept = append(kept, m)
		}
	}
	if !all && len(kept) > 1 {
		kept = kept[:1]
	}
	return kept, nil
}

func init() {
	ocrSource.addFlags(ocrCmd.Flags())
	ocrCmd.Flags().BoolVarP(&ocrLineNumbers, "line-numbers", "n", false, "show line numbers (0-based)")
	ocrCmd.Flags().BoolVarP(&ocrFilterBlank, "filter", "f", false, "skip blank lines")
	ocrCmd.Flags().BoolVar(&ocrFragments, "fragments", false, "print positioned fragments instead of lines")
	rootCmd.AddCommand(ocrCmd)

	f := findTextCmd.Flags()
	findSource.addFlags(f)
	f.BoolVar(&findRegex, "regex", false, "treat the query as a regular expression")
	f.BoolVar(&findFuzzy, "fuzzy", false, "report the best fuzzy match")
	f.BoolVar(&findAll, "all", false, "with --fuzzy, report every match above the threshold")
	f.Float64Var(&findThreshold, "threshold", 0.8, "minimum score for --fuzzy")
	f.BoolVarP(&findConfig.IgnoreCase, "ignore-case", "i", false, "case-insensitive search")
	f.BoolVar(&findConfig.FirstOnly, "first", false, "stop at the first match")
	f.BoolVarP(&findConfig.Quiet, "quiet", "q", false, "no output, only the exit code")
	f.BoolVarP(&findConfig.LineNumbers, "line-numbers", "n", false, "show line and column of each match")
	rootCmd.AddCommand(findTextCmd)
}
