package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spakin/netpbm"
	"github.com/spf13/cobra"

	"github.com/jeeftor/rowpilot/internal/logging"
	"github.com/jeeftor/rowpilot/internal/macro"
	"github.com/jeeftor/rowpilot/internal/params"
)

var (
	screenshotFormat string
	screenshotRegion string
)

var screenshotCmd = &cobra.Command{
	Use:   "screenshot <output-file>",
	Short: "Save a screenshot of the VM",
	Long: `Take a screendump of the VM and save it as PNG or PPM. The format
follows the file extension unless --format is given.

When the QMP socket is tunneled from another host, set screenshot_dir
(ROWPILOT_SCREENSHOT_DIR) to a directory both QEMU and rowpilot can read.

Examples:
  rowpilot screenshot --vmid 106 screen.png
  rowpilot screenshot --socket /tmp/qmp-106.sock screen.ppm --region 0,0,640,200`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		region, err := parseRegion(screenshotRegion)
		if err != nil {
			return err
		}

		client, err := connectVM(cmd.Context(), params.NewParameterResolver(), "")
		if err != nil {
			return err
		}
		defer client.Close()

		img, err := client.Screenshot(cmd.Context(), region)
		if err != nil {
			return err
		}

		out := args[0]
		switch screenshotFormatFor(out) {
		case "ppm":
			f, err := os.Create(out)
			if err != nil {
				return err
			}
			if err := netpbm.Encode(f, img, &netpbm.EncodeOptions{Format: netpbm.PPM, MaxValue: 255}); err != nil {
				f.Close()
				return fmt.Errorf("failed to encode %s: %w", out, err)
			}
			if err := f.Close(); err != nil {
				return err
			}
		default:
			if err := savePNG(img, out); err != nil {
				return err
			}
		}
		logging.Success("Screenshot saved", "path", out,
			"width", img.Bounds().Dx(), "height", img.Bounds().Dy())
		return nil
	},
}

func screenshotFormatFor(path string) string {
	if screenshotFormat != "" {
		return strings.ToLower(screenshotFormat)
	}
	if strings.EqualFold(filepath.Ext(path), ".ppm") {
		return "ppm"
	}
	return "png"
}

// parseRegion reads "x,y,width,height"; empty means the whole screen
func parseRegion(s string) (*macro.Region, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return nil, fmt.Errorf("region %q must be x,y,width,height", s)
	}
	var v [4]int
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("region %q: %w", s, err)
		}
		v[i] = n
	}
	r := &macro.Region{X: v[0], Y: v[1], Width: v[2], Height: v[3]}
	if r.Width <= 0 || r.Height <= 0 {
		return nil, fmt.Errorf("region %q must have a positive size", s)
	}
	return r, nil
}

func init() {
	screenshotCmd.Flags().StringVarP(&screenshotFormat, "format", "f", "", "output format (png, ppm)")
	screenshotCmd.Flags().StringVar(&screenshotRegion, "region", "", "capture only x,y,width,height")
	rootCmd.AddCommand(screenshotCmd)
}
