package ocr

import (
	"context"
	"fmt"
	"image"

	"github.com/jeeftor/rowpilot/internal/device"
	"github.com/jeeftor/rowpilot/internal/logging"
	"github.com/jeeftor/rowpilot/internal/macro"
)

// Capturer takes screenshots; device.Device satisfies it
type Capturer interface {
	Screenshot(ctx context.Context, region *macro.Region) (image.Image, error)
}

// Scanner recognizes the whole console and reports fragments. A region
// keeps fragments whose top-left corner lies inside it, with boxes made
// relative to the region.
type Scanner struct {
	Grid     Grid
	Training *TrainingData

	capturer Capturer
}

var _ device.OCR = (*Scanner)(nil)

// NewScanner creates a scanner over a screenshot source
func NewScanner(c Capturer, g Grid, td *TrainingData) *Scanner {
	return &Scanner{Grid: g, Training: td, capturer: c}
}

// Screen captures and recognizes the full console
func (s *Scanner) Screen(ctx context.Context) (*Screen, error) {
	img, err := s.capturer.Screenshot(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to capture screen: %w", err)
	}
	screen, err := Recognize(img, s.Grid, s.Training)
	if err != nil {
		return nil, err
	}
	logging.Debug("Screen recognized", "columns", s.Grid.Columns, "rows", s.Grid.Rows, "cell_width", screen.CellWidth, "cell_height", screen.CellHeight)
	return screen, nil
}

// Scan implements device.OCR
func (s *Scanner) Scan(ctx context.Context, region *macro.Region) ([]device.Fragment, error) {
	screen, err := s.Screen(ctx)
	if err != nil {
		return nil, err
	}
	return FilterRegion(screen.Fragments(), region), nil
}

// FilterRegion keeps fragments starting inside region and rebases their boxes
func FilterRegion(frags []device.Fragment, region *macro.Region) []device.Fragment {
	if region == nil {
		return frags
	}
	var out []device.Fragment
	for _, f := range frags {
		if f.Box.X < region.X || f.Box.Y < region.Y ||
			f.Box.X >= region.X+region.Width || f.Box.Y >= region.Y+region.Height {
			continue
		}
		f.Box.X -= region.X
		f.Box.Y -= region.Y
		out = append(out, f)
	}
	return out
}
