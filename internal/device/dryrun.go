package device

import (
	"context"
	"encoding/json"
	"fmt"
	"image"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/jeeftor/rowpilot/internal/constants"
	"github.com/jeeftor/rowpilot/internal/logging"
	"github.com/jeeftor/rowpilot/internal/macro"
)

// DryRun logs every primitive instead of performing it. It also serves as
// OCR (returning fixture fragments) and as an image matcher that reports
// every template present at the screen centre.
type DryRun struct {
	Width, Height int

	mu        sync.Mutex
	calls     []string
	fragments []Fragment
}

// NewDryRun returns a dry-run device with the default screen size
func NewDryRun() *DryRun {
	return &DryRun{Width: constants.DefaultScreenWidth, Height: constants.DefaultScreenHeight}
}

// LoadFragments reads a JSON array of fragments returned by every Scan
func (d *DryRun) LoadFragments(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read fragment fixture: %w", err)
	}
	var frags []Fragment
	if err := json.Unmarshal(data, &frags); err != nil {
		return fmt.Errorf("invalid fragment fixture %s: %w", path, err)
	}
	d.SetFragments(frags)
	return nil
}

// SetFragments sets the fragments returned by Scan
func (d *DryRun) SetFragments(frags []Fragment) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.fragments = frags
}

// Calls returns a copy of the recorded primitive calls
func (d *DryRun) Calls() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.calls...)
}

func (d *DryRun) record(format string, args ...any) string {
	msg := fmt.Sprintf(format, args...)
	d.mu.Lock()
	d.calls = append(d.calls, msg)
	d.mu.Unlock()
	return msg
}

func (d *DryRun) Move(_ context.Context, x, y int, duration time.Duration) error {
	d.record("move %d,%d over %s", x, y, duration)
	logging.DryRunMoveTemplate.Logf("(%d,%d) over %s", x, y, duration)
	return nil
}

func (d *DryRun) Click(_ context.Context, x, y int, button macro.Button, count int) error {
	d.record("click %d,%d %s x%d", x, y, button, count)
	logging.DryRunClickTemplate.Logf("%s x%d at (%d,%d)", button, count, x, y)
	return nil
}

func (d *DryRun) Drag(_ context.Context, from, to macro.Point, button macro.Button, duration time.Duration) error {
	d.record("drag %d,%d -> %d,%d %s over %s", from.X, from.Y, to.X, to.Y, button, duration)
	logging.DryRunDragTemplate.Logf("(%d,%d) -> (%d,%d) over %s", from.X, from.Y, to.X, to.Y, duration)
	return nil
}

func (d *DryRun) Scroll(_ context.Context, x, y, amount int) error {
	d.record("scroll %d,%d %d", x, y, amount)
	logging.DryRunScrollTemplate.Logf("%d at (%d,%d)", amount, x, y)
	return nil
}

func (d *DryRun) TypeText(_ context.Context, text string) error {
	d.record("type %s", text)
	logging.DryRunTypeTemplate.Logf("%q", text)
	return nil
}

func (d *DryRun) Hotkey(_ context.Context, keys ...string) error {
	combo := strings.Join(keys, "+")
	d.record("hotkey %s", combo)
	logging.DryRunKeyTemplate.Log(combo)
	return nil
}

// Screenshot returns a blank image of the screen or region size
func (d *DryRun) Screenshot(_ context.Context, region *macro.Region) (image.Image, error) {
	w, h := d.Width, d.Height
	if region != nil {
		w, h = region.Width, region.Height
	}
	d.record("screenshot %dx%d", w, h)
	logging.DryRunScreenshotTemplate.Logf("%dx%d", w, h)

	return image.NewGray(image.Rect(0, 0, w, h)), nil
}

// Scan returns the fixture fragments that fall inside region
func (d *DryRun) Scan(_ context.Context, region *macro.Region) ([]Fragment, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, "scan")

	if region == nil {
		return append([]Fragment(nil), d.fragments...), nil
	}
	var out []Fragment
	for _, f := range d.fragments {
		if region.Contains(f.Box.X, f.Box.Y) {
			rel := f
			rel.Box.X -= region.X
			rel.Box.Y -= region.Y
			out = append(out, rel)
		}
	}
	return out, nil
}

// Find reports the template at the centre of the region or screen
func (d *DryRun) Find(_ context.Context, template string, region *macro.Region, _ float64) (*ImageMatch, error) {
	d.record("find %s", template)
	area := macro.Region{Width: d.Width, Height: d.Height}
	if region != nil {
		area = *region
	}
	return &ImageMatch{
		Box:        macro.Region{X: area.X + area.Width/2 - 1, Y: area.Y + area.Height/2 - 1, Width: 2, Height: 2},
		Confidence: 1,
	}, nil
}

// Bundle returns the dry-run device wired as every collaborator
func (d *DryRun) Bundle() Bundle {
	return Bundle{Device: d, OCR: d, Images: d}
}
