// Package device defines the collaborators the engine drives: pointer and
// keyboard control, screen capture, OCR and template image matching.
package device

import (
	"context"
	"errors"
	"image"
	"time"

	"github.com/jeeftor/rowpilot/internal/macro"
)

// ErrUnsupported is returned by devices that cannot perform a primitive
var ErrUnsupported = errors.New("operation not supported by device")

// Device performs input primitives and captures the screen. Calls run to
// completion once started. A zero duration on Move or Drag jumps straight
// to the target; a positive one glides there over roughly that long.
type Device interface {
	Move(ctx context.Context, x, y int, duration time.Duration) error
	Click(ctx context.Context, x, y int, button macro.Button, count int) error
	Drag(ctx context.Context, from, to macro.Point, button macro.Button, duration time.Duration) error
	Scroll(ctx context.Context, x, y, amount int) error
	TypeText(ctx context.Context, text string) error
	Hotkey(ctx context.Context, keys ...string) error
	Screenshot(ctx context.Context, region *macro.Region) (image.Image, error)
}

// Fragment is one piece of text detected on screen. Box is relative to the
// scanned image.
type Fragment struct {
	Text       string       `json:"text"`
	Box        macro.Region `json:"box"`
	Confidence float64      `json:"confidence"`
}

// OCR detects text fragments on the screen or a region of it
type OCR interface {
	Scan(ctx context.Context, region *macro.Region) ([]Fragment, error)
}

// ImageMatch is a located template in absolute screen coordinates
type ImageMatch struct {
	Box        macro.Region `json:"box"`
	Confidence float64      `json:"confidence"`
}

// Center returns the middle of the match
func (m ImageMatch) Center() macro.Point {
	return macro.Point{X: m.Box.X + m.Box.Width/2, Y: m.Box.Y + m.Box.Height/2}
}

// ImageMatcher locates a template image. A nil match with a nil error means not found.
type ImageMatcher interface {
	Find(ctx context.Context, template string, region *macro.Region, confidence float64) (*ImageMatch, error)
}

// Bundle groups the collaborators handed to the engine
type Bundle struct {
	Device Device
	OCR    OCR
	Images ImageMatcher
}
