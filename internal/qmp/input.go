package qmp

import (
	"context"
	"fmt"
	"image"
	"image/draw"
	"os"
	"strings"
	"time"

	"github.com/spakin/netpbm"

	"github.com/jeeftor/rowpilot/internal/constants"
	"github.com/jeeftor/rowpilot/internal/device"
	"github.com/jeeftor/rowpilot/internal/logging"
	"github.com/jeeftor/rowpilot/internal/macro"
)

var _ device.Device = (*Client)(nil)

func buttonName(b macro.Button) string {
	switch b {
	case macro.ButtonRight:
		return "right"
	case macro.ButtonMiddle:
		return "middle"
	default:
		return "left"
	}
}

func (q *Client) sendEvents(ctx context.Context, events ...InputEvent) error {
	return q.Execute(ctx, "input-send-event", map[string]any{"events": events}, nil)
}

func (q *Client) moveEvents(x, y int) []InputEvent {
	return []InputEvent{
		absEvent("x", constants.ScaleToAbs(x, q.Width)),
		absEvent("y", constants.ScaleToAbs(y, q.Height)),
	}
}

func (q *Client) warp(ctx context.Context, x, y int) error {
	if err := q.sendEvents(ctx, q.moveEvents(x, y)...); err != nil {
		return err
	}
	q.pointer, q.hasPointer = macro.Point{X: x, Y: y}, true
	return nil
}

// glide walks the pointer in a straight line to (x, y), one absolute event
// per PointerStep. Without a known start it warps.
func (q *Client) glide(ctx context.Context, x, y int, d time.Duration) error {
	steps := int(d / constants.PointerStep)
	if !q.hasPointer || steps < 2 {
		return q.warp(ctx, x, y)
	}
	from := q.pointer
	for i := 1; i <= steps; i++ {
		px := from.X + (x-from.X)*i/steps
		py := from.Y + (y-from.Y)*i/steps
		if err := q.warp(ctx, px, py); err != nil {
			return err
		}
		if i == steps {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(constants.PointerStep):
		}
	}
	return nil
}

// Move positions the absolute pointer at a screen pixel, gliding there over
// duration when it is positive
func (q *Client) Move(ctx context.Context, x, y int, duration time.Duration) error {
	return q.glide(ctx, x, y, duration)
}

// Click moves to the point and presses the button count times
func (q *Client) Click(ctx context.Context, x, y int, button macro.Button, count int) error {
	if err := q.warp(ctx, x, y); err != nil {
		return err
	}
	name := buttonName(button)
	for i := 0; i < max(count, 1); i++ {
		if err := q.sendEvents(ctx, btnEvent(name, true)); err != nil {
			return err
		}
		if err := q.sendEvents(ctx, btnEvent(name, false)); err != nil {
			return err
		}
	}
	return nil
}

// Drag presses at from, moves to to over duration and releases
func (q *Client) Drag(ctx context.Context, from, to macro.Point, button macro.Button, duration time.Duration) error {
	name := buttonName(button)
	if err := q.warp(ctx, from.X, from.Y); err != nil {
		return err
	}
	if err := q.sendEvents(ctx, btnEvent(name, true)); err != nil {
		return err
	}
	if err := q.glide(ctx, to.X, to.Y, duration); err != nil {
		return err
	}
	return q.sendEvents(ctx, btnEvent(name, false))
}

// Scroll turns the wheel at a point; positive amounts scroll up
func (q *Client) Scroll(ctx context.Context, x, y, amount int) error {
	if err := q.warp(ctx, x, y); err != nil {
		return err
	}
	wheel := "wheel-up"
	if amount < 0 {
		wheel = "wheel-down"
		amount = -amount
	}
	for i := 0; i < amount; i++ {
		if err := q.sendEvents(ctx, btnEvent(wheel, true), btnEvent(wheel, false)); err != nil {
			return err
		}
	}
	return nil
}

// TypeText sends one key press per character, pausing KeyDelay between them.
// Characters outside the EN-US layout fail before anything is sent.
func (q *Client) TypeText(ctx context.Context, text string) error {
	presses := make([][]string, 0, len(text))
	for _, r := range text {
		codes, err := CharKeys(r)
		if err != nil {
			return err
		}
		presses = append(presses, codes)
	}

	for i, codes := range presses {
		if i > 0 && q.KeyDelay > 0 {
			time.Sleep(q.KeyDelay)
		}
		if err := q.sendKey(ctx, codes); err != nil {
			return err
		}
	}
	return nil
}

// Hotkey presses keys together. A single "ctrl+s" style argument is split.
func (q *Client) Hotkey(ctx context.Context, keys ...string) error {
	if len(keys) == 1 {
		keys = ParseCombo(keys[0])
	}
	codes := make([]string, 0, len(keys))
	for _, k := range keys {
		code, err := KeyName(k)
		if err != nil {
			return err
		}
		codes = append(codes, code)
	}
	if len(codes) == 0 {
		return fmt.Errorf("%w: empty key combination", ErrUnknownKey)
	}
	return q.sendKey(ctx, codes)
}

func (q *Client) sendKey(ctx context.Context, codes []string) error {
	q.log.Debug("Sending keys", "keys", strings.Join(codes, "+"))
	return q.Execute(ctx, "send-key", map[string]any{"keys": keyValues(codes)}, nil)
}

// Screenshot asks QEMU for a screendump and decodes the PPM file. The dump
// is written by the QEMU process, so ScreenshotDir must be shared with it.
func (q *Client) Screenshot(ctx context.Context, region *macro.Region) (image.Image, error) {
	f, err := os.CreateTemp(q.ScreenshotDir, "rowpilot-screendump-*.ppm")
	if err != nil {
		return nil, fmt.Errorf("failed to create temporary file: %w", err)
	}
	path := f.Name()
	f.Close()
	defer os.Remove(path)

	ctx, cancel := context.WithTimeout(ctx, constants.GetTimeout("screenshot"))
	defer cancel()
	if err := q.Execute(ctx, "screendump", map[string]any{"filename": path}, nil); err != nil {
		return nil, err
	}

	img, err := decodePPM(path)
	if err != nil {
		return nil, err
	}
	logging.Debug("Screendump decoded", "width", img.Bounds().Dx(), "height", img.Bounds().Dy())
	return crop(img, region), nil
}

// DetectScreenSize takes a screenshot and adopts its size for pointer scaling
func (q *Client) DetectScreenSize(ctx context.Context) error {
	img, err := q.Screenshot(ctx, nil)
	if err != nil {
		return err
	}
	q.Width, q.Height = img.Bounds().Dx(), img.Bounds().Dy()
	q.log.Info("Screen size detected", "width", q.Width, "height", q.Height)
	return nil
}

func decodePPM(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open screendump: %w", err)
	}
	defer f.Close()
	img, err := netpbm.Decode(f, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decode screendump: %w", err)
	}
	return img, nil
}

type subImager interface {
	SubImage(r image.Rectangle) image.Image
}

func crop(img image.Image, region *macro.Region) image.Image {
	if region == nil {
		return img
	}
	rect := image.Rect(region.X, region.Y, region.X+region.Width, region.Y+region.Height).Intersect(img.Bounds())
	if s, ok := img.(subImager); ok {
		return s.SubImage(rect)
	}
	out := image.NewRGBA(rect)
	draw.Draw(out, rect, img, rect.Min, draw.Src)
	return out
}
