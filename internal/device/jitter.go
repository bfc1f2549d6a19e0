package device

import (
	"context"
	"image"
	"math/rand/v2"
	"time"

	"github.com/jeeftor/rowpilot/internal/macro"
)

// Humanized wraps a Device and pauses a random interval before each input
// primitive so actions are not perfectly regular.
type Humanized struct {
	Device
	base   time.Duration
	jitter time.Duration
	sleep  func(time.Duration)
}

// Humanize wraps d. The pause before each primitive is base plus up to jitter.
func Humanize(d Device, base, jitter time.Duration) *Humanized {
	return &Humanized{Device: d, base: base, jitter: jitter, sleep: time.Sleep}
}

func (h *Humanized) pause() {
	d := h.base
	if h.jitter > 0 {
		d += rand.N(h.jitter)
	}
	if d > 0 {
		h.sleep(d)
	}
}

func (h *Humanized) Move(ctx context.Context, x, y int, duration time.Duration) error {
	h.pause()
	return h.Device.Move(ctx, x, y, duration)
}

func (h *Humanized) Click(ctx context.Context, x, y int, button macro.Button, count int) error {
	h.pause()
	return h.Device.Click(ctx, x, y, button, count)
}

func (h *Humanized) Drag(ctx context.Context, from, to macro.Point, button macro.Button, duration time.Duration) error {
	h.pause()
	return h.Device.Drag(ctx, from, to, button, duration)
}

func (h *Humanized) Scroll(ctx context.Context, x, y, amount int) error {
	h.pause()
	return h.Device.Scroll(ctx, x, y, amount)
}

func (h *Humanized) TypeText(ctx context.Context, text string) error {
	h.pause()
	return h.Device.TypeText(ctx, text)
}

func (h *Humanized) Hotkey(ctx context.Context, keys ...string) error {
	h.pause()
	return h.Device.Hotkey(ctx, keys...)
}

// Screenshot is passed through without a pause
func (h *Humanized) Screenshot(ctx context.Context, region *macro.Region) (image.Image, error) {
	return h.Device.Screenshot(ctx, region)
}
