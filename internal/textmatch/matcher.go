// Package textmatch locates target text among OCR-detected fragments.
package textmatch

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jeeftor/rowpilot/internal/constants"
	"github.com/jeeftor/rowpilot/internal/device"
	"github.com/jeeftor/rowpilot/internal/logging"
	"github.com/jeeftor/rowpilot/internal/macro"
)

// ErrNotFound is returned when no fragment matches after every attempt
var ErrNotFound = errors.New("text not found")

// Match is a located piece of text in absolute screen coordinates
type Match struct {
	Text       string       `json:"text"`
	Confidence float64      `json:"confidence"`
	Score      float64      `json:"score"`
	Box        macro.Region `json:"box"`
	Center     macro.Point  `json:"center"`
}

// Options controls a search
type Options struct {
	// Exact requires the normalized fragment to equal the normalized target
	Exact bool
	// Threshold drops fragments whose OCR confidence is below it
	Threshold float64
	// MaxRetries is the total number of scans; values below 1 mean one scan
	MaxRetries int
	// Region limits the scan. Its origin is added to returned coordinates.
	Region *macro.Region
	// Origin is the top-left of the scanned monitor when Region is nil
	Origin macro.Point
}

// Matcher scans the screen through an OCR service and scores fragments
type Matcher struct {
	ocr   device.OCR
	delay time.Duration
	sleep func(context.Context, time.Duration) error
	log   *logging.ContextualLogger
}

// New returns a matcher retrying every constants.TextRetryDelay
func New(ocr device.OCR) *Matcher {
	return &Matcher{
		ocr:   ocr,
		delay: constants.TextRetryDelay,
		sleep: sleepContext,
		log:   logging.NewContextualLogger("textmatch"),
	}
}

// WithDelay sets the pause between scans
func (m *Matcher) WithDelay(d time.Duration) *Matcher {
	m.delay = d
	return m
}

// Find scans and returns the best match for target. Scans are repeated up
// to opts.MaxRetries times until something matches. Cancelling ctx prevents
// further scans but never interrupts one in progress.
func (m *Matcher) Find(ctx context.Context, target string, opts Options) (*Match, error) {
	if strings.TrimSpace(target) == "" {
		return nil, fmt.Errorf("empty search text")
	}
	attempts := max(opts.MaxRetries, 1)
	logging.SearchTemplate.Logf("%q", target)

	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			if err := m.sleep(ctx, m.delay); err != nil {
				return nil, err
			}
		}

		frags, err := m.scan(ctx, opts)
		if err != nil {
			return nil, err
		}
		if f, score, ok := Best(target, frags, opts.Exact); ok {
			match := toMatch(f, score, opts)
			logging.Found(match.Text, match.Center.X, match.Center.Y)
			return match, nil
		}
		m.log.Debug("No match on attempt", "target", target, "attempt", attempt, "of", attempts, "fragments", len(frags))
	}

	logging.NotFound(target)
	return nil, fmt.Errorf("%w: %q", ErrNotFound, target)
}

// FindAll scans once and returns every matching fragment, best first
func (m *Matcher) FindAll(ctx context.Context, target string, opts Options) ([]Match, error) {
	frags, err := m.scan(ctx, opts)
	if err != nil {
		return nil, err
	}
	nt := Normalize(target)
	if nt == "" {
		return nil, fmt.Errorf("empty search text")
	}

	var out []Match
	for _, f := range frags {
		if score, ok := scoreFragment(nt, Normalize(f.Text), opts.Exact); ok {
			out = append(out, *toMatch(f, score, opts))
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out, nil
}

func (m *Matcher) scan(ctx context.Context, opts Options) ([]device.Fragment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	// A scan in progress is not interrupted by cancellation
	frags, err := m.ocr.Scan(context.WithoutCancel(ctx), opts.Region)
	if err != nil {
		return nil, fmt.Errorf("ocr scan failed: %w", err)
	}
	return Filter(frags, opts.Threshold), nil
}

// Filter keeps fragments whose confidence meets threshold
func Filter(frags []device.Fragment, threshold float64) []device.Fragment {
	out := make([]device.Fragment, 0, len(frags))
	for _, f := range frags {
		if f.Confidence >= threshold {
			out = append(out, f)
		}
	}
	return out
}

// Best scores every fragment against target and returns the highest scoring
// one. Ties keep the first fragment seen. In exact mode the first equal
// fragment wins with score 1.
func Best(target string, frags []device.Fragment, exact bool) (device.Fragment, float64, bool) {
	nt := Normalize(target)
	if nt == "" {
		return device.Fragment{}, 0, false
	}

	var best device.Fragment
	bestScore := 0.0
	found := false
	for _, f := range frags {
		score, ok := scoreFragment(nt, Normalize(f.Text), exact)
		if !ok {
			continue
		}
		if exact {
			return f, score, true
		}
		if score > bestScore {
			best, bestScore, found = f, score, true
		}
	}
	return best, bestScore, found
}

// scoreFragment compares normalized strings. Lengths are counted in runes.
func scoreFragment(target, text string, exact bool) (float64, bool) {
	if text == "" {
		return 0, false
	}
	if exact {
		return 1, target == text
	}

	tl, fl := float64(runeLen(target)), float64(runeLen(text))
	switch {
	case strings.Contains(text, target):
		return tl / fl, true
	case runeLen(text) > 2 && strings.Contains(target, text):
		return fl / tl, true
	case strings.Contains(stripSpace(text), stripSpace(target)):
		return tl / fl * 0.9, true
	}
	return 0, false
}

func toMatch(f device.Fragment, score float64, opts Options) *Match {
	off := opts.Origin
	if opts.Region != nil {
		off = macro.Point{X: opts.Region.X, Y: opts.Region.Y}
	}
	box := f.Box
	box.X += off.X
	box.Y += off.Y
	return &Match{
		Text:       f.Text,
		Confidence: clamp01(f.Confidence),
		Score:      clamp01(score),
		Box:        box,
		Center:     macro.Point{X: box.X + box.Width/2, Y: box.Y + box.Height/2},
	}
}

func clamp01(v float64) float64 {
	return min(max(v, 0), 1)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
