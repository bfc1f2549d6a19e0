package textmatch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeeftor/rowpilot/internal/device"
	"github.com/jeeftor/rowpilot/internal/macro"
)

// scriptedOCR returns one fragment list per scan, repeating the last
type scriptedOCR struct {
	scans   [][]device.Fragment
	calls   int
	regions []*macro.Region
	err     error
}

func (o *scriptedOCR) Scan(_ context.Context, region *macro.Region) ([]device.Fragment, error) {
	o.regions = append(o.regions, region)
	o.calls++
	if o.err != nil {
		return nil, o.err
	}
	if len(o.scans) == 0 {
		return nil, nil
	}
	i := min(o.calls-1, len(o.scans)-1)
	return o.scans[i], nil
}

func frag(text string, conf float64) device.Fragment {
	return device.Fragment{Text: text, Confidence: conf, Box: macro.Region{X: 10, Y: 20, Width: 40, Height: 10}}
}

func newTestMatcher(ocr device.OCR) (*Matcher, *[]time.Duration) {
	var slept []time.Duration
	m := New(ocr)
	m.sleep = func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}
	return m, &slept
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"：", ":"},
		{"　", ""},
		{"a　b", "a b"},
		{"ＡＢＣ", "ａｂｃ"},
		{"  Hello（World）！ ", "hello(world)!"},
		{"이름：김철수", "이름:김철수"},
		{"［x］｛y｝＜z＞，。？；", "[x]{y}<z>,.?;"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, Normalize(tt.input))
		})
	}
}

func TestBestExact(t *testing.T) {
	f, score, ok := Best("abc", []device.Fragment{frag("ABC", 0.9)}, true)
	assert.True(t, ok, "exact match is case-insensitive after normalization")
	assert.Equal(t, "ABC", f.Text)
	assert.Equal(t, 1.0, score)

	_, _, ok = Best("abc", []device.Fragment{frag("abcd", 0.9)}, true)
	assert.False(t, ok, "exact mode rejects supersets")

	f, _, ok = Best("x", []device.Fragment{frag("y", 1), frag("X", 1), frag("x", 1)}, true)
	require.True(t, ok)
	assert.Equal(t, "X", f.Text, "first equal fragment wins")
}

func TestBestFuzzyScoring(t *testing.T) {
	tests := []struct {
		name      string
		target    string
		fragments []string
		expected  string
		score     float64
	}{
		{"target inside fragment", "name", []string{"full name:"}, "full name:", 0.4},
		{"shorter fragment wins higher score", "name", []string{"full name:", "names"}, "names", 0.8},
		{"fragment inside target", "submit form", []string{"submit"}, "submit", 6.0 / 11.0},
		{"short fragment inside target ignored", "submit", []string{"it"}, "", 0},
		{"whitespace differences", "log in", []string{"login"}, "login", 6.0 / 5.0 * 0.9},
		{"tie keeps first", "ok", []string{"ok!", "ok?"}, "ok!", 2.0 / 3.0},
		{"no match", "cancel", []string{"submit", "reset"}, "", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var frags []device.Fragment
			for _, s := range tt.fragments {
				frags = append(frags, frag(s, 0.9))
			}
			f, score, ok := Best(tt.target, frags, false)
			if tt.expected == "" {
				assert.False(t, ok)
				return
			}
			require.True(t, ok)
			assert.Equal(t, tt.expected, f.Text)
			assert.InDelta(t, tt.score, score, 1e-9)
		})
	}
}

func TestBestCountsRunes(t *testing.T) {
	f, score, ok := Best("김철수", []device.Fragment{frag("이름: 김철수", 0.9)}, false)
	require.True(t, ok)
	assert.Equal(t, "이름: 김철수", f.Text)
	assert.InDelta(t, 3.0/7.0, score, 1e-9)
}

func TestFindAddsRegionOffset(t *testing.T) {
	ocr := &scriptedOCR{scans: [][]device.Fragment{{frag("Submit", 0.95)}}}
	m, _ := newTestMatcher(ocr)

	region := &macro.Region{X: 100, Y: 200, Width: 300, Height: 300}
	match, err := m.Find(context.Background(), "submit", Options{Region: region, MaxRetries: 1})
	require.NoError(t, err)

	assert.Equal(t, macro.Region{X: 110, Y: 220, Width: 40, Height: 10}, match.Box)
	assert.Equal(t, macro.Point{X: 130, Y: 225}, match.Center)
	assert.Equal(t, 0.95, match.Confidence)
	assert.Same(t, region, ocr.regions[0], "region should be passed to the scanner")
}

func TestFindAddsMonitorOrigin(t *testing.T) {
	ocr := &scriptedOCR{scans: [][]device.Fragment{{frag("Submit", 0.95)}}}
	m, _ := newTestMatcher(ocr)

	match, err := m.Find(context.Background(), "submit", Options{Origin: macro.Point{X: 1920, Y: 0}})
	require.NoError(t, err)
	assert.Equal(t, 1930, match.Box.X)
	assert.Equal(t, macro.Point{X: 1950, Y: 25}, match.Center)
}

func TestFindRetriesOnFreshScans(t *testing.T) {
	ocr := &scriptedOCR{scans: [][]device.Fragment{
		{frag("loading", 0.9)},
		{frag("loading", 0.9)},
		{frag("Ready", 0.9)},
	}}
	m, slept := newTestMatcher(ocr)
	m.WithDelay(250 * time.Millisecond)

	match, err := m.Find(context.Background(), "ready", Options{MaxRetries: 5})
	require.NoError(t, err)
	assert.Equal(t, "Ready", match.Text)
	assert.Equal(t, 3, ocr.calls, "should stop scanning once found")
	assert.Equal(t, []time.Duration{250 * time.Millisecond, 250 * time.Millisecond}, *slept)
}

func TestFindNotFoundAfterRetries(t *testing.T) {
	ocr := &scriptedOCR{scans: [][]device.Fragment{{frag("nothing", 0.9)}}}
	m, _ := newTestMatcher(ocr)

	_, err := m.Find(context.Background(), "ready", Options{MaxRetries: 3})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 3, ocr.calls)
}

func TestFindSingleScanWhenRetriesUnset(t *testing.T) {
	ocr := &scriptedOCR{}
	m, slept := newTestMatcher(ocr)

	_, err := m.Find(context.Background(), "x", Options{})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 1, ocr.calls)
	assert.Empty(t, *slept)
}

func TestFindThresholdFiltersFragments(t *testing.T) {
	ocr := &scriptedOCR{scans: [][]device.Fragment{{frag("ready", 0.3)}}}
	m, _ := newTestMatcher(ocr)

	_, err := m.Find(context.Background(), "ready", Options{Threshold: 0.5})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFindScanError(t *testing.T) {
	boom := errors.New("screendump failed")
	m, _ := newTestMatcher(&scriptedOCR{err: boom})

	_, err := m.Find(context.Background(), "ready", Options{MaxRetries: 3})
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestFindStopsWhenCancelled(t *testing.T) {
	ocr := &scriptedOCR{}
	m := New(ocr).WithDelay(time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := m.Find(ctx, "ready", Options{MaxRetries: 3})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, ocr.calls, "no scan should start after cancellation")
}

func TestFindAllOrdersByScore(t *testing.T) {
	ocr := &scriptedOCR{scans: [][]device.Fragment{{
		frag("save as", 0.9),
		frag("Save", 0.9),
		frag("cancel", 0.9),
	}}}
	m, _ := newTestMatcher(ocr)

	matches, err := m.FindAll(context.Background(), "save", Options{})
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "Save", matches[0].Text)
	assert.Equal(t, "save as", matches[1].Text)
}
