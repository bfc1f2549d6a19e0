package engine

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"time"

	"github.com/jeeftor/rowpilot/internal/device"
	"github.com/jeeftor/rowpilot/internal/macro"
)

// MockDevice records primitive calls and can fail typed text on demand
type MockDevice struct {
	mu       sync.Mutex
	calls    []string
	glides   []time.Duration
	failType map[string]int // text -> remaining failures, -1 fails forever
	typeHook func(text string)
	panicOn  string
}

func newMockDevice() *MockDevice {
	return &MockDevice{failType: map[string]int{}}
}

func (m *MockDevice) record(format string, args ...any) {
	m.mu.Lock()
	m.calls = append(m.calls, fmt.Sprintf(format, args...))
	m.mu.Unlock()
}

func (m *MockDevice) glide(d time.Duration) {
	m.mu.Lock()
	m.glides = append(m.glides, d)
	m.mu.Unlock()
}

func (m *MockDevice) Glides() []time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]time.Duration(nil), m.glides...)
}

func (m *MockDevice) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

func (m *MockDevice) count(call string) int {
	n := 0
	for _, c := range m.Calls() {
		if c == call {
			n++
		}
	}
	return n
}

func (m *MockDevice) Move(_ context.Context, x, y int, duration time.Duration) error {
	m.record("move %d,%d", x, y)
	m.glide(duration)
	return nil
}

func (m *MockDevice) Click(_ context.Context, x, y int, button macro.Button, count int) error {
	m.record("click %d,%d %s x%d", x, y, button, count)
	return nil
}

func (m *MockDevice) Drag(_ context.Context, from, to macro.Point, button macro.Button, duration time.Duration) error {
	m.record("drag %d,%d %d,%d", from.X, from.Y, to.X, to.Y)
	m.glide(duration)
	return nil
}

func (m *MockDevice) Scroll(_ context.Context, x, y, amount int) error {
	m.record("scroll %d", amount)
	return nil
}

func (m *MockDevice) TypeText(_ context.Context, text string) error {
	m.record("type %s", text)
	if m.panicOn != "" && text == m.panicOn {
		panic("device exploded")
	}
	if m.typeHook != nil {
		m.typeHook(text)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if n, ok := m.failType[text]; ok && n != 0 {
		if n > 0 {
			m.failType[text] = n - 1
		}
		return errors.New("keyboard unavailable")
	}
	return nil
}

func (m *MockDevice) Hotkey(_ context.Context, keys ...string) error {
	m.record("hotkey %v", keys)
	return nil
}

func (m *MockDevice) Screenshot(_ context.Context, _ *macro.Region) (image.Image, error) {
	m.record("screenshot")
	return image.NewGray(image.Rect(0, 0, 4, 4)), nil
}

// MockOCR returns a fixed fragment list or an error
type MockOCR struct {
	fragments []device.Fragment
	err       error
}

func (o *MockOCR) Scan(_ context.Context, _ *macro.Region) ([]device.Fragment, error) {
	return o.fragments, o.err
}

// MockImages reports a match for every template in found
type MockImages struct {
	mu    sync.Mutex
	found map[string]int // template -> remaining hits, -1 always
	err   error
}

func (m *MockImages) Find(_ context.Context, template string, _ *macro.Region, confidence float64) (*device.ImageMatch, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	n := m.found[template]
	if n == 0 {
		return nil, nil
	}
	if n > 0 {
		m.found[template] = n - 1
	}
	return &device.ImageMatch{Box: macro.Region{X: 100, Y: 200, Width: 10, Height: 10}, Confidence: confidence}, nil
}

// MockRows is an in-memory row source recording status write-back
type MockRows struct {
	mu       sync.Mutex
	rows     []map[string]string
	status   map[int]string
	pending  []int
	failData map[int]bool
}

func newMockRows(names ...string) *MockRows {
	r := &MockRows{status: map[int]string{}, failData: map[int]bool{}}
	for _, n := range names {
		r.rows = append(r.rows, map[string]string{"name": n})
	}
	return r
}

func (r *MockRows) RowCount() int { return len(r.rows) }

func (r *MockRows) PendingRows() []int {
	if r.pending != nil {
		return r.pending
	}
	out := make([]int, len(r.rows))
	for i := range r.rows {
		out[i] = i
	}
	return out
}

func (r *MockRows) RowData(i int) (map[string]string, error) {
	if r.failData[i] || i < 0 || i >= len(r.rows) {
		return nil, fmt.Errorf("row %d unavailable", i)
	}
	return r.rows[i], nil
}

func (r *MockRows) UpdateRowStatus(i int, status string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.status[i] = status
	return nil
}

func (r *MockRows) Status(i int) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.status[i]
	return s, ok
}

// stateRecorder collects state change notifications
type stateRecorder struct {
	mu     sync.Mutex
	states []State
	events []EventType
}

func (s *stateRecorder) OnEvent(e Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e.Type)
	if e.Type == EventStateChanged {
		s.states = append(s.states, e.State)
	}
}

func (s *stateRecorder) States() []State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]State(nil), s.states...)
}

func (s *stateRecorder) Events() []EventType {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]EventType(nil), s.events...)
}

func step(id string, a macro.Action) macro.Step {
	s := macro.NewStep(id, a)
	s.ID = id
	return s
}

func withPolicy(s macro.Step, p macro.ErrorPolicy, retries int) macro.Step {
	s.OnError = p
	s.RetryCount = retries
	return s
}

func newMacro(steps ...macro.Step) *macro.Macro {
	return &macro.Macro{ID: "m1", Name: "test", Steps: steps, Variables: map[string]string{}}
}

func newTestInterpreter(dev device.Device, ocr device.OCR, images device.ImageMatcher) *Interpreter {
	b := device.Bundle{Device: dev}
	if ocr != nil {
		b.OCR = ocr
	}
	if images != nil {
		b.Images = images
	}
	in := NewInterpreter(b)
	in.RetryDelay = 0
	in.PollInterval = time.Millisecond
	if in.matcher != nil {
		in.matcher.WithDelay(0)
	}
	return in
}

func newTestController(dev device.Device) *Controller {
	c := NewController(newTestInterpreter(dev, nil, nil))
	c.RowDelay = 0
	return c
}
