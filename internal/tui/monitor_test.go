package tui

import (
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeeftor/rowpilot/internal/engine"
)

type fakeControls struct {
	state   engine.State
	toggles int
	stops   int
}

func (f *fakeControls) State() engine.State { return f.state }
func (f *fakeControls) TogglePause()        { f.toggles++ }
func (f *fakeControls) Stop()               { f.stops++ }

func newTestModel(total int) (Model, *fakeControls, chan engine.Event) {
	ctrl := &fakeControls{state: engine.StateRunning}
	ch := make(chan engine.Event, 1)
	return NewModel(ctrl, ch, Options{Title: "signup.yaml", TotalRows: total}), ctrl, ch
}

func press(m Model, k string) (Model, tea.Cmd) {
	var msg tea.KeyMsg
	switch k {
	case "esc":
		msg = tea.KeyMsg{Type: tea.KeyEsc}
	default:
		msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
	}
	next, cmd := m.Update(msg)
	return next.(Model), cmd
}

func send(m Model, e engine.Event) Model {
	next, _ := m.Update(eventMsg(e))
	return next.(Model)
}

func TestKeysDriveController(t *testing.T) {
	m, ctrl, _ := newTestModel(3)

	m, _ = press(m, "p")
	assert.Equal(t, 1, ctrl.toggles)

	m, _ = press(m, "s")
	assert.Equal(t, 1, ctrl.stops)

	_, cmd := press(m, "q")
	require.NotNil(t, cmd)
	assert.Equal(t, tea.QuitMsg{}, cmd())
	assert.Equal(t, 2, ctrl.stops, "quitting stops an active run")
}

func TestQuitAfterRunDoesNotStop(t *testing.T) {
	m, ctrl, _ := newTestModel(1)
	ctrl.state = engine.StateIdle
	_, cmd := press(m, "esc")
	require.NotNil(t, cmd)
	assert.Zero(t, ctrl.stops)
}

func TestEventsUpdateProgress(t *testing.T) {
	m, _, _ := newTestModel(2)

	m = send(m, engine.Event{Type: engine.EventStepStarted, Step: &engine.StepRecord{Row: 0, StepIndex: 1, Name: "type name"}})
	assert.Contains(t, m.View(), "row 0 step 1 type name")

	m = send(m, engine.Event{Type: engine.EventRowCompleted, Result: &engine.ExecutionResult{Row: 0, Success: true, Duration: time.Second}})
	m = send(m, engine.Event{Type: engine.EventRowCompleted, Result: &engine.ExecutionResult{Row: 1, Error: "device action failed"}})
	m = send(m, engine.Event{Type: engine.EventRowCompleted, Result: &engine.ExecutionResult{Row: 2, Aborted: true}})

	assert.Equal(t, 1, m.tracker.Succeeded)
	assert.Equal(t, 1, m.tracker.Failed)
	assert.Equal(t, 1.0, m.tracker.Progress())

	view := m.View()
	assert.Contains(t, view, "2/2")
	assert.Contains(t, view, "Row 1 failed: device action failed")
}

func TestStateAndFinish(t *testing.T) {
	m, _, _ := newTestModel(0)

	m = send(m, engine.Event{Type: engine.EventStateChanged, State: engine.StatePaused})
	assert.Equal(t, engine.StatePaused, m.state)
	assert.Contains(t, m.View(), "PAUSED")

	m = send(m, engine.Event{Type: engine.EventRunFinished})
	assert.Contains(t, m.View(), "Press q to exit")

	m = send(m, engine.Event{Type: engine.EventRunError, Message: "internal error: boom"})
	assert.Contains(t, m.View(), "Error: internal error: boom")
}

func TestNextEventIsAwaited(t *testing.T) {
	m, _, ch := newTestModel(1)
	_, cmd := m.Update(eventMsg(engine.Event{Type: engine.EventRunFinished}))
	require.NotNil(t, cmd)

	ch <- engine.Event{Type: engine.EventStateChanged, State: engine.StateIdle}
	msg := cmd()
	assert.Equal(t, engine.EventStateChanged, engine.Event(msg.(eventMsg)).Type)
}

func TestProgressTracker(t *testing.T) {
	pt := NewProgressTracker(4)
	assert.Zero(t, pt.ETA())
	pt.StartTime = time.Now().Add(-2 * time.Second)
	pt.Record(true)
	pt.Record(false)
	assert.Equal(t, 0.5, pt.Progress())
	assert.InDelta(t, 2*time.Second, pt.ETA(), float64(200*time.Millisecond))
}

func TestLogManagerKeepsRecent(t *testing.T) {
	lm := NewLogManager(2)
	lm.Add("a", LogLevelInfo)
	lm.Add("b", LogLevelInfo)
	lm.Add("c", LogLevelInfo)
	entries := lm.Recent(5)
	require.Len(t, entries, 2)
	assert.Equal(t, "b", entries[0].Content)
}
