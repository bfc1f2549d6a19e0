// Package tui is the interactive run monitor: row progress, the step in
// flight, recent events and pause/stop keys.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/jeeftor/rowpilot/internal/engine"
	"github.com/jeeftor/rowpilot/internal/styles"
)

const (
	logLines       = 8
	defaultWidth   = 80
	maxProgressBar = 60
)

// Controls is the part of the controller the monitor drives
type Controls interface {
	State() engine.State
	TogglePause()
	Stop()
}

// Options configures the monitor
type Options struct {
	Title string
	// TotalRows is the number of rows the run is expected to process
	TotalRows int
}

type eventMsg engine.Event

// Model is the bubbletea model of the monitor
type Model struct {
	ctrl   Controls
	events <-chan engine.Event
	title  string

	keys     KeyMap
	help     help.Model
	spinner  spinner.Model
	progress progress.Model
	tracker  *ProgressTracker
	log      *LogManager

	state    engine.State
	step     string
	finished bool
	runErr   string
	width    int
}

// NewModel builds a monitor reading from events, typically the channel of
// an engine.ChannelObserver registered on the controller.
func NewModel(ctrl Controls, events <-chan engine.Event, opts Options) Model {
	return Model{
		ctrl:     ctrl,
		events:   events,
		title:    opts.Title,
		keys:     DefaultKeyMap(),
		help:     help.New(),
		spinner:  spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(styles.InfoStyle)),
		progress: progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
		tracker:  NewProgressTracker(opts.TotalRows),
		log:      NewLogManager(logLines),
		state:    ctrl.State(),
		width:    defaultWidth,
	}
}

// Run shows the monitor until the user quits or ctx is cancelled
func Run(ctx context.Context, ctrl Controls, events <-chan engine.Event, opts Options) error {
	p := tea.NewProgram(NewModel(ctrl, events, opts), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}

func waitForEvent(ch <-chan engine.Event) tea.Cmd {
	return func() tea.Msg {
		return eventMsg(<-ch)
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, waitForEvent(m.events))
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.help.Width = msg.Width
		m.progress.Width = min(max(msg.Width-20, 10), maxProgressBar)
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			if m.ctrl.State().Active() {
				m.ctrl.Stop()
			}
			return m, tea.Quit
		case key.Matches(msg, m.keys.TogglePause):
			m.ctrl.TogglePause()
		case key.Matches(msg, m.keys.Stop):
			m.ctrl.Stop()
		case key.Matches(msg, m.keys.Help):
			m.help.ShowAll = !m.help.ShowAll
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case eventMsg:
		m.apply(engine.Event(msg))
		return m, waitForEvent(m.events)
	}
	return m, nil
}

func (m *Model) apply(e engine.Event) {
	switch e.Type {
	case engine.EventStateChanged:
		m.state = e.State
		m.log.Add("State "+e.State.String(), LogLevelInfo)
	case engine.EventStepStarted:
		if e.Step != nil {
			m.step = stepLabel(e.Step)
		}
	case engine.EventStepCompleted:
		if e.Step != nil && !e.Step.Success {
			m.log.Add(fmt.Sprintf("%s failed: %s", stepLabel(e.Step), e.Step.Error), LogLevelWarn)
		}
	case engine.EventRowCompleted:
		if e.Result == nil || e.Result.Aborted {
			return
		}
		m.tracker.Record(e.Result.Success)
		if e.Result.Success {
			m.log.Add(fmt.Sprintf("%s done in %s", rowLabel(e.Result.Row), formatDuration(e.Result.Duration)), LogLevelSuccess)
		} else {
			m.log.Add(fmt.Sprintf("%s failed: %s", rowLabel(e.Result.Row), e.Result.Error), LogLevelError)
		}
	case engine.EventRunFinished:
		m.finished = true
		m.step = ""
		m.log.Add("Run finished", LogLevelSuccess)
	case engine.EventRunError:
		m.finished = true
		m.step = ""
		m.runErr = e.Message
		m.log.Add("Run error: "+e.Message, LogLevelError)
	}
}

func rowLabel(row int) string {
	if row == engine.StandaloneRow {
		return "Standalone pass"
	}
	return fmt.Sprintf("Row %d", row)
}

func stepLabel(r *engine.StepRecord) string {
	name := r.Name
	if name == "" {
		name = r.Kind
	}
	if r.Row == engine.StandaloneRow {
		return fmt.Sprintf("step %d %s", r.StepIndex, name)
	}
	return fmt.Sprintf("row %d step %d %s", r.Row, r.StepIndex, name)
}

func (m Model) View() string {
	var b strings.Builder
	b.WriteString(renderTitle("rowpilot "+m.title, m.width))
	b.WriteString("\n\n")

	state := styles.StateStyle(m.state).Render(strings.ToUpper(m.state.String()))
	fmt.Fprintf(&b, "State: %s   Elapsed: %s", state, formatDuration(time.Since(m.tracker.StartTime)))
	if eta := m.tracker.ETA(); eta > 0 && !m.finished {
		fmt.Fprintf(&b, "   ETA: %s", formatDuration(eta))
	}
	b.WriteString("\n\n")

	if m.tracker.Total > 0 {
		fmt.Fprintf(&b, "%s %d/%d", m.progress.ViewAs(m.tracker.Progress()), m.tracker.Done(), m.tracker.Total)
	} else {
		fmt.Fprintf(&b, "%d rows", m.tracker.Done())
	}
	fmt.Fprintf(&b, "  %s %s\n\n",
		styles.SuccessStyle.Render(fmt.Sprintf("✓ %d", m.tracker.Succeeded)),
		styles.ErrorStyle.Render(fmt.Sprintf("✗ %d", m.tracker.Failed)))

	switch {
	case m.runErr != "":
		b.WriteString(styles.ErrorStyle.Render("Error: "+m.runErr) + "\n")
	case m.finished:
		b.WriteString(styles.SuccessStyle.Render("Finished. Press q to exit.") + "\n")
	case m.step != "":
		fmt.Fprintf(&b, "%s %s\n", m.spinner.View(), m.step)
	default:
		b.WriteString("\n")
	}

	if entries := m.log.Recent(logLines); len(entries) > 0 {
		b.WriteString(styles.BoxStyle.Width(max(m.width-4, 20)).Render(renderLog(entries)))
		b.WriteString("\n")
	}
	b.WriteString(m.help.View(m.keys))
	return lipgloss.NewStyle().Margin(0, 1).Render(b.String())
}
