// Package styles holds the lipgloss palette shared by the run monitor and
// the CLI's formatted output.
package styles

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeeftor/rowpilot/internal/engine"
)

// Palette
const (
	Primary     = "#7D56F4"
	PrimaryText = "#FAFAFA"

	Success = "#04B575"
	Warning = "#FFA500"
	Error   = "#FF6B6B"
	Info    = "#00CED1"

	Text      = "#FAFAFA"
	TextMuted = "#626262"
	TextBold  = "#90EE90"
	Highlight = "#FFFF00"
)

var (
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color(PrimaryText)).
			Background(lipgloss.Color(Primary)).
			Padding(0, 1)

	SuccessStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(Success)).
			Bold(true)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(Error)).
			Bold(true)

	WarningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(Warning)).
			Bold(true)

	InfoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(Info)).
			Bold(true)

	BoldStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(TextBold)).
			Bold(true)

	MutedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(TextMuted)).
			Italic(true)

	HighlightStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(Highlight)).
			Bold(true)

	BoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color(Primary)).
			Padding(0, 1)

	HeaderStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color(Primary)).
			Margin(0, 0, 1, 0)

	KeyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(Info)).
			Bold(true)

	ValueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(Text))
)

// StateStyle colours a controller state
func StateStyle(s engine.State) lipgloss.Style {
	switch s {
	case engine.StateRunning:
		return SuccessStyle
	case engine.StatePaused, engine.StateStopping:
		return WarningStyle
	case engine.StateError:
		return ErrorStyle
	default:
		return MutedStyle
	}
}

// PrintStyledln prints text with a style and a newline
func PrintStyledln(w io.Writer, style lipgloss.Style, text string) {
	fmt.Fprintln(w, style.Render(text))
}

// PrintKeyValue prints an aligned "key: value" line
func PrintKeyValue(w io.Writer, key, value string) {
	fmt.Fprintf(w, "%s %s\n", KeyStyle.Width(16).Render(key+":"), ValueStyle.Render(value))
}
