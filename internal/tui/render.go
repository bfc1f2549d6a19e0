package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeeftor/rowpilot/internal/styles"
)

var (
	logInfoStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color(styles.Text))
	logWarnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color(styles.Warning))
	logErrorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color(styles.Error))
	logSuccessStyle = lipgloss.NewStyle().Foreground(lipgloss.Color(styles.Success))
)

// renderTitle centers a title bar across width
func renderTitle(title string, width int) string {
	if width <= 0 {
		return styles.TitleStyle.Render(title)
	}
	return styles.TitleStyle.Width(width).Align(lipgloss.Center).Render(title)
}

func renderLog(entries []LogEntry) string {
	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		style, mark := logInfoStyle, "•"
		switch e.Level {
		case LogLevelWarn:
			style, mark = logWarnStyle, "⚠"
		case LogLevelError:
			style, mark = logErrorStyle, "✗"
		case LogLevelSuccess:
			style, mark = logSuccessStyle, "✓"
		}
		lines = append(lines, fmt.Sprintf("%s %s %s",
			styles.MutedStyle.Render(e.Timestamp.Format("15:04:05")),
			style.Render(mark),
			style.Render(e.Content)))
	}
	return strings.Join(lines, "\n")
}

func formatDuration(d time.Duration) string {
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%.1fs", d.Seconds())
	case d < time.Hour:
		return fmt.Sprintf("%.1fm", d.Minutes())
	default:
		return fmt.Sprintf("%dh%dm", int(d.Hours()), int((d % time.Hour).Minutes()))
	}
}
