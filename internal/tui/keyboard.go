package tui

import (
	"github.com/charmbracelet/bubbles/key"
)

// KeyMap holds the monitor's key bindings and feeds bubbles/help
type KeyMap struct {
	TogglePause key.Binding
	Stop        key.Binding
	Quit        key.Binding
	Help        key.Binding
}

// DefaultKeyMap returns the default bindings
func DefaultKeyMap() KeyMap {
	return KeyMap{
		TogglePause: key.NewBinding(
			key.WithKeys("p", " "),
			key.WithHelp("p/space", "pause/resume"),
		),
		Stop: key.NewBinding(
			key.WithKeys("s"),
			key.WithHelp("s", "stop run"),
		),
		Quit: key.NewBinding(
			key.WithKeys("ctrl+c", "q", "esc"),
			key.WithHelp("q/esc", "stop and quit"),
		),
		Help: key.NewBinding(
			key.WithKeys("?", "h"),
			key.WithHelp("?", "help"),
		),
	}
}

func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.TogglePause, k.Stop, k.Quit, k.Help}
}

func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{{k.TogglePause, k.Stop}, {k.Quit, k.Help}}
}
