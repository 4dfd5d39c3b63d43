package tui

import "github.com/charmbracelet/bubbles/key"

// keyMap holds the dashboard bindings.
type keyMap struct {
	Quit    key.Binding
	Help    key.Binding
	Tab     key.Binding
	Up      key.Binding
	Down    key.Binding
	PgUp    key.Binding
	PgDown  key.Binding
	Refresh key.Binding
	Power   key.Binding
}

var keys = keyMap{
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
	Help: key.NewBinding(
		key.WithKeys("?"),
		key.WithHelp("?", "help"),
	),
	Tab: key.NewBinding(
		key.WithKeys("tab"),
		key.WithHelp("Tab", "switch panel"),
	),
	Up: key.NewBinding(
		key.WithKeys("up", "k"),
		key.WithHelp("j/k", "navigate"),
	),
	Down: key.NewBinding(
		key.WithKeys("down", "j"),
		key.WithHelp("j/k", "navigate"),
	),
	PgUp: key.NewBinding(
		key.WithKeys("pgup", "ctrl+u"),
		key.WithHelp("Ctrl+u", "page up"),
	),
	PgDown: key.NewBinding(
		key.WithKeys("pgdown", "ctrl+d"),
		key.WithHelp("Ctrl+d", "page down"),
	),
	Refresh: key.NewBinding(
		key.WithKeys("r"),
		key.WithHelp("r", "refresh"),
	),
	Power: key.NewBinding(
		key.WithKeys("p"),
		key.WithHelp("p", "toggle simulated power"),
	),
}

// ShortHelp implements help.KeyMap.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Up, k.Tab, k.Refresh, k.Help, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.PgUp, k.PgDown},
		{k.Tab, k.Refresh, k.Power},
		{k.Help, k.Quit},
	}
}
