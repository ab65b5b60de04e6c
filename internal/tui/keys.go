package tui

import (
	"github.com/charmbracelet/bubbles/key"
)

// keyMap documents the builtin bindings for the help line. The interpreter
// owns the actual key handling; this exists purely for display.
type keyMap struct {
	Move    key.Binding
	Dirs    key.Binding
	Mark    key.Binding
	Search  key.Binding
	Command key.Binding
	Delete  key.Binding
	Yank    key.Binding
	Refresh key.Binding
	Quit    key.Binding
	Help    key.Binding
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Move, k.Dirs, k.Mark, k.Command, k.Quit, k.Help}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Move, k.Dirs, k.Mark},
		{k.Search, k.Command, k.Refresh},
		{k.Delete, k.Yank, k.Quit},
	}
}

var keys = keyMap{
	Move: key.NewBinding(
		key.WithKeys("j", "k", "up", "down"),
		key.WithHelp("j/k", "move"),
	),
	Dirs: key.NewBinding(
		key.WithKeys("h", "l", "left", "right", "enter"),
		key.WithHelp("h/l", "dirs"),
	),
	Mark: key.NewBinding(
		key.WithKeys(" "),
		key.WithHelp("space", "mark"),
	),
	Search: key.NewBinding(
		key.WithKeys("/"),
		key.WithHelp("/", "search"),
	),
	Command: key.NewBinding(
		key.WithKeys(":"),
		key.WithHelp(":", "command"),
	),
	Delete: key.NewBinding(
		key.WithKeys("d"),
		key.WithHelp("dd", "delete"),
	),
	Yank: key.NewBinding(
		key.WithKeys("y"),
		key.WithHelp("yy", "yank"),
	),
	Refresh: key.NewBinding(
		key.WithKeys("r"),
		key.WithHelp("r", "refresh"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q"),
		key.WithHelp("q", "quit"),
	),
	Help: key.NewBinding(
		key.WithKeys("?"),
		key.WithHelp("?", "help"),
	),
}
