package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
)

type keyMap struct {
	Up          key.Binding
	Down        key.Binding
	Left        key.Binding
	Right       key.Binding
	Pane        key.Binding
	Select      key.Binding
	InsertRow   key.Binding
	DeleteRow   key.Binding
	SetNull     key.Binding
	DeleteTable key.Binding
	CreateTable key.Binding
	Save        key.Binding
	Reload      key.Binding
	OpenFile    key.Binding
	Quit        key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Up:          key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("k", "up")),
		Down:        key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("j", "down")),
		Left:        key.NewBinding(key.WithKeys("left", "h"), key.WithHelp("h", "left")),
		Right:       key.NewBinding(key.WithKeys("right", "l"), key.WithHelp("l", "right")),
		Pane:        key.NewBinding(key.WithKeys("tab", "shift+tab"), key.WithHelp("tab", "pane")),
		Select:      key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "open/edit")),
		InsertRow:   key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "row")),
		DeleteRow:   key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "del row")),
		SetNull:     key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "null")),
		DeleteTable: key.NewBinding(key.WithKeys("D"), key.WithHelp("D", "drop table")),
		CreateTable: key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "new table")),
		Save:        key.NewBinding(key.WithKeys("ctrl+s"), key.WithHelp("ctrl+s", "save")),
		Reload:      key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reload")),
		OpenFile:    key.NewBinding(key.WithKeys("o"), key.WithHelp("o", "open file")),
		Quit:        key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) tablesHelp() []key.Binding {
	return []key.Binding{k.Down, k.Select, k.CreateTable, k.DeleteTable, k.Pane, k.OpenFile, k.Quit}
}

func (k keyMap) gridHelp() []key.Binding {
	return []key.Binding{k.Select, k.SetNull, k.InsertRow, k.DeleteRow, k.Save, k.Reload, k.Pane, k.Quit}
}

func helpLine(bindings []key.Binding) string {
	parts := make([]string, 0, len(bindings))
	for _, b := range bindings {
		h := b.Help()
		parts = append(parts, h.Key+" "+h.Desc)
	}
	return " " + strings.Join(parts, "  ")
}
