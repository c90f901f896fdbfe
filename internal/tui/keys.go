package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
)

// KeyMap groups the bindings by the screen that reacts to them.
type KeyMap struct {
	Tab      key.Binding
	ShiftTab key.Binding
	Quit     key.Binding
	Refresh  key.Binding

	EditSymbol key.Binding
	ToggleMode key.Binding
	Submit     key.Binding
	Cancel     key.Binding

	CycleInterval key.Binding
	ScrollDown    key.Binding
	ScrollUp      key.Binding
}

func bind(help string, keys ...string) key.Binding {
	return key.NewBinding(key.WithKeys(keys...), key.WithHelp(keys[0], help))
}

var DefaultKeyMap = KeyMap{
	Tab:      bind("next screen", "tab"),
	ShiftTab: bind("previous screen", "shift+tab"),
	Quit:     bind("quit", "q", "ctrl+c"),
	Refresh:  bind("refresh", "R"),

	EditSymbol: bind("symbol", "/", "s"),
	ToggleMode: bind("crypto/stock", "m"),
	Submit:     bind("load", "enter"),
	Cancel:     bind("cancel", "esc"),

	CycleInterval: bind("interval", "i"),
	ScrollDown:    bind("scroll down", "j", "down"),
	ScrollUp:      bind("scroll up", "k", "up"),
}

// helpLine renders "[key] desc" hints for the enabled bindings.
func helpLine(bindings ...key.Binding) string {
	parts := make([]string, 0, len(bindings))
	for _, b := range bindings {
		if !b.Enabled() {
			continue
		}
		h := b.Help()
		parts = append(parts, "["+h.Key+"] "+h.Desc)
	}
	return SubtextStyle.Render("  " + strings.Join(parts, "  "))
}
