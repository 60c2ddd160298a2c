package engine

import (
	"fmt"
	"strings"
)

// Named keys. Printable input arrives as KeyChar with Key.Text set.
const (
	KeyChar      = ""
	KeyTab       = "tab"
	KeyEnter     = "enter"
	KeyEscape    = "escape"
	KeyBackspace = "backspace"
	KeyUp        = "up"
	KeyDown      = "down"
	KeySpace     = "space"
)

// Key is one keydown event.
type Key struct {
	Name  string
	Text  string
	Shift bool
	Ctrl  bool
	Alt   bool
	Meta  bool
}

// Char returns the event for typing text.
func Char(text string) Key { return Key{Text: text} }

// Named returns the event for a named key without modifiers.
func Named(name string) Key { return Key{Name: name} }

// name returns the key's canonical name; a typed " " is "space".
func (k Key) name() string {
	if k.Name == KeyChar && k.Text == " " {
		return KeySpace
	}
	return k.Name
}

// printable returns the text the key inserts by default.
func (k Key) printable() string {
	switch k.name() {
	case KeyChar:
		return k.Text
	case KeySpace:
		return " "
	default:
		return ""
	}
}

// Hotkey is a key plus modifiers that expands the trigger before the caret.
type Hotkey struct {
	Key   string
	Shift bool
	Ctrl  bool
	Alt   bool
	Meta  bool
}

// DefaultHotkey is shift+space.
var DefaultHotkey = Hotkey{Key: KeySpace, Shift: true}

// ParseHotkey parses "mod+mod+key", for example "shift+space" or "ctrl+e".
func ParseHotkey(s string) (Hotkey, error) {
	var h Hotkey
	parts := strings.Split(strings.ToLower(strings.TrimSpace(s)), "+")
	for i, p := range parts {
		p = strings.TrimSpace(p)
		if i == len(parts)-1 {
			if p == "" {
				return Hotkey{}, fmt.Errorf("hotkey %q has no key", s)
			}
			h.Key = p
			break
		}
		switch p {
		case "shift":
			h.Shift = true
		case "ctrl", "control":
			h.Ctrl = true
		case "alt", "option":
			h.Alt = true
		case "meta", "cmd", "super":
			h.Meta = true
		default:
			return Hotkey{}, fmt.Errorf("hotkey %q: unknown modifier %q", s, p)
		}
	}
	return h, nil
}

// Matches reports whether k is this hotkey.
func (h Hotkey) Matches(k Key) bool {
	name := k.name()
	if name == KeyChar {
		name = strings.ToLower(k.Text)
	}
	return name == h.Key && k.Shift == h.Shift && k.Ctrl == h.Ctrl && k.Alt == h.Alt && k.Meta == h.Meta
}

func (h Hotkey) String() string {
	var parts []string
	if h.Ctrl {
		parts = append(parts, "ctrl")
	}
	if h.Alt {
		parts = append(parts, "alt")
	}
	if h.Meta {
		parts = append(parts, "meta")
	}
	if h.Shift {
		parts = append(parts, "shift")
	}
	return strings.Join(append(parts, h.Key), "+")
}
