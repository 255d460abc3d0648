package hotkey

import (
	"fmt"
	"log"
	"strconv"
	"strings"

	gohook "github.com/robotn/gohook"
)

// Matcher tracks key state for one hotkey combination. It is fed raw hook
// events by the input lane and is not safe for concurrent use.
type Matcher struct {
	combo string
	keys  []keyState
}

type keyState struct {
	name     string
	rawcodes []uint16
	pressed  bool
}

// NewMatcher parses a combination like "Ctrl+Alt+Q".
func NewMatcher(combo string) (*Matcher, error) {
	m := &Matcher{combo: combo}
	for _, keyName := range parseHotkey(combo) {
		rawcodes := keyNameToRawcodes(keyName)
		if len(rawcodes) == 0 {
			return nil, fmt.Errorf("cannot map key %q in hotkey %q", keyName, combo)
		}
		m.keys = append(m.keys, keyState{name: keyName, rawcodes: rawcodes})
	}
	if len(m.keys) == 0 {
		return nil, fmt.Errorf("no valid keys in hotkey configuration %q", combo)
	}
	log.Printf("Hotkey listener configured for: %s", combo)
	return m, nil
}

func (m *Matcher) Combo() string { return m.combo }

// Handle updates key state and reports true once when every key of the
// combination is down. Non-key events are ignored.
func (m *Matcher) Handle(ev gohook.Event) bool {
	switch ev.Kind {
	case gohook.KeyDown, gohook.KeyHold:
		for i := range m.keys {
			if m.keys[i].matches(ev.Rawcode) {
				m.keys[i].pressed = true
			}
		}
		for i := range m.keys {
			if !m.keys[i].pressed {
				return false
			}
		}
		log.Printf("Hotkey activated: %s", m.combo)
		// Reset so a held combination fires once.
		for i := range m.keys {
			m.keys[i].pressed = false
		}
		return true

	case gohook.KeyUp:
		for i := range m.keys {
			if m.keys[i].matches(ev.Rawcode) {
				m.keys[i].pressed = false
			}
		}
	}
	return false
}

func (k keyState) matches(rawcode uint16) bool {
	for _, rc := range k.rawcodes {
		if rc == rawcode {
			return true
		}
	}
	return false
}

// parseHotkey converts a hotkey string like "Ctrl+Alt+q" to normalized key names
func parseHotkey(hotkeyConfig string) []string {
	var keys []string
	for _, part := range strings.Split(strings.ToLower(hotkeyConfig), "+") {
		part = strings.TrimSpace(part)
		switch part {
		case "":
			continue
		case "control":
			keys = append(keys, "ctrl")
		case "win", "cmd", "super":
			keys = append(keys, "cmd")
		default:
			keys = append(keys, part)
		}
	}
	return keys
}

var specialKeys = map[string][]uint16{
	// Modifiers: left and right variants
	"ctrl":  {162, 163}, // VK_LCONTROL, VK_RCONTROL
	"alt":   {164, 165}, // VK_LMENU, VK_RMENU
	"shift": {160, 161}, // VK_LSHIFT, VK_RSHIFT
	"cmd":   {91, 92},   // VK_LWIN, VK_RWIN

	"space":     {32},
	"enter":     {13},
	"return":    {13},
	"esc":       {27},
	"escape":    {27},
	"tab":       {9},
	"backspace": {8},
	"delete":    {46},
	"del":       {46},
	"insert":    {45},
	"ins":       {45},
	"home":      {36},
	"end":       {35},
	"pageup":    {33},
	"pgup":      {33},
	"pagedown":  {34},
	"pgdn":      {34},
	"left":      {37},
	"up":        {38},
	"right":     {39},
	"down":      {40},
}

// keyNameToRawcodes maps a key name to its Windows virtual key codes.
// Letters, digits and F1-F24 follow the contiguous VK ranges.
func keyNameToRawcodes(keyName string) []uint16 {
	keyName = strings.ToLower(strings.TrimSpace(keyName))
	if codes, ok := specialKeys[keyName]; ok {
		return codes
	}

	if len(keyName) == 1 {
		c := keyName[0]
		switch {
		case c >= 'a' && c <= 'z':
			return []uint16{uint16('A' + c - 'a')} // VK 0x41-0x5A
		case c >= '0' && c <= '9':
			return []uint16{uint16(c)} // VK 0x30-0x39
		}
	}

	if strings.HasPrefix(keyName, "f") {
		if n, err := strconv.Atoi(keyName[1:]); err == nil && n >= 1 && n <= 24 {
			return []uint16{uint16(111 + n)} // VK_F1 = 112
		}
	}

	log.Printf("WARNING: Unknown key name '%s', cannot map to rawcode", keyName)
	return nil
}
