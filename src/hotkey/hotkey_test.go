package hotkey

import (
	"reflect"
	"testing"

	gohook "github.com/robotn/gohook"
)

func TestKeyNameToRawcodes(t *testing.T) {
	tests := []struct {
		keyName  string
		expected []uint16
	}{
		{"ctrl", []uint16{162, 163}},
		{"alt", []uint16{164, 165}},
		{"shift", []uint16{160, 161}},
		{"cmd", []uint16{91, 92}},
		{"q", []uint16{81}},
		{"a", []uint16{65}},
		{"z", []uint16{90}},
		{"0", []uint16{48}},
		{"9", []uint16{57}},
		{"f1", []uint16{112}},
		{"f12", []uint16{123}},
		{"f24", []uint16{135}},
		{"space", []uint16{32}},
		{"esc", []uint16{27}},
		{"f25", nil},
		{"unknown", nil},
	}

	for _, tt := range tests {
		t.Run(tt.keyName, func(t *testing.T) {
			if got := keyNameToRawcodes(tt.keyName); !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("keyNameToRawcodes(%q) = %v, expected %v", tt.keyName, got, tt.expected)
			}
		})
	}
}

func TestParseHotkey(t *testing.T) {
	got := parseHotkey("Ctrl + Super+Q")
	want := []string{"ctrl", "cmd", "q"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("parseHotkey = %v, want %v", got, want)
	}
}

func TestNewMatcherRejectsUnknownKeys(t *testing.T) {
	if _, err := NewMatcher("Ctrl+Banana"); err == nil {
		t.Error("expected error for unknown key")
	}
	if _, err := NewMatcher(" + "); err == nil {
		t.Error("expected error for empty combination")
	}
}

func TestMatcherFiresOnceWhenAllKeysDown(t *testing.T) {
	m, err := NewMatcher("Ctrl+Alt+Q")
	if err != nil {
		t.Fatal(err)
	}

	down := func(rc uint16) bool { return m.Handle(gohook.Event{Kind: gohook.KeyHold, Rawcode: rc}) }
	up := func(rc uint16) bool { return m.Handle(gohook.Event{Kind: gohook.KeyUp, Rawcode: rc}) }

	if down(162) || down(165) {
		t.Fatal("fired before all keys were down")
	}
	if !down(81) {
		t.Fatal("expected activation on final key")
	}
	// The state was reset: repeating Q alone must not fire.
	if down(81) {
		t.Error("fired again without modifiers")
	}

	down(163)
	up(163)
	down(164)
	if down(81) {
		t.Error("fired after ctrl was released")
	}
}

func TestMatcherIgnoresMouseEvents(t *testing.T) {
	m, err := NewMatcher("Q")
	if err != nil {
		t.Fatal(err)
	}
	if m.Handle(gohook.Event{Kind: gohook.MouseMove, Rawcode: 81}) {
		t.Error("mouse event activated hotkey")
	}
	if !m.Handle(gohook.Event{Kind: gohook.KeyDown, Rawcode: 81}) {
		t.Error("key down did not activate single-key hotkey")
	}
}
