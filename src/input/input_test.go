package input

import (
	"reflect"
	"testing"

	gohook "github.com/robotn/gohook"

	"screen-qr-scan/src/hotkey"
	"screen-qr-scan/src/messages"
)

func TestTranslate(t *testing.T) {
	tests := []struct {
		name string
		ev   gohook.Event
		want []messages.PointerEvent
	}{
		{"move", gohook.Event{Kind: gohook.MouseMove, X: 10, Y: 20}, []messages.PointerEvent{messages.PointerMove{X: 10, Y: 20}}},
		{"drag", gohook.Event{Kind: gohook.MouseDrag, X: -5, Y: 7}, []messages.PointerEvent{messages.PointerMove{X: -5, Y: 7}}},
		{"left press", gohook.Event{Kind: gohook.MouseHold, Button: leftButton, X: 1, Y: 2},
			[]messages.PointerEvent{messages.PointerMove{X: 1, Y: 2}, messages.PointerPress{}}},
		{"left release", gohook.Event{Kind: gohook.MouseDown, Button: leftButton, X: 3, Y: 4},
			[]messages.PointerEvent{messages.PointerMove{X: 3, Y: 4}, messages.PointerRelease{}}},
		{"right press", gohook.Event{Kind: gohook.MouseHold, Button: gohook.MouseMap["right"]}, nil},
		{"wheel", gohook.Event{Kind: gohook.MouseWheel}, nil},
		{"key", gohook.Event{Kind: gohook.KeyDown, Rawcode: 81}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Translate(tt.ev); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Translate() = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestDispatch(t *testing.T) {
	m, err := hotkey.NewMatcher("Q")
	if err != nil {
		t.Fatal(err)
	}
	var pointer []messages.PointerEvent
	hotkeys := 0
	sink := Sink{
		OnPointer: func(ev messages.PointerEvent) { pointer = append(pointer, ev) },
		OnHotkey:  func() { hotkeys++ },
	}

	Dispatch(gohook.Event{Kind: gohook.KeyDown, Rawcode: 81}, m, sink)
	Dispatch(gohook.Event{Kind: gohook.MouseMove, X: 9, Y: 9}, m, sink)
	Dispatch(gohook.Event{Kind: gohook.MouseMove, X: 10, Y: 10}, nil, Sink{})

	if hotkeys != 1 {
		t.Errorf("hotkey fired %d times, want 1", hotkeys)
	}
	if len(pointer) != 1 || pointer[0] != (messages.PointerMove{X: 9, Y: 9}) {
		t.Errorf("pointer events = %#v", pointer)
	}
}
