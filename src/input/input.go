// Package input runs the global hook lane: it turns raw gohook events into
// pointer events and hotkey activations.
package input

import (
	"context"
	"log"

	gohook "github.com/robotn/gohook"

	"screen-qr-scan/src/hotkey"
	"screen-qr-scan/src/messages"
)

var leftButton = gohook.MouseMap["left"]

// Sink receives translated events. Both callbacks run on the hook goroutine.
type Sink struct {
	OnPointer func(messages.PointerEvent)
	OnHotkey  func()
}

// Translate maps one hook event to pointer events. Button events are preceded
// by a move to their position so the tracker sees where the press happened.
// gohook reports a press as MouseHold and a release as MouseDown.
func Translate(ev gohook.Event) []messages.PointerEvent {
	pos := messages.PointerMove{X: float64(ev.X), Y: float64(ev.Y)}
	switch ev.Kind {
	case gohook.MouseMove, gohook.MouseDrag:
		return []messages.PointerEvent{pos}
	case gohook.MouseHold:
		if ev.Button != leftButton {
			return nil
		}
		return []messages.PointerEvent{pos, messages.PointerPress{}}
	case gohook.MouseDown:
		if ev.Button != leftButton {
			return nil
		}
		return []messages.PointerEvent{pos, messages.PointerRelease{}}
	}
	return nil
}

// Dispatch routes a single hook event to the sink.
func Dispatch(ev gohook.Event, m *hotkey.Matcher, sink Sink) {
	if m != nil && m.Handle(ev) && sink.OnHotkey != nil {
		sink.OnHotkey()
	}
	if sink.OnPointer == nil {
		return
	}
	for _, pe := range Translate(ev) {
		sink.OnPointer(pe)
	}
}

// Listen starts the process-wide hook and dispatches events until ctx is
// cancelled. m may be nil when no hotkey is configured.
func Listen(ctx context.Context, m *hotkey.Matcher, sink Sink) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("PANIC in input hook goroutine: %v", r)
			}
		}()

		evChan := gohook.Start()
		if evChan == nil {
			log.Printf("ERROR: gohook.Start() returned nil channel")
			return
		}
		defer gohook.End()
		log.Printf("Input hook started")

		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-evChan:
				if !ok {
					log.Printf("Event channel closed")
					return
				}
				Dispatch(ev, m, sink)
			}
		}
	}()
}
