// Package region turns press/drag/release pointer gestures into capture rectangles.
package region

import (
	"math"
	"sync/atomic"

	"screen-qr-scan/src/messages"
	"screen-qr-scan/src/screenshot"
)

// State is the interaction state of the tracker.
type State int

const (
	Idle State = iota
	Selecting
	AwaitingResult
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Selecting:
		return "selecting"
	case AwaitingResult:
		return "awaiting-result"
	default:
		return "unknown"
	}
}

// Coordinate is a point in screen-pixel space.
type Coordinate struct {
	X float64
	Y float64
}

// Snapshot is an immutable view of the tracker for drawing. Start and Current
// are meaningful while Selecting; the in-progress rectangle spans them.
type Snapshot struct {
	State   State
	Anchor  Coordinate
	Start   Coordinate
	Current Coordinate
}

// Tracker is the gesture state machine. Handle and Rearm must be called from a
// single goroutine; Snapshot may be called from any goroutine.
type Tracker struct {
	cur  Snapshot
	snap atomic.Pointer[Snapshot]
}

func NewTracker() *Tracker {
	t := &Tracker{}
	t.publish()
	return t
}

// Snapshot returns the latest published state.
func (t *Tracker) Snapshot() Snapshot {
	return *t.snap.Load()
}

// Handle applies one pointer event. It returns a rectangle and true only when
// a Release completes a non-degenerate drag; the tracker is then
// AwaitingResult until Rearm is called.
func (t *Tracker) Handle(ev messages.PointerEvent) (screenshot.Region, bool) {
	switch e := ev.(type) {
	case messages.PointerMove:
		if !finite(e.X) || !finite(e.Y) {
			return screenshot.Region{}, false
		}
		pos := Coordinate{X: e.X, Y: e.Y}
		// The anchor follows the pointer in every state so a press right
		// after Rearm starts where the pointer actually is.
		t.cur.Anchor = pos
		if t.cur.State == Selecting {
			t.cur.Current = pos
		}
		t.publish()

	case messages.PointerPress:
		if t.cur.State != Idle {
			return screenshot.Region{}, false
		}
		t.cur.State = Selecting
		t.cur.Start = t.cur.Anchor
		t.cur.Current = t.cur.Anchor
		t.publish()

	case messages.PointerRelease:
		if t.cur.State != Selecting {
			return screenshot.Region{}, false
		}
		rect := Normalize(t.cur.Start, t.cur.Current)
		if !rect.Valid() {
			// Degenerate drag: a cancelled gesture, not an error.
			t.cur.State = Idle
			t.publish()
			return screenshot.Region{}, false
		}
		t.cur.State = AwaitingResult
		t.publish()
		return rect, true
	}
	return screenshot.Region{}, false
}

// Rearm returns an AwaitingResult tracker to Idle once the outcome of its
// gesture has been delivered.
func (t *Tracker) Rearm() {
	if t.cur.State != AwaitingResult {
		return
	}
	t.cur.State = Idle
	t.publish()
}

// Reset abandons any gesture in progress.
func (t *Tracker) Reset() {
	if t.cur.State == Idle {
		return
	}
	t.cur.State = Idle
	t.publish()
}

func (t *Tracker) publish() {
	s := t.cur
	t.snap.Store(&s)
}

// Normalize builds the rectangle spanned by two corners: origin is the
// component-wise minimum, extent the absolute difference.
func Normalize(a, b Coordinate) screenshot.Region {
	return screenshot.Region{
		X:      int(math.Floor(math.Min(a.X, b.X))),
		Y:      int(math.Floor(math.Min(a.Y, b.Y))),
		Width:  int(math.Abs(b.X - a.X)),
		Height: int(math.Abs(b.Y - a.Y)),
	}
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }
