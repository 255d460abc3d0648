package messages

import "fmt"

// Message is the base interface for everything passed between lanes.
type Message interface {
	Type() string
}

// MessageType constants for type identification
const (
	TypePointerMove    = "PointerMove"
	TypePointerPress   = "PointerPress"
	TypePointerRelease = "PointerRelease"
	TypePayloadFound   = "PayloadFound"
	TypeNotFound       = "NotFound"
	TypeCaptureFailed  = "CaptureFailed"
	TypeDecodeFailed   = "DecodeFailed"
)

// PointerEvent is one input tick forwarded by the input lane.
// Variants: PointerMove, PointerPress, PointerRelease.
type PointerEvent interface {
	Message
	pointerEvent()
}

// PointerMove - pointer moved to X,Y in screen-pixel space
type PointerMove struct {
	X float64
	Y float64
}

func (m PointerMove) Type() string { return TypePointerMove }
func (PointerMove) pointerEvent()  {}

// PointerPress - primary button went down at the last known position
type PointerPress struct{}

func (m PointerPress) Type() string { return TypePointerPress }
func (PointerPress) pointerEvent()  {}

// PointerRelease - primary button went up at the last known position
type PointerRelease struct{}

func (m PointerRelease) Type() string { return TypePointerRelease }
func (PointerRelease) pointerEvent()  {}

// Outcome is the terminal result of one completed drag gesture.
// Variants: PayloadFound, NotFound, CaptureFailed, DecodeFailed.
type Outcome interface {
	Message
	outcome()
}

// PayloadFound - a QR symbol was decoded to a non-empty payload
type PayloadFound struct {
	Payload string
}

func (m PayloadFound) Type() string { return TypePayloadFound }
func (PayloadFound) outcome()       {}

// NotFound - no symbol in the selected area. Not an error.
type NotFound struct{}

func (m NotFound) Type() string { return TypeNotFound }
func (NotFound) outcome()       {}

// CaptureFailed - the screen read failed or the region was off-screen
type CaptureFailed struct {
	Reason string
}

func (m CaptureFailed) Type() string { return TypeCaptureFailed }
func (CaptureFailed) outcome()       {}

// DecodeFailed - the pixel buffer could not be processed at all
type DecodeFailed struct {
	Reason string
}

func (m DecodeFailed) Type() string { return TypeDecodeFailed }
func (DecodeFailed) outcome()       {}

// Describe renders an outcome as a short status line for the presentation layer.
func Describe(o Outcome) string {
	switch v := o.(type) {
	case PayloadFound:
		return v.Payload
	case NotFound:
		return "No QR code found in selection"
	case CaptureFailed:
		return fmt.Sprintf("Capture failed: %s", v.Reason)
	case DecodeFailed:
		return fmt.Sprintf("Decode failed: %s", v.Reason)
	case nil:
		return ""
	default:
		return o.Type()
	}
}
