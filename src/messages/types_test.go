package messages

import "testing"

func TestDescribe(t *testing.T) {
	tests := []struct {
		name string
		in   Outcome
		want string
	}{
		{"payload", PayloadFound{Payload: "https://example.com"}, "https://example.com"},
		{"not found", NotFound{}, "No QR code found in selection"},
		{"capture", CaptureFailed{Reason: "region outside screen"}, "Capture failed: region outside screen"},
		{"decode", DecodeFailed{Reason: "malformed buffer"}, "Decode failed: malformed buffer"},
		{"nil", nil, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Describe(tt.in); got != tt.want {
				t.Errorf("Describe() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPointerEventTypes(t *testing.T) {
	events := []PointerEvent{PointerMove{X: 1, Y: 2}, PointerPress{}, PointerRelease{}}
	want := []string{TypePointerMove, TypePointerPress, TypePointerRelease}
	for i, ev := range events {
		if ev.Type() != want[i] {
			t.Errorf("event %d Type() = %q, want %q", i, ev.Type(), want[i])
		}
	}
}
