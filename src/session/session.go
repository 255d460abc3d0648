package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"

	"screen-qr-scan/src/clipboard"
	"screen-qr-scan/src/messages"
	"screen-qr-scan/src/opener"
)

var (
	ErrNotFound = errors.New("no QR code found in selection")
	ErrTimeout  = errors.New("no selection made before the deadline")
)

// ResultTarget receives a decoded payload.
type ResultTarget interface {
	OnPayload(payload string) error
}

// BrowserTarget opens URL payloads whose scheme is allowed; everything else is skipped.
type BrowserTarget struct {
	Schemes []string
	// Open defaults to opener.Open.
	Open func(payload string) error
}

func (t BrowserTarget) OnPayload(payload string) error {
	if !opener.Openable(payload, t.Schemes) {
		log.Printf("session: payload is not an openable URL, skipping browser")
		return nil
	}
	open := t.Open
	if open == nil {
		open = opener.Open
	}
	return open(payload)
}

// ClipboardTarget copies every payload to the system clipboard.
type ClipboardTarget struct{}

func (ClipboardTarget) OnPayload(payload string) error {
	return clipboard.Write(payload)
}

// StdoutTarget prints the payload without a trailing newline.
type StdoutTarget struct {
	Writer io.Writer
}

func (t StdoutTarget) OnPayload(payload string) error {
	w := t.Writer
	if w == nil {
		w = os.Stdout
	}
	_, err := fmt.Fprint(w, payload)
	return err
}

// Targets delivers to each target in order. Every target runs even when an
// earlier one fails; the errors are joined.
type Targets []ResultTarget

func (ts Targets) OnPayload(payload string) error {
	var errs []error
	for _, t := range ts {
		if err := t.OnPayload(payload); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Scanner is the part of the event loop a one-shot session drives.
type Scanner interface {
	Arm()
	Disarm()
	Outcomes() <-chan messages.Outcome
}

type Options struct {
	Scanner Scanner
	// Target receives the payload; nil means the scanner's own target only.
	Target ResultTarget
}

type Result struct {
	Payload string
}

// Execute arms the scanner for exactly one gesture and waits for its outcome.
// The deadline, if any, comes from ctx.
func Execute(ctx context.Context, opts Options) (Result, error) {
	if opts.Scanner == nil {
		return Result{}, errors.New("Scanner is required")
	}

	// Drop an outcome left over from before this session.
	select {
	case <-opts.Scanner.Outcomes():
	default:
	}

	opts.Scanner.Arm()

	var outcome messages.Outcome
	select {
	case outcome = <-opts.Scanner.Outcomes():
	case <-ctx.Done():
		opts.Scanner.Disarm()
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return Result{}, ErrTimeout
		}
		return Result{}, ctx.Err()
	}

	switch o := outcome.(type) {
	case messages.PayloadFound:
		if opts.Target != nil {
			if err := opts.Target.OnPayload(o.Payload); err != nil {
				return Result{Payload: o.Payload}, fmt.Errorf("failed to deliver payload: %w", err)
			}
		}
		return Result{Payload: o.Payload}, nil
	case messages.NotFound:
		return Result{}, ErrNotFound
	default:
		return Result{}, errors.New(messages.Describe(outcome))
	}
}
