// Package worker runs the long-lived capture worker that owns the screen device.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"sync"
	"time"

	"screen-qr-scan/src/screenshot"
)

const defaultTimeout = 2 * time.Second

// ErrorKind classifies capture failures.
type ErrorKind int

const (
	OutOfBounds ErrorKind = iota + 1
	DeviceFailure
)

func (k ErrorKind) String() string {
	switch k {
	case OutOfBounds:
		return "out of bounds"
	case DeviceFailure:
		return "device failure"
	default:
		return "unknown"
	}
}

// CaptureError is a per-request failure. The worker stays usable after one.
type CaptureError struct {
	Kind    ErrorKind
	Message string
}

func (e *CaptureError) Error() string {
	if e.Message == "" {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Request asks for one region; ID lets the requester discard stale results.
type Request struct {
	ID     uint64
	Region screenshot.Region
}

// Result carries either Buffer or Err for the request with the same ID.
// Ownership of Buffer passes to the receiver.
type Result struct {
	ID     uint64
	Buffer *screenshot.PixelBuffer
	Err    *CaptureError
}

type Options struct {
	// Timeout bounds a single device read. Zero means 2s.
	Timeout time.Duration
	// DebugDir, when set, receives a PNG of every successful capture.
	DebugDir string
}

// Worker serializes capture requests onto one device through a 1-slot inbox.
type Worker struct {
	dev     screenshot.Device
	opts    Options
	inbox   chan Request
	results chan Result
	cancel  context.CancelFunc
	done    chan struct{}
	wg      sync.WaitGroup

	// hung is non-nil while a timed-out read is still running on the device.
	hung chan readResult
}

type readResult struct {
	buf *screenshot.PixelBuffer
	err error
}

// Start takes exclusive ownership of dev and starts the worker goroutine.
func Start(ctx context.Context, dev screenshot.Device, opts Options) *Worker {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	ctx, cancel := context.WithCancel(ctx)
	w := &Worker{
		dev:     dev,
		opts:    opts,
		inbox:   make(chan Request, 1),
		results: make(chan Result, 1),
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer close(w.done)
		w.loop(ctx)
	}()
	return w
}

// Submit enqueues a request if the single-slot inbox is free. Returns false if dropped.
func (w *Worker) Submit(req Request) bool {
	select {
	case <-w.done:
		return false
	default:
	}
	select {
	case w.inbox <- req:
		return true
	default:
		return false
	}
}

// Results delivers one Result per accepted request, in request order.
func (w *Worker) Results() <-chan Result { return w.results }

// Close stops the worker after the current request finishes.
func (w *Worker) Close() {
	w.cancel()
	w.wg.Wait()
}

func (w *Worker) loop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case req := <-w.inbox:
			res := w.capture(ctx, req)
			select {
			case w.results <- res:
			case <-ctx.Done():
				res.Buffer.Release()
				return
			}
		}
	}
}

func (w *Worker) capture(ctx context.Context, req Request) Result {
	r := req.Region
	log.Printf("Worker: capture #%d region %dx%d at (%d,%d)", req.ID, r.Width, r.Height, r.X, r.Y)

	if !r.Valid() {
		return failed(req.ID, DeviceFailure, fmt.Sprintf("invalid region dimensions: width=%d, height=%d", r.Width, r.Height))
	}
	if !r.Rect().Overlaps(w.dev.Bounds()) {
		return failed(req.ID, OutOfBounds, fmt.Sprintf("region %v does not intersect screen %v", r.Rect(), w.dev.Bounds()))
	}

	if w.hung != nil {
		select {
		case late := <-w.hung:
			late.buf.Release()
			w.hung = nil
			log.Printf("Worker: timed-out read finished, device available again")
		default:
			return failed(req.ID, DeviceFailure, "device busy with a timed-out read")
		}
	}

	// The read runs on its own goroutine so a hang can be bounded; w.hung
	// guarantees no second read starts until it returns.
	ch := make(chan readResult, 1)
	go func() {
		buf, err := w.dev.ReadRegion(r.X, r.Y, r.Width, r.Height)
		ch <- readResult{buf: buf, err: err}
	}()

	timer := time.NewTimer(w.opts.Timeout)
	defer timer.Stop()

	select {
	case res := <-ch:
		return w.finish(req, res)
	case <-timer.C:
		w.hung = ch
		log.Printf("Worker: capture #%d exceeded %v", req.ID, w.opts.Timeout)
		return failed(req.ID, DeviceFailure, fmt.Sprintf("screen read exceeded %v", w.opts.Timeout))
	case <-ctx.Done():
		w.hung = ch
		return failed(req.ID, DeviceFailure, ctx.Err().Error())
	}
}

func (w *Worker) finish(req Request, res readResult) Result {
	if res.err != nil {
		if errors.Is(res.err, screenshot.ErrOutOfBounds) {
			return failed(req.ID, OutOfBounds, res.err.Error())
		}
		log.Printf("Worker: capture #%d failed: %v", req.ID, res.err)
		return failed(req.ID, DeviceFailure, res.err.Error())
	}
	if res.buf == nil {
		return failed(req.ID, DeviceFailure, "device returned no pixels")
	}

	if w.opts.DebugDir != "" {
		name := filepath.Join(w.opts.DebugDir, fmt.Sprintf("debug_capture_%d_%dx%d.png", req.ID, res.buf.Width, res.buf.Height))
		if err := screenshot.SavePNG(res.buf, name); err != nil {
			log.Printf("Warning: Could not save debug image: %v", err)
		} else {
			log.Printf("DEBUG: Saved captured region to %s", name)
		}
	}

	return Result{ID: req.ID, Buffer: res.buf}
}

func failed(id uint64, kind ErrorKind, msg string) Result {
	return Result{ID: id, Err: &CaptureError{Kind: kind, Message: msg}}
}
