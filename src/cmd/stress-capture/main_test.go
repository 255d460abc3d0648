package main

import (
	"bytes"
	"context"
	"errors"
	"image"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"screen-qr-scan/src/screenshot"
)

type countingDevice struct {
	reads   atomic.Int32
	failOdd bool
}

func (d *countingDevice) Bounds() image.Rectangle { return image.Rect(0, 0, 640, 480) }

func (d *countingDevice) ReadRegion(x, y, w, h int) (*screenshot.PixelBuffer, error) {
	n := d.reads.Add(1)
	if d.failOdd && n%2 == 1 {
		return nil, errors.New("transient")
	}
	return &screenshot.PixelBuffer{
		Pix:    make([]byte, w*h*screenshot.BytesPerPixel),
		Width:  w,
		Height: h,
		Stride: w * screenshot.BytesPerPixel,
	}, nil
}

func TestNewRootCmdDefaults(t *testing.T) {
	opts := &stressOptions{}
	cmd := newRootCmd(opts)
	if err := cmd.ParseFlags([]string{}); err != nil {
		t.Fatalf("ParseFlags failed: %v", err)
	}
	if opts.n != 50 {
		t.Fatalf("Expected default n=50, got %d", opts.n)
	}
	if opts.size != 200 {
		t.Fatalf("Expected default size=200, got %d", opts.size)
	}
	if opts.timeout != 2*time.Second {
		t.Fatalf("Expected default timeout=2s, got %v", opts.timeout)
	}
}

func TestNewRootCmdCustomFlags(t *testing.T) {
	opts := &stressOptions{}
	cmd := newRootCmd(opts)
	if err := cmd.ParseFlags([]string{"--n", "3", "--size", "64", "--timeout", "7s"}); err != nil {
		t.Fatalf("ParseFlags failed: %v", err)
	}
	if opts.n != 3 || opts.size != 64 || opts.timeout != 7*time.Second {
		t.Fatalf("Unexpected options: %+v", opts)
	}
}

func TestRunWithDeviceCountsResults(t *testing.T) {
	dev := &countingDevice{}
	st := runWithDevice(context.Background(), dev, stressOptions{n: 10, size: 16, timeout: time.Second})
	if st.ok != 10 || st.failed != 0 {
		t.Fatalf("Expected 10 ok, got %+v", st)
	}
	if got := dev.reads.Load(); got != 10 {
		t.Fatalf("Expected 10 device reads, got %d", got)
	}
}

func TestRunWithDeviceSurvivesFailures(t *testing.T) {
	dev := &countingDevice{failOdd: true}
	st := runWithDevice(context.Background(), dev, stressOptions{n: 6, size: 16, timeout: time.Second})
	if st.ok != 3 || st.failed != 3 {
		t.Fatalf("Expected 3 ok and 3 failed, got %+v", st)
	}
}

func TestReport(t *testing.T) {
	var out bytes.Buffer
	report(&out, 2, stats{ok: 1, failed: 1})
	if !strings.HasPrefix(out.String(), "requested=2 ok=1 busy=0 err=1") {
		t.Fatalf("Unexpected report: %q", out.String())
	}
}
