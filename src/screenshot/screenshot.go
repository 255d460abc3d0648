package screenshot

import (
	"errors"
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"os"

	"github.com/kbinani/screenshot"
)

// BytesPerPixel is the channel count of every PixelBuffer: R, G, B, A, one byte each.
const BytesPerPixel = 4

// ErrOutOfBounds is returned when a region does not touch the addressable screen.
var ErrOutOfBounds = errors.New("region lies outside the screen")

// Region represents a screen region to capture, in absolute screen pixels.
type Region struct {
	X      int
	Y      int
	Width  int
	Height int
}

// Rect converts the region to an image.Rectangle.
func (r Region) Rect() image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.Width, r.Y+r.Height)
}

// Valid reports whether the region has a positive extent on both axes.
func (r Region) Valid() bool { return r.Width > 0 && r.Height > 0 }

// PixelBuffer is an owned, packed RGBA image. Row y starts at Pix[y*Stride]
// and each pixel is 4 bytes in R, G, B, A order. Stride is always Width*4.
type PixelBuffer struct {
	Pix    []byte
	Width  int
	Height int
	Stride int
}

// Release drops the pixel data. The buffer must not be used afterwards.
func (b *PixelBuffer) Release() {
	if b == nil {
		return
	}
	b.Pix = nil
}

// RGBA views the buffer as an image without copying.
func (b *PixelBuffer) RGBA() *image.RGBA {
	return &image.RGBA{Pix: b.Pix, Stride: b.Stride, Rect: image.Rect(0, 0, b.Width, b.Height)}
}

// FromImage copies img into a packed PixelBuffer.
func FromImage(img image.Image) *PixelBuffer {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	buf := &PixelBuffer{
		Pix:    make([]byte, w*h*BytesPerPixel),
		Width:  w,
		Height: h,
		Stride: w * BytesPerPixel,
	}

	if rgba, ok := img.(*image.RGBA); ok {
		// Fast path: copy row by row, the source stride may include padding.
		for y := 0; y < h; y++ {
			src := rgba.PixOffset(bounds.Min.X, bounds.Min.Y+y)
			copy(buf.Pix[y*buf.Stride:(y+1)*buf.Stride], rgba.Pix[src:src+buf.Stride])
		}
		return buf
	}

	draw.Draw(buf.RGBA(), buf.RGBA().Bounds(), img, bounds.Min, draw.Src)
	return buf
}

// SavePNG writes the buffer to path. Used only for debug captures.
func SavePNG(buf *PixelBuffer, path string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()
	if err := png.Encode(f, buf.RGBA()); err != nil {
		return fmt.Errorf("failed to encode image as PNG: %w", err)
	}
	return nil
}

// Device reads pixels from the screen. Implementations are not safe for
// concurrent reads; exactly one owner may call ReadRegion at a time.
type Device interface {
	// Bounds is the addressable screen area.
	Bounds() image.Rectangle
	ReadRegion(x, y, width, height int) (*PixelBuffer, error)
}

// ScreenDevice reads the primary display through kbinani/screenshot.
type ScreenDevice struct {
	bounds image.Rectangle
}

// NewScreenDevice acquires the primary display. It fails when no display is
// active, which is fatal for the scanner.
func NewScreenDevice() (*ScreenDevice, error) {
	n := screenshot.NumActiveDisplays()
	if n == 0 {
		return nil, fmt.Errorf("no active displays found")
	}
	bounds := screenshot.GetDisplayBounds(0)
	if bounds.Empty() {
		return nil, fmt.Errorf("primary display reports empty bounds %v", bounds)
	}
	return &ScreenDevice{bounds: bounds}, nil
}

func (d *ScreenDevice) Bounds() image.Rectangle { return d.bounds }

// ReadRegion captures the given rectangle of the screen.
func (d *ScreenDevice) ReadRegion(x, y, width, height int) (*PixelBuffer, error) {
	region := Region{X: x, Y: y, Width: width, Height: height}
	if !region.Valid() {
		return nil, fmt.Errorf("invalid region dimensions: width=%d, height=%d", width, height)
	}
	if !region.Rect().Overlaps(d.bounds) {
		return nil, ErrOutOfBounds
	}

	img, err := screenshot.CaptureRect(region.Rect())
	if err != nil {
		return nil, fmt.Errorf("failed to capture region: %w", err)
	}
	return FromImage(img), nil
}
