// Package decode turns captured pixels into a QR payload.
package decode

import (
	"fmt"
	"image"
	"log"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/multi/qrcode"

	"screen-qr-scan/src/messages"
	"screen-qr-scan/src/screenshot"
)

// ITU-R BT.601 luma weights (0.299, 0.587, 0.114) in 16.16 fixed point.
// They sum to 1<<16, so a grey input maps to itself.
const (
	lumaR = 19595
	lumaG = 38470
	lumaB = 7471
)

type Options struct {
	// TryHarder spends more time looking for symbols in busy images.
	TryHarder bool
}

// Pipeline converts a PixelBuffer to luminance and runs QR detection. It
// keeps no state between calls, so decoding the same buffer twice yields the
// same outcome.
type Pipeline struct {
	opts Options
}

func New(opts Options) *Pipeline {
	return &Pipeline{opts: opts}
}

// Decode never returns nil and never panics.
func (p *Pipeline) Decode(buf *screenshot.PixelBuffer) (out messages.Outcome) {
	gray, err := Luma(buf)
	if err != nil {
		return messages.DecodeFailed{Reason: err.Error()}
	}

	defer func() {
		if r := recover(); r != nil {
			log.Printf("Decode: recovered from decoder panic: %v", r)
			out = messages.DecodeFailed{Reason: fmt.Sprintf("decoder panic: %v", r)}
		}
	}()

	payload, ok := p.firstSymbol(gray)
	if !ok {
		return messages.NotFound{}
	}
	return messages.PayloadFound{Payload: payload}
}

// firstSymbol decodes the first symbol in detector scan order. Any detector
// or decoder error means "no symbol here".
func (p *Pipeline) firstSymbol(gray *image.Gray) (string, bool) {
	bmp, err := gozxing.NewBinaryBitmapFromImage(gray)
	if err != nil {
		log.Printf("Decode: binarize failed: %v", err)
		return "", false
	}

	var hints map[gozxing.DecodeHintType]interface{}
	if p.opts.TryHarder {
		hints = map[gozxing.DecodeHintType]interface{}{
			gozxing.DecodeHintType_TRY_HARDER: true,
		}
	}

	results, err := qrcode.NewQRCodeMultiReader().DecodeMultiple(bmp, hints)
	if err != nil || len(results) == 0 {
		return "", false
	}
	if len(results) > 1 {
		log.Printf("Decode: %d symbols in selection, using the first", len(results))
	}

	text := results[0].GetText()
	if text == "" {
		return "", false
	}
	return text, true
}

// Luma converts a packed RGBA buffer to 8-bit luminance. Alpha is ignored.
// The byte length must equal width*height*4 exactly.
func Luma(buf *screenshot.PixelBuffer) (*image.Gray, error) {
	if buf == nil || buf.Width <= 0 || buf.Height <= 0 ||
		buf.Stride != buf.Width*screenshot.BytesPerPixel ||
		len(buf.Pix) != buf.Width*buf.Height*screenshot.BytesPerPixel {
		return nil, fmt.Errorf("malformed buffer")
	}

	gray := image.NewGray(image.Rect(0, 0, buf.Width, buf.Height))
	for i, j := 0, 0; i < len(buf.Pix); i, j = i+screenshot.BytesPerPixel, j+1 {
		r := uint32(buf.Pix[i])
		g := uint32(buf.Pix[i+1])
		b := uint32(buf.Pix[i+2])
		gray.Pix[j] = uint8((lumaR*r + lumaG*g + lumaB*b + 1<<15) >> 16)
	}
	return gray, nil
}
