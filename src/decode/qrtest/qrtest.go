// Package qrtest renders QR codes into pixel buffers for tests.
package qrtest

import (
	"image"
	"image/color"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/qrcode"

	"screen-qr-scan/src/screenshot"
)

// Image renders payload black-on-white into a w x h image, quiet zone included.
func Image(payload string, w, h int) (*image.RGBA, error) {
	matrix, err := qrcode.NewQRCodeWriter().Encode(payload, gozxing.BarcodeFormat_QR_CODE, w, h, nil)
	if err != nil {
		return nil, err
	}

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := color.RGBA{R: 255, G: 255, B: 255, A: 255}
			if x < matrix.GetWidth() && y < matrix.GetHeight() && matrix.Get(x, y) {
				c = color.RGBA{A: 255}
			}
			img.SetRGBA(x, y, c)
		}
	}
	return img, nil
}

// Buffer is Image packed into a PixelBuffer.
func Buffer(payload string, w, h int) (*screenshot.PixelBuffer, error) {
	img, err := Image(payload, w, h)
	if err != nil {
		return nil, err
	}
	return screenshot.FromImage(img), nil
}
