package tray

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/color"
	"image/png"
	"runtime"
	"sync"
)

const iconSize = 32

var (
	iconOnce sync.Once
	iconData []byte
)

func iconBytes() []byte {
	iconOnce.Do(func() {
		data, err := renderIconPNG()
		if err != nil {
			return
		}
		if runtime.GOOS == "windows" {
			data = wrapICO(data, iconSize)
		}
		iconData = data
	})
	return iconData
}

// renderIconPNG draws three finder patterns, the corners of a QR symbol.
func renderIconPNG() ([]byte, error) {
	img := image.NewNRGBA(image.Rect(0, 0, iconSize, iconSize))
	dark := color.NRGBA{R: 0x20, G: 0x20, B: 0x20, A: 0xff}
	light := color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
	for y := 0; y < iconSize; y++ {
		for x := 0; x < iconSize; x++ {
			img.Set(x, y, light)
		}
	}
	const f = 12
	for _, o := range []image.Point{{1, 1}, {iconSize - f - 1, 1}, {1, iconSize - f - 1}} {
		for y := 0; y < f; y++ {
			for x := 0; x < f; x++ {
				ring := x < 2 || y < 2 || x >= f-2 || y >= f-2
				core := x >= 4 && y >= 4 && x < f-4 && y < f-4
				if ring || core {
					img.Set(o.X+x, o.Y+y, dark)
				}
			}
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// wrapICO puts one PNG image in an ICO container.
func wrapICO(pngData []byte, size int) []byte {
	var buf bytes.Buffer
	hdr := struct {
		Reserved, Kind, Count uint16
	}{0, 1, 1}
	entry := struct {
		Width, Height, Colors, Reserved uint8
		Planes, BitCount                uint16
		Size, Offset                    uint32
	}{
		Width:    uint8(size),
		Height:   uint8(size),
		Planes:   1,
		BitCount: 32,
		Size:     uint32(len(pngData)),
		Offset:   6 + 16,
	}
	_ = binary.Write(&buf, binary.LittleEndian, hdr)
	_ = binary.Write(&buf, binary.LittleEndian, entry)
	buf.Write(pngData)
	return buf.Bytes()
}
