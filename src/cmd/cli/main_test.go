package main

import (
	"bytes"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"screen-qr-scan/src/decode/qrtest"
)

func writePNG(t *testing.T, img image.Image) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "input.png")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())
	return path
}

func blankImage(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, color.RGBA{R: 255, G: 255, B: 255, A: 255})
		}
	}
	return img
}

func runCLI(t *testing.T, stdin []byte, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	err := runWithArgs(append([]string{"qr-tool"}, args...), streams{
		stdin:  bytes.NewReader(stdin),
		stdout: &stdout,
		stderr: &stderr,
	})
	return stdout.String(), stderr.String(), err
}

func TestCLIDecodesFile(t *testing.T) {
	img, err := qrtest.Image("https://example.com/cli", 240, 240)
	require.NoError(t, err)
	path := writePNG(t, img)

	out, _, err := runCLI(t, nil, "--file", path)
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/cli", out)
}

func TestCLIJSONOutput(t *testing.T) {
	img, err := qrtest.Image("hello", 200, 200)
	require.NoError(t, err)
	path := writePNG(t, img)

	out, _, err := runCLI(t, nil, "--file", path, "--json")
	require.NoError(t, err)

	var result QRResult
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.True(t, result.Found)
	assert.Equal(t, "hello", result.Payload)
	assert.Equal(t, path, result.Source)
	assert.Empty(t, result.Error)
}

func TestCLINotFound(t *testing.T) {
	path := writePNG(t, blankImage(120, 120))

	out, _, err := runCLI(t, nil, "--file", path, "--json")
	require.ErrorIs(t, err, errNotFound)

	var result QRResult
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.False(t, result.Found)
	assert.Equal(t, "No QR code found in selection", result.Error)
}

func TestCLIStdinInput(t *testing.T) {
	img, err := qrtest.Image("from-stdin", 200, 200)
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))

	out, _, err := runCLI(t, buf.Bytes(), "--file", "-")
	require.NoError(t, err)
	assert.Equal(t, "from-stdin", out)
}

func TestCLIVerboseGoesToStderr(t *testing.T) {
	img, err := qrtest.Image("quiet", 200, 200)
	require.NoError(t, err)
	path := writePNG(t, img)

	out, errOut, err := runCLI(t, nil, "--file", path, "-v")
	require.NoError(t, err)
	assert.Equal(t, "quiet", out)
	assert.Contains(t, errOut, "[verbose]")
}

func TestCLIRequiresFile(t *testing.T) {
	_, _, err := runCLI(t, nil)
	require.Error(t, err)
}

func TestCLIRejectsNonPNG(t *testing.T) {
	path := filepath.Join(t.TempDir(), "input.png")
	require.NoError(t, os.WriteFile(path, []byte("GIF89a not a png"), 0600))

	_, _, err := runCLI(t, nil, "--file", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid magic number")
}

func TestPNGValidation(t *testing.T) {
	tests := []struct {
		name    string
		data    []byte
		wantErr bool
	}{
		{
			name:    "ValidPNG",
			data:    []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a, 0x00},
			wantErr: false,
		},
		{
			name:    "InvalidMagic",
			data:    []byte{0x00, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a},
			wantErr: true,
		},
		{
			name:    "TooShort",
			data:    []byte{0x89, 'P', 'N', 'G'},
			wantErr: true,
		},
		{
			name:    "Empty",
			data:    []byte{},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validatePNG(tt.data)
			if (err != nil) != tt.wantErr {
				t.Errorf("validatePNG() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestNormalizeLegacyArgs(t *testing.T) {
	got := normalizeLegacyArgs([]string{"qr-tool", "-file", "x.png", "-json=true", "-v", "--open"})
	assert.Equal(t, []string{"qr-tool", "--file", "x.png", "--json=true", "-v", "--open"}, got)
	assert.Empty(t, normalizeLegacyArgs(nil))
}
