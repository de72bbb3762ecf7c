package imaging

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/lucasb-eyer/go-colorful"
)

// BackgroundColor is the fill used for the padding area of a rescaled canvas.
type BackgroundColor struct {
	R, G, B, A uint8
}

// UnpackBackgroundColor splits a packed 0xAARRGGBB value into channels.
// Bits 0-7 are blue, 8-15 green, 16-23 red and 24-31 alpha, so a 24-bit
// value has zero alpha.
func UnpackBackgroundColor(v uint32) BackgroundColor {
	return BackgroundColor{
		B: uint8(v & 0xff),
		G: uint8(v >> 8 & 0xff),
		R: uint8(v >> 16 & 0xff),
		A: uint8(v >> 24),
	}
}

// ParseBackgroundColor parses a hexadecimal packed color. The "0x", "0X" and
// "#" prefixes are optional.
//
// Examples:
//
//	ParseBackgroundColor("0x00FFFFFF") // white, alpha 0
//	ParseBackgroundColor("FF000000")   // black, alpha 255
func ParseBackgroundColor(s string) (BackgroundColor, error) {
	hex := strings.TrimSpace(s)
	hex = strings.TrimPrefix(hex, "#")
	if len(hex) > 1 && hex[0] == '0' && (hex[1] == 'x' || hex[1] == 'X') {
		hex = hex[2:]
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return BackgroundColor{}, fmt.Errorf("invalid background color %q: %w", s, err)
	}
	return UnpackBackgroundColor(uint32(v)), nil
}

// Packed returns the color as 0xAARRGGBB.
func (c BackgroundColor) Packed() uint32 {
	return uint32(c.A)<<24 | uint32(c.R)<<16 | uint32(c.G)<<8 | uint32(c.B)
}

// String formats the color as "#rrggbb" followed by its alpha.
func (c BackgroundColor) String() string {
	col := colorful.Color{
		R: float64(c.R) / 255,
		G: float64(c.G) / 255,
		B: float64(c.B) / 255,
	}
	return fmt.Sprintf("%s alpha=%d", col.Hex(), c.A)
}

// FitDimensions scales (width, height) so the larger side equals maxDim and
// the aspect ratio is kept. Each side is rounded and clamped to [1, maxDim].
func FitDimensions(width, height, maxDim int) (int, int) {
	zoom := float64(maxDim) / float64(max(width, height))
	fit := func(v int) int {
		n := int(math.Round(float64(v) * zoom))
		return min(max(n, 1), maxDim)
	}
	return fit(width), fit(height)
}

// Rescale fits buf inside a maxDim x maxDim canvas filled with bg.
//
// The image is resized with a bilinear filter so its larger side equals
// maxDim and is placed at the top-left corner of the canvas. The result is
// always an 8-bit RGBA buffer: gray sources become (g, g, g, 255), RGB sources
// get an opaque alpha channel and RGBA sources keep their alpha. Float sources
// are saturated to 8 bits first.
func Rescale(buf *Buffer, maxDim int, bg BackgroundColor) (*Buffer, error) {
	if maxDim <= 0 {
		return nil, fmt.Errorf("max dimension must be positive, got %d", maxDim)
	}
	if err := buf.Validate(); err != nil {
		return nil, err
	}

	canvas := NewBuffer(maxDim, maxDim, 4)
	for i := 0; i < len(canvas.Pix); i += 4 {
		canvas.Pix[i] = bg.R
		canvas.Pix[i+1] = bg.G
		canvas.Pix[i+2] = bg.B
		canvas.Pix[i+3] = bg.A
	}

	w, h := FitDimensions(buf.Width, buf.Height, maxDim)
	resized := imaging.Resize(buf.ToUint8().Image(), w, h, imaging.Linear)

	rowBytes := w * 4
	for y := 0; y < h; y++ {
		dst := canvas.Pix[y*maxDim*4 : y*maxDim*4+rowBytes]
		copy(dst, resized.Pix[y*resized.Stride:y*resized.Stride+rowBytes])
	}
	return canvas, nil
}
