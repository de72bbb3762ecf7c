package imaging

import (
	"errors"
	"fmt"
	"math"

	"github.com/anthonynsimon/bild/convolution"
	"github.com/anthonynsimon/bild/effect"
)

// ITU-R BT.601 luma weights.
const (
	lumaR = 0.299
	lumaG = 0.587
	lumaB = 0.114
)

// ErrInvalidKernelSize reports a Gaussian kernel size that is not a positive
// odd integer.
var ErrInvalidKernelSize = errors.New("kernel size must be a positive odd integer")

// Grayscale converts buf to a single luminance channel.
//
// Luminance is 0.299*R + 0.587*G + 0.114*B; alpha is ignored. A one-channel
// buffer is returned as a copy. 8-bit buffers stay 8-bit and float buffers
// stay float.
func Grayscale(buf *Buffer) (*Buffer, error) {
	if err := buf.Validate(); err != nil {
		return nil, err
	}
	if buf.Channels == 1 {
		return buf.Clone(), nil
	}

	if buf.Depth == Uint8 {
		gray := effect.GrayscaleWithWeights(buf.opaqueImage(), lumaR, lumaG, lumaB)
		return FromImage(gray, 1)
	}

	out := NewFloatBuffer(buf.Width, buf.Height, 1)
	for i := range out.Float {
		p := buf.Float[i*buf.Channels:]
		out.Float[i] = lumaR*p[0] + lumaG*p[1] + lumaB*p[2]
	}
	return out, nil
}

// GaussianKernel returns the normalized 1-D Gaussian weights for an odd
// kernel size. A non-positive sigma is derived from the size as
// 0.3*((size-1)*0.5-1) + 0.8.
func GaussianKernel(size int, sigma float64) ([]float64, error) {
	if size <= 0 || size%2 == 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidKernelSize, size)
	}
	if sigma <= 0 {
		sigma = 0.3*(float64(size-1)*0.5-1) + 0.8
	}

	k := make([]float64, size)
	center := float64(size-1) / 2
	var sum float64
	for i := range k {
		d := float64(i) - center
		k[i] = math.Exp(-d * d / (2 * sigma * sigma))
		sum += k[i]
	}
	for i := range k {
		k[i] /= sum
	}
	return k, nil
}

// GaussianBlur applies a separable Gaussian blur with the given kernel size
// and sigma to every channel. Borders replicate the edge pixel. The output
// depth matches the input depth.
func GaussianBlur(buf *Buffer, size int, sigma float64) (*Buffer, error) {
	if err := buf.Validate(); err != nil {
		return nil, err
	}
	weights, err := GaussianKernel(size, sigma)
	if err != nil {
		return nil, err
	}

	if buf.Depth == Uint8 && buf.Channels != 4 {
		horizontal := convolution.NewKernel(size, 1)
		vertical := convolution.NewKernel(1, size)
		copy(horizontal.Matrix, weights)
		copy(vertical.Matrix, weights)

		opts := &convolution.Options{KeepAlpha: true}
		blurred := convolution.Convolve(buf.opaqueImage(), horizontal, opts)
		blurred = convolution.Convolve(blurred, vertical, opts)
		return FromImage(blurred, buf.Channels)
	}

	// RGBA and float buffers are convolved directly so alpha is blurred like
	// any other channel and float samples keep their range.
	src := buf.ToFloat()
	tmp := make([]float64, src.Len())
	out := NewFloatBuffer(buf.Width, buf.Height, buf.Channels)
	r := size / 2
	w, h, ch := buf.Width, buf.Height, buf.Channels

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			for c := 0; c < ch; c++ {
				var sum float64
				for k := -r; k <= r; k++ {
					sum += src.Float[(y*w+clamp(x+k, 0, w-1))*ch+c] * weights[k+r]
				}
				tmp[(y*w+x)*ch+c] = sum
			}
		}
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			for c := 0; c < ch; c++ {
				var sum float64
				for k := -r; k <= r; k++ {
					sum += tmp[(clamp(y+k, 0, h-1)*w+x)*ch+c] * weights[k+r]
				}
				out.Float[(y*w+x)*ch+c] = sum
			}
		}
	}

	if buf.Depth == Uint8 {
		return out.ToUint8(), nil
	}
	return out, nil
}

// Laplacian applies the 3x3 second-derivative operator
//
//	0  1  0
//	1 -4  1
//	0  1  0
//
// to every channel and returns a float64 buffer of the same shape. Borders
// are mirrored without repeating the edge pixel, so a constant image maps to
// all zeros. Responses are signed and unbounded.
func Laplacian(buf *Buffer) (*Buffer, error) {
	if err := buf.Validate(); err != nil {
		return nil, err
	}

	w, h, ch := buf.Width, buf.Height, buf.Channels
	out := NewFloatBuffer(w, h, ch)
	for y := 0; y < h; y++ {
		up, down := reflect101(y-1, h), reflect101(y+1, h)
		for x := 0; x < w; x++ {
			left, right := reflect101(x-1, w), reflect101(x+1, w)
			for c := 0; c < ch; c++ {
				out.Float[(y*w+x)*ch+c] = buf.At(x, up, c) +
					buf.At(x, down, c) +
					buf.At(left, y, c) +
					buf.At(right, y, c) -
					4*buf.At(x, y, c)
			}
		}
	}
	return out, nil
}

// reflect101 maps an out-of-range index into [0, n) by mirroring around the
// edge pixel: -1 becomes 1 and n becomes n-2.
func reflect101(i, n int) int {
	if n == 1 {
		return 0
	}
	for i < 0 || i >= n {
		if i < 0 {
			i = -i
		} else {
			i = 2*(n-1) - i
		}
	}
	return i
}

// clamp constrains an integer value to the range [lo, hi].
func clamp(val, lo, hi int) int {
	if val < lo {
		return lo
	}
	if val > hi {
		return hi
	}
	return val
}
