package imaging

import (
	"encoding/binary"
	"fmt"
	"image"
	"image/color"
	"io"
	"math"

	"github.com/disintegration/imaging"
)

// Depth identifies the sample type stored in a Buffer.
type Depth int

const (
	// Uint8 buffers hold one byte per sample in Pix.
	Uint8 Depth = iota
	// Float64 buffers hold one float64 per sample in Float.
	Float64
)

// String returns the numpy-style dtype name for the depth.
func (d Depth) String() string {
	switch d {
	case Uint8:
		return "uint8"
	case Float64:
		return "float64"
	default:
		return fmt.Sprintf("Depth(%d)", int(d))
	}
}

// Size returns the number of bytes one sample occupies in a raw dump.
func (d Depth) Size() int {
	if d == Float64 {
		return 8
	}
	return 1
}

// Buffer is a (height, width, channels) array of samples.
//
// Samples are stored row-major with interleaved channels, so the sample for
// column x, row y, channel c lives at index (y*Width+x)*Channels + c. Channel
// order is gray, RGB or RGBA depending on Channels. Transform steps never
// modify a buffer they receive; they return a new one.
type Buffer struct {
	Width    int
	Height   int
	Channels int
	Depth    Depth

	// Pix holds the samples of a Uint8 buffer.
	Pix []uint8

	// Float holds the samples of a Float64 buffer.
	Float []float64
}

// NewBuffer allocates a zeroed 8-bit buffer.
func NewBuffer(width, height, channels int) *Buffer {
	return &Buffer{
		Width:    width,
		Height:   height,
		Channels: channels,
		Depth:    Uint8,
		Pix:      make([]uint8, width*height*channels),
	}
}

// NewFloatBuffer allocates a zeroed float64 buffer.
func NewFloatBuffer(width, height, channels int) *Buffer {
	return &Buffer{
		Width:    width,
		Height:   height,
		Channels: channels,
		Depth:    Float64,
		Float:    make([]float64, width*height*channels),
	}
}

// Len returns the number of samples in the buffer.
func (b *Buffer) Len() int {
	return b.Width * b.Height * b.Channels
}

// Shape returns the buffer dimensions in (height, width, channels) order.
func (b *Buffer) Shape() (int, int, int) {
	return b.Height, b.Width, b.Channels
}

// Index returns the position of a sample in Pix or Float.
func (b *Buffer) Index(x, y, c int) int {
	return (y*b.Width+x)*b.Channels + c
}

// At returns the sample at (x, y, c) as a float64 regardless of depth.
func (b *Buffer) At(x, y, c int) float64 {
	i := b.Index(x, y, c)
	if b.Depth == Float64 {
		return b.Float[i]
	}
	return float64(b.Pix[i])
}

// Validate checks that the buffer dimensions and storage agree.
func (b *Buffer) Validate() error {
	if b.Width <= 0 || b.Height <= 0 {
		return fmt.Errorf("invalid buffer dimensions %dx%d", b.Width, b.Height)
	}
	switch b.Channels {
	case 1, 3, 4:
	default:
		return fmt.Errorf("unsupported channel count %d", b.Channels)
	}
	switch b.Depth {
	case Uint8:
		if len(b.Pix) != b.Len() {
			return fmt.Errorf("buffer holds %d samples, shape needs %d", len(b.Pix), b.Len())
		}
	case Float64:
		if len(b.Float) != b.Len() {
			return fmt.Errorf("buffer holds %d samples, shape needs %d", len(b.Float), b.Len())
		}
	default:
		return fmt.Errorf("unknown depth %v", b.Depth)
	}
	return nil
}

// Clone returns a deep copy of the buffer.
func (b *Buffer) Clone() *Buffer {
	c := *b
	if b.Pix != nil {
		c.Pix = append([]uint8(nil), b.Pix...)
	}
	if b.Float != nil {
		c.Float = append([]float64(nil), b.Float...)
	}
	return &c
}

// ToUint8 returns an 8-bit version of the buffer. Float samples are rounded
// and saturated to [0, 255]. An 8-bit buffer is returned as is.
func (b *Buffer) ToUint8() *Buffer {
	if b.Depth == Uint8 {
		return b
	}
	out := NewBuffer(b.Width, b.Height, b.Channels)
	for i, v := range b.Float {
		out.Pix[i] = saturate(v)
	}
	return out
}

// ToFloat returns a float64 version of the buffer. A float buffer is returned
// as is.
func (b *Buffer) ToFloat() *Buffer {
	if b.Depth == Float64 {
		return b
	}
	out := NewFloatBuffer(b.Width, b.Height, b.Channels)
	for i, v := range b.Pix {
		out.Float[i] = float64(v)
	}
	return out
}

// WriteRaw writes the samples with no header in their in-memory order.
// Float samples use the host byte order.
func (b *Buffer) WriteRaw(w io.Writer) error {
	if b.Depth == Uint8 {
		_, err := w.Write(b.Pix)
		return err
	}
	return binary.Write(w, binary.NativeEndian, b.Float)
}

// ReadRaw is the inverse of WriteRaw for a buffer whose shape and depth are
// known in advance.
func ReadRaw(r io.Reader, width, height, channels int, depth Depth) (*Buffer, error) {
	if depth == Float64 {
		b := NewFloatBuffer(width, height, channels)
		if err := binary.Read(r, binary.NativeEndian, b.Float); err != nil {
			return nil, fmt.Errorf("failed to read raw samples: %w", err)
		}
		return b, nil
	}
	b := NewBuffer(width, height, channels)
	if _, err := io.ReadFull(r, b.Pix); err != nil {
		return nil, fmt.Errorf("failed to read raw samples: %w", err)
	}
	return b, nil
}

// FromImage converts an image into a buffer with the requested channel count.
//
// Three channels drop alpha without compositing. One channel uses the
// standard library gray conversion.
func FromImage(img image.Image, channels int) (*Buffer, error) {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("image has empty bounds %v", bounds)
	}

	switch channels {
	case 1:
		out := NewBuffer(w, h, 1)
		if g, ok := img.(*image.Gray); ok {
			for y := 0; y < h; y++ {
				copy(out.Pix[y*w:(y+1)*w], g.Pix[y*g.Stride:y*g.Stride+w])
			}
			return out, nil
		}
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				gc := color.GrayModel.Convert(img.At(bounds.Min.X+x, bounds.Min.Y+y)).(color.Gray)
				out.Pix[y*w+x] = gc.Y
			}
		}
		return out, nil

	case 3, 4:
		src := imaging.Clone(img)
		out := NewBuffer(w, h, channels)
		for y := 0; y < h; y++ {
			row := src.Pix[y*src.Stride : y*src.Stride+w*4]
			if channels == 4 {
				copy(out.Pix[y*w*4:(y+1)*w*4], row)
				continue
			}
			dst := out.Pix[y*w*3 : (y+1)*w*3]
			for x := 0; x < w; x++ {
				dst[x*3] = row[x*4]
				dst[x*3+1] = row[x*4+1]
				dst[x*3+2] = row[x*4+2]
			}
		}
		return out, nil
	}

	return nil, fmt.Errorf("unsupported channel count %d", channels)
}

// Image returns the buffer as an image.Image: *image.Gray for one channel,
// *image.NRGBA otherwise. Three-channel buffers become fully opaque and float
// samples are saturated to 8 bits.
func (b *Buffer) Image() image.Image {
	src := b.ToUint8()
	rect := image.Rect(0, 0, b.Width, b.Height)

	switch b.Channels {
	case 1:
		g := image.NewGray(rect)
		copy(g.Pix, src.Pix)
		return g
	case 3:
		img := image.NewNRGBA(rect)
		n := b.Width * b.Height
		for i := 0; i < n; i++ {
			img.Pix[i*4] = src.Pix[i*3]
			img.Pix[i*4+1] = src.Pix[i*3+1]
			img.Pix[i*4+2] = src.Pix[i*3+2]
			img.Pix[i*4+3] = 0xff
		}
		return img
	default:
		img := image.NewNRGBA(rect)
		copy(img.Pix, src.Pix)
		return img
	}
}

// opaqueImage is Image with the alpha channel of four-channel buffers
// replaced by 255.
func (b *Buffer) opaqueImage() image.Image {
	img := b.Image()
	if b.Channels != 4 {
		return img
	}
	nrgba := img.(*image.NRGBA)
	for i := 3; i < len(nrgba.Pix); i += 4 {
		nrgba.Pix[i] = 0xff
	}
	return nrgba
}

// saturate rounds v and clamps it to the uint8 range.
func saturate(v float64) uint8 {
	if math.IsNaN(v) || v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(math.Round(v))
}
