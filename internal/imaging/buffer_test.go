package imaging

import (
	"bytes"
	"image"
	"image/color"
	"testing"
)

func TestBuffer_Validate(t *testing.T) {
	tests := []struct {
		name    string
		buf     *Buffer
		wantErr bool
	}{
		{"rgb", NewBuffer(4, 3, 3), false},
		{"gray float", NewFloatBuffer(2, 2, 1), false},
		{"zero width", NewBuffer(0, 3, 3), true},
		{"two channels", NewBuffer(2, 2, 2), true},
		{"short storage", &Buffer{Width: 2, Height: 2, Channels: 3, Pix: make([]uint8, 5)}, true},
		{"float without samples", &Buffer{Width: 1, Height: 1, Channels: 1, Depth: Float64}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.buf.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestBuffer_Index(t *testing.T) {
	buf := NewBuffer(5, 4, 3)
	buf.Pix[buf.Index(2, 1, 1)] = 42

	// Row 1 starts after 5 pixels of 3 channels.
	if buf.Pix[(1*5+2)*3+1] != 42 {
		t.Error("Index does not address row-major interleaved storage")
	}
	if buf.At(2, 1, 1) != 42 {
		t.Errorf("At returned %v", buf.At(2, 1, 1))
	}
}

func TestBuffer_DepthConversion(t *testing.T) {
	f := NewFloatBuffer(4, 1, 1)
	copy(f.Float, []float64{-12.5, 0.4, 127.5, 300})

	u := f.ToUint8()
	want := []uint8{0, 0, 128, 255}
	if !bytes.Equal(u.Pix, want) {
		t.Errorf("ToUint8 = %v, want %v", u.Pix, want)
	}

	back := u.ToFloat()
	if back.Depth != Float64 || back.Float[2] != 128 {
		t.Errorf("ToFloat = %v", back.Float)
	}
	if u.ToUint8() != u {
		t.Error("ToUint8 on an 8-bit buffer should return it unchanged")
	}
}

func TestBuffer_RawRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		buf  *Buffer
	}{
		{"uint8 rgba", NewBuffer(3, 2, 4)},
		{"float gray", NewFloatBuffer(3, 2, 1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for i := range tt.buf.Pix {
				tt.buf.Pix[i] = uint8(i * 7)
			}
			for i := range tt.buf.Float {
				tt.buf.Float[i] = float64(i) - 2.25
			}

			var raw bytes.Buffer
			if err := tt.buf.WriteRaw(&raw); err != nil {
				t.Fatalf("WriteRaw failed: %v", err)
			}
			if raw.Len() != tt.buf.Len()*tt.buf.Depth.Size() {
				t.Fatalf("expected %d bytes, got %d", tt.buf.Len()*tt.buf.Depth.Size(), raw.Len())
			}

			got, err := ReadRaw(&raw, tt.buf.Width, tt.buf.Height, tt.buf.Channels, tt.buf.Depth)
			if err != nil {
				t.Fatalf("ReadRaw failed: %v", err)
			}
			for i := 0; i < tt.buf.Len(); i++ {
				x := (i / tt.buf.Channels) % tt.buf.Width
				y := i / tt.buf.Channels / tt.buf.Width
				c := i % tt.buf.Channels
				if got.At(x, y, c) != tt.buf.At(x, y, c) {
					t.Fatalf("sample %d: got %v, want %v", i, got.At(x, y, c), tt.buf.At(x, y, c))
				}
			}
		})
	}
}

func TestFromImage(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 2, 1))
	img.SetNRGBA(0, 0, color.NRGBA{10, 20, 30, 40})
	img.SetNRGBA(1, 0, color.NRGBA{200, 100, 50, 255})

	rgb, err := FromImage(img, 3)
	if err != nil {
		t.Fatalf("FromImage(3) failed: %v", err)
	}
	if !bytes.Equal(rgb.Pix, []uint8{10, 20, 30, 200, 100, 50}) {
		t.Errorf("unexpected RGB samples %v", rgb.Pix)
	}

	rgba, err := FromImage(img, 4)
	if err != nil {
		t.Fatalf("FromImage(4) failed: %v", err)
	}
	if !bytes.Equal(rgba.Pix, []uint8{10, 20, 30, 40, 200, 100, 50, 255}) {
		t.Errorf("unexpected RGBA samples %v", rgba.Pix)
	}

	gray := image.NewGray(image.Rect(0, 0, 2, 1))
	gray.Pix[1] = 77
	g, err := FromImage(gray, 1)
	if err != nil {
		t.Fatalf("FromImage(1) failed: %v", err)
	}
	if !bytes.Equal(g.Pix, []uint8{0, 77}) {
		t.Errorf("unexpected gray samples %v", g.Pix)
	}

	if _, err := FromImage(img, 2); err == nil {
		t.Error("expected error for two channels")
	}
}

func TestBuffer_Image(t *testing.T) {
	buf := NewBuffer(1, 1, 3)
	copy(buf.Pix, []uint8{1, 2, 3})

	img, ok := buf.Image().(*image.NRGBA)
	if !ok {
		t.Fatalf("expected *image.NRGBA, got %T", buf.Image())
	}
	if got := img.NRGBAAt(0, 0); got != (color.NRGBA{1, 2, 3, 255}) {
		t.Errorf("expected opaque pixel, got %v", got)
	}

	if _, ok := NewBuffer(1, 1, 1).Image().(*image.Gray); !ok {
		t.Error("expected *image.Gray for one channel")
	}
}
