// Package slidetest builds small pyramidal TIFF files for tests.
package slidetest

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"
	"testing"
)

// Compression values accepted by Level.
const (
	CompressionNone = 1
	CompressionJPEG = 7
)

// Level describes one image directory. A zero Tile writes an untiled
// directory, which slide readers skip.
type Level struct {
	Width, Height int
	Tile          int
	Compression   uint16
	Tiles         [][]byte
	Description   string
}

// Build assembles a little-endian classic TIFF with one directory per level,
// in the order given.
func Build(levels []Level) []byte {
	le := binary.LittleEndian
	buf := []byte{'I', 'I', 42, 0, 0, 0, 0, 0}
	prevNext := 4

	align := func() {
		if len(buf)%2 == 1 {
			buf = append(buf, 0)
		}
	}
	put := func(data []byte) uint32 {
		align()
		off := uint32(len(buf))
		buf = append(buf, data...)
		return off
	}

	type entry struct {
		tag, typ uint16
		count    uint32
		val      uint32
	}
	const (
		short = 3
		long  = 4
		ascii = 2
	)

	for _, l := range levels {
		var offs, counts []byte
		for _, td := range l.Tiles {
			offs = le.AppendUint32(offs, put(td))
			counts = le.AppendUint32(counts, uint32(len(td)))
		}

		entries := []entry{
			{256, long, 1, uint32(l.Width)},
			{257, long, 1, uint32(l.Height)},
			{258, short, 3, put([]byte{8, 0, 8, 0, 8, 0})},
			{259, short, 1, uint32(l.Compression)},
			{262, short, 1, 2},
		}
		if l.Description != "" {
			d := put(append([]byte(l.Description), 0))
			entries = append(entries, entry{270, ascii, uint32(len(l.Description) + 1), d})
		}
		entries = append(entries, entry{277, short, 1, 3})
		if l.Tile > 0 {
			n := uint32(len(l.Tiles))
			entries = append(entries,
				entry{322, short, 1, uint32(l.Tile)},
				entry{323, short, 1, uint32(l.Tile)},
			)
			if n == 1 {
				entries = append(entries,
					entry{324, long, 1, le.Uint32(offs)},
					entry{325, long, 1, le.Uint32(counts)},
				)
			} else {
				entries = append(entries,
					entry{324, long, n, put(offs)},
					entry{325, long, n, put(counts)},
				)
			}
		}

		align()
		le.PutUint32(buf[prevNext:], uint32(len(buf)))
		buf = le.AppendUint16(buf, uint16(len(entries)))
		for _, e := range entries {
			buf = le.AppendUint16(buf, e.tag)
			buf = le.AppendUint16(buf, e.typ)
			buf = le.AppendUint32(buf, e.count)
			if e.typ == short && e.count == 1 {
				buf = le.AppendUint16(buf, uint16(e.val))
				buf = append(buf, 0, 0)
			} else {
				buf = le.AppendUint32(buf, e.val)
			}
		}
		prevNext = len(buf)
		buf = append(buf, 0, 0, 0, 0)
	}
	return buf
}

// SolidTile returns an uncompressed RGB tile filled with c.
func SolidTile(size int, c color.RGBA) []byte {
	out := make([]byte, 0, size*size*3)
	for i := 0; i < size*size; i++ {
		out = append(out, c.R, c.G, c.B)
	}
	return out
}

// JPEGTile returns a complete JPEG stream of a tile filled with c.
func JPEGTile(t testing.TB, size int, c color.RGBA) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 100}); err != nil {
		t.Fatalf("failed to encode tile: %v", err)
	}
	return buf.Bytes()
}

// WriteFile writes data to name inside a fresh temporary directory and
// returns the path.
func WriteFile(t testing.TB, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

// Quadrants writes a two-level slide named name. Level 0 is 32x32 with red,
// green, blue and white 16x16 quadrants (top-left, top-right, bottom-left,
// bottom-right); level 1 is 16x16 mid gray. An untiled thumbnail carrying
// description comes first and the small level is stored before the large one.
func Quadrants(t testing.TB, name, description string) string {
	t.Helper()
	red := color.RGBA{255, 0, 0, 255}
	green := color.RGBA{0, 255, 0, 255}
	blue := color.RGBA{0, 0, 255, 255}
	white := color.RGBA{255, 255, 255, 255}
	gray := color.RGBA{128, 128, 128, 255}

	data := Build([]Level{
		{Width: 8, Height: 8, Description: description},
		{Width: 16, Height: 16, Tile: 16, Compression: CompressionNone, Tiles: [][]byte{SolidTile(16, gray)}},
		{Width: 32, Height: 32, Tile: 16, Compression: CompressionNone, Tiles: [][]byte{
			SolidTile(16, red), SolidTile(16, green), SolidTile(16, blue), SolidTile(16, white),
		}},
	})
	return WriteFile(t, name, data)
}
