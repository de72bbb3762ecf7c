package slide

import (
	"bytes"
	"encoding/binary"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"path/filepath"
	"testing"

	"github.com/ironsheep/image-preprocess/internal/slide/slidetest"
)

func pyramid(t *testing.T) string {
	t.Helper()
	return slidetest.Quadrants(t, "pyramid.svs", "Aperio Image Library v12.0.15")
}

var (
	red   = color.RGBA{255, 0, 0, 255}
	green = color.RGBA{0, 255, 0, 255}
	blue  = color.RGBA{0, 0, 255, 255}
	white = color.RGBA{255, 255, 255, 255}
)

func TestOpenLevels(t *testing.T) {
	s, err := Open(pyramid(t))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer s.Close()

	if s.LevelCount() != 2 {
		t.Fatalf("expected 2 levels, got %d", s.LevelCount())
	}

	tests := []struct {
		level      int
		w, h       int
		downsample float64
	}{
		{0, 32, 32, 1},
		{1, 16, 16, 2},
	}
	for _, tt := range tests {
		w, h, err := s.LevelDimensions(tt.level)
		if err != nil {
			t.Fatalf("LevelDimensions(%d) failed: %v", tt.level, err)
		}
		if w != tt.w || h != tt.h {
			t.Errorf("level %d: expected %dx%d, got %dx%d", tt.level, tt.w, tt.h, w, h)
		}
		if got := s.Levels()[tt.level].Downsample; got != tt.downsample {
			t.Errorf("level %d: expected downsample %v, got %v", tt.level, tt.downsample, got)
		}
	}

	if _, _, err := s.LevelDimensions(2); !errors.Is(err, ErrInvalidLevel) {
		t.Errorf("expected ErrInvalidLevel, got %v", err)
	}
}

func TestProperties(t *testing.T) {
	s, err := Open(pyramid(t))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer s.Close()

	props := s.Properties()
	want := map[string]string{
		"openslide.vendor":              "aperio",
		"openslide.level-count":         "2",
		"openslide.level[1].width":      "16",
		"openslide.level[1].downsample": "2",
		"tiff.ImageDescription":         "Aperio Image Library v12.0.15",
	}
	for k, v := range want {
		if props[k] != v {
			t.Errorf("property %s: expected %q, got %q", k, v, props[k])
		}
	}
}

func TestReadRegion(t *testing.T) {
	s, err := Open(pyramid(t))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer s.Close()

	img, err := s.ReadRegion(0, 0, 0, 32, 32)
	if err != nil {
		t.Fatalf("ReadRegion failed: %v", err)
	}

	tests := []struct {
		name string
		x, y int
		want color.RGBA
	}{
		{"top-left", 4, 4, red},
		{"top-right", 20, 4, green},
		{"bottom-left", 4, 20, blue},
		{"bottom-right", 20, 20, white},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := img.NRGBAAt(tt.x, tt.y)
			if got.R != tt.want.R || got.G != tt.want.G || got.B != tt.want.B || got.A != 255 {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}

	small, err := s.ReadRegion(0, 0, 1, 16, 16)
	if err != nil {
		t.Fatalf("ReadRegion level 1 failed: %v", err)
	}
	if got := small.NRGBAAt(8, 8); got.R != 128 || got.A != 255 {
		t.Errorf("expected gray level 1, got %v", got)
	}
}

func TestReadRegionOutsideLevel(t *testing.T) {
	s, err := Open(pyramid(t))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer s.Close()

	img, err := s.ReadRegion(24, 24, 0, 16, 16)
	if err != nil {
		t.Fatalf("ReadRegion failed: %v", err)
	}
	if got := img.NRGBAAt(2, 2); got != (color.NRGBA{255, 255, 255, 255}) {
		t.Errorf("expected white inside the level, got %v", got)
	}
	if got := img.NRGBAAt(12, 12); got.A != 0 {
		t.Errorf("expected transparent outside the level, got %v", got)
	}

	if _, err := s.ReadRegion(0, 0, 5, 4, 4); !errors.Is(err, ErrInvalidLevel) {
		t.Errorf("expected ErrInvalidLevel, got %v", err)
	}
}

func TestJPEGTiles(t *testing.T) {
	data := slidetest.Build([]slidetest.Level{
		{Width: 16, Height: 16, Tile: 16, Compression: slidetest.CompressionJPEG, Tiles: [][]byte{slidetest.JPEGTile(t, 16, blue)}},
	})
	s, err := Open(slidetest.WriteFile(t, "jpeg.tif", data))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer s.Close()

	if s.Properties()["openslide.vendor"] != "generic-tiff" {
		t.Errorf("expected generic-tiff vendor, got %q", s.Properties()["openslide.vendor"])
	}

	img, err := s.ReadRegion(0, 0, 0, 16, 16)
	if err != nil {
		t.Fatalf("ReadRegion failed: %v", err)
	}
	got := img.NRGBAAt(8, 8)
	if got.B < 240 || got.R > 15 || got.G > 15 || got.A != 255 {
		t.Errorf("expected blue, got %v", got)
	}
}

func TestJPEG2000Unsupported(t *testing.T) {
	data := slidetest.Build([]slidetest.Level{
		{Width: 16, Height: 16, Tile: 16, Compression: compressionAperioJ2KRGB, Tiles: [][]byte{{0xff, 0x4f}}},
	})
	s, err := Open(slidetest.WriteFile(t, "j2k.svs", data))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer s.Close()

	if _, err := s.ReadRegion(0, 0, 0, 16, 16); !errors.Is(err, ErrUnsupported) {
		t.Errorf("expected ErrUnsupported, got %v", err)
	}
}

func TestOpenNotSlide(t *testing.T) {
	var pngData bytes.Buffer
	if err := png.Encode(&pngData, image.NewGray(image.Rect(0, 0, 4, 4))); err != nil {
		t.Fatalf("failed to encode png: %v", err)
	}
	untiled := slidetest.Build([]slidetest.Level{{Width: 8, Height: 8, Description: "plain strip image"}})
	bigTIFF := []byte{'I', 'I', 43, 0, 8, 0, 0, 0}

	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"png", pngData.Bytes(), ErrNotSlide},
		{"untiled tiff", untiled, ErrNotSlide},
		{"empty", nil, ErrNotSlide},
		{"bigtiff", bigTIFF, ErrUnsupported},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Open(slidetest.WriteFile(t, "file.tif", tt.data))
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}

	if _, err := Open(filepath.Join(t.TempDir(), "missing.svs")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestIFDLoop(t *testing.T) {
	data := slidetest.Build([]slidetest.Level{
		{Width: 16, Height: 16, Tile: 16, Compression: slidetest.CompressionNone, Tiles: [][]byte{slidetest.SolidTile(16, red)}},
	})
	// Point the last next-IFD field back at the first directory.
	first := binary.LittleEndian.Uint32(data[4:8])
	binary.LittleEndian.PutUint32(data[len(data)-4:], first)

	if _, err := Open(slidetest.WriteFile(t, "loop.tif", data)); !errors.Is(err, ErrNotSlide) {
		t.Errorf("expected ErrNotSlide, got %v", err)
	}
}

func TestMeteredReader(t *testing.T) {
	data := bytes.Repeat([]byte{1}, 16)
	mr := &meteredReader{SectionReader: io.NewSectionReader(bytes.NewReader(data), 0, 16), left: 10}

	buf := make([]byte, 8)
	if _, err := mr.ReadAt(buf, 0); err != nil {
		t.Fatalf("first read within budget failed: %v", err)
	}
	if _, err := mr.Read(buf); !errors.Is(err, errMetadataBudget) {
		t.Errorf("expected errMetadataBudget, got %v", err)
	}

	if got := metadataBudget(1000); got != 2000+metadataSlack {
		t.Errorf("metadataBudget(1000) = %d", got)
	}
	if got := metadataBudget(1 << 40); got != maxMetadata {
		t.Errorf("budget should be capped, got %d", got)
	}
}

func TestJPEGStream(t *testing.T) {
	tables := []byte{0xff, 0xd8, 0xaa, 0xbb, 0xff, 0xd9}
	tile := []byte{0xff, 0xd8, 0xcc, 0xff, 0xd9}

	got := jpegStream(tables, tile)
	want := []byte{0xff, 0xd8, 0xaa, 0xbb, 0xcc, 0xff, 0xd9}
	if !bytes.Equal(got, want) {
		t.Errorf("expected % x, got % x", want, got)
	}

	if got := jpegStream(nil, tile); !bytes.Equal(got, tile) {
		t.Errorf("expected tile unchanged without tables, got % x", got)
	}
}
