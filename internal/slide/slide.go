// Package slide reads multi-resolution whole-slide images stored as tiled
// pyramidal TIFF containers (Aperio SVS and generic tiled TIFF).
//
// A slide is a stack of levels. Level 0 is the full-resolution image and each
// higher level is a progressively downsampled copy. Levels are lazily decoded:
// opening a slide only parses the container directories, and pixel data is
// read by ReadRegion.
//
// Handles are meant to be short-lived. Open a slide, read the region you need
// and Close it.
package slide

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/disintegration/imaging"
	"golang.org/x/image/draw"
	"golang.org/x/image/tiff"
)

var (
	// ErrNotSlide reports a file that is not a tiled TIFF pyramid.
	ErrNotSlide = errors.New("not a multi-resolution slide")

	// ErrUnsupported reports a slide feature this reader cannot decode.
	ErrUnsupported = errors.New("unsupported slide feature")

	// ErrInvalidLevel reports a level index outside the pyramid.
	ErrInvalidLevel = errors.New("invalid slide level")
)

// maxLevelPixels bounds the size of a single decoded level.
const maxLevelPixels = 1 << 28

// Level describes one resolution of the pyramid.
type Level struct {
	Width      int     `json:"width"`
	Height     int     `json:"height"`
	TileWidth  int     `json:"tile_width"`
	TileHeight int     `json:"tile_height"`
	Downsample float64 `json:"downsample"`

	dir         directory
	compression uint64
}

// Slide is an open whole-slide image.
type Slide struct {
	f      *os.File
	tf     *tiffFile
	levels []Level
	props  map[string]string
}

// Open parses the container at path. It returns ErrNotSlide when the file is
// readable but holds no tiled image directories.
func Open(path string) (*Slide, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}

	s, err := newSlide(f, st.Size())
	if err != nil {
		f.Close()
		return nil, err
	}
	return s, nil
}

func newSlide(f *os.File, size int64) (*Slide, error) {
	tf, err := parseTIFF(f, size)
	if err != nil {
		return nil, err
	}

	var levels []Level
	for _, d := range tf.dirs {
		tw, err := tf.scalar(d, tagTileWidth, 0)
		if err != nil {
			return nil, err
		}
		th, err := tf.scalar(d, tagTileLength, 0)
		if err != nil {
			return nil, err
		}
		if tw == 0 || th == 0 {
			continue
		}
		w, err := tf.scalar(d, tagImageWidth, 0)
		if err != nil {
			return nil, err
		}
		h, err := tf.scalar(d, tagImageLength, 0)
		if err != nil {
			return nil, err
		}
		if w == 0 || h == 0 {
			continue
		}
		comp, err := tf.scalar(d, tagCompression, 1)
		if err != nil {
			return nil, err
		}
		levels = append(levels, Level{
			Width:       int(w),
			Height:      int(h),
			TileWidth:   int(tw),
			TileHeight:  int(th),
			dir:         d,
			compression: comp,
		})
	}
	if len(levels) == 0 {
		return nil, fmt.Errorf("%w: no tiled image directories", ErrNotSlide)
	}

	sort.SliceStable(levels, func(i, j int) bool {
		return levels[i].Width > levels[j].Width
	})
	for i := range levels {
		levels[i].Downsample = float64(levels[0].Width) / float64(levels[i].Width)
	}

	s := &Slide{f: f, tf: tf, levels: levels}
	s.props = s.readProperties()
	return s, nil
}

// Close releases the file handle.
func (s *Slide) Close() error {
	return s.f.Close()
}

// LevelCount returns the number of pyramid levels.
func (s *Slide) LevelCount() int {
	return len(s.levels)
}

// Levels returns a copy of the level table, largest first.
func (s *Slide) Levels() []Level {
	out := make([]Level, len(s.levels))
	copy(out, s.levels)
	return out
}

// LevelDimensions returns the width and height of a level.
func (s *Slide) LevelDimensions(level int) (int, int, error) {
	if level < 0 || level >= len(s.levels) {
		return 0, 0, fmt.Errorf("%w: level %d, slide has %d", ErrInvalidLevel, level, len(s.levels))
	}
	l := s.levels[level]
	return l.Width, l.Height, nil
}

// Properties returns slide metadata keyed the way OpenSlide names them.
func (s *Slide) Properties() map[string]string {
	out := make(map[string]string, len(s.props))
	for k, v := range s.props {
		out[k] = v
	}
	return out
}

func (s *Slide) readProperties() map[string]string {
	props := make(map[string]string)
	first := s.tf.dirs[0]

	for tag, name := range map[uint16]string{
		tagImageDescription: "tiff.ImageDescription",
		tagMake:             "tiff.Make",
		tagModel:            "tiff.Model",
		tagSoftware:         "tiff.Software",
	} {
		if v := s.tf.ascii(first, tag); v != "" {
			props[name] = v
		}
	}

	vendor := "generic-tiff"
	if strings.HasPrefix(props["tiff.ImageDescription"], "Aperio") {
		vendor = "aperio"
	}
	props["openslide.vendor"] = vendor
	props["openslide.level-count"] = strconv.Itoa(len(s.levels))
	for i, l := range s.levels {
		prefix := fmt.Sprintf("openslide.level[%d].", i)
		props[prefix+"width"] = strconv.Itoa(l.Width)
		props[prefix+"height"] = strconv.Itoa(l.Height)
		props[prefix+"tile-width"] = strconv.Itoa(l.TileWidth)
		props[prefix+"tile-height"] = strconv.Itoa(l.TileHeight)
		props[prefix+"downsample"] = strconv.FormatFloat(l.Downsample, 'g', -1, 64)
	}
	return props
}

// ReadRegion returns a w x h region of a level whose top-left corner is
// (x, y) in that level's coordinates. The result is non-premultiplied RGBA;
// pixels outside the level are fully transparent.
func (s *Slide) ReadRegion(x, y, level, w, h int) (*image.NRGBA, error) {
	if level < 0 || level >= len(s.levels) {
		return nil, fmt.Errorf("%w: level %d, slide has %d", ErrInvalidLevel, level, len(s.levels))
	}
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("invalid region size %dx%d", w, h)
	}

	src, err := s.decodeLevel(s.levels[level])
	if err != nil {
		return nil, err
	}

	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	draw.Copy(dst, image.Point{}, src, image.Rect(x, y, x+w, y+h), draw.Src, nil)
	return dst, nil
}

func (s *Slide) decodeLevel(l Level) (*image.NRGBA, error) {
	if int64(l.Width)*int64(l.Height) > maxLevelPixels {
		return nil, fmt.Errorf("%w: level of %dx%d pixels is too large to materialize", ErrUnsupported, l.Width, l.Height)
	}

	switch l.compression {
	case compressionJPEG:
		return s.decodeJPEGTiles(l)
	case compressionAperioJ2KYC, compressionAperioJ2KRGB:
		return nil, fmt.Errorf("%w: JPEG 2000 tiles (compression %d)", ErrUnsupported, l.compression)
	}

	r := &retargeted{r: s.tf.r, head: s.tf.header(l.dir.offset)}
	img, err := tiff.Decode(io.NewSectionReader(r, 0, s.tf.size))
	if err != nil {
		return nil, fmt.Errorf("failed to decode level: %w", err)
	}
	return imaging.Clone(img), nil
}

func (s *Slide) decodeJPEGTiles(l Level) (*image.NRGBA, error) {
	offsets, err := s.tf.uints(l.dir, tagTileOffsets)
	if err != nil {
		return nil, err
	}
	counts, err := s.tf.uints(l.dir, tagTileByteCounts)
	if err != nil {
		return nil, err
	}
	across := (l.Width + l.TileWidth - 1) / l.TileWidth
	down := (l.Height + l.TileHeight - 1) / l.TileHeight
	if len(offsets) < across*down || len(counts) < across*down {
		return nil, fmt.Errorf("%w: level has %d tile offsets, needs %d", ErrNotSlide, len(offsets), across*down)
	}

	tables, err := s.tf.bytes(l.dir, tagJPEGTables)
	if err != nil {
		return nil, err
	}

	dst := image.NewNRGBA(image.Rect(0, 0, l.Width, l.Height))
	for ty := 0; ty < down; ty++ {
		for tx := 0; tx < across; tx++ {
			i := ty*across + tx
			if counts[i] == 0 {
				continue
			}
			if int64(offsets[i]+counts[i]) > s.tf.size {
				return nil, fmt.Errorf("%w: tile %d data out of range", ErrNotSlide, i)
			}
			raw := make([]byte, counts[i])
			if _, err := s.tf.r.ReadAt(raw, int64(offsets[i])); err != nil {
				return nil, fmt.Errorf("failed to read tile %d: %w", i, err)
			}

			tile, err := jpeg.Decode(bytes.NewReader(jpegStream(tables, raw)))
			if err != nil {
				return nil, fmt.Errorf("failed to decode tile %d: %w", i, err)
			}
			at := image.Pt(tx*l.TileWidth, ty*l.TileHeight)
			draw.Draw(dst, image.Rectangle{Min: at, Max: at.Add(tile.Bounds().Size())}, tile, tile.Bounds().Min, draw.Src)
		}
	}
	return dst, nil
}

// jpegStream joins shared JPEG tables with an abbreviated tile stream. The
// tables' EOI and the tile's SOI markers are dropped.
func jpegStream(tables, tile []byte) []byte {
	if len(tables) < 4 || len(tile) < 2 {
		return tile
	}
	out := make([]byte, 0, len(tables)+len(tile))
	out = append(out, tables[:len(tables)-2]...)
	return append(out, tile[2:]...)
}
