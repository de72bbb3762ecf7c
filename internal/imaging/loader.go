package imaging

import (
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/sirupsen/logrus"
	_ "golang.org/x/image/webp" // Register WebP format decoder

	"github.com/ironsheep/image-preprocess/internal/slide"
)

var (
	// ErrUnreadableFormat reports a file that no backend can decode.
	ErrUnreadableFormat = errors.New("unreadable image format")

	// ErrInvalidSlideLevel reports a configured slide level outside the
	// slide's pyramid. It is the same sentinel the slide package returns.
	ErrInvalidSlideLevel = slide.ErrInvalidLevel
)

// Source identifies the backend that decoded a file.
type Source int

const (
	// SourceRaster is a conventional single-resolution image.
	SourceRaster Source = iota
	// SourceSlide is a multi-resolution whole-slide image.
	SourceSlide
)

func (s Source) String() string {
	if s == SourceSlide {
		return "slide"
	}
	return "raster"
}

// slideExtensions lists the suffixes routed to the slide backend first.
var slideExtensions = map[string]bool{
	".svs": true,
	".tif": true,
}

// IsSlidePath reports whether path carries a slide suffix. The check is
// case-insensitive.
func IsSlidePath(path string) bool {
	return slideExtensions[strings.ToLower(filepath.Ext(path))]
}

// Loader decodes image files into buffers.
//
// Files with a slide suffix are opened with the slide backend and the
// configured level is read in full as a 4-channel RGBA buffer. A ".tif" that
// turns out not to be a tiled pyramid falls back to the raster backend.
// Every other file is decoded as a conventional raster into a 3-channel RGB
// buffer, honoring EXIF orientation.
//
// A Loader holds no per-file state. Slide handles are closed before Load
// returns.
type Loader struct {
	slideLevel int
	logger     logrus.FieldLogger
}

// NewLoader returns a loader that reads slides at slideLevel. A nil logger
// discards log output.
func NewLoader(slideLevel int, logger logrus.FieldLogger) *Loader {
	if logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		logger = l
	}
	return &Loader{slideLevel: slideLevel, logger: logger}
}

// IsImage reports whether path can be decoded by either backend.
//
// IsImage never fails: a missing file, an empty file, a corrupt file and a
// decoder panic all report false.
func (l *Loader) IsImage(path string) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.WithField("file", path).Debugf("decoder panicked during probe: %v", r)
			ok = false
		}
	}()

	if IsSlidePath(path) {
		s, err := slide.Open(path)
		if err == nil {
			s.Close()
			return true
		}
		if !rasterFallback(path, err) {
			return false
		}
	}

	_, err := imaging.Open(path)
	return err == nil
}

// rasterFallback reports whether a slide-suffixed file that the slide
// backend rejected with err should be retried as a raster.
func rasterFallback(path string, err error) bool {
	return errors.Is(err, slide.ErrNotSlide) && strings.EqualFold(filepath.Ext(path), ".tif")
}

// Load decodes path into a buffer and reports which backend produced it.
//
// Decode failures wrap ErrUnreadableFormat. A slide level outside the
// pyramid wraps ErrInvalidSlideLevel; no other level is tried.
func (l *Loader) Load(path string) (*Buffer, Source, error) {
	log := l.logger.WithField("file", path)

	if IsSlidePath(path) {
		s, err := slide.Open(path)
		switch {
		case err == nil:
			buf, err := l.loadSlide(s)
			if err != nil {
				return nil, SourceSlide, fmt.Errorf("failed to load slide %s: %w", path, err)
			}
			log.WithFields(logrus.Fields{
				"source": SourceSlide,
				"level":  l.slideLevel,
				"width":  buf.Width,
				"height": buf.Height,
			}).Debug("decoded slide")
			return buf, SourceSlide, nil
		case rasterFallback(path, err):
			log.Debug("not a tiled pyramid, decoding as raster")
		default:
			return nil, SourceSlide, fmt.Errorf("%w: %s: %w", ErrUnreadableFormat, path, err)
		}
	}

	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, SourceRaster, fmt.Errorf("%w: %s: %w", ErrUnreadableFormat, path, err)
	}
	buf, err := FromImage(img, 3)
	if err != nil {
		return nil, SourceRaster, fmt.Errorf("%w: %s: %w", ErrUnreadableFormat, path, err)
	}

	log.WithFields(logrus.Fields{
		"source": SourceRaster,
		"width":  buf.Width,
		"height": buf.Height,
	}).Debug("decoded raster")
	return buf, SourceRaster, nil
}

func (l *Loader) loadSlide(s *slide.Slide) (*Buffer, error) {
	defer s.Close()

	w, h, err := s.LevelDimensions(l.slideLevel)
	if err != nil {
		return nil, err
	}
	img, err := s.ReadRegion(0, 0, l.slideLevel, w, h)
	if err != nil {
		if errors.Is(err, slide.ErrUnsupported) {
			return nil, fmt.Errorf("%w: %w", ErrUnreadableFormat, err)
		}
		return nil, err
	}
	return FromImage(img, 4)
}

// ImageInfo contains metadata about an image file.
//
// It is gathered without materializing pixel data, so it is cheap even for
// large slides.
type ImageInfo struct {
	// Width and Height are the stored dimensions, before any EXIF rotation.
	Width  int `json:"width"`
	Height int `json:"height"`

	// Channels is the channel count of the loaded buffer: 3 for rasters and
	// 4 for slides.
	Channels int `json:"channels"`

	// Format is the registered decoder name for rasters ("png", "jpeg",
	// "gif", "bmp", "tiff", "webp") or the slide vendor ("aperio",
	// "generic-tiff").
	Format string `json:"format"`

	// Source is "raster" or "slide".
	Source string `json:"source"`

	// FileSizeBytes is the size of the file on disk in bytes.
	FileSizeBytes int64 `json:"file_size_bytes"`

	// Level is the slide level Width and Height refer to.
	Level int `json:"level,omitempty"`

	// Levels is the slide pyramid, largest level first.
	Levels []slide.Level `json:"levels,omitempty"`

	// Properties holds slide metadata.
	Properties map[string]string `json:"properties,omitempty"`
}

// Inspect returns metadata about path. For slides, Width and Height are the
// dimensions of level.
func Inspect(path string, level int) (*ImageInfo, error) {
	stat, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	if IsSlidePath(path) {
		s, err := slide.Open(path)
		if err == nil {
			defer s.Close()
			w, h, err := s.LevelDimensions(level)
			if err != nil {
				return nil, err
			}
			props := s.Properties()
			return &ImageInfo{
				Width:         w,
				Height:        h,
				Channels:      4,
				Format:        props["openslide.vendor"],
				Source:        SourceSlide.String(),
				FileSizeBytes: stat.Size(),
				Level:         level,
				Levels:        s.Levels(),
				Properties:    props,
			}, nil
		}
		if !rasterFallback(path, err) {
			return nil, fmt.Errorf("%w: %s: %w", ErrUnreadableFormat, path, err)
		}
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()

	cfg, format, err := image.DecodeConfig(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrUnreadableFormat, path, err)
	}

	return &ImageInfo{
		Width:         cfg.Width,
		Height:        cfg.Height,
		Channels:      3,
		Format:        format,
		Source:        SourceRaster.String(),
		FileSizeBytes: stat.Size(),
	}, nil
}
