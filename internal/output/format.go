// Package output serializes processed buffers and places them on disk.
//
// A buffer is either encoded with a raster codec from a fixed allow-list or,
// when no format is requested or the source was a slide, dumped raw: the
// samples in memory order with no header. Readers of a raw dump must know the
// shape and sample type out of band.
package output

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/spakin/netpbm"

	pimaging "github.com/ironsheep/image-preprocess/internal/imaging"
)

var (
	// ErrUnsupportedFormat reports a format name outside the allow-list.
	ErrUnsupportedFormat = errors.New("unsupported output format")

	// ErrEncoderUnavailable reports an allow-listed format this build cannot
	// write.
	ErrEncoderUnavailable = errors.New("no encoder available for output format")
)

// RawExtension is the file extension of header-less dumps.
const RawExtension = "raw"

// JPEGQuality is the quality used for jpeg, jpg and jpe output.
const JPEGQuality = 95

// Formats is the output format allow-list.
var Formats = []string{
	"bmp", "dib",
	"jpeg", "jpg", "jpe",
	"jp2",
	"png",
	"pbm", "pgm", "ppm",
	"sr", "ras",
	"tiff", "tif",
}

// CheckFormat accepts the empty name, meaning "no format", and the exact
// names in Formats. Anything else, including other spellings such as "PNG"
// or ".png", returns ErrUnsupportedFormat.
func CheckFormat(name string) error {
	if name == "" || slices.Contains(Formats, name) {
		return nil
	}
	return fmt.Errorf("%w: %q (allowed: %s)", ErrUnsupportedFormat, name, strings.Join(Formats, ", "))
}

// Extension returns the file extension for a checked format.
func Extension(format string) string {
	if format == "" {
		return RawExtension
	}
	return format
}

// Serialize encodes buf in format and returns the bytes. See Write.
func Serialize(buf *pimaging.Buffer, format string) ([]byte, error) {
	var out bytes.Buffer
	if err := Write(&out, buf, format); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

// Write encodes buf to w. format must already be checked; "" writes a raw
// dump. Codecs receive 8-bit data, so float buffers are saturated first.
func Write(w io.Writer, buf *pimaging.Buffer, format string) error {
	if err := buf.Validate(); err != nil {
		return err
	}

	switch format {
	case "":
		return buf.WriteRaw(w)
	case "bmp", "dib":
		return encode(w, buf, imaging.BMP)
	case "jpeg", "jpg", "jpe":
		return encode(w, buf, imaging.JPEG, imaging.JPEGQuality(JPEGQuality))
	case "png":
		return encode(w, buf, imaging.PNG)
	case "tiff", "tif":
		return encode(w, buf, imaging.TIFF)
	case "pbm":
		return writeNetpbm(w, buf, netpbm.PBM)
	case "pgm":
		return writeNetpbm(w, buf, netpbm.PGM)
	case "ppm":
		return writeNetpbm(w, buf, netpbm.PPM)
	case "sr", "ras":
		return writeSunRaster(w, buf)
	case "jp2":
		return fmt.Errorf("%w: %s", ErrEncoderUnavailable, format)
	}
	return fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
}

func encode(w io.Writer, buf *pimaging.Buffer, f imaging.Format, opts ...imaging.EncodeOption) error {
	if err := imaging.Encode(w, buf.ToUint8().Image(), f, opts...); err != nil {
		return fmt.Errorf("failed to encode %s: %w", f, err)
	}
	return nil
}
