package slide

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/google/tiff"
)

// TIFF tags read by the slide reader.
const (
	tagImageWidth       = 256
	tagImageLength      = 257
	tagCompression      = 259
	tagImageDescription = 270
	tagMake             = 271
	tagModel            = 272
	tagSoftware         = 305
	tagTileWidth        = 322
	tagTileLength       = 323
	tagTileOffsets      = 324
	tagTileByteCounts   = 325
	tagJPEGTables       = 347
)

// Compression values with special handling.
const (
	compressionJPEG         = 7
	compressionAperioJ2KYC  = 33003
	compressionAperioJ2KRGB = 33005
)

// Directory parsing may read at most this much beyond twice the file size.
const metadataSlack = 64 << 10

// maxMetadata caps the bytes read while parsing directories.
const maxMetadata = 64 << 20

var errMetadataBudget = errors.New("directory metadata exceeds the file size")

// directory is one image file directory and the file offset it starts at.
type directory struct {
	offset int64
	ifd    tiff.IFD
}

// tiffFile gives typed access to a classic TIFF container.
type tiffFile struct {
	r     io.ReaderAt
	size  int64
	order binary.ByteOrder
	dirs  []directory
}

// meteredReader fails once the parser has read more than its budget, so a
// directory chain that points back at itself ends in an error.
type meteredReader struct {
	*io.SectionReader
	left int64
}

func (m *meteredReader) charge(n int, err error) (int, error) {
	m.left -= int64(n)
	if m.left < 0 {
		return n, errMetadataBudget
	}
	return n, err
}

func (m *meteredReader) Read(p []byte) (int, error) {
	return m.charge(m.SectionReader.Read(p))
}

func (m *meteredReader) ReadAt(p []byte, off int64) (int, error) {
	return m.charge(m.SectionReader.ReadAt(p, off))
}

func metadataBudget(size int64) int64 {
	return min(2*size+metadataSlack, maxMetadata)
}

// parseTIFF checks the header and reads every directory in the chain.
func parseTIFF(r io.ReaderAt, size int64) (*tiffFile, error) {
	var head [8]byte
	if _, err := r.ReadAt(head[:], 0); err != nil {
		return nil, fmt.Errorf("%w: short header: %v", ErrNotSlide, err)
	}

	t := &tiffFile{r: r, size: size}
	switch string(head[0:2]) {
	case "II":
		t.order = binary.LittleEndian
	case "MM":
		t.order = binary.BigEndian
	default:
		return nil, fmt.Errorf("%w: not a TIFF container", ErrNotSlide)
	}

	switch t.order.Uint16(head[2:4]) {
	case 42:
	case 43:
		return nil, fmt.Errorf("%w: BigTIFF containers", ErrUnsupported)
	default:
		return nil, fmt.Errorf("%w: bad TIFF magic", ErrNotSlide)
	}

	mr := &meteredReader{SectionReader: io.NewSectionReader(r, 0, size), left: metadataBudget(size)}
	parsed, err := tiff.Parse(mr, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotSlide, err)
	}

	off := int64(t.order.Uint32(head[4:8]))
	for _, ifd := range parsed.IFDs() {
		t.dirs = append(t.dirs, directory{offset: off, ifd: ifd})
		off = int64(ifd.NextOffset())
	}
	if len(t.dirs) == 0 {
		return nil, fmt.Errorf("%w: no image directories", ErrNotSlide)
	}
	return t, nil
}

// field returns the payload of tag and the size of one value, or nil when
// the tag is absent.
func (t *tiffFile) field(d directory, tag uint16) ([]byte, int, error) {
	if !d.ifd.HasField(tag) {
		return nil, 0, nil
	}
	f := d.ifd.GetField(tag)
	size := int(f.Type().Size())
	n := int(f.Count()) * size
	raw := f.Value().Bytes()
	if size == 0 || len(raw) < n {
		return nil, 0, fmt.Errorf("%w: tag %d is truncated", ErrNotSlide, tag)
	}
	return raw[:n], size, nil
}

// uints returns the values of a BYTE, SHORT or LONG entry.
func (t *tiffFile) uints(d directory, tag uint16) ([]uint64, error) {
	raw, size, err := t.field(d, tag)
	if err != nil || raw == nil {
		return nil, err
	}
	vals := make([]uint64, len(raw)/size)
	for i := range vals {
		switch size {
		case 1:
			vals[i] = uint64(raw[i])
		case 2:
			vals[i] = uint64(t.order.Uint16(raw[i*2:]))
		case 4:
			vals[i] = uint64(t.order.Uint32(raw[i*4:]))
		default:
			return nil, fmt.Errorf("%w: tag %d is not an integer", ErrUnsupported, tag)
		}
	}
	return vals, nil
}

// scalar returns the first value of an integer tag, or def when absent.
func (t *tiffFile) scalar(d directory, tag uint16, def uint64) (uint64, error) {
	vals, err := t.uints(d, tag)
	if err != nil {
		return 0, err
	}
	if len(vals) == 0 {
		return def, nil
	}
	return vals[0], nil
}

// bytes returns the payload of an ASCII or UNDEFINED tag.
func (t *tiffFile) bytes(d directory, tag uint16) ([]byte, error) {
	raw, _, err := t.field(d, tag)
	return raw, err
}

// ascii returns an ASCII tag without its terminating NULs.
func (t *tiffFile) ascii(d directory, tag uint16) string {
	b, err := t.bytes(d, tag)
	if err != nil {
		return ""
	}
	for len(b) > 0 && b[len(b)-1] == 0 {
		b = b[:len(b)-1]
	}
	return string(b)
}

// header returns the 8-byte TIFF header with its first-IFD pointer aimed at off.
func (t *tiffFile) header(off int64) [8]byte {
	var h [8]byte
	if t.order == binary.LittleEndian {
		copy(h[:2], "II")
	} else {
		copy(h[:2], "MM")
	}
	t.order.PutUint16(h[2:4], 42)
	t.order.PutUint32(h[4:8], uint32(off))
	return h
}

// retargeted presents a TIFF file whose header points at a chosen IFD, so
// a single-image decoder reads that directory.
type retargeted struct {
	r    io.ReaderAt
	head [8]byte
}

func (p *retargeted) ReadAt(b []byte, off int64) (int, error) {
	n, err := p.r.ReadAt(b, off)
	for i := off; i < int64(len(p.head)) && i < off+int64(n); i++ {
		b[i-off] = p.head[i]
	}
	return n, err
}
