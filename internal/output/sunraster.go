package output

import (
	"bufio"
	"encoding/binary"
	"io"

	pimaging "github.com/ironsheep/image-preprocess/internal/imaging"
)

// Sun raster constants.
const (
	sunMagic        = 0x59a66a95
	sunTypeStandard = 1
	sunMapNone      = 0
)

// writeSunRaster writes an uncompressed Sun raster. One-channel buffers are
// stored as 8-bit gray, everything else as 24-bit BGR. Rows are padded to a
// 16-bit boundary.
func writeSunRaster(w io.Writer, buf *pimaging.Buffer) error {
	var (
		depth int
		pix   []byte
		bpp   int
	)
	if buf.Channels == 1 {
		depth, bpp, pix = 8, 1, buf.ToUint8().Pix
	} else {
		depth, bpp = 24, 3
		img := opaqueImage(buf)
		pix = make([]byte, 0, buf.Width*buf.Height*3)
		for i := 0; i < len(img.Pix); i += 4 {
			pix = append(pix, img.Pix[i+2], img.Pix[i+1], img.Pix[i])
		}
	}

	rowBytes := buf.Width * bpp
	stride := rowBytes + rowBytes%2
	header := [8]uint32{
		sunMagic,
		uint32(buf.Width),
		uint32(buf.Height),
		uint32(depth),
		uint32(stride * buf.Height),
		sunTypeStandard,
		sunMapNone,
		0,
	}

	bw := bufio.NewWriter(w)
	if err := binary.Write(bw, binary.BigEndian, header); err != nil {
		return err
	}
	pad := make([]byte, stride-rowBytes)
	for y := 0; y < buf.Height; y++ {
		bw.Write(pix[y*rowBytes : (y+1)*rowBytes])
		bw.Write(pad)
	}
	return bw.Flush()
}
