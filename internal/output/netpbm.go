package output

import (
	"fmt"
	"image"
	"image/color"
	"io"

	"github.com/spakin/netpbm"

	pimaging "github.com/ironsheep/image-preprocess/internal/imaging"
)

// pbmThreshold is the gray level below which a PBM pixel is black.
const pbmThreshold = 128

// grayImage returns the 8-bit luminance of buf as an image.
func grayImage(buf *pimaging.Buffer) (*image.Gray, error) {
	gray, err := pimaging.Grayscale(buf.ToUint8())
	if err != nil {
		return nil, err
	}
	img := image.NewGray(image.Rect(0, 0, gray.Width, gray.Height))
	copy(img.Pix, gray.Pix)
	return img, nil
}

// bilevelImage thresholds the luminance of buf to pure black and white.
func bilevelImage(buf *pimaging.Buffer) (*image.Gray, error) {
	img, err := grayImage(buf)
	if err != nil {
		return nil, err
	}
	for i, v := range img.Pix {
		if v < pbmThreshold {
			img.Pix[i] = 0
		} else {
			img.Pix[i] = 255
		}
	}
	return img, nil
}

// opaqueImage returns the RGB samples of buf as an opaque image. Gray
// expands to three equal channels and alpha is dropped.
func opaqueImage(buf *pimaging.Buffer) *image.RGBA {
	src := buf.ToUint8()
	img := image.NewRGBA(image.Rect(0, 0, src.Width, src.Height))
	for y := 0; y < src.Height; y++ {
		for x := 0; x < src.Width; x++ {
			c := color.RGBA{A: 255}
			switch src.Channels {
			case 1:
				v := src.Pix[src.Index(x, y, 0)]
				c.R, c.G, c.B = v, v, v
			default:
				c.R = src.Pix[src.Index(x, y, 0)]
				c.G = src.Pix[src.Index(x, y, 1)]
				c.B = src.Pix[src.Index(x, y, 2)]
			}
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

// writeNetpbm writes buf as a raw (binary) PBM, PGM or PPM file with
// 8-bit samples.
func writeNetpbm(w io.Writer, buf *pimaging.Buffer, f netpbm.Format) error {
	var (
		img image.Image
		err error
	)
	switch f {
	case netpbm.PBM:
		img, err = bilevelImage(buf)
	case netpbm.PGM:
		img, err = grayImage(buf)
	default:
		img = opaqueImage(buf)
	}
	if err != nil {
		return err
	}

	opts := &netpbm.EncodeOptions{Format: f, MaxValue: 255}
	if err := netpbm.Encode(w, img, opts); err != nil {
		return fmt.Errorf("failed to encode netpbm: %w", err)
	}
	return nil
}
