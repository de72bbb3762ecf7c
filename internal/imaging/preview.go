package imaging

import (
	"bufio"
	"fmt"
	"image"
	"io"

	"github.com/disintegration/imaging"
	"github.com/lucasb-eyer/go-colorful"
)

// DefaultPreviewColumns is the preview width used when none is configured.
const DefaultPreviewColumns = 80

// Previewer draws buffers on a 24-bit color terminal.
//
// Each character cell shows two vertically stacked pixels using the upper
// half block glyph, its foreground set to the top pixel and its background
// to the bottom one. Images wider than the column limit are scaled down.
type Previewer struct {
	w       io.Writer
	columns int
}

// NewPreviewer returns a previewer writing to w. A non-positive columns
// value selects DefaultPreviewColumns.
func NewPreviewer(w io.Writer, columns int) *Previewer {
	if columns <= 0 {
		columns = DefaultPreviewColumns
	}
	return &Previewer{w: w, columns: columns}
}

// Show writes a titled preview of buf.
func (p *Previewer) Show(title string, buf *Buffer) error {
	if err := buf.Validate(); err != nil {
		return err
	}

	var img image.Image = buf.opaqueImage()
	if buf.Width > p.columns {
		img = imaging.Resize(img, p.columns, 0, imaging.Box)
	}
	bounds := img.Bounds()

	bw := bufio.NewWriter(p.w)
	fmt.Fprintf(bw, "%s (%dx%d, %d channels, %s)\n", title, buf.Width, buf.Height, buf.Channels, buf.Depth)
	for y := bounds.Min.Y; y < bounds.Max.Y; y += 2 {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			tr, tg, tb := cell(img, x, y)
			br, bg, bb := tr, tg, tb
			if y+1 < bounds.Max.Y {
				br, bg, bb = cell(img, x, y+1)
			}
			fmt.Fprintf(bw, "\x1b[38;2;%d;%d;%dm\x1b[48;2;%d;%d;%dm▀", tr, tg, tb, br, bg, bb)
		}
		bw.WriteString("\x1b[0m\n")
	}
	return bw.Flush()
}

func cell(img image.Image, x, y int) (uint8, uint8, uint8) {
	c, ok := colorful.MakeColor(img.At(x, y))
	if !ok {
		return 0, 0, 0
	}
	return c.RGB255()
}
