package transform

import (
	"github.com/ironsheep/image-preprocess/internal/imaging"
)

// Pixels is the Executor that performs the real image operations.
type Pixels struct {
	// Preview draws display steps. A nil Preview makes display a no-op.
	Preview *imaging.Previewer

	// Label titles previews, usually the input file name.
	Label string
}

var _ Executor = Pixels{}

// Grayscale converts buf to one luminance channel.
func (p Pixels) Grayscale(_ GrayscaleStep, buf *imaging.Buffer) (*imaging.Buffer, error) {
	return imaging.Grayscale(buf)
}

// Rescale fits buf inside a square canvas of s.MaxDim and pads it with
// s.Background.
func (p Pixels) Rescale(s RescaleStep, buf *imaging.Buffer) (*imaging.Buffer, error) {
	return imaging.Rescale(buf, s.MaxDim, s.Background)
}

// Gaussian blurs buf with a square kernel of s.KernelSize.
func (p Pixels) Gaussian(s GaussianStep, buf *imaging.Buffer) (*imaging.Buffer, error) {
	return imaging.GaussianBlur(buf, s.KernelSize, s.Sigma)
}

// Laplacian returns the signed float64 edge response of buf.
func (p Pixels) Laplacian(_ LaplacianStep, buf *imaging.Buffer) (*imaging.Buffer, error) {
	return imaging.Laplacian(buf)
}

// Display shows buf on the preview and returns it unchanged.
func (p Pixels) Display(_ DisplayStep, buf *imaging.Buffer) (*imaging.Buffer, error) {
	if p.Preview == nil {
		return buf, nil
	}
	if err := p.Preview.Show(p.Label, buf); err != nil {
		return nil, err
	}
	return buf, nil
}
