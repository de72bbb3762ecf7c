// Package transform builds and runs the ordered chain of pixel operations
// configured by the "methods" parameter.
//
// The set of operations is closed: grayscale, rescale, gaussian, laplacian
// and display. Each is a Step variant carrying its own typed parameters and
// is dispatched through an Executor, so adding a variant breaks every
// executor at compile time rather than at run time.
package transform

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ironsheep/image-preprocess/internal/imaging"
)

// ErrUnknownTransform reports a method name outside the registry.
var ErrUnknownTransform = errors.New("unknown transform")

// Method names accepted by Build.
const (
	NameGrayscale = "grayscale"
	NameRescale   = "rescale"
	NameGaussian  = "gaussian"
	NameLaplacian = "laplacian"
	NameDisplay   = "display"
)

// Registered lists every method name Build accepts.
var Registered = []string{NameGrayscale, NameRescale, NameGaussian, NameLaplacian, NameDisplay}

// Step is one operation of a chain. The interface is sealed; the variants
// are the exported *Step types of this package.
type Step interface {
	Name() string
	accept(e Executor, buf *imaging.Buffer) (*imaging.Buffer, error)
}

// GrayscaleStep converts color to a single luminance channel.
type GrayscaleStep struct{}

// RescaleStep fits the image into a MaxDim square padded with Background.
type RescaleStep struct {
	MaxDim     int
	Background imaging.BackgroundColor
}

// GaussianStep blurs with a KernelSize x KernelSize Gaussian of deviation
// Sigma.
type GaussianStep struct {
	KernelSize int
	Sigma      float64
}

// LaplacianStep computes the second-derivative response as float64.
type LaplacianStep struct{}

// DisplayStep previews the buffer and passes it through unchanged.
type DisplayStep struct{}

func (GrayscaleStep) Name() string { return NameGrayscale }
func (RescaleStep) Name() string   { return NameRescale }
func (GaussianStep) Name() string  { return NameGaussian }
func (LaplacianStep) Name() string { return NameLaplacian }
func (DisplayStep) Name() string   { return NameDisplay }

func (s GrayscaleStep) accept(e Executor, b *imaging.Buffer) (*imaging.Buffer, error) {
	return e.Grayscale(s, b)
}

func (s RescaleStep) accept(e Executor, b *imaging.Buffer) (*imaging.Buffer, error) {
	return e.Rescale(s, b)
}

func (s GaussianStep) accept(e Executor, b *imaging.Buffer) (*imaging.Buffer, error) {
	return e.Gaussian(s, b)
}

func (s LaplacianStep) accept(e Executor, b *imaging.Buffer) (*imaging.Buffer, error) {
	return e.Laplacian(s, b)
}

func (s DisplayStep) accept(e Executor, b *imaging.Buffer) (*imaging.Buffer, error) {
	return e.Display(s, b)
}

// Executor performs each kind of step. Implementations return a new buffer
// and leave their input untouched; Display may return its input.
type Executor interface {
	Grayscale(s GrayscaleStep, buf *imaging.Buffer) (*imaging.Buffer, error)
	Rescale(s RescaleStep, buf *imaging.Buffer) (*imaging.Buffer, error)
	Gaussian(s GaussianStep, buf *imaging.Buffer) (*imaging.Buffer, error)
	Laplacian(s LaplacianStep, buf *imaging.Buffer) (*imaging.Buffer, error)
	Display(s DisplayStep, buf *imaging.Buffer) (*imaging.Buffer, error)
}

// Settings carries the parameters steps are built with.
type Settings struct {
	MaxScaledDim int
	Background   imaging.BackgroundColor

	// GaussLevel is used as both kernel size and sigma.
	GaussLevel int
}

// Chain is an ordered list of steps.
type Chain []Step

// ParseMethods splits a comma-separated method list. Entries are trimmed
// and empty entries dropped, so "" yields an empty list.
func ParseMethods(s string) []string {
	var names []string
	for _, part := range strings.Split(s, ",") {
		if name := strings.TrimSpace(part); name != "" {
			names = append(names, name)
		}
	}
	return names
}

// Build resolves names against the registry in order. The first name that is
// not registered fails the whole build with ErrUnknownTransform.
func Build(names []string, settings Settings) (Chain, error) {
	chain := make(Chain, 0, len(names))
	for _, name := range names {
		var step Step
		switch name {
		case NameGrayscale:
			step = GrayscaleStep{}
		case NameRescale:
			step = RescaleStep{MaxDim: settings.MaxScaledDim, Background: settings.Background}
		case NameGaussian:
			step = GaussianStep{KernelSize: settings.GaussLevel, Sigma: float64(settings.GaussLevel)}
		case NameLaplacian:
			step = LaplacianStep{}
		case NameDisplay:
			step = DisplayStep{}
		default:
			return nil, fmt.Errorf("%w: %q (available: %s)", ErrUnknownTransform, name, strings.Join(Registered, ", "))
		}
		chain = append(chain, step)
	}
	return chain, nil
}

// Names returns the method names of the chain in order.
func (c Chain) Names() []string {
	names := make([]string, len(c))
	for i, s := range c {
		names[i] = s.Name()
	}
	return names
}

// Apply runs every step in order, each on the previous step's output. It
// stops at the first failing step.
func (c Chain) Apply(e Executor, buf *imaging.Buffer) (*imaging.Buffer, error) {
	for i, step := range c {
		out, err := step.accept(e, buf)
		if err != nil {
			return nil, fmt.Errorf("step %d (%s): %w", i+1, step.Name(), err)
		}
		buf = out
	}
	return buf, nil
}
