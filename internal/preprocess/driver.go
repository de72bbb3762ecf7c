// Package preprocess runs the preprocessing pipeline over a batch of files:
// load, transform chain, optional preview, serialize and write.
package preprocess

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/ironsheep/image-preprocess/internal/config"
	"github.com/ironsheep/image-preprocess/internal/imaging"
	"github.com/ironsheep/image-preprocess/internal/output"
	"github.com/ironsheep/image-preprocess/internal/transform"
)

// Options configures a Driver.
type Options struct {
	Params config.Params

	// OutputDir receives the results. Empty means output.DefaultDir.
	OutputDir string

	// ReplaceDir is the input root whose subtree is mirrored under
	// OutputDir.
	ReplaceDir string

	// Format overrides Params.OutputFormat when not empty.
	Format string

	// Preview receives terminal previews for display steps and
	// display_image. Nil disables previews.
	Preview io.Writer
}

// Driver processes files one at a time with a fixed configuration.
type Driver struct {
	params  config.Params
	chain   transform.Chain
	format  string
	odir    string
	rdir    string
	loader  *imaging.Loader
	preview *imaging.Previewer
	logger  logrus.FieldLogger
}

// New validates the options and builds the transform chain. Unknown methods
// and output formats outside the allow-list fail here, before any file is
// read.
func New(opts Options, logger logrus.FieldLogger) (*Driver, error) {
	if logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		logger = l
	}
	if err := opts.Params.Validate(); err != nil {
		return nil, err
	}

	chain, err := transform.Build(transform.ParseMethods(opts.Params.Methods), transform.Settings{
		MaxScaledDim: opts.Params.MaxScaledDim,
		Background:   opts.Params.Background,
		GaussLevel:   opts.Params.GaussLevel,
	})
	if err != nil {
		return nil, err
	}

	format := opts.Format
	if format == "" {
		format = opts.Params.OutputFormat
	}
	if err := output.CheckFormat(format); err != nil {
		return nil, err
	}

	odir := opts.OutputDir
	if odir == "" {
		odir = output.DefaultDir
	}

	d := &Driver{
		params: opts.Params,
		chain:  chain,
		format: format,
		odir:   odir,
		rdir:   opts.ReplaceDir,
		loader: imaging.NewLoader(opts.Params.SVSSlideLevel, logger),
		logger: logger,
	}
	if opts.Preview != nil {
		d.preview = imaging.NewPreviewer(opts.Preview, imaging.DefaultPreviewColumns)
	}

	logger.WithFields(logrus.Fields{
		"method": chain.Names(),
		"format": format,
		"odir":   odir,
	}).Info("methods invoked")
	return d, nil
}

// Format returns the output format; empty means raw dumps.
func (d *Driver) Format() string { return d.format }

// Chain returns the transform chain applied to every file.
func (d *Driver) Chain() transform.Chain { return d.chain }

// Loader returns the loader used for input files.
func (d *Driver) Loader() *imaging.Loader { return d.loader }

// ProcessOne runs the pipeline for one input file and reports what was
// written.
func (d *Driver) ProcessOne(path string) (Result, error) {
	res := Result{Input: path}
	log := d.logger.WithField("file", path)

	buf, source, err := d.loader.Load(path)
	if err != nil {
		return res, err
	}
	log.WithFields(logrus.Fields{
		"source": source.String(),
		"shape":  fmt.Sprint(buf.Shape()),
	}).Debug("loaded")

	buf, err = d.chain.Apply(transform.Pixels{Preview: d.preview, Label: path}, buf)
	if err != nil {
		return res, err
	}

	if d.params.DisplayImage && d.preview != nil {
		if err := d.preview.Show(path, buf); err != nil {
			return res, fmt.Errorf("preview: %w", err)
		}
	}

	// Slide samples are always dumped raw; the codec applies to rasters
	// only. The extension still follows the requested format.
	encoding := d.format
	if source == imaging.SourceSlide {
		encoding = ""
	}
	data, err := output.Serialize(buf, encoding)
	if err != nil {
		return res, err
	}

	out := output.MakePath(path, output.Extension(d.format), d.odir, d.rdir)
	if err := output.EnsureDir(filepath.Dir(out)); err != nil {
		return res, err
	}
	if err := os.WriteFile(out, data, 0644); err != nil {
		return res, fmt.Errorf("write %s: %w", out, err)
	}

	log.WithFields(logrus.Fields{
		"output":   out,
		"encoding": encodingName(encoding),
		"bytes":    len(data),
		"shape":    fmt.Sprint(buf.Shape()),
	}).Info("processed")
	res.Output = out
	res.Encoding = encoding
	return res, nil
}

func encodingName(encoding string) string {
	if encoding == "" {
		return output.RawExtension
	}
	return encoding
}

// Result is the outcome for one input file.
// Encoding names the codec that produced the bytes; empty means a raw
// sample dump, which is always the case for slides.
type Result struct {
	Input    string `json:"input"`
	Output   string `json:"output,omitempty"`
	Encoding string `json:"encoding,omitempty"`
	Err      error  `json:"-"`
}

// Report collects the results of a Run in input order.
type Report struct {
	Results []Result
}

// Failed returns the results that carry an error.
func (r *Report) Failed() []Result {
	var failed []Result
	for _, res := range r.Results {
		if res.Err != nil {
			failed = append(failed, res)
		}
	}
	return failed
}

// Err joins every per-file error, or returns nil when all files succeeded.
func (r *Report) Err() error {
	var errs []error
	for _, res := range r.Failed() {
		errs = append(errs, fmt.Errorf("%s: %w", res.Input, res.Err))
	}
	return errors.Join(errs...)
}

// Run processes paths in order. Unless Params.ContinueOnError is set the
// first failure stops the run and is returned; otherwise every file is
// attempted and failures are only recorded in the report. Cancelling ctx
// stops the run before the next file.
func (d *Driver) Run(ctx context.Context, paths []string) (*Report, error) {
	report := &Report{Results: make([]Result, 0, len(paths))}
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		res, err := d.ProcessOne(path)
		res.Err = err
		report.Results = append(report.Results, res)
		if err == nil {
			continue
		}
		if !d.params.ContinueOnError {
			return report, fmt.Errorf("%s: %w", path, err)
		}
		d.logger.WithField("file", path).WithError(err).Error("failed, continuing")
	}
	return report, nil
}
