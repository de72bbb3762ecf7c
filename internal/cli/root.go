// Package cli implements the image-preprocess command line.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/ironsheep/image-preprocess/internal/batch"
	"github.com/ironsheep/image-preprocess/internal/config"
	"github.com/ironsheep/image-preprocess/internal/output"
	"github.com/ironsheep/image-preprocess/internal/preprocess"
)

// ProgramName prefixes every diagnostic.
const ProgramName = "image-preprocess"

// BuildInfo is stamped into the binary at link time.
type BuildInfo struct {
	Version   string
	BuildTime string
	GitCommit string
}

// commandError tags an error with the stage that produced it.
type commandError struct {
	stage string
	err   error
}

func (e *commandError) Error() string { return fmt.Sprintf("(%s): %v", e.stage, e.err) }
func (e *commandError) Unwrap() error { return e.err }

func fail(stage string, err error) error {
	return &commandError{stage: stage, err: err}
}

// flagAliases maps the long names the tool historically accepted onto the
// current flag names.
var flagAliases = map[string]string{
	"pfile":   "parameters",
	"output":  "odir",
	"replace": "rdir",
	"format":  "ofmt",
}

func normalizeFlag(_ *pflag.FlagSet, name string) pflag.NormalizedName {
	if alias, ok := flagAliases[name]; ok {
		name = alias
	}
	return pflag.NormalizedName(name)
}

type rootOptions struct {
	parameters string
	odir       string
	rdir       string
	ofmt       string
	keepGoing  bool
	logLevel   string
}

// NewRootCommand builds the command tree. Diagnostics and previews go to
// stderr; stdout is reserved for the serve protocol stream.
func NewRootCommand(info BuildInfo) *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   ProgramName + " [flags] files...",
		Short: "Preprocess raster images and whole-slide images",
		Long: `image-preprocess loads raster images and multi-resolution slides, applies the
transform chain named by the "methods" parameter and writes each result.

Every positional argument is either an image or a list file holding one image
path per line. Results are written to the output directory with the output
format's extension, or as headerless raw sample dumps (.raw) when no format is
set. Slide samples are always dumped raw, under the requested extension.

Transforms: grayscale, rescale, gaussian, laplacian, display.
Formats: bmp dib jpeg jpg jpe jp2 png pbm pgm ppm sr ras tiff tif.

Examples:
  # Grayscale and rescale every image listed in files.list
  image-preprocess -p params.txt -o out files.list

  # Keep the input directory structure below out/
  image-preprocess -p params.txt -o out -r /data/in /data/in/a/b/slide.svs

  # Override the output format and keep going past bad files
  image-preprocess -p params.txt --ofmt png --keep-going *.jpg`,
		Version:       info.Version,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPreprocess(cmd, opts, args)
		},
	}
	cmd.SetVersionTemplate(fmt.Sprintf("%s {{.Version}}\n  Build time: %s\n  Git commit: %s\n",
		ProgramName, info.BuildTime, info.GitCommit))

	pf := cmd.PersistentFlags()
	pf.StringVarP(&opts.parameters, "parameters", "p", "", "parameter file (NEDC blocks, or .yaml/.json/.toml)")
	pf.StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn, error (env "+config.EnvPrefix+"_LOG_LEVEL)")

	f := cmd.Flags()
	f.StringVarP(&opts.odir, "odir", "o", "", "output directory (default \"output\")")
	f.StringVarP(&opts.rdir, "rdir", "r", "", "input directory whose structure is kept under the output directory")
	f.StringVar(&opts.ofmt, "ofmt", "", "output format, overrides output_format")
	f.BoolVar(&opts.keepGoing, "keep-going", false, "continue with the next file after a failure")

	cmd.SetGlobalNormalizationFunc(normalizeFlag)
	cmd.AddCommand(newServeCommand(opts, info))
	return cmd
}

func runPreprocess(cmd *cobra.Command, opts *rootOptions, args []string) error {
	logger, err := newLogger(cmd.ErrOrStderr(), opts.logLevel)
	if err != nil {
		return fail("log level", err)
	}

	if len(args) == 0 {
		cmd.SetOut(cmd.ErrOrStderr())
		_ = cmd.Usage()
		return fail("command line", batch.ErrNoFiles)
	}

	if err := output.CheckFormat(opts.ofmt); err != nil {
		return fail("setup", err)
	}

	params, err := config.Load(opts.parameters, cmd.Flags())
	if err != nil {
		return fail("parameters", err)
	}
	logger.WithFields(params.Fields()).Debug("parameters loaded")

	driver, err := preprocess.New(preprocess.Options{
		Params:     params,
		OutputDir:  opts.odir,
		ReplaceDir: opts.rdir,
		Format:     opts.ofmt,
		Preview:    cmd.ErrOrStderr(),
	}, logger)
	if err != nil {
		return fail("setup", err)
	}

	paths, err := batch.NewExpander(driver.Loader().IsImage, logger).Expand(args)
	if err != nil {
		return fail("files", err)
	}

	report, err := driver.Run(cmd.Context(), paths)
	if err != nil {
		return fail("process", err)
	}
	if err := report.Err(); err != nil {
		logger.WithFields(logrus.Fields{
			"files":  len(report.Results),
			"failed": len(report.Failed()),
		}).Warn("finished with failures")
		return fail("process", err)
	}
	logger.WithField("files", len(report.Results)).Info("done")
	return nil
}

// Run executes the command line args (without the program name) and returns
// the process exit status.
func Run(ctx context.Context, args []string, info BuildInfo, stdout, stderr io.Writer) int {
	cmd := NewRootCommand(info)
	cmd.SetArgs(RewriteLegacyArgs(args))
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	if err := cmd.ExecuteContext(ctx); err != nil {
		var ce *commandError
		if errors.As(err, &ce) {
			fmt.Fprintf(stderr, "%s %s\n", ProgramName, ce.Error())
		} else {
			fmt.Fprintf(stderr, "%s (command line): %v\n", ProgramName, err)
		}
		return 1
	}
	return 0
}

// Execute runs the process command line and exits.
func Execute(info BuildInfo) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := Run(ctx, os.Args[1:], info, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}
