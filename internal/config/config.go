// Package config loads the preprocessing parameters.
//
// Parameters are layered with viper: built-in defaults, then a parameter
// file, then IMAGE_PREPROCESS_* environment variables, then any bound
// command-line flags that were set explicitly. Parameter files are either the
// NEDC block format (see ParseParameterFile) or, by extension, YAML, JSON or
// TOML.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/ironsheep/image-preprocess/internal/imaging"
)

// ErrParameterLoad reports a parameter file that cannot be read, parsed or
// validated.
var ErrParameterLoad = errors.New("failed to load parameters")

// EnvPrefix prefixes environment overrides, e.g. IMAGE_PREPROCESS_GAUSS_LVL.
const EnvPrefix = "IMAGE_PREPROCESS"

// Sections lists the NEDC blocks merged over the top level, in order.
var Sections = []string{"RESCALE_IMAGE", "SVS_SLIDE_LEVEL", "GAUSSIAN_VARS", "OUTPUT_FORMAT"}

// Parameter keys.
const (
	KeyMaxScaledDim    = "max_scaled_dim"
	KeyBackgroundColor = "background_color"
	KeySVSSlideLevel   = "svs_slide_level"
	KeyGaussLevel      = "gauss_lvl"
	KeyMethods         = "methods"
	KeyOutputFormat    = "output_format"
	KeyDisplayImage    = "display_image"
	KeyContinueOnError = "continue_on_error"
)

// Params is the resolved parameter set. It is passed by value and never
// modified after Load.
type Params struct {
	// MaxScaledDim is the side of the square canvas produced by rescale.
	MaxScaledDim int `mapstructure:"max_scaled_dim"`

	// Background fills the canvas area rescale does not cover.
	Background imaging.BackgroundColor `mapstructure:"background_color"`

	// SVSSlideLevel is the pyramid level read from slides.
	SVSSlideLevel int `mapstructure:"svs_slide_level"`

	// GaussLevel is the Gaussian kernel size and sigma.
	GaussLevel int `mapstructure:"gauss_lvl"`

	// Methods is the comma-separated transform chain.
	Methods string `mapstructure:"methods"`

	// OutputFormat is the codec name; empty means raw dumps.
	OutputFormat string `mapstructure:"output_format"`

	// DisplayImage previews each result after its chain completes.
	DisplayImage bool `mapstructure:"display_image"`

	// ContinueOnError keeps processing the batch after a file fails.
	ContinueOnError bool `mapstructure:"continue_on_error"`
}

// Default returns the built-in parameters.
func Default() Params {
	return Params{
		MaxScaledDim:  512,
		Background:    imaging.UnpackBackgroundColor(0x00FFFFFF),
		SVSSlideLevel: 0,
		GaussLevel:    5,
	}
}

// Validate checks parameter ranges.
func (p Params) Validate() error {
	if p.MaxScaledDim <= 0 {
		return fmt.Errorf("%s must be positive, got %d", KeyMaxScaledDim, p.MaxScaledDim)
	}
	if p.SVSSlideLevel < 0 {
		return fmt.Errorf("%s must not be negative, got %d", KeySVSSlideLevel, p.SVSSlideLevel)
	}
	if p.GaussLevel <= 0 || p.GaussLevel%2 == 0 {
		return fmt.Errorf("%s must be a positive odd integer, got %d", KeyGaussLevel, p.GaussLevel)
	}
	return nil
}

// Fields returns the parameters as log fields.
func (p Params) Fields() logrus.Fields {
	return logrus.Fields{
		KeyMaxScaledDim:    p.MaxScaledDim,
		KeyBackgroundColor: p.Background.String(),
		KeySVSSlideLevel:   p.SVSSlideLevel,
		KeyGaussLevel:      p.GaussLevel,
		KeyMethods:         p.Methods,
		KeyOutputFormat:    p.OutputFormat,
		KeyDisplayImage:    p.DisplayImage,
		KeyContinueOnError: p.ContinueOnError,
	}
}

// FlagBindings maps parameter keys to the command-line flags that override
// them.
var FlagBindings = map[string]string{
	KeyOutputFormat:    "ofmt",
	KeyContinueOnError: "keep-going",
}

// Load resolves parameters from path (optional), the environment and flags
// (optional). Every failure wraps ErrParameterLoad.
func Load(path string, flags *pflag.FlagSet) (Params, error) {
	v := newViper()

	if path != "" {
		if err := readFile(v, path); err != nil {
			return Params{}, fmt.Errorf("%w: %s: %w", ErrParameterLoad, path, err)
		}
	}

	if flags != nil {
		for key, name := range FlagBindings {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return Params{}, fmt.Errorf("%w: %w", ErrParameterLoad, err)
				}
			}
		}
	}

	var p Params
	hook := mapstructure.DecodeHookFuncType(backgroundColorHook)
	if err := v.Unmarshal(&p, viper.DecodeHook(hook)); err != nil {
		return Params{}, fmt.Errorf("%w: %w", ErrParameterLoad, err)
	}
	if err := p.Validate(); err != nil {
		return Params{}, fmt.Errorf("%w: %w", ErrParameterLoad, err)
	}
	return p, nil
}

func newViper() *viper.Viper {
	v := viper.New()
	d := Default()
	v.SetDefault(KeyMaxScaledDim, d.MaxScaledDim)
	v.SetDefault(KeyBackgroundColor, fmt.Sprintf("0x%08X", d.Background.Packed()))
	v.SetDefault(KeySVSSlideLevel, d.SVSSlideLevel)
	v.SetDefault(KeyGaussLevel, d.GaussLevel)
	v.SetDefault(KeyMethods, d.Methods)
	v.SetDefault(KeyOutputFormat, d.OutputFormat)
	v.SetDefault(KeyDisplayImage, d.DisplayImage)
	v.SetDefault(KeyContinueOnError, d.ContinueOnError)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return v
}

func readFile(v *viper.Viper, path string) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml", ".json", ".toml":
		v.SetConfigFile(path)
		return v.ReadInConfig()
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	doc, err := ParseParameterFile(f)
	if err != nil {
		return err
	}
	return v.MergeConfigMap(doc.Merge(Sections...))
}

// backgroundColorHook decodes hex strings and integers into
// imaging.BackgroundColor.
func backgroundColorHook(from, to reflect.Type, data any) (any, error) {
	if to != reflect.TypeOf(imaging.BackgroundColor{}) {
		return data, nil
	}
	switch v := data.(type) {
	case string:
		return imaging.ParseBackgroundColor(v)
	case int:
		return imaging.UnpackBackgroundColor(uint32(v)), nil
	case int64:
		return imaging.UnpackBackgroundColor(uint32(v)), nil
	case uint64:
		return imaging.UnpackBackgroundColor(uint32(v)), nil
	case float64:
		return imaging.UnpackBackgroundColor(uint32(v)), nil
	}
	return data, nil
}
