package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/pflag"

	"github.com/ironsheep/image-preprocess/internal/imaging"
)

const sampleParams = `# preprocessing parameters
version = param_v1.0.0
methods = grayscale, rescale

RESCALE_IMAGE {
  max_scaled_dim = 256
  background_color = 0xFF102030
}

SVS_SLIDE_LEVEL
{
  svs_slide_level = 1
}

GAUSSIAN_VARS {
  gauss_lvl = "7"
}

OUTPUT_FORMAT {
  output_format = png
  display_image = True
}

UNUSED_BLOCK {
  max_scaled_dim = 9
}
`

func TestParseParameterFile(t *testing.T) {
	doc, err := ParseParameterFile(strings.NewReader(sampleParams))
	if err != nil {
		t.Fatalf("ParseParameterFile failed: %v", err)
	}
	if doc.Version != "param_v1.0.0" {
		t.Errorf("expected version param_v1.0.0, got %q", doc.Version)
	}
	if doc.Top["methods"] != "grayscale, rescale" {
		t.Errorf("unexpected methods %q", doc.Top["methods"])
	}
	if got := doc.Sections["SVS_SLIDE_LEVEL"]["svs_slide_level"]; got != "1" {
		t.Errorf("brace on next line: expected 1, got %q", got)
	}
	if got := doc.Sections["GAUSSIAN_VARS"]["gauss_lvl"]; got != "7" {
		t.Errorf("quotes should be stripped, got %q", got)
	}
	if len(doc.Sections) != 5 {
		t.Errorf("expected 5 blocks, got %d", len(doc.Sections))
	}
}

func TestParseParameterFile_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"unterminated", "A {\nk = v\n"},
		{"unmatched close", "k = v\n}\n"},
		{"nested", "A {\nB {\n}\n}\n"},
		{"missing brace", "A\nk = v\n"},
		{"dangling name", "A\n"},
		{"bare word in block", "A {\nnonsense\n}\n"},
		{"missing key", "= v\n"},
		{"bad block name", "1A {\n}\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseParameterFile(strings.NewReader(tt.input)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestMerge(t *testing.T) {
	doc, err := ParseParameterFile(strings.NewReader(sampleParams))
	if err != nil {
		t.Fatalf("ParseParameterFile failed: %v", err)
	}
	m := doc.Merge(Sections...)
	if m["max_scaled_dim"] != "256" {
		t.Errorf("expected max_scaled_dim from RESCALE_IMAGE, got %v", m["max_scaled_dim"])
	}
	if m["methods"] != "grayscale, rescale" {
		t.Errorf("top-level keys should survive, got %v", m["methods"])
	}

	m = doc.Merge("UNUSED_BLOCK", "RESCALE_IMAGE")
	if m["max_scaled_dim"] != "256" {
		t.Errorf("later block should win, got %v", m["max_scaled_dim"])
	}
	m = doc.Merge("MISSING")
	if _, ok := m["max_scaled_dim"]; ok {
		t.Error("missing block should contribute nothing")
	}
}

func writeParams(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	p, err := Load("", nil)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if p != Default() {
		t.Errorf("expected defaults %+v, got %+v", Default(), p)
	}
	if p.Background != (imaging.BackgroundColor{R: 255, G: 255, B: 255, A: 0}) {
		t.Errorf("unexpected default background %+v", p.Background)
	}
}

func TestLoad_NEDC(t *testing.T) {
	p, err := Load(writeParams(t, "params.txt", sampleParams), nil)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	want := Params{
		MaxScaledDim:  256,
		Background:    imaging.BackgroundColor{R: 0x10, G: 0x20, B: 0x30, A: 0xFF},
		SVSSlideLevel: 1,
		GaussLevel:    7,
		Methods:       "grayscale, rescale",
		OutputFormat:  "png",
		DisplayImage:  true,
	}
	if p != want {
		t.Errorf("Load = %+v, want %+v", p, want)
	}
}

func TestLoad_YAML(t *testing.T) {
	path := writeParams(t, "params.yaml", "max_scaled_dim: 64\nbackground_color: 0x000000FF\ngauss_lvl: 3\nmethods: gaussian\n")
	p, err := Load(path, nil)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if p.MaxScaledDim != 64 || p.GaussLevel != 3 || p.Methods != "gaussian" {
		t.Errorf("unexpected params %+v", p)
	}
	if p.Background != (imaging.BackgroundColor{B: 255}) {
		t.Errorf("unexpected background %+v", p.Background)
	}
}

func TestLoad_EnvAndFlags(t *testing.T) {
	t.Setenv("IMAGE_PREPROCESS_GAUSS_LVL", "9")
	t.Setenv("IMAGE_PREPROCESS_OUTPUT_FORMAT", "bmp")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("ofmt", "", "")
	flags.Bool("keep-going", false, "")
	if err := flags.Parse([]string{"--ofmt", "pgm", "--keep-going"}); err != nil {
		t.Fatalf("flag parse failed: %v", err)
	}

	p, err := Load(writeParams(t, "params.txt", sampleParams), flags)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if p.GaussLevel != 9 {
		t.Errorf("environment should override file, got gauss_lvl %d", p.GaussLevel)
	}
	if p.OutputFormat != "pgm" {
		t.Errorf("flag should override environment, got %q", p.OutputFormat)
	}
	if !p.ContinueOnError {
		t.Error("expected continue_on_error from --keep-going")
	}
}

func TestLoad_UnsetFlagKeepsFile(t *testing.T) {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("ofmt", "", "")

	p, err := Load(writeParams(t, "params.txt", sampleParams), flags)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if p.OutputFormat != "png" {
		t.Errorf("unset flag should not override file, got %q", p.OutputFormat)
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		path func(t *testing.T) string
	}{
		{"missing file", func(t *testing.T) string { return filepath.Join(t.TempDir(), "none.txt") }},
		{"malformed", func(t *testing.T) string { return writeParams(t, "p.txt", "A {\n") }},
		{"even gauss", func(t *testing.T) string { return writeParams(t, "p.txt", "gauss_lvl = 4\n") }},
		{"zero dim", func(t *testing.T) string { return writeParams(t, "p.txt", "max_scaled_dim = 0\n") }},
		{"negative level", func(t *testing.T) string { return writeParams(t, "p.txt", "svs_slide_level = -1\n") }},
		{"bad color", func(t *testing.T) string { return writeParams(t, "p.txt", "background_color = 0xZZ\n") }},
		{"not a number", func(t *testing.T) string { return writeParams(t, "p.txt", "max_scaled_dim = big\n") }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(tt.path(t), nil)
			if !errors.Is(err, ErrParameterLoad) {
				t.Errorf("expected ErrParameterLoad, got %v", err)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Params)
		wantErr bool
	}{
		{"defaults", func(*Params) {}, false},
		{"gauss 1", func(p *Params) { p.GaussLevel = 1 }, false},
		{"gauss even", func(p *Params) { p.GaussLevel = 6 }, true},
		{"gauss negative", func(p *Params) { p.GaussLevel = -3 }, true},
		{"dim negative", func(p *Params) { p.MaxScaledDim = -1 }, true},
		{"level negative", func(p *Params) { p.SVSSlideLevel = -2 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Default()
			tt.mutate(&p)
			if err := p.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestFields(t *testing.T) {
	f := Default().Fields()
	if f[KeyBackgroundColor] != "#ffffff alpha=0" {
		t.Errorf("unexpected background field %v", f[KeyBackgroundColor])
	}
	if f[KeyGaussLevel] != 5 {
		t.Errorf("unexpected gauss field %v", f[KeyGaussLevel])
	}
}
