package batch

import (
	"errors"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/ironsheep/image-preprocess/internal/imaging"
)

func writePNG(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create %s: %v", name, err)
	}
	defer f.Close()
	if err := png.Encode(f, image.NewGray(image.Rect(0, 0, 4, 4))); err != nil {
		t.Fatalf("failed to encode %s: %v", name, err)
	}
	return path
}

func writeList(t *testing.T, dir, name string, lines ...string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

func TestExpand(t *testing.T) {
	dir := t.TempDir()
	a := writePNG(t, dir, "a.png")
	b := writePNG(t, dir, "b.png")
	c := writePNG(t, dir, "c.png")
	list := writeList(t, dir, "files.list", b, "", "# skipped", "  "+c+"  ")

	loader := imaging.NewLoader(0, nil)
	got, err := NewExpander(loader.IsImage, nil).Expand([]string{a, list, a})
	if err != nil {
		t.Fatalf("Expand failed: %v", err)
	}

	want := []string{a, b, c, a}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Expand = %v, want %v", got, want)
	}
}

// A list naming one valid and one missing image expands to both, in order.
// Loading the missing one fails with an unreadable-format error.
func TestExpand_ListWithMissingEntry(t *testing.T) {
	dir := t.TempDir()
	valid := writePNG(t, dir, "valid.png")
	missing := filepath.Join(dir, "missing.png")
	list := writeList(t, dir, "files.list", valid, missing)

	loader := imaging.NewLoader(0, nil)
	got, err := NewExpander(loader.IsImage, nil).Expand([]string{list})
	if err != nil {
		t.Fatalf("Expand failed: %v", err)
	}
	if !reflect.DeepEqual(got, []string{valid, missing}) {
		t.Fatalf("Expand = %v, want [%s %s]", got, valid, missing)
	}

	if _, _, err := loader.Load(got[0]); err != nil {
		t.Errorf("loading the valid entry failed: %v", err)
	}
	if _, _, err := loader.Load(got[1]); !errors.Is(err, imaging.ErrUnreadableFormat) {
		t.Errorf("expected ErrUnreadableFormat for the missing entry, got %v", err)
	}
}

func TestExpand_ListsAreNotRecursive(t *testing.T) {
	dir := t.TempDir()
	inner := writeList(t, dir, "inner.list", "whatever.png")
	outer := writeList(t, dir, "outer.list", inner)

	isImage := func(string) bool { return false }
	got, err := NewExpander(isImage, nil).Expand([]string{outer})
	if err != nil {
		t.Fatalf("Expand failed: %v", err)
	}
	if !reflect.DeepEqual(got, []string{inner}) {
		t.Errorf("Expand = %v, want [%s]", got, inner)
	}
}

func TestExpand_Errors(t *testing.T) {
	dir := t.TempDir()
	empty := writeList(t, dir, "empty.list", "# nothing here")
	isImage := func(string) bool { return false }

	tests := []struct {
		name    string
		args    []string
		wantErr error
	}{
		{"no args", nil, ErrNoFiles},
		{"empty list", []string{empty}, ErrNoFiles},
		{"missing list", []string{filepath.Join(dir, "nope.list")}, os.ErrNotExist},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewExpander(isImage, nil).Expand(tt.args)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	t.Setenv("PREPROCESS_TEST_DIR", "/data/slides")

	tests := []struct {
		in   string
		want string
	}{
		{"/abs/a.png", "/abs/a.png"},
		{"rel/a.png", "rel/a.png"},
		{"$PREPROCESS_TEST_DIR/a.svs", "/data/slides/a.svs"},
		{"${PREPROCESS_TEST_DIR}/b.svs", "/data/slides/b.svs"},
		{"~/x.png", filepath.Join(home, "x.png")},
		{"~", home},
		{"a~b.png", "a~b.png"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := ExpandPath(tt.in); got != tt.want {
				t.Errorf("ExpandPath(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
