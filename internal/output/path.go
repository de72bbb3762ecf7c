package output

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// ErrDirectoryCreation reports an output directory that could not be made.
var ErrDirectoryCreation = errors.New("failed to create output directory")

// DefaultDir is the output directory used when none is configured.
const DefaultDir = "output"

// MakePath returns the output file path for input.
//
// The file keeps the input's base name with ext in place of its extension
// and is placed in odir. When rdir is set and contains the input's directory,
// the part of the input directory below rdir is kept under odir, so a tree of
// inputs maps onto a parallel tree of outputs. Otherwise the file goes
// directly into odir.
func MakePath(input, ext, odir, rdir string) string {
	if odir == "" {
		odir = DefaultDir
	}
	base := filepath.Base(input)
	name := strings.TrimSuffix(base, filepath.Ext(base)) + "." + ext

	dir := odir
	if rdir != "" {
		rel, err := filepath.Rel(filepath.Clean(rdir), filepath.Dir(filepath.Clean(input)))
		if err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			dir = filepath.Join(odir, rel)
		}
	}
	return filepath.Join(dir, name)
}

// EnsureDir creates dir and its parents. A directory that already exists,
// including one created concurrently, is not an error. Any other failure
// wraps ErrDirectoryCreation.
func EnsureDir(dir string) error {
	err := os.MkdirAll(dir, 0755)
	if err == nil || errors.Is(err, fs.ErrExist) {
		if info, statErr := os.Stat(dir); statErr == nil && info.IsDir() {
			return nil
		}
	}
	if err == nil {
		err = fmt.Errorf("%s is not a directory", dir)
	}
	return fmt.Errorf("%w %s: %w", ErrDirectoryCreation, dir, err)
}
