// Package batch turns command-line arguments into the ordered list of image
// files to process.
//
// An argument is either an image or a list file. A list file holds one path
// per line; its entries are taken as images and are not expanded further.
package batch

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
)

// ErrNoFiles reports that there is nothing to process.
var ErrNoFiles = errors.New("no input files")

// Expander classifies arguments and expands list files.
type Expander struct {
	isImage func(path string) bool
	logger  logrus.FieldLogger
}

// NewExpander returns an expander that uses isImage to tell images from list
// files. A nil logger discards log output.
func NewExpander(isImage func(path string) bool, logger logrus.FieldLogger) *Expander {
	if logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		logger = l
	}
	return &Expander{isImage: isImage, logger: logger}
}

// Expand returns the image paths named by args, in argument order. Images are
// passed through; list files are replaced by their entries in file order.
//
// An empty args slice, or lists that name no files, returns ErrNoFiles. A
// list file that cannot be read is an error.
func (e *Expander) Expand(args []string) ([]string, error) {
	if len(args) == 0 {
		return nil, ErrNoFiles
	}

	var files []string
	for _, arg := range args {
		path := ExpandPath(arg)
		if e.isImage(path) {
			files = append(files, path)
			continue
		}

		entries, err := ReadList(path)
		if err != nil {
			return nil, err
		}
		e.logger.WithFields(logrus.Fields{
			"list":    path,
			"entries": len(entries),
		}).Debug("expanded list file")
		files = append(files, entries...)
	}

	if len(files) == 0 {
		return nil, fmt.Errorf("%w: list files contained no entries", ErrNoFiles)
	}
	return files, nil
}

// ReadList reads a list file. Lines are trimmed; blank lines and lines
// starting with '#' are skipped. Each entry has "~" and environment
// variables expanded.
func ReadList(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open list file: %w", err)
	}
	defer f.Close()

	var entries []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		entries = append(entries, ExpandPath(line))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read list file %s: %w", path, err)
	}
	return entries, nil
}

// ExpandPath replaces a leading "~" with the home directory and expands
// $VAR and ${VAR} references.
func ExpandPath(p string) string {
	p = os.ExpandEnv(p)
	if p == "~" || strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			p = filepath.Join(home, p[1:])
		}
	}
	return p
}
