package config

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strings"
)

// Document is a parsed NEDC parameter file.
//
// The format is line based:
//
//	version = param_v1.0.0
//	methods = grayscale,rescale
//
//	RESCALE_IMAGE {
//	  max_scaled_dim = 512
//	  background_color = 0x00FFFFFF
//	}
//
// Lines starting with '#' are comments. A block may also open with its name
// alone on one line and '{' on the next. Blocks do not nest.
type Document struct {
	// Version is the top-level "version" value, if any.
	Version string

	// Top holds the key/value pairs outside any block.
	Top map[string]string

	// Sections holds each block's key/value pairs by block name.
	Sections map[string]map[string]string
}

var sectionName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ParseParameterFile parses an NEDC parameter file.
func ParseParameterFile(r io.Reader) (*Document, error) {
	doc := &Document{
		Top:      make(map[string]string),
		Sections: make(map[string]map[string]string),
	}

	var (
		current map[string]string
		pending string
		lineNo  int
	)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if pending != "" {
			if line != "{" {
				return nil, fmt.Errorf("line %d: expected '{' after %s", lineNo, pending)
			}
			current = doc.section(pending)
			pending = ""
			continue
		}

		switch {
		case line == "}":
			if current == nil {
				return nil, fmt.Errorf("line %d: unmatched '}'", lineNo)
			}
			current = nil

		case strings.HasSuffix(line, "{"):
			name := strings.TrimSpace(strings.TrimSuffix(line, "{"))
			if !sectionName.MatchString(name) {
				return nil, fmt.Errorf("line %d: invalid block name %q", lineNo, name)
			}
			if current != nil {
				return nil, fmt.Errorf("line %d: nested block %s", lineNo, name)
			}
			current = doc.section(name)

		case strings.Contains(line, "="):
			key, value, _ := strings.Cut(line, "=")
			key = strings.TrimSpace(key)
			if key == "" {
				return nil, fmt.Errorf("line %d: missing key", lineNo)
			}
			value = unquote(strings.TrimSpace(value))
			if current != nil {
				current[key] = value
			} else {
				doc.Top[key] = value
				if key == "version" {
					doc.Version = value
				}
			}

		case sectionName.MatchString(line) && current == nil:
			pending = line

		default:
			return nil, fmt.Errorf("line %d: expected key = value, got %q", lineNo, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if current != nil || pending != "" {
		return nil, fmt.Errorf("unterminated block at end of file")
	}
	return doc, nil
}

func (d *Document) section(name string) map[string]string {
	s, ok := d.Sections[name]
	if !ok {
		s = make(map[string]string)
		d.Sections[name] = s
	}
	return s
}

// Merge flattens the top level and the named blocks into one map. Blocks
// are applied in order after the top level, so later blocks win. Missing
// blocks are skipped.
func (d *Document) Merge(sections ...string) map[string]any {
	out := make(map[string]any, len(d.Top))
	for k, v := range d.Top {
		out[k] = v
	}
	for _, name := range sections {
		for k, v := range d.Sections[name] {
			out[k] = v
		}
	}
	return out
}

func unquote(s string) string {
	if len(s) >= 2 && (s[0] == '"' && s[len(s)-1] == '"' || s[0] == '\'' && s[len(s)-1] == '\'') {
		return s[1 : len(s)-1]
	}
	return s
}
