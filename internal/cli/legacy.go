package cli

import "strings"

// legacyLongFlags are the long options historically spelled with one dash.
var legacyLongFlags = map[string]bool{
	"parameters": true,
	"pfile":      true,
	"odir":       true,
	"output":     true,
	"rdir":       true,
	"replace":    true,
	"ofmt":       true,
	"format":     true,
	"help":       true,
	"version":    true,
	"keep-going": true,
	"log-level":  true,
}

// RewriteLegacyArgs turns single-dash long options such as -odir or
// -pfile=x into their double-dash form. Shorthand flags and everything
// after "--" are left alone.
func RewriteLegacyArgs(args []string) []string {
	out := make([]string, len(args))
	for i, arg := range args {
		if arg == "--" {
			copy(out[i:], args[i:])
			break
		}
		out[i] = arg
		if len(arg) < 3 || arg[0] != '-' || arg[1] == '-' {
			continue
		}
		name, _, _ := strings.Cut(arg[1:], "=")
		if legacyLongFlags[name] {
			out[i] = "-" + arg
		}
	}
	return out
}
