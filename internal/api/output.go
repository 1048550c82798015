package api

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Format selects how command results are rendered.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// current holds the format chosen by the root command's --output flag.
var current = FormatYAML

// SetOutputFormat selects the render format for subsequent Output calls.
// Unrecognized values fall back to YAML.
func SetOutputFormat(name string) {
	if Format(name) == FormatJSON {
		current = FormatJSON
	} else {
		current = FormatYAML
	}
}

// Output renders v to stdout in the selected format. Commands route their
// results through here so the --output flag applies uniformly.
func Output(v any) error {
	return Render(os.Stdout, current, v)
}

// Render writes v to w in the given format.
func Render(w io.Writer, format Format, v any) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(v)
	default:
		return fmt.Errorf("unsupported output format %q", format)
	}
}
