package render

import (
	"fmt"
	"strings"

	"github.com/user/workspace-audit/pkg/engine"
)

// Renderer turns a report into bytes for one output format.
type Renderer interface {
	Render(r *engine.Report) ([]byte, error)
}

// Formats lists the supported output formats.
var Formats = []string{"json", "text"}

// Get returns the renderer for format.
func Get(format string, noColor bool) (Renderer, error) {
	switch strings.ToLower(format) {
	case "", "json":
		return &JSONRenderer{}, nil
	case "text", "table":
		return &TextRenderer{NoColor: noColor}, nil
	default:
		return nil, fmt.Errorf("unknown output format %q (want one of %s)", format, strings.Join(Formats, ", "))
	}
}

// JSONRenderer writes the report document as indented JSON.
type JSONRenderer struct{}

func (j *JSONRenderer) Render(r *engine.Report) ([]byte, error) {
	return engine.MarshalIndent(r)
}
