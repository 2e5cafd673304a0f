// Package surface renders estimations for different output targets:
// terminal, JSON, Markdown and HTML.
package surface

import (
	"fmt"
	"io"
	"sort"

	"github.com/storysize/storysize/pkg/estimation"
)

// Renderer produces formatted output from an Estimation.
type Renderer interface {
	// Render writes the formatted estimation to the writer.
	Render(w io.Writer, est *estimation.Estimation) error
}

// Format names accepted by ForFormat.
const (
	FormatTerminal = "terminal"
	FormatJSON     = "json"
	FormatMarkdown = "markdown"
	FormatHTML     = "html"
)

var renderers = map[string]func() Renderer{
	FormatTerminal: func() Renderer { return &TerminalRenderer{} },
	FormatJSON:     func() Renderer { return &JSONRenderer{} },
	FormatMarkdown: func() Renderer { return &MarkdownRenderer{} },
	"md":           func() Renderer { return &MarkdownRenderer{} },
	FormatHTML:     func() Renderer { return &HTMLRenderer{} },
}

// ForFormat returns the renderer for a format name.
func ForFormat(name string) (Renderer, error) {
	if mk, ok := renderers[name]; ok {
		return mk(), nil
	}
	return nil, fmt.Errorf("unknown output format %q (valid: %v)", name, Formats())
}

// Formats lists the accepted format names.
func Formats() []string {
	out := make([]string, 0, len(renderers))
	for k := range renderers {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Title is the one-line headline shared by the text renderers.
func Title(est *estimation.Estimation) string {
	return fmt.Sprintf("storysize: %d story points (confidence %.0f%%)", est.StoryPoints, est.Confidence*100)
}
