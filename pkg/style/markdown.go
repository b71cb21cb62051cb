package style

import (
	"github.com/charmbracelet/glamour"
)

// RenderMarkdown renders content for the given format. Text output uses
// glamour's notty style. When rendering fails the raw markdown is returned.
func RenderMarkdown(content string, format Format, width int) string {
	var options []glamour.TermRendererOption
	if format == FormatTerminal {
		options = append(options, glamour.WithAutoStyle())
	} else {
		options = append(options, glamour.WithStandardStyle("notty"))
	}
	if width > 0 {
		options = append(options, glamour.WithWordWrap(width))
	}

	renderer, err := glamour.NewTermRenderer(options...)
	if err != nil {
		return content
	}

	rendered, err := renderer.Render(content)
	if err != nil {
		return content
	}
	return rendered
}
