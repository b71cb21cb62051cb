package style

import (
	"regexp"

	"github.com/charmbracelet/lipgloss"
)

type markupTag struct {
	pattern *regexp.Regexp
	style   lipgloss.Style
}

// MarkupParser renders inline tags such as [device]/dev/sda[/device]
type MarkupParser struct {
	tags  map[string]markupTag
	plain bool
}

// NewMarkupParser creates a parser with the default tags. A plain parser
// strips the tags without styling.
func NewMarkupParser(plain bool) *MarkupParser {
	p := &MarkupParser{tags: make(map[string]markupTag), plain: plain}
	p.AddStyle("title", TitleStyle)
	p.AddStyle("success", SuccessStyle)
	p.AddStyle("error", ErrorStyle)
	p.AddStyle("warning", WarningStyle)
	p.AddStyle("info", InfoStyle)
	p.AddStyle("code", CodeStyle)
	p.AddStyle("device", DeviceStyle)
	p.AddStyle("muted", MutedStyle)
	p.AddStyle("bold", lipgloss.NewStyle().Bold(true))
	return p
}

// AddStyle registers or replaces a tag
func (p *MarkupParser) AddStyle(tag string, style lipgloss.Style) {
	p.tags[tag] = markupTag{
		pattern: regexp.MustCompile(`\[` + regexp.QuoteMeta(tag) + `\](.*?)\[/` + regexp.QuoteMeta(tag) + `\]`),
		style:   style,
	}
}

// Render replaces known tags until none are left. Unknown tags are kept as
// written.
func (p *MarkupParser) Render(text string) string {
	for {
		before := text
		for _, tag := range p.tags {
			text = tag.pattern.ReplaceAllStringFunc(text, func(match string) string {
				content := tag.pattern.FindStringSubmatch(match)[1]
				if p.plain {
					return content
				}
				return tag.style.Render(content)
			})
		}
		if text == before {
			return text
		}
	}
}
