package cmd

import (
	"regexp"
	"strings"

	markdown "github.com/MichaelMure/go-term-markdown"
	gomarkdown "github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/parser"
)

const defaultRenderWidth = 80

var mdLinkRegex = regexp.MustCompile(`\[([^\]]*)\]\(([^)]+)\)`)

// renderMarkdown renders a finished reply for the terminal. Links are
// flattened to their URL so the terminal emulator can pick them up.
func renderMarkdown(content string, width int) string {
	if width <= 0 {
		width = defaultRenderWidth
	}
	content = mdLinkRegex.ReplaceAllString(content, "$2")

	ext := markdown.Extensions() &^ parser.Autolink
	p := parser.NewWithExtensions(ext)
	r := markdown.NewRenderer(width, 0)
	doc := p.Parse([]byte(content))
	return strings.TrimRight(string(gomarkdown.Render(doc, r)), "\n") + "\n"
}
