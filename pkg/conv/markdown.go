package conv

import (
	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
	"github.com/microcosm-cc/bluemonday"
)

var (
	extensions = parser.CommonExtensions | parser.NoEmptyLineBeforeBlock
	htmlFlags  = html.CommonFlags | html.HrefTargetBlank
	policy     = bluemonday.UGCPolicy()
)

// MarkdownToHTML renders a markdown transcript to sanitized HTML suitable
// for embedding in the presentation layer.
func MarkdownToHTML(md []byte) string {
	p := parser.NewWithExtensions(extensions)
	renderer := html.NewRenderer(html.RendererOptions{Flags: htmlFlags})
	unsafe := markdown.Render(p.Parse(md), renderer)

	return string(policy.SanitizeBytes(unsafe))
}
