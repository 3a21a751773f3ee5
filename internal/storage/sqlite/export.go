package sqlite

import (
	"fmt"
	"strings"

	"github.com/sandevgo/vexd/internal/core"
	"github.com/sandevgo/vexd/pkg/conv"
)

// ExportMarkdown renders a transcript with a summary of the last-used
// persona and generation parameters.
func ExportMarkdown(t *core.SessionTranscript) string {
	if t == nil {
		return ""
	}

	title := t.Title
	if title == "" {
		title = t.ID
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# Session: %s\n\n", title)

	writeParamsSummary(&b, t.Params)

	for _, m := range t.Messages {
		fmt.Fprintf(&b, "## %s  %s\n\n%s\n\n",
			titleCase(m.Role),
			m.CreatedAt.Format("2006-01-02 15:04:05"),
			m.Content,
		)
	}

	return b.String()
}

// ExportHTML renders the markdown transcript as sanitized HTML.
func ExportHTML(t *core.SessionTranscript) string {
	return conv.MarkdownToHTML([]byte(ExportMarkdown(t)))
}

func writeParamsSummary(b *strings.Builder, params []core.ParamSnapshot) {
	var lastUI, lastGen map[string]any
	for i := len(params) - 1; i >= 0; i-- {
		d := params[i].Data
		if d == nil {
			continue
		}
		if ui, ok := d["ui"].(map[string]any); ok && lastUI == nil {
			lastUI = ui
		}
		if gen, ok := d["gen"].(map[string]any); ok && lastGen == nil {
			lastGen = gen
		}
		if lastUI != nil && lastGen != nil {
			break
		}
	}

	if lastUI == nil && lastGen == nil {
		return
	}

	b.WriteString("## Params\n")
	if lastUI != nil {
		pid, _ := lastUI["persona_id"].(string)
		if pid == "" {
			pid = "(none)"
		}
		layer, _ := lastUI["persona_layer"].(string)
		if layer == "" {
			layer = "-"
		}
		fmt.Fprintf(b, "- Persona: %s\n", pid)
		fmt.Fprintf(b, "- Persona Layer: %s\n", layer)
	}
	if lastGen != nil {
		for _, k := range []string{"temperature", "top_p", "top_k", "max_tokens"} {
			if v, ok := lastGen[k]; ok {
				fmt.Fprintf(b, "- %s: %v\n", k, v)
			}
		}
		if stop, ok := lastGen["stop"]; ok {
			fmt.Fprintf(b, "- stop: %v\n", stop)
		}
	}
	b.WriteString("\n")
}

func titleCase(role string) string {
	if role == "" {
		return role
	}
	return strings.ToUpper(role[:1]) + role[1:]
}
