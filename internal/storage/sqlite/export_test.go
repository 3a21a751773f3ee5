package sqlite

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sandevgo/vexd/internal/core"
)

func sampleTranscript() *core.SessionTranscript {
	ts := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

	return &core.SessionTranscript{
		Session: core.Session{ID: "s1", Title: "docker chat"},
		Messages: []core.StoredMessage{
			{Role: core.RoleUser, Content: "how do I expose a port?", CreatedAt: ts},
			{Role: core.RoleAssistant, Content: "use `-p 8080:80`", CreatedAt: ts},
		},
		Params: []core.ParamSnapshot{
			{Data: map[string]any{
				"ui":  map[string]any{"persona_id": "noir", "persona_layer": "prepend"},
				"gen": map[string]any{"temperature": 0.7, "max_tokens": float64(512)},
			}},
		},
	}
}

func TestExportMarkdown(t *testing.T) {
	out := ExportMarkdown(sampleTranscript())

	assert.Contains(t, out, "# Session: docker chat")
	assert.Contains(t, out, "## User  2026-03-14 09:30:00")
	assert.Contains(t, out, "how do I expose a port?")
	assert.Contains(t, out, "## Assistant")
	assert.Contains(t, out, "- Persona: noir")
	assert.Contains(t, out, "- temperature: 0.7")
	assert.Contains(t, out, "- max_tokens: 512")
}

func TestExportMarkdownNoParams(t *testing.T) {
	tr := sampleTranscript()
	tr.Params = nil

	out := ExportMarkdown(tr)
	assert.NotContains(t, out, "## Params")
}

func TestExportMarkdownNil(t *testing.T) {
	assert.Equal(t, "", ExportMarkdown(nil))
}

func TestExportHTML(t *testing.T) {
	out := ExportHTML(sampleTranscript())

	assert.Contains(t, out, "<h1")
	assert.Contains(t, out, "<code>-p 8080:80</code>")
	assert.NotContains(t, out, "## User")
}
