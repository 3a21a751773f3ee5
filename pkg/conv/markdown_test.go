package conv

import (
	"strings"
	"testing"
)

func TestMarkdownToHTML(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		contains string
		excludes string
	}{
		{
			name:     "heading",
			input:    "# Session: demo",
			contains: "<h1",
		},
		{
			name:     "bold",
			input:    "some **bold** text",
			contains: "<strong>bold</strong>",
		},
		{
			name:     "code block",
			input:    "```\nfmt.Println(\"hi\")\n```",
			contains: "<code",
		},
		{
			name:     "script stripped",
			input:    "hello <script>alert(1)</script> world",
			excludes: "<script>",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MarkdownToHTML([]byte(tt.input))
			if tt.contains != "" && !strings.Contains(got, tt.contains) {
				t.Errorf("expected output to contain %q, got %q", tt.contains, got)
			}
			if tt.excludes != "" && strings.Contains(got, tt.excludes) {
				t.Errorf("expected output to exclude %q, got %q", tt.excludes, got)
			}
		})
	}
}
