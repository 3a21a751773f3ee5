package orchestrator

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"
	"github.com/sandevgo/vexd/internal/core"
	"github.com/sandevgo/vexd/internal/persona"
)

const (
	fallbackBasePrompt = "You are VEX, a modular AI persona."

	recallSnippetsPerDomain = 3
	recallSnippetMaxChars   = 300
)

// Synthesizer merges the base instruction template, user profile, recall
// snippets, and persona text into the final system message for one turn.
type Synthesizer struct {
	basePromptPath string
	personas       *persona.Store

	encOnce sync.Once
	enc     *tiktoken.Tiktoken
}

func NewSynthesizer(basePromptPath string, personas *persona.Store) *Synthesizer {
	return &Synthesizer{
		basePromptPath: basePromptPath,
		personas:       personas,
	}
}

// BasePrompt builds the base-template + profile + recalls block.
func (s *Synthesizer) BasePrompt(recalls map[string][]core.RecallHit, domains []string, meta *core.TurnMeta) string {
	base := fallbackBasePrompt
	if data, err := os.ReadFile(s.basePromptPath); err == nil && strings.TrimSpace(string(data)) != "" {
		base = strings.TrimSpace(string(data))
	}

	lines := []string{base}

	if meta != nil && strings.TrimSpace(meta.UserProfile) != "" {
		lines = append(lines, "", "## User Profile:", strings.TrimSpace(meta.UserProfile))
	}

	lines = append(lines, "", "## Context Recalls:")
	for _, d := range domains {
		hits := recalls[d]
		if len(hits) == 0 {
			continue
		}
		lines = append(lines, fmt.Sprintf("- [%s]", d))
		for i, h := range hits {
			if i >= recallSnippetsPerDomain {
				break
			}
			text := h.Text
			if len(text) > recallSnippetMaxChars {
				text = text[:recallSnippetMaxChars]
			}
			lines = append(lines, "  • "+text)
		}
	}
	lines = append(lines, "")

	return strings.Join(lines, "\n")
}

// SystemText applies the override/persona/addendum policy and returns the
// final system message text. Empty means no system message is added.
func (s *Synthesizer) SystemText(basePrompt string, meta *core.TurnMeta) string {
	var ui *core.UIOptions
	if meta != nil {
		ui = meta.UI
	}

	// Override is absolute: recalls, profile, and persona are discarded.
	if ui != nil && ui.OverrideSystem && ui.SystemPrompt != "" {
		return ui.SystemPrompt
	}

	addendum := ""
	if ui != nil {
		addendum = strings.TrimSpace(ui.SystemPrompt)
	}

	if !ui.PersonalityEnabled() {
		return addendum
	}

	layered := basePrompt
	if ui != nil && ui.PersonaID != "" {
		if card, ok := s.personas.Get(ui.PersonaID); ok {
			if text := persona.Text(card); text != "" {
				switch strings.ToLower(ui.PersonaLayer) {
				case core.LayerReplace:
					layered = text
				case core.LayerAppend:
					layered = strings.TrimSpace(basePrompt + "\n\n" + text)
				default: // prepend
					layered = strings.TrimSpace(text + "\n\n" + basePrompt)
				}
			}
		}
	}

	if addendum != "" {
		return strings.TrimSpace(addendum + "\n\n" + layered)
	}
	return layered
}

// FinalMessages prepends the synthesized system message to the
// caller-supplied history when a non-empty text was produced.
func (s *Synthesizer) FinalMessages(messages []core.Message, systemText string) []core.Message {
	if systemText == "" {
		return messages
	}
	out := make([]core.Message, 0, len(messages)+1)
	out = append(out, core.Message{Role: core.RoleSystem, Content: systemText})
	return append(out, messages...)
}

// CountTokens reports the token length of the synthesized prompt for the
// param snapshot. Returns 0 when the encoding is unavailable.
func (s *Synthesizer) CountTokens(text string) int {
	s.encOnce.Do(func() {
		enc, err := tiktoken.GetEncoding("cl100k_base")
		if err == nil {
			s.enc = enc
		}
	})
	if s.enc == nil || text == "" {
		return 0
	}
	return len(s.enc.Encode(text, nil, nil))
}
