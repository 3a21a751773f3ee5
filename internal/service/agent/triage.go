package agent

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/sandevgo/vexd/internal/core"
)

// TypeMemoryTriage is the agent type implemented by Triage.
const TypeMemoryTriage = "memory_triage"

const rerankTopK = 5

var slugPattern = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

// Triage decides whether a saved chat message is worth keeping as a
// long-term memory. Qualifying text is written as a markdown artifact
// under the memory root and indexed in the vector store.
type Triage struct {
	embedder   core.Embedder
	store      core.VectorStore
	memoryRoot string
}

func NewTriage(embedder core.Embedder, store core.VectorStore, memoryRoot string) *Triage {
	return &Triage{
		embedder:   embedder,
		store:      store,
		memoryRoot: memoryRoot,
	}
}

func (t *Triage) Run(ctx context.Context, rec Record, payload map[string]any, logf func(format string, args ...any)) error {
	if event, _ := payload["event"].(string); event != core.EventTurnSaved {
		return nil
	}

	role, text := messageFromPayload(payload)

	if role != core.RoleUser && !rec.Params.SaveAssistant {
		return nil
	}

	text = strings.TrimSpace(text)
	if len(text) < rec.Params.MinChars {
		logf("skip (too short): %d chars", len(text))

		return nil
	}

	if t.embedder == nil || t.store == nil {
		logf("skip: memory backend unavailable")

		return nil
	}

	vector, err := t.embedder.EmbedOne(ctx, text)
	if err != nil {
		return fmt.Errorf("embed candidate: %w", err)
	}

	for _, collection := range rec.Params.TargetCollections {
		novelty, err := t.novelty(ctx, collection, vector)
		if err != nil {
			return fmt.Errorf("novelty in %s: %w", collection, err)
		}

		if novelty < rec.Params.MinNovelty {
			logf("skip (novelty %.2f < %.2f) in %s", novelty, rec.Params.MinNovelty, collection)

			continue
		}

		path, err := t.writeArtifact(collection, text)
		if err != nil {
			return fmt.Errorf("write artifact: %w", err)
		}

		meta := map[string]any{
			"role": role,
			"path": path,
		}
		if tags := matchTags(text, rec.Params.TagKeywords); len(tags) > 0 {
			meta["tags"] = strings.Join(tags, ",")
		}

		_, err = t.store.Upsert(ctx, collection, [][]float32{vector}, []string{text}, []map[string]any{meta})
		if err != nil {
			return fmt.Errorf("index memory: %w", err)
		}

		logf("saved to %s: %s (novelty %.2f)", collection, filepath.Base(path), novelty)
	}

	return nil
}

// novelty is one minus the best similarity against the nearest stored
// memories, re-embedded so both sides come from the same model. An empty
// collection scores 1.0.
func (t *Triage) novelty(ctx context.Context, collection string, vector []float32) (float64, error) {
	hits, err := t.store.Query(ctx, collection, vector, rerankTopK)
	if err != nil {
		return 0, err
	}

	if len(hits) == 0 {
		return 1.0, nil
	}

	texts := make([]string, 0, len(hits))
	for _, hit := range hits {
		texts = append(texts, hit.Text)
	}

	vectors, err := t.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return 0, err
	}

	best := 0.0
	for _, other := range vectors {
		if sim := dot(vector, other); sim > best {
			best = sim
		}
	}

	return 1.0 - best, nil
}

func (t *Triage) writeArtifact(collection, text string) (string, error) {
	dir := filepath.Join(t.memoryRoot, collection)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}

	name := fmt.Sprintf("%d_%s.md", time.Now().Unix(), slug(text))
	path := filepath.Join(dir, name)

	if err := os.WriteFile(path, []byte(text+"\n"), 0o644); err != nil {
		return "", err
	}

	return path, nil
}

// slug builds a filename stem from the first few words of the text.
func slug(text string) string {
	words := strings.Fields(text)
	if len(words) > 6 {
		words = words[:6]
	}

	s := slugPattern.ReplaceAllString(strings.Join(words, "_"), "_")
	s = strings.Trim(s, "_")

	if len(s) > 40 {
		s = s[:40]
	}

	if s == "" {
		return "mem"
	}

	return s
}

func matchTags(text string, keywords []string) []string {
	lower := strings.ToLower(text)

	var tags []string
	for _, kw := range keywords {
		if kw != "" && strings.Contains(lower, strings.ToLower(kw)) {
			tags = append(tags, kw)
		}
	}

	return tags
}

func messageFromPayload(payload map[string]any) (role, content string) {
	msg, ok := payload["message"].(map[string]any)
	if !ok {
		return "", ""
	}

	role, _ = msg["role"].(string)
	content, _ = msg["content"].(string)

	return role, content
}

func dot(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}

	var sum float64
	for i := 0; i < n; i++ {
		sum += float64(a[i]) * float64(b[i])
	}

	return sum
}
