package orchestrator

import (
	"context"

	"github.com/sandevgo/vexd/internal/core"
	"github.com/sandevgo/vexd/pkg/log"
)

// RecallEngine retrieves memory snippets per domain. Both collaborators are
// optional; retrieval is strictly best-effort and never blocks the
// generation path on memory infrastructure being absent or down.
type RecallEngine struct {
	embedder core.Embedder
	store    core.VectorStore
}

func NewRecallEngine(embedder core.Embedder, store core.VectorStore) *RecallEngine {
	return &RecallEngine{
		embedder: embedder,
		store:    store,
	}
}

func (r *RecallEngine) Recall(ctx context.Context, domains []string, query string, k int) map[string][]core.RecallHit {
	out := make(map[string][]core.RecallHit, len(domains))
	for _, d := range domains {
		out[d] = nil
	}

	if query == "" || r.embedder == nil || r.store == nil {
		return out
	}

	logger := log.FromCtx(ctx)

	qvec, err := r.embedder.EmbedOne(ctx, query)
	if err != nil {
		logger.Warn().Err(err).Msg("failed to embed recall query")
		return out
	}

	for _, d := range domains {
		hits, err := r.store.Query(ctx, d, qvec, k)
		if err != nil {
			logger.Warn().Err(err).Str("domain", d).Msg("recall query failed")
			continue
		}
		out[d] = hits
	}
	return out
}
