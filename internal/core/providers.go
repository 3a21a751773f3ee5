package core

import "context"

// StreamDelta is one increment of a streaming completion. A non-nil Err is
// terminal: nothing follows it on the channel.
type StreamDelta struct {
	Content string
	Err     error
}

// ChatProvider is a client of the generation backend. Stream returns a
// channel of text increments that is closed on end-of-stream, terminal
// error, or context cancellation; increments delivered before cancellation
// remain valid. A stream is not restartable.
type ChatProvider interface {
	Stream(ctx context.Context, history []Message, gen *GenParams) (<-chan StreamDelta, error)
	Once(ctx context.Context, history []Message, gen *GenParams) (Message, error)
}

// Embedder produces fixed-length unit-normalized vectors.
type Embedder interface {
	EmbedOne(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

type CollectionInfo struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// VectorStore is the semantic memory collaborator. Querying a collection
// that does not exist yields no hits and no error.
type VectorStore interface {
	Upsert(ctx context.Context, collection string, vectors [][]float32, documents []string, metadatas []map[string]any) ([]string, error)
	Query(ctx context.Context, collection string, vector []float32, k int) ([]RecallHit, error)
	ListCollections(ctx context.Context) ([]CollectionInfo, error)
}

// EventTurnSaved is emitted once per committed user turn.
const EventTurnSaved = "on_chat_turn_saved"

// EventSink receives conversation events for asynchronous agent dispatch.
// Implementations must return without waiting for any agent to finish.
type EventSink interface {
	EmitEvent(ctx context.Context, name string, payload map[string]any)
}
