package rag

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"sort"
	"time"

	"github.com/sandevgo/vexd/internal/config"
	"github.com/sandevgo/vexd/pkg/retry"
)

// Embedder is a client of an OpenAI-compatible /v1/embeddings endpoint.
// Vectors are unit-normalized before being returned, so dot product equals
// cosine similarity.
type Embedder struct {
	client  *http.Client
	baseURL string
	model   string
	retrier *retry.Retrier
}

func NewEmbedder(cfg *config.MemoryConfig) (*Embedder, error) {
	if !cfg.Enabled() {
		return nil, fmt.Errorf("embedding backend not configured")
	}
	return &Embedder{
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		baseURL: cfg.EmbedServerURL,
		model:   cfg.EmbedModel,
		retrier: retry.NewDefaultRetrier(),
	}, nil
}

func (e *Embedder) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vecs) == 0 {
		return nil, fmt.Errorf("empty embedding response")
	}
	return vecs[0], nil
}

func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	var vecs [][]float32
	err := e.retrier.Do(ctx, func() error {
		var err error
		vecs, err = e.embed(ctx, texts)
		return err
	})
	if err != nil {
		return nil, err
	}
	return vecs, nil
}

func (e *Embedder) embed(ctx context.Context, texts []string) ([][]float32, error) {
	payload := map[string]any{
		"model": e.model,
		"input": texts,
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/v1/embeddings", bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("http %d: %s", resp.StatusCode, string(body))
	}

	var result struct {
		Data []struct {
			Index     int       `json:"index"`
			Embedding []float32 `json:"embedding"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if len(result.Data) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(result.Data))
	}

	sort.Slice(result.Data, func(i, j int) bool {
		return result.Data[i].Index < result.Data[j].Index
	})

	vecs := make([][]float32, 0, len(result.Data))
	for _, d := range result.Data {
		vecs = append(vecs, Normalize(d.Embedding))
	}
	return vecs, nil
}

// Normalize scales a vector to unit length. Zero vectors pass through.
func Normalize(vec []float32) []float32 {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return vec
	}
	norm := float32(math.Sqrt(sum))
	out := make([]float32, len(vec))
	for i, v := range vec {
		out[i] = v / norm
	}
	return out
}
