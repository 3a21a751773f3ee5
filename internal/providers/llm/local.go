package llm

import (
	"context"
	"net/http"

	"github.com/sandevgo/vexd/internal/core"
)

// Local talks to a llama-server style OpenAI-compatible endpoint. The model
// field is a sentinel the server ignores.
type Local struct {
	baseProvider
}

func NewLocal(baseURL string) *Local {
	return &Local{
		baseProvider: newBaseProvider(baseURL, "", "local"),
	}
}

func (l *Local) Stream(ctx context.Context, history []core.Message, gen *core.GenParams) (<-chan core.StreamDelta, error) {
	payload := mergeGenParams(map[string]any{
		"model":    l.model,
		"messages": history,
		"stream":   true,
	}, gen)

	resp, err := l.doRequest(ctx, http.MethodPost, "/v1/chat/completions", payload, nil)
	if err != nil {
		return nil, err
	}
	if err := checkStreamStatus(resp); err != nil {
		return nil, err
	}

	return consumeStream(ctx, resp.Body), nil
}

func (l *Local) Once(ctx context.Context, history []core.Message, gen *core.GenParams) (core.Message, error) {
	payload := mergeGenParams(map[string]any{
		"model":    l.model,
		"messages": history,
		"stream":   false,
	}, gen)

	resp, err := l.doRequest(ctx, http.MethodPost, "/v1/chat/completions", payload, nil)
	if err != nil {
		return core.Message{}, err
	}
	defer resp.Body.Close()

	return parseOnceResponse(resp)
}
