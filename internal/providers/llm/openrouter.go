package llm

import (
	"context"
	"net/http"

	"github.com/sandevgo/vexd/internal/core"
)

// OpenRouter is the remote provider backend. Provider allow-lists and
// fallback toggles are passed through untouched.
type OpenRouter struct {
	baseProvider
	providers              []string
	allowFallbackModels    *bool
	allowFallbackProviders *bool
}

func NewOpenRouter(opts core.OpenRouterOptions) *OpenRouter {
	model := opts.Model
	if model == "" {
		model = "openrouter/auto"
	}
	return &OpenRouter{
		baseProvider:           newBaseProvider("https://openrouter.ai/api", opts.APIKey, model),
		providers:              opts.Providers,
		allowFallbackModels:    opts.AllowFallbackModels,
		allowFallbackProviders: opts.AllowFallbackProviders,
	}
}

func (o *OpenRouter) headers() map[string]string {
	return map[string]string{
		"Authorization": "Bearer " + o.apiKey,
		"HTTP-Referer":  core.VexRepositoryURL,
		"X-Title":       core.VexName,
	}
}

func (o *OpenRouter) payload(history []core.Message, gen *core.GenParams, stream bool) map[string]any {
	payload := mergeGenParams(map[string]any{
		"model":    o.model,
		"messages": history,
		"stream":   stream,
	}, gen)

	routing := map[string]any{}
	if len(o.providers) > 0 {
		routing["order"] = o.providers
	}
	if o.allowFallbackProviders != nil {
		routing["allow_fallbacks"] = *o.allowFallbackProviders
	}
	if len(routing) > 0 {
		payload["provider"] = routing
	}
	if o.allowFallbackModels != nil && !*o.allowFallbackModels {
		payload["route"] = ""
	}
	return payload
}

func (o *OpenRouter) Stream(ctx context.Context, history []core.Message, gen *core.GenParams) (<-chan core.StreamDelta, error) {
	resp, err := o.doRequest(ctx, http.MethodPost, "/v1/chat/completions", o.payload(history, gen, true), o.headers())
	if err != nil {
		return nil, err
	}
	if err := checkStreamStatus(resp); err != nil {
		return nil, err
	}

	return consumeStream(ctx, resp.Body), nil
}

func (o *OpenRouter) Once(ctx context.Context, history []core.Message, gen *core.GenParams) (core.Message, error) {
	resp, err := o.doRequest(ctx, http.MethodPost, "/v1/chat/completions", o.payload(history, gen, false), o.headers())
	if err != nil {
		return core.Message{}, err
	}
	defer resp.Body.Close()

	return parseOnceResponse(resp)
}
