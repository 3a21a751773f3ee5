package llm

import (
	"fmt"

	"github.com/sandevgo/vexd/internal/core"
)

// Factory selects the backend per request by the source field in the turn
// metadata, falling back to the configured defaults.
type Factory struct {
	serverURL     string
	defaultSource string
	openRouter    core.OpenRouterOptions
}

func NewFactory(serverURL, defaultSource string, openRouter core.OpenRouterOptions) *Factory {
	return &Factory{
		serverURL:     serverURL,
		defaultSource: defaultSource,
		openRouter:    openRouter,
	}
}

func (f *Factory) Provider(meta *core.TurnMeta) (core.ChatProvider, error) {
	source := f.defaultSource
	if meta != nil && meta.Source != "" {
		source = meta.Source
	}

	switch source {
	case "", core.SourceLocal:
		return NewLocal(f.serverURL), nil
	case core.SourceOpenRouter:
		opts := f.openRouter
		if meta != nil && meta.OpenRouter != nil {
			opts = *meta.OpenRouter
		}
		return NewOpenRouter(opts), nil
	default:
		return nil, fmt.Errorf("unknown chat source: %s", source)
	}
}
