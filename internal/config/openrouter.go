package config

import (
	"context"

	"github.com/caarlos0/env/v11"
	"github.com/sandevgo/vexd/pkg/log"
)

type OpenRouterConfig struct {
	APIKey                 string   `env:"OPENROUTER_API_KEY,required,notEmpty"`
	Model                  string   `env:"OPENROUTER_MODEL" envDefault:"openrouter/auto"`
	Providers              []string `env:"OPENROUTER_PROVIDERS"`
	AllowFallbackModels    bool     `env:"OPENROUTER_ALLOW_FALLBACK_MODELS" envDefault:"true"`
	AllowFallbackProviders bool     `env:"OPENROUTER_ALLOW_FALLBACK_PROVIDERS" envDefault:"true"`
}

func NewOpenRouterConfig(ctx context.Context) *OpenRouterConfig {
	c := &OpenRouterConfig{}
	if err := env.Parse(c); err != nil {
		log.FromCtx(ctx).Fatal().Err(err).Msg("failed to parse OpenRouter config")
	}
	return c
}
