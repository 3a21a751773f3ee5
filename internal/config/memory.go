package config

import (
	"context"

	"github.com/caarlos0/env/v11"
	"github.com/sandevgo/vexd/pkg/log"
)

// MemoryConfig describes the optional embedding collaborator. An empty URL
// means semantic memory is disabled and recall degrades to empty results.
type MemoryConfig struct {
	EmbedServerURL string `env:"VEXD_EMBED_URL"`
	EmbedModel     string `env:"VEXD_EMBED_MODEL" envDefault:"all-MiniLM-L6-v2"`
	EmbedDims      int    `env:"VEXD_EMBED_DIMS" envDefault:"384"`
}

func NewMemoryConfig(ctx context.Context) *MemoryConfig {
	c := &MemoryConfig{}
	if err := env.Parse(c); err != nil {
		log.FromCtx(ctx).Fatal().Err(err).Msg("failed to parse memory config")
	}
	return c
}

func (c MemoryConfig) Enabled() bool {
	return c.EmbedServerURL != ""
}
