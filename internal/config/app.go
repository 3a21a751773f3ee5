package config

import (
	"context"
	"path/filepath"

	"github.com/caarlos0/env/v11"
	"github.com/sandevgo/vexd/pkg/log"
)

type AppConfig struct {
	RuntimePath string `env:"VEXD_RUNTIME_PATH" envDefault:".vexd"`

	// Generation backend selection: local | openrouter
	ChatSource string `env:"VEXD_CHAT_SOURCE" envDefault:"local"`

	// Local llama-server style endpoint
	ServerURL string `env:"VEXD_SERVER_URL" envDefault:"http://127.0.0.1:8080"`

	// Management/chat API bind address
	HTTPAddr string `env:"VEXD_HTTP_ADDR" envDefault:"127.0.0.1:8766"`

	// Recall depth per domain
	RecallK int `env:"VEXD_RECALL_K" envDefault:"3"`
}

func NewAppConfig(ctx context.Context) *AppConfig {
	c := &AppConfig{}
	if err := env.Parse(c); err != nil {
		log.FromCtx(ctx).Fatal().Err(err).Msg("failed to parse app config")
	}
	c.RuntimePath = resolveRuntimePath(c.RuntimePath)
	return c
}

func (c AppConfig) GetRuntimePath() string {
	return c.RuntimePath
}

func (c AppConfig) GetDatabasePath() string {
	return filepath.Join(c.RuntimePath, "chat.db")
}

func (c AppConfig) GetVectorDBPath() string {
	return filepath.Join(c.RuntimePath, "memory.db")
}

func (c AppConfig) GetMemoryRoot() string {
	return filepath.Join(c.RuntimePath, "memory")
}

func (c AppConfig) GetAgentsDir() string {
	return filepath.Join(c.RuntimePath, "agents")
}

func (c AppConfig) GetPersonasDir() string {
	return filepath.Join(c.RuntimePath, "personas")
}

func (c AppConfig) GetBasePromptPath() string {
	return filepath.Join(c.RuntimePath, "SYSTEM.md")
}

func (c AppConfig) GetUserProfilePath() string {
	return filepath.Join(c.RuntimePath, "USER.md")
}
