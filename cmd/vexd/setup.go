package main

import (
	"context"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"

	"github.com/sandevgo/vexd/internal/config"
	"github.com/sandevgo/vexd/internal/core"
	"github.com/sandevgo/vexd/internal/orchestrator"
	"github.com/sandevgo/vexd/internal/persona"
	"github.com/sandevgo/vexd/internal/providers/llm"
	"github.com/sandevgo/vexd/internal/providers/rag"
	"github.com/sandevgo/vexd/internal/server"
	"github.com/sandevgo/vexd/internal/service/agent"
	"github.com/sandevgo/vexd/internal/storage/sqlite"
	"github.com/sandevgo/vexd/internal/storage/vector"
	"github.com/sandevgo/vexd/pkg/log"
	"github.com/sandevgo/vexd/pkg/srv"
)

const (
	agentWorkers   = 2
	agentQueueSize = 32
)

// app is the wired service stack shared by the start and chat commands.
type app struct {
	cfg          *config.AppConfig
	orchestrator *orchestrator.Orchestrator
	sessions     *sqlite.SessionRepo
	vectors      *vector.Store
	personas     *persona.Store
	registry     *agent.Registry
	dispatcher   *agent.Dispatcher
	services     []srv.Service
}

func NewServices(ctx context.Context) []srv.Service {
	a := newApp(ctx)

	api := server.New(a.cfg.HTTPAddr, server.Deps{
		Orchestrator: a.orchestrator,
		Sessions:     a.sessions,
		Vectors:      a.vectors,
		Personas:     a.personas,
		Registry:     a.registry,
		Dispatcher:   a.dispatcher,
	})

	return append(a.services, api)
}

func newApp(ctx context.Context) *app {
	logger := log.FromCtx(ctx)
	services := make([]srv.Service, 0)

	// init env
	if err := initEnv(ctx, config.GetRuntimePath()); err != nil {
		logger.Fatal().Err(err).Msg("failed to init env")
	}

	// 1. Configuration
	appCfg := config.NewAppConfig(ctx)
	memCfg := config.NewMemoryConfig(ctx)

	if err := os.MkdirAll(appCfg.GetRuntimePath(), 0o755); err != nil {
		logger.Fatal().Err(err).Msg("failed to create runtime dir")
	}

	// 2. Session storage
	db, err := sqlite.NewDB(ctx, appCfg.GetDatabasePath())
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize session storage")
	}
	services = append(services, srv.NewCleanup(db.Close))

	sessions := sqlite.NewSessionRepo(db)

	// 3. Semantic memory (optional)
	var (
		embedder core.Embedder
		store    core.VectorStore
		vectors  *vector.Store
	)
	if memCfg.Enabled() {
		vectors, err = vector.NewStore(ctx, appCfg.GetVectorDBPath(), memCfg.EmbedDims)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to initialize vector store")
		}
		services = append(services, srv.NewCleanup(vectors.Close))
		store = vectors

		emb, err := rag.NewEmbedder(memCfg)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to initialize embedder")
		}
		embedder = emb
	} else {
		logger.Info().Msg("semantic memory disabled, recall will be empty")
	}

	// 4. Generation backends
	factory := llm.NewFactory(appCfg.ServerURL, appCfg.ChatSource, openRouterOptions(ctx, appCfg))

	// 5. Prompt synthesis
	personas := persona.NewStore(appCfg.GetPersonasDir())
	synth := orchestrator.NewSynthesizer(appCfg.GetBasePromptPath(), personas)

	// 6. Background agents
	registry := agent.NewRegistry(appCfg.GetAgentsDir())
	if err := registry.Scan(ctx); err != nil {
		logger.Fatal().Err(err).Msg("failed to scan agents")
	}

	pool := agent.NewPool(agentWorkers, agentQueueSize)
	services = append(services, srv.NewCleanup(func() error {
		pool.Close()
		return nil
	}))

	dispatcher := agent.NewDispatcher(registry, pool)
	dispatcher.Register(agent.TypeMemoryTriage, agent.NewTriage(embedder, store, appCfg.GetMemoryRoot()))

	// 7. Orchestrator
	orch := orchestrator.New(
		factory,
		orchestrator.NewRecallEngine(embedder, store),
		synth,
		sessions,
		dispatcher,
		appCfg.RecallK,
	)

	return &app{
		cfg:          appCfg,
		orchestrator: orch,
		sessions:     sessions,
		vectors:      vectors,
		personas:     personas,
		registry:     registry,
		dispatcher:   dispatcher,
		services:     services,
	}
}

func openRouterOptions(ctx context.Context, appCfg *config.AppConfig) core.OpenRouterOptions {
	if appCfg.ChatSource != core.SourceOpenRouter {
		return core.OpenRouterOptions{}
	}

	cfg := config.NewOpenRouterConfig(ctx)

	return core.OpenRouterOptions{
		APIKey:                 cfg.APIKey,
		Model:                  cfg.Model,
		Providers:              cfg.Providers,
		AllowFallbackModels:    &cfg.AllowFallbackModels,
		AllowFallbackProviders: &cfg.AllowFallbackProviders,
	}
}

func initEnv(ctx context.Context, runtimePath string) error {
	logger := log.FromCtx(ctx)
	envFile := filepath.Join(runtimePath, ".env")

	if _, err := os.Stat(envFile); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	if err := godotenv.Load(envFile); err != nil {
		logger.Warn().Err(err).Str("path", envFile).Msg("failed to load .env file")
		return err
	}

	logger.Debug().Str("path", envFile).Msg("loaded .env file")
	return nil
}
