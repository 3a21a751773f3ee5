package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/sandevgo/vexd/internal/orchestrator"
	"github.com/sandevgo/vexd/internal/persona"
	"github.com/sandevgo/vexd/internal/service/agent"
	"github.com/sandevgo/vexd/internal/storage/sqlite"
	"github.com/sandevgo/vexd/internal/storage/vector"
	"github.com/sandevgo/vexd/pkg/log"
)

// Deps are the collaborators the API exposes. Vectors may be nil when
// semantic memory is disabled; the memory routes then answer 503.
type Deps struct {
	Orchestrator *orchestrator.Orchestrator
	Sessions     *sqlite.SessionRepo
	Vectors      *vector.Store
	Personas     *persona.Store
	Registry     *agent.Registry
	Dispatcher   *agent.Dispatcher
}

// Server is the local management and chat API.
type Server struct {
	deps       Deps
	httpServer *http.Server
}

func New(addr string, deps Deps) *Server {
	s := &Server{deps: deps}

	router := chi.NewRouter()
	router.Use(chimw.RequestID)
	router.Use(chimw.RealIP)
	router.Use(chimw.Recoverer)

	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	router.Route("/v1", func(r chi.Router) {
		r.Post("/turn", s.handleTurn)
		r.Post("/turn/once", s.handleTurnOnce)

		r.Route("/sessions", func(r chi.Router) {
			r.Get("/", s.handleListSessions)
			r.Get("/{id}", s.handleGetSession)
			r.Delete("/{id}", s.handleDeleteSession)
			r.Get("/{id}/export", s.handleExportSession)
		})

		r.Route("/agents", func(r chi.Router) {
			r.Get("/", s.handleListAgents)
			r.Post("/scan", s.handleScanAgents)
			r.Post("/{id}/enable", s.handleEnableAgent)
			r.Post("/{id}/run", s.handleRunAgent)
			r.Get("/{id}/logs", s.handleAgentLogs)
			r.Get("/{id}/config", s.handleAgentConfig)
			r.Put("/{id}/config", s.handleSaveAgentConfig)
		})

		r.Get("/personas", s.handleListPersonas)

		r.Route("/memory", func(r chi.Router) {
			r.Use(s.requireMemory)
			r.Get("/collections", s.handleListCollections)
			r.Get("/collections/{name}/peek", s.handlePeek)
			r.Get("/collections/{name}/search", s.handleSearchMemory)
			r.Delete("/collections/{name}", s.handleDeleteCollection)
			r.Delete("/documents/{docID}", s.handleDeleteDocument)
		})
	})

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s
}

// Start blocks until the listener fails or the server is shut down. The
// given ctx becomes the base context of every request, so handlers share
// the service logger.
func (s *Server) Start(ctx context.Context) error {
	s.httpServer.BaseContext = func(net.Listener) context.Context { return ctx }

	log.FromCtx(ctx).Info().Str("addr", s.httpServer.Addr).Msg("http api listening")

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server start: %w", err)
	}

	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	return nil
}

// Handler exposes the route tree, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

func (s *Server) requireMemory(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.deps.Vectors == nil {
			writeError(w, http.StatusServiceUnavailable, "semantic memory is disabled")

			return
		}

		next.ServeHTTP(w, r)
	})
}
