package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sandevgo/vexd/internal/core"
)

func (s *Server) handleListAgents(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"agents": s.deps.Registry.List()})
}

func (s *Server) handleScanAgents(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Registry.Scan(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())

		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"agents": s.deps.Registry.List()})
}

func (s *Server) handleEnableAgent(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Enabled bool `json:"enabled"`
	}
	if !decodeBody(w, r, &body) {
		return
	}

	if err := s.deps.Registry.SetEnabled(r.Context(), chi.URLParam(r, "id"), body.Enabled); err != nil {
		writeError(w, http.StatusNotFound, err.Error())

		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleRunAgent triggers one agent immediately, with an optional payload
// from the request body. The run itself is asynchronous.
func (s *Server) handleRunAgent(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Event   string         `json:"event"`
		Payload map[string]any `json:"payload"`
	}
	// body is optional
	_ = decodeOptionalBody(r, &body)

	if body.Event == "" {
		body.Event = core.EventTurnSaved
	}

	if err := s.deps.Dispatcher.RunOnce(r.Context(), chi.URLParam(r, "id"), body.Event, body.Payload); err != nil {
		writeError(w, http.StatusNotFound, err.Error())

		return
	}

	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleAgentLogs(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, ok := s.deps.Registry.Get(id); !ok {
		writeError(w, http.StatusNotFound, "unknown agent: "+id)

		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"logs": s.deps.Registry.Logs(id)})
}

func (s *Server) handleAgentConfig(w http.ResponseWriter, r *http.Request) {
	text, err := s.deps.Registry.ConfigText(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())

		return
	}

	w.Header().Set("Content-Type", "application/yaml")
	_, _ = w.Write([]byte(text))
}

func (s *Server) handleSaveAgentConfig(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Config string `json:"config"`
	}
	if !decodeBody(w, r, &body) {
		return
	}

	if err := s.deps.Registry.SaveConfigText(r.Context(), chi.URLParam(r, "id"), body.Config); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())

		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListPersonas(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"personas": s.deps.Personas.List()})
}
