package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/sandevgo/vexd/internal/storage/sqlite"
)

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	sessions, err := s.deps.Sessions.ListSessions(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())

		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"sessions": sessions})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	transcript, err := s.deps.Sessions.GetSession(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, sqlite.ErrSessionNotFound) {
			writeError(w, http.StatusNotFound, err.Error())

			return
		}

		writeError(w, http.StatusInternalServerError, err.Error())

		return
	}

	writeJSON(w, http.StatusOK, transcript)
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Sessions.DeleteSession(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())

		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleExportSession renders the transcript as markdown (default) or
// sanitized HTML.
func (s *Server) handleExportSession(w http.ResponseWriter, r *http.Request) {
	transcript, err := s.deps.Sessions.GetSession(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, sqlite.ErrSessionNotFound) {
			writeError(w, http.StatusNotFound, err.Error())

			return
		}

		writeError(w, http.StatusInternalServerError, err.Error())

		return
	}

	switch r.URL.Query().Get("format") {
	case "html":
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(sqlite.ExportHTML(transcript)))
	case "", "markdown":
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		_, _ = w.Write([]byte(sqlite.ExportMarkdown(transcript)))
	default:
		writeError(w, http.StatusBadRequest, "unknown format")
	}
}
