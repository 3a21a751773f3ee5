package server

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

const defaultBrowseLimit = 20

func (s *Server) handleListCollections(w http.ResponseWriter, r *http.Request) {
	collections, err := s.deps.Vectors.ListCollections(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())

		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"collections": collections})
}

func (s *Server) handlePeek(w http.ResponseWriter, r *http.Request) {
	n, _ := strconv.Atoi(r.URL.Query().Get("n"))
	if n <= 0 {
		n = defaultBrowseLimit
	}

	docs, err := s.deps.Vectors.Peek(r.Context(), chi.URLParam(r, "name"), n)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())

		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"documents": docs})
}

func (s *Server) handleSearchMemory(w http.ResponseWriter, r *http.Request) {
	term := r.URL.Query().Get("q")
	if term == "" {
		writeError(w, http.StatusBadRequest, "q is required")

		return
	}

	docs, err := s.deps.Vectors.SearchText(r.Context(), chi.URLParam(r, "name"), term, defaultBrowseLimit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())

		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"documents": docs})
}

func (s *Server) handleDeleteCollection(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Vectors.DeleteCollection(r.Context(), chi.URLParam(r, "name")); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())

		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Vectors.DeleteDocument(r.Context(), chi.URLParam(r, "docID")); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())

		return
	}

	w.WriteHeader(http.StatusNoContent)
}
