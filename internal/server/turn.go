package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/sandevgo/vexd/internal/orchestrator"
	"github.com/sandevgo/vexd/pkg/log"
)

// handleTurn streams the assistant reply as server-sent events. Each data
// line carries a JSON delta; the stream ends with [DONE]. Closing the
// request connection cancels generation, and whatever was streamed so far
// is still recorded in the session.
func (s *Server) handleTurn(w http.ResponseWriter, r *http.Request) {
	var req orchestrator.TurnRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if req.SessionID == "" || len(req.Messages) == 0 {
		writeError(w, http.StatusBadRequest, "session_id and messages are required")

		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")

		return
	}

	deltas, err := s.deps.Orchestrator.Stream(r.Context(), req)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())

		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for delta := range deltas {
		if delta.Err != nil {
			payload, _ := json.Marshal(map[string]string{"error": delta.Err.Error()})
			fmt.Fprintf(w, "event: error\ndata: %s\n\n", payload)
			flusher.Flush()

			log.FromCtx(r.Context()).Warn().Err(delta.Err).Msg("turn stream failed")

			return
		}

		payload, _ := json.Marshal(map[string]string{"content": delta.Content})
		fmt.Fprintf(w, "data: %s\n\n", payload)
		flusher.Flush()
	}

	fmt.Fprint(w, "data: [DONE]\n\n")
	flusher.Flush()
}

// handleTurnOnce runs the same pipeline without streaming.
func (s *Server) handleTurnOnce(w http.ResponseWriter, r *http.Request) {
	var req orchestrator.TurnRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if req.SessionID == "" || len(req.Messages) == 0 {
		writeError(w, http.StatusBadRequest, "session_id and messages are required")

		return
	}

	content, err := s.deps.Orchestrator.Once(r.Context(), req)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())

		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"content": content})
}
