package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/teamh-ai/teamh/pkg/checkpoint"
	"github.com/teamh-ai/teamh/pkg/graph"
	"github.com/teamh-ai/teamh/pkg/protocol"
)

type chatStreamRequest struct {
	Message   string `json:"message"`
	ThreadID  string `json:"thread_id"`
	UserID    string `json:"user_id,omitempty"`
	SessionID string `json:"session_id,omitempty"`
}

type chatResumeRequest struct {
	ThreadID  string           `json:"thread_id"`
	Decisions []graph.Decision `json:"decisions"`
	UserID    string           `json:"user_id,omitempty"`
	SessionID string           `json:"session_id,omitempty"`
}

type healthResponse struct {
	Status           string `json:"status"`
	Service          string `json:"service"`
	Version          string `json:"version"`
	AgentInitialized bool   `json:"agent_initialized"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:           "ok",
		Service:          "teamh",
		Version:          s.version,
		AgentInitialized: s.team != nil && s.team.Executor != nil,
	})
}

func (s *Server) handleChatStream(w http.ResponseWriter, r *http.Request) {
	var req chatStreamRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
		return
	}
	if req.Message == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "message is required"})
		return
	}
	if req.ThreadID == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "thread_id is required"})
		return
	}

	ctx := s.runContext(r.Context(), req.ThreadID, req.UserID, req.SessionID)
	s.streamEvents(ctx, w, func(ctx context.Context, emitter graph.Emitter) error {
		return s.team.Executor.Run(ctx, req.ThreadID, req.Message, emitter)
	})
}

func (s *Server) handleChatResume(w http.ResponseWriter, r *http.Request) {
	var req chatResumeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
		return
	}
	if req.ThreadID == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "thread_id is required"})
		return
	}
	if len(req.Decisions) == 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "decisions are required"})
		return
	}

	ctx := s.runContext(r.Context(), req.ThreadID, req.UserID, req.SessionID)
	s.streamEvents(ctx, w, func(ctx context.Context, emitter graph.Emitter) error {
		return s.team.Executor.Resume(ctx, req.ThreadID, req.Decisions, emitter)
	})
}

func (s *Server) handleGetState(w http.ResponseWriter, r *http.Request) {
	threadID := chi.URLParam(r, "thread_id")

	state, err := s.team.Executor.GetState(r.Context(), threadID)
	if err == checkpoint.ErrNotFound {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: fmt.Sprintf("unknown thread %s", threadID)})
		return
	}
	if err != nil {
		slog.Error("Failed to load thread state", "thread_id", threadID, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to load thread state"})
		return
	}
	writeJSON(w, http.StatusOK, state)
}

// runContext tags the request context with the identity the tools need.
func (s *Server) runContext(ctx context.Context, threadID, userID, sessionID string) context.Context {
	if userID == "" {
		userID = s.team.DefaultUserID
	}
	return protocol.WithRunContext(ctx, protocol.RunContext{
		UserID:    userID,
		ThreadID:  threadID,
		SessionID: sessionID,
	})
}

// streamEvents runs the executor in a goroutine and relays its events as
// server-sent events until the stream closes.
func (s *Server) streamEvents(ctx context.Context, w http.ResponseWriter, run func(ctx context.Context, emitter graph.Emitter) error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "streaming unsupported"})
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	emitter := graph.NewChannelEmitter(64)
	go func() {
		defer emitter.Close()
		if err := run(ctx, emitter); err != nil {
			// The executor already emitted an error event; this covers
			// failures before the event loop started.
			slog.Error("Run failed", "error", err)
		}
	}()

	for event := range emitter.Events() {
		data, err := json.Marshal(event)
		if err != nil {
			slog.Error("Failed to marshal event", "type", event.Type, "error", err)
			continue
		}
		fmt.Fprintf(w, "data: %s\n\n", data)
		flusher.Flush()
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("Failed to write response", "error", err)
	}
}
