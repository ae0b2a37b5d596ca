// Package handlers exposes the engine over HTTP. Each session owns one
// engine.System; commands within a session run strictly one at a time.
package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/storyweave/gamemaster/internal/logger"
	"github.com/storyweave/gamemaster/pkg/engine"
	"github.com/storyweave/gamemaster/pkg/llm"
	"github.com/storyweave/gamemaster/pkg/storage"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

type CreateSessionRequest struct {
	Story string `json:"story,omitempty"`
}

type SessionResponse struct {
	ID     uuid.UUID     `json:"id"`
	Status engine.Status `json:"status"`
}

type CommandRequest struct {
	Input string `json:"input"`
}

type CommandResponse struct {
	Output string        `json:"output"`
	Status engine.Status `json:"status"`
}

// session serializes access to one System. The mutex is the concurrency
// contract: a session processes exactly one command at a time.
type session struct {
	mu  sync.Mutex
	sys *engine.System
}

// SessionHandler routes the session API:
//
//	POST   /v1/sessions                - create a session
//	GET    /v1/sessions/{id}           - session status
//	DELETE /v1/sessions/{id}           - end a session
//	POST   /v1/sessions/{id}/commands  - run one player command
type SessionHandler struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]*session

	gen          llm.Generator
	store        storage.Store
	defaultStory string
	logger       *slog.Logger
}

func NewSessionHandler(gen llm.Generator, store storage.Store, defaultStory string, logger *slog.Logger) *SessionHandler {
	return &SessionHandler{
		sessions:     make(map[uuid.UUID]*session),
		gen:          gen,
		store:        store,
		defaultStory: defaultStory,
		logger:       logger,
	}
}

func (h *SessionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/sessions"), "/")
	if path == "" {
		if r.Method != http.MethodPost {
			writeError(w, h.logger, http.StatusMethodNotAllowed, "Method not allowed. Use POST to create a session")
			return
		}
		h.handleCreate(w, r)
		return
	}

	parts := strings.Split(path, "/")
	id, err := uuid.Parse(parts[0])
	if err != nil {
		h.logger.Warn("Invalid session ID", "id", parts[0], "error", err)
		writeError(w, h.logger, http.StatusBadRequest, "Invalid session ID format")
		return
	}

	switch {
	case len(parts) == 1 && r.Method == http.MethodGet:
		h.handleStatus(w, r, id)
	case len(parts) == 1 && r.Method == http.MethodDelete:
		h.handleDelete(w, r, id)
	case len(parts) == 2 && parts[1] == "commands" && r.Method == http.MethodPost:
		h.handleCommand(w, r, id)
	default:
		writeError(w, h.logger, http.StatusNotFound, "Not found")
	}
}

func (h *SessionHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req CreateSessionRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, h.logger, http.StatusBadRequest, "Invalid request body")
			return
		}
	}

	storyName := req.Story
	if storyName == "" {
		storyName = h.defaultStory
	}
	if storyName == "" {
		names, err := h.store.ListStories(r.Context())
		if err != nil || len(names) == 0 {
			writeError(w, h.logger, http.StatusInternalServerError, "No stories available")
			return
		}
		storyName = names[0]
	}

	id := uuid.New()
	sys, err := engine.NewSystem(r.Context(), storyName, h.gen, h.store, logger.WithSessionID(h.logger, id.String()))
	if err != nil {
		if errors.Is(err, storage.ErrStoryNotFound) {
			writeError(w, h.logger, http.StatusNotFound, err.Error())
			return
		}
		h.logger.Error("Failed to create session", "story", storyName, "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, "Failed to create session")
		return
	}

	h.mu.Lock()
	h.sessions[id] = &session{sys: sys}
	h.mu.Unlock()

	h.logger.Info("Session created", "session_id", id, "story", storyName)
	w.WriteHeader(http.StatusCreated)
	writeJSON(w, h.logger, SessionResponse{ID: id, Status: sys.Status()})
}

func (h *SessionHandler) handleStatus(w http.ResponseWriter, _ *http.Request, id uuid.UUID) {
	sess, ok := h.lookup(id)
	if !ok {
		writeError(w, h.logger, http.StatusNotFound, "Session not found")
		return
	}

	sess.mu.Lock()
	status := sess.sys.Status()
	sess.mu.Unlock()

	writeJSON(w, h.logger, SessionResponse{ID: id, Status: status})
}

func (h *SessionHandler) handleDelete(w http.ResponseWriter, _ *http.Request, id uuid.UUID) {
	h.mu.Lock()
	_, ok := h.sessions[id]
	delete(h.sessions, id)
	h.mu.Unlock()

	if !ok {
		writeError(w, h.logger, http.StatusNotFound, "Session not found")
		return
	}
	h.logger.Info("Session ended", "session_id", id)
	w.WriteHeader(http.StatusNoContent)
}

func (h *SessionHandler) handleCommand(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	sess, ok := h.lookup(id)
	if !ok {
		writeError(w, h.logger, http.StatusNotFound, "Session not found")
		return
	}

	var req CommandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.Input) == "" {
		writeError(w, h.logger, http.StatusBadRequest, "Input is required")
		return
	}

	// One command at a time per session; concurrent requests queue here.
	sess.mu.Lock()
	defer sess.mu.Unlock()

	cmd := engine.ParseCommand(req.Input)
	output, err := sess.sys.Execute(r.Context(), cmd)
	if err != nil {
		h.writeCommandError(w, id, cmd, err)
		return
	}

	writeJSON(w, h.logger, CommandResponse{Output: output, Status: sess.sys.Status()})
}

func (h *SessionHandler) writeCommandError(w http.ResponseWriter, id uuid.UUID, cmd engine.Command, err error) {
	h.logger.Warn("Command failed", "session_id", id, "command", cmd.Type, "error", err)

	var genErr *llm.GenerationError
	switch {
	case errors.Is(err, storage.ErrSaveNotFound), errors.Is(err, storage.ErrStoryNotFound):
		writeError(w, h.logger, http.StatusNotFound, err.Error())
	case errors.Is(err, engine.ErrSaveExists):
		writeError(w, h.logger, http.StatusConflict, err.Error())
	case errors.As(err, &genErr):
		writeError(w, h.logger, http.StatusBadGateway, err.Error())
	default:
		writeError(w, h.logger, http.StatusInternalServerError, err.Error())
	}
}

func (h *SessionHandler) lookup(id uuid.UUID) (*session, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	sess, ok := h.sessions[id]
	return sess, ok
}

func writeJSON(w http.ResponseWriter, logger *slog.Logger, v any) {
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, logger *slog.Logger, status int, message string) {
	w.WriteHeader(status)
	writeJSON(w, logger, ErrorResponse{Error: message})
}
