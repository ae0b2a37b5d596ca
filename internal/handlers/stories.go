package handlers

import (
	"log/slog"
	"net/http"

	"github.com/storyweave/gamemaster/pkg/storage"
)

type StoriesResponse struct {
	Stories []string `json:"stories"`
}

// StoryHandler lists the story templates available for new sessions.
type StoryHandler struct {
	store  storage.Store
	logger *slog.Logger
}

func NewStoryHandler(store storage.Store, logger *slog.Logger) *StoryHandler {
	return &StoryHandler{store: store, logger: logger}
}

func (h *StoryHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodGet {
		writeError(w, h.logger, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	names, err := h.store.ListStories(r.Context())
	if err != nil {
		h.logger.Error("Failed to list stories", "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, "Failed to list stories")
		return
	}
	if names == nil {
		names = []string{}
	}
	writeJSON(w, h.logger, StoriesResponse{Stories: names})
}
