package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// Pinger reports backing-store liveness.
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthResponse struct {
	Status  string `json:"status"`
	Storage string `json:"storage"`
}

type HealthHandler struct {
	pinger Pinger
	logger *slog.Logger
}

func NewHealthHandler(pinger Pinger, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{pinger: pinger, logger: logger}
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodGet {
		writeError(w, h.logger, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	resp := HealthResponse{Status: "ok", Storage: "ok"}
	if err := h.pinger.Ping(ctx); err != nil {
		h.logger.Warn("Storage health check failed", "error", err)
		resp.Status = "degraded"
		resp.Storage = "unavailable"
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	writeJSON(w, h.logger, resp)
}
