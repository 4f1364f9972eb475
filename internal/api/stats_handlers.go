package api

import (
	"log/slog"
	"net/http"

	"github.com/threadcast/threadcast/internal/stats"
)

// StatsHandler exposes the engagement counters.
type StatsHandler struct {
	tracker *stats.Tracker
	logger  *slog.Logger
}

func NewStatsHandler(tracker *stats.Tracker, logger *slog.Logger) *StatsHandler {
	return &StatsHandler{
		tracker: tracker,
		logger:  logger,
	}
}

// GetStats handles GET /api/stats
func (h *StatsHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.tracker.Snapshot(), h.logger)
}

// ResetStats handles POST /api/stats/reset
func (h *StatsHandler) ResetStats(w http.ResponseWriter, r *http.Request) {
	if err := h.tracker.Reset(); err != nil {
		h.logger.Error("failed to reset stats", "error", err)
		http.Error(w, "Failed to reset stats", http.StatusInternalServerError)
		return
	}

	h.logger.Info("engagement stats reset")
	writeJSON(w, http.StatusOK, h.tracker.Snapshot(), h.logger)
}
