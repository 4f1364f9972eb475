package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/threadcast/threadcast/internal/models"
	"github.com/threadcast/threadcast/internal/store"
)

// SettingsHandler exposes campaign settings. Edits apply to the next run.
type SettingsHandler struct {
	store  *store.Store
	logger *slog.Logger
}

func NewSettingsHandler(st *store.Store, logger *slog.Logger) *SettingsHandler {
	return &SettingsHandler{
		store:  st,
		logger: logger,
	}
}

// GetSettings handles GET /api/settings
func (h *SettingsHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.store.LoadSettings()
	if err != nil {
		h.logger.Error("failed to load settings", "error", err)
		http.Error(w, "Failed to load settings", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, settings, h.logger)
}

// UpdateSettings handles PUT /api/settings
func (h *SettingsHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var settings models.CampaignSettings
	if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := settings.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.store.SaveSettings(settings); err != nil {
		h.logger.Error("failed to save settings", "error", err)
		http.Error(w, "Failed to save settings", http.StatusInternalServerError)
		return
	}

	h.logger.Info("updated settings",
		"repeat_interval_minutes", settings.RepeatIntervalMinutes,
		"concurrency_limit", settings.ConcurrencyLimit,
		"engage_concurrency_limit", settings.EngageConcurrency,
	)
	writeJSON(w, http.StatusOK, settings, h.logger)
}
