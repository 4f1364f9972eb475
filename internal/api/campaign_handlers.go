package api

import (
	"log/slog"
	"net/http"

	"github.com/threadcast/threadcast/internal/campaign"
)

// CampaignHandler drives the posting campaign lifecycle.
type CampaignHandler struct {
	controller *campaign.Controller
	logger     *slog.Logger
}

func NewCampaignHandler(controller *campaign.Controller, logger *slog.Logger) *CampaignHandler {
	return &CampaignHandler{
		controller: controller,
		logger:     logger,
	}
}

// StartCampaign handles POST /api/campaign/start
func (h *CampaignHandler) StartCampaign(w http.ResponseWriter, r *http.Request) {
	if err := h.controller.Start(); err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}

	h.logger.Info("campaign started")
	writeJSON(w, http.StatusAccepted, h.controller.Status(), h.logger)
}

// StopCampaign handles POST /api/campaign/stop. It blocks until the live run
// has wound down.
func (h *CampaignHandler) StopCampaign(w http.ResponseWriter, r *http.Request) {
	h.controller.Stop()

	h.logger.Info("campaign stopped")
	writeJSON(w, http.StatusOK, h.controller.Status(), h.logger)
}

// CampaignStatus handles GET /api/campaign/status
func (h *CampaignHandler) CampaignStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.controller.Status(), h.logger)
}
