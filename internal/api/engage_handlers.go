package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/threadcast/threadcast/internal/engage"
	"github.com/threadcast/threadcast/internal/models"
	"github.com/threadcast/threadcast/internal/store"
)

// EngageHandler drives per-account engagement runs.
type EngageHandler struct {
	runner *engage.Runner
	store  *store.Store
	logger *slog.Logger
}

func NewEngageHandler(runner *engage.Runner, st *store.Store, logger *slog.Logger) *EngageHandler {
	return &EngageHandler{
		runner: runner,
		store:  st,
		logger: logger,
	}
}

// EngageRequest carries the run parameters. Ranges use "min-max" form; a
// single number means a fixed count.
type EngageRequest struct {
	AccountID    string `json:"account_id,omitempty"`
	TargetCount  int    `json:"target_count"`
	Query        string `json:"query,omitempty"`
	Follow       string `json:"follow"`
	Like         string `json:"like"`
	Repost       string `json:"repost"`
	Comment      string `json:"comment"`
	DelaySeconds int    `json:"delay_seconds"`
}

func (h *EngageHandler) buildParams(req EngageRequest) (engage.Params, error) {
	var params engage.Params
	var err error

	params.TargetCount = req.TargetCount
	params.Query = strings.TrimSpace(req.Query)
	if params.Follow, err = ValidateActionRange("follow", req.Follow); err != nil {
		return params, err
	}
	if params.Like, err = ValidateActionRange("like", req.Like); err != nil {
		return params, err
	}
	if params.Repost, err = ValidateActionRange("repost", req.Repost); err != nil {
		return params, err
	}
	if params.Comment, err = ValidateActionRange("comment", req.Comment); err != nil {
		return params, err
	}
	params.Delay = time.Duration(req.DelaySeconds) * time.Second

	if err := params.Validate(); err != nil {
		return params, err
	}
	return params, nil
}

// StartEngage launches a run for one account
// POST /api/engage/start
func (h *EngageHandler) StartEngage(w http.ResponseWriter, r *http.Request) {
	var req EngageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.AccountID == "" {
		http.Error(w, "account_id is required", http.StatusBadRequest)
		return
	}

	params, err := h.buildParams(req)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	account, ok, err := h.findAccount(req.AccountID)
	if err != nil {
		http.Error(w, "Failed to load accounts", http.StatusInternalServerError)
		return
	}
	if !ok {
		http.Error(w, "Account not found", http.StatusNotFound)
		return
	}

	if err := h.runner.Start(account, params); err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}

	h.logger.Info("engagement started", "account", account.DisplayName())
	writeJSON(w, http.StatusAccepted, map[string]any{
		"account_id": account.ID,
		"running":    true,
	}, h.logger)
}

// StartEngageAll launches runs for every selected account, bounded by the
// configured engagement concurrency
// POST /api/engage/start-all
func (h *EngageHandler) StartEngageAll(w http.ResponseWriter, r *http.Request) {
	var req EngageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	params, err := h.buildParams(req)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	accounts, err := h.store.LoadAccounts()
	if err != nil {
		h.logger.Error("failed to load accounts", "error", err)
		http.Error(w, "Failed to load accounts", http.StatusInternalServerError)
		return
	}

	var selected []models.Account
	for _, acct := range accounts {
		if acct.Selected {
			selected = append(selected, acct)
		}
	}
	if len(selected) == 0 {
		http.Error(w, "No accounts selected", http.StatusBadRequest)
		return
	}

	settings, err := h.store.LoadSettings()
	if err != nil {
		h.logger.Error("failed to load settings", "error", err)
		http.Error(w, "Failed to load settings", http.StatusInternalServerError)
		return
	}

	if err := h.runner.StartAll(selected, params, settings.EngageConcurrency); err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}

	h.logger.Info("engagement started for all selected",
		"accounts", len(selected), "limit", settings.EngageConcurrency)
	writeJSON(w, http.StatusAccepted, map[string]any{
		"accounts": len(selected),
		"limit":    settings.EngageConcurrency,
	}, h.logger)
}

// StopEngage cancels the run for one account
// POST /api/engage/stop/:id
func (h *EngageHandler) StopEngage(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/engage/stop/")
	if id == "" {
		http.Error(w, "Account ID is required", http.StatusBadRequest)
		return
	}

	h.runner.Stop(id)
	h.logger.Info("engagement stop requested", "account_id", id)
	writeJSON(w, http.StatusOK, map[string]any{"account_id": id}, h.logger)
}

// StopEngageAll cancels every active run and waits for them to wind down
// POST /api/engage/stop-all
func (h *EngageHandler) StopEngageAll(w http.ResponseWriter, r *http.Request) {
	h.runner.StopAll()
	h.logger.Info("all engagement runs stopped")
	writeJSON(w, http.StatusOK, map[string]any{"running": []string{}}, h.logger)
}

// EngageStatus lists the accounts with active runs
// GET /api/engage/status
func (h *EngageHandler) EngageStatus(w http.ResponseWriter, r *http.Request) {
	running := h.runner.Running()
	writeJSON(w, http.StatusOK, map[string]any{
		"running": running,
		"count":   len(running),
	}, h.logger)
}

func (h *EngageHandler) findAccount(id string) (models.Account, bool, error) {
	accounts, err := h.store.LoadAccounts()
	if err != nil {
		h.logger.Error("failed to load accounts", "error", err)
		return models.Account{}, false, err
	}
	for _, acct := range accounts {
		if acct.ID == id {
			return acct, true, nil
		}
	}
	return models.Account{}, false, nil
}
