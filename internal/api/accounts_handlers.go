package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/threadcast/threadcast/internal/models"
	"github.com/threadcast/threadcast/internal/store"
)

// AccountsHandler manages the fixed-size account roster.
type AccountsHandler struct {
	store  *store.Store
	logger *slog.Logger
}

func NewAccountsHandler(st *store.Store, logger *slog.Logger) *AccountsHandler {
	return &AccountsHandler{
		store:  st,
		logger: logger,
	}
}

// ListAccounts returns the whole roster
// GET /api/accounts
func (h *AccountsHandler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.store.LoadAccounts()
	if err != nil {
		h.logger.Error("failed to load accounts", "error", err)
		http.Error(w, "Failed to load accounts", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"accounts": accounts,
		"count":    len(accounts),
	}, h.logger)
}

// UpdateAccount replaces the editable fields of one roster row
// PUT /api/accounts/:id
func (h *AccountsHandler) UpdateAccount(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/accounts/")

	var updates models.Account
	if err := json.NewDecoder(r.Body).Decode(&updates); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	updates.ID = id

	if err := ValidateAccountUpdate(&updates); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	accounts, err := h.store.LoadAccounts()
	if err != nil {
		h.logger.Error("failed to load accounts", "error", err)
		http.Error(w, "Failed to load accounts", http.StatusInternalServerError)
		return
	}

	idx := -1
	for i := range accounts {
		if accounts[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		http.Error(w, "Account not found", http.StatusNotFound)
		return
	}

	acct := &accounts[idx]
	acct.Username = updates.Username
	acct.Credential = updates.Credential
	acct.APIIdentity = updates.APIIdentity
	acct.APIToken = updates.APIToken
	acct.Proxy = updates.Proxy
	acct.Selected = updates.Selected

	if err := h.store.SaveAccounts(accounts); err != nil {
		h.logger.Error("failed to save accounts", "error", err)
		http.Error(w, "Failed to save accounts", http.StatusInternalServerError)
		return
	}

	h.logger.Info("updated account", "id", id, "username", acct.Username)
	writeJSON(w, http.StatusOK, acct, h.logger)
}

// ImportAccounts fills blank roster rows from "username:password[:host:port[:user:pass]]" lines
// POST /api/accounts/import
func (h *AccountsHandler) ImportAccounts(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Lines string `json:"lines"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	accounts, err := h.store.LoadAccounts()
	if err != nil {
		h.logger.Error("failed to load accounts", "error", err)
		http.Error(w, "Failed to load accounts", http.StatusInternalServerError)
		return
	}

	imported := 0
	skipped := 0
	next := 0
	for _, line := range strings.Split(body.Lines, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		parts := strings.Split(line, ":")
		if len(parts) < 2 {
			skipped++
			continue
		}

		// Find the next blank row to fill.
		for next < len(accounts) && accounts[next].Username != "" {
			next++
		}
		if next >= len(accounts) {
			skipped++
			continue
		}

		acct := &accounts[next]
		acct.Username = strings.TrimSpace(parts[0])
		acct.Credential = strings.TrimSpace(parts[1])
		if len(parts) >= 4 {
			acct.Proxy.Host = strings.TrimSpace(parts[2])
			acct.Proxy.Port = strings.TrimSpace(parts[3])
		}
		if len(parts) >= 6 {
			acct.Proxy.Username = strings.TrimSpace(parts[4])
			acct.Proxy.Password = strings.TrimSpace(parts[5])
		}
		imported++
	}

	if err := h.store.SaveAccounts(accounts); err != nil {
		h.logger.Error("failed to save accounts", "error", err)
		http.Error(w, "Failed to save accounts", http.StatusInternalServerError)
		return
	}

	h.logger.Info("imported accounts", "imported", imported, "skipped", skipped)
	writeJSON(w, http.StatusOK, map[string]any{
		"imported": imported,
		"skipped":  skipped,
	}, h.logger)
}

// DeleteAccounts clears the given rows and pads the roster back to its fixed size
// POST /api/accounts/delete
func (h *AccountsHandler) DeleteAccounts(w http.ResponseWriter, r *http.Request) {
	var body struct {
		IDs []string `json:"ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if len(body.IDs) == 0 {
		http.Error(w, "No account IDs given", http.StatusBadRequest)
		return
	}

	accounts, err := h.store.LoadAccounts()
	if err != nil {
		h.logger.Error("failed to load accounts", "error", err)
		http.Error(w, "Failed to load accounts", http.StatusInternalServerError)
		return
	}

	doomed := make(map[string]bool, len(body.IDs))
	for _, id := range body.IDs {
		doomed[id] = true
	}

	kept := accounts[:0]
	removed := 0
	for _, acct := range accounts {
		if doomed[acct.ID] {
			removed++
			continue
		}
		kept = append(kept, acct)
	}
	for len(kept) < store.SeedAccountCount {
		kept = append(kept, models.NewBlankAccount())
	}

	if err := h.store.SaveAccounts(kept); err != nil {
		h.logger.Error("failed to save accounts", "error", err)
		http.Error(w, "Failed to save accounts", http.StatusInternalServerError)
		return
	}

	h.logger.Info("deleted accounts", "removed", removed)
	writeJSON(w, http.StatusOK, map[string]any{
		"removed": removed,
		"count":   len(kept),
	}, h.logger)
}
