package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/threadcast/threadcast/internal/comments"
)

// CommentsHandler manages the comment pool used by engagement runs.
type CommentsHandler struct {
	pool   *comments.Pool
	logger *slog.Logger
}

func NewCommentsHandler(pool *comments.Pool, logger *slog.Logger) *CommentsHandler {
	return &CommentsHandler{
		pool:   pool,
		logger: logger,
	}
}

// GetComments handles GET /api/comments
func (h *CommentsHandler) GetComments(w http.ResponseWriter, r *http.Request) {
	entries := h.pool.Entries()
	writeJSON(w, http.StatusOK, map[string]any{
		"comments": entries,
		"count":    len(entries),
	}, h.logger)
}

// UpdateComments replaces the pool with newline-separated entries
// PUT /api/comments
func (h *CommentsHandler) UpdateComments(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Lines string `json:"lines"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	h.pool.Replace(strings.Split(body.Lines, "\n"))

	h.logger.Info("comment pool replaced", "count", h.pool.Len())
	writeJSON(w, http.StatusOK, map[string]any{"count": h.pool.Len()}, h.logger)
}
