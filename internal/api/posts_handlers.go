package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/threadcast/threadcast/internal/models"
	"github.com/threadcast/threadcast/internal/store"
)

// PostsHandler manages the post backlog.
type PostsHandler struct {
	store  *store.Store
	logger *slog.Logger
}

func NewPostsHandler(st *store.Store, logger *slog.Logger) *PostsHandler {
	return &PostsHandler{
		store:  st,
		logger: logger,
	}
}

// PostRequest is the create/update payload. Media may be given either as raw
// form fields (image CSV, video URL) or as explicit mixed-carousel items.
type PostRequest struct {
	Title       string             `json:"title"`
	Body        string             `json:"body"`
	ImageURLs   string             `json:"image_urls"`
	VideoURL    string             `json:"video_url"`
	Items       []models.MediaItem `json:"items"`
	RepeatCount int                `json:"repeat_count"`
}

// ListPosts returns the backlog without soft-deleted entries
// GET /api/posts
func (h *PostsHandler) ListPosts(w http.ResponseWriter, r *http.Request) {
	posts, err := h.store.LoadPosts()
	if err != nil {
		h.logger.Error("failed to load posts", "error", err)
		http.Error(w, "Failed to load posts", http.StatusInternalServerError)
		return
	}

	visible := make([]models.Post, 0, len(posts))
	for _, p := range posts {
		if !p.Deleted {
			visible = append(visible, p)
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"posts": visible,
		"count": len(visible),
	}, h.logger)
}

// CreatePost appends a waiting post to the backlog
// POST /api/posts
func (h *PostsHandler) CreatePost(w http.ResponseWriter, r *http.Request) {
	var req PostRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	content, err := models.ResolveContent(req.ImageURLs, req.VideoURL, req.Items)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := ValidatePostContent(content); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	post := models.NewPost(req.Title, req.Body, content)
	if req.RepeatCount > 0 {
		post.RepeatCount = req.RepeatCount
	}
	if err := post.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	posts, err := h.store.LoadPosts()
	if err != nil {
		h.logger.Error("failed to load posts", "error", err)
		http.Error(w, "Failed to load posts", http.StatusInternalServerError)
		return
	}
	posts = append(posts, post)

	if err := h.store.SavePosts(posts); err != nil {
		h.logger.Error("failed to save posts", "error", err)
		http.Error(w, "Failed to save posts", http.StatusInternalServerError)
		return
	}

	h.logger.Info("created post", "id", post.ID, "kind", content.Kind, "repeat", post.RepeatCount)
	writeJSON(w, http.StatusCreated, post, h.logger)
}

// UpdatePost replaces the editable fields of one post
// PUT /api/posts/:id
func (h *PostsHandler) UpdatePost(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/posts/")

	var req PostRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	content, err := models.ResolveContent(req.ImageURLs, req.VideoURL, req.Items)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := ValidatePostContent(content); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	posts, err := h.store.LoadPosts()
	if err != nil {
		h.logger.Error("failed to load posts", "error", err)
		http.Error(w, "Failed to load posts", http.StatusInternalServerError)
		return
	}

	idx := h.findPost(posts, id)
	if idx < 0 {
		http.Error(w, "Post not found", http.StatusNotFound)
		return
	}

	post := &posts[idx]
	post.Title = req.Title
	post.Body = req.Body
	post.Content = content
	if req.RepeatCount > 0 {
		post.RepeatCount = req.RepeatCount
	}
	if err := post.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.store.SavePosts(posts); err != nil {
		h.logger.Error("failed to save posts", "error", err)
		http.Error(w, "Failed to save posts", http.StatusInternalServerError)
		return
	}

	h.logger.Info("updated post", "id", id)
	writeJSON(w, http.StatusOK, post, h.logger)
}

// DeletePost soft-deletes one post; the next campaign finalize sweeps it
// DELETE /api/posts/:id
func (h *PostsHandler) DeletePost(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/posts/")

	posts, err := h.store.LoadPosts()
	if err != nil {
		h.logger.Error("failed to load posts", "error", err)
		http.Error(w, "Failed to load posts", http.StatusInternalServerError)
		return
	}

	idx := h.findPost(posts, id)
	if idx < 0 {
		http.Error(w, "Post not found", http.StatusNotFound)
		return
	}
	posts[idx].Deleted = true

	if err := h.store.SavePosts(posts); err != nil {
		h.logger.Error("failed to save posts", "error", err)
		http.Error(w, "Failed to save posts", http.StatusInternalServerError)
		return
	}

	h.logger.Info("deleted post", "id", id)
	w.WriteHeader(http.StatusNoContent)
}

// ResetPost returns a post to the waiting state with zero progress
// POST /api/posts/:id/reset
func (h *PostsHandler) ResetPost(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/posts/")
	id = strings.TrimSuffix(id, "/reset")

	posts, err := h.store.LoadPosts()
	if err != nil {
		h.logger.Error("failed to load posts", "error", err)
		http.Error(w, "Failed to load posts", http.StatusInternalServerError)
		return
	}

	idx := h.findPost(posts, id)
	if idx < 0 {
		http.Error(w, "Post not found", http.StatusNotFound)
		return
	}

	post := &posts[idx]
	post.Status = models.PostStatusWaiting
	post.StatusLabel = ""
	post.RepeatProgress = 0

	if err := h.store.SavePosts(posts); err != nil {
		h.logger.Error("failed to save posts", "error", err)
		http.Error(w, "Failed to save posts", http.StatusInternalServerError)
		return
	}

	h.logger.Info("reset post", "id", id)
	writeJSON(w, http.StatusOK, post, h.logger)
}

// ImportPosts appends one waiting text post per non-empty line
// POST /api/posts/import
func (h *PostsHandler) ImportPosts(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Lines       string `json:"lines"`
		RepeatCount int    `json:"repeat_count"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	posts, err := h.store.LoadPosts()
	if err != nil {
		h.logger.Error("failed to load posts", "error", err)
		http.Error(w, "Failed to load posts", http.StatusInternalServerError)
		return
	}

	imported := 0
	for _, line := range strings.Split(body.Lines, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		post := models.NewPost("", line, models.PostContent{Kind: models.ContentText})
		if body.RepeatCount > 0 {
			post.RepeatCount = body.RepeatCount
		}
		posts = append(posts, post)
		imported++
	}

	if err := h.store.SavePosts(posts); err != nil {
		h.logger.Error("failed to save posts", "error", err)
		http.Error(w, "Failed to save posts", http.StatusInternalServerError)
		return
	}

	h.logger.Info("imported posts", "imported", imported)
	writeJSON(w, http.StatusOK, map[string]any{"imported": imported}, h.logger)
}

func (h *PostsHandler) findPost(posts []models.Post, id string) int {
	for i := range posts {
		if posts[i].ID == id && !posts[i].Deleted {
			return i
		}
	}
	return -1
}
