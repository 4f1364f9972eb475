package api

import (
	"log/slog"
	"net/http"

	"github.com/threadcast/threadcast/internal/uploader"
)

// maxUploadBytes bounds the multipart form kept in memory; Catbox itself
// rejects files over 200 MB.
const maxUploadBytes = 200 << 20

// UploadHandler pushes media files to the hosting service and returns the
// hosted URL for use in post content.
type UploadHandler struct {
	uploader *uploader.Catbox
	logger   *slog.Logger
}

func NewUploadHandler(up *uploader.Catbox, logger *slog.Logger) *UploadHandler {
	return &UploadHandler{
		uploader: up,
		logger:   logger,
	}
}

// UploadMedia handles POST /api/uploads with a multipart "file" field.
func (h *UploadHandler) UploadMedia(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		http.Error(w, "Invalid multipart form", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "Missing file field", http.StatusBadRequest)
		return
	}
	defer file.Close()

	if err := ValidateUploadFilename(header.Filename); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	url, err := h.uploader.Upload(r.Context(), header.Filename, file)
	if err != nil {
		h.logger.Error("upload failed", "filename", header.Filename, "error", err)
		http.Error(w, "Upload failed", http.StatusBadGateway)
		return
	}

	h.logger.Info("uploaded media", "filename", header.Filename, "url", url)
	writeJSON(w, http.StatusCreated, map[string]string{"url": url}, h.logger)
}
