package uploader

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"log/slog"
)

const defaultEndpoint = "https://catbox.moe/user/api.php"

// Catbox uploads media files to the catbox.moe file host and returns their
// public URLs. Posts reference media by URL only, so local files go through
// here before a campaign can use them.
type Catbox struct {
	endpoint   string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewCatbox creates an uploader with a 60 second timeout, which covers large
// video uploads on slow links.
func NewCatbox(logger *slog.Logger) *Catbox {
	return &Catbox{
		endpoint: defaultEndpoint,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		logger: logger,
	}
}

// Upload sends one file and returns its hosted URL.
func (c *Catbox) Upload(ctx context.Context, filename string, r io.Reader) (string, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	if err := writer.WriteField("reqtype", "fileupload"); err != nil {
		return "", fmt.Errorf("failed to write form field: %w", err)
	}
	part, err := writer.CreateFormFile("fileToUpload", filename)
	if err != nil {
		return "", fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return "", fmt.Errorf("failed to copy file content: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("failed to finalize form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, &body)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("upload failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read upload response: %w", err)
	}

	hostedURL := strings.TrimSpace(string(respBody))
	if resp.StatusCode != http.StatusOK || !strings.HasPrefix(hostedURL, "http") {
		return "", fmt.Errorf("upload rejected (status %d): %s", resp.StatusCode, hostedURL)
	}

	c.logger.Info("file uploaded", "filename", filename, "url", hostedURL)
	return hostedURL, nil
}
