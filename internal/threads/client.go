package threads

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"log/slog"

	"github.com/threadcast/threadcast/internal/models"
)

const (
	defaultBaseURL   = "https://graph.threads.net/v1.0"
	defaultIPEchoURL = "https://httpbin.org/ip"

	// How long uploaded media needs before the platform will accept a
	// publish or a carousel assembly referencing it.
	videoSettleWait    = 20 * time.Second
	carouselVideoWait  = 60 * time.Second
	carouselImageWait  = 5 * time.Second
	carouselRetryWait  = 30 * time.Second
	publishRetryWait   = 10 * time.Second
	maxCarouselRetries = 5
)

// Credentials identifies one account against the Graph API. Proxy is applied
// to every request made with these credentials when configured.
type Credentials struct {
	UserID string
	Token  string
	Proxy  models.Proxy
}

// Client talks to the Threads Graph API. One Client serves all accounts; the
// per-account pieces (user ID, token, proxy) travel in Credentials.
type Client struct {
	baseURL   string
	ipEchoURL string
	timeout   time.Duration
	logger    *slog.Logger

	videoSettle   time.Duration
	carouselVideo time.Duration
	carouselImage time.Duration
	retryWait     time.Duration
	publishRetry  time.Duration
}

// NewClient creates a Graph API client.
func NewClient(logger *slog.Logger) *Client {
	return &Client{
		baseURL:       defaultBaseURL,
		ipEchoURL:     defaultIPEchoURL,
		timeout:       30 * time.Second,
		logger:        logger,
		videoSettle:   videoSettleWait,
		carouselVideo: carouselVideoWait,
		carouselImage: carouselImageWait,
		retryWait:     carouselRetryWait,
		publishRetry:  publishRetryWait,
	}
}

// APIError is a structured Graph API error response.
type APIError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    int    `json:"code"`
	Subcode int    `json:"error_subcode"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("threads API error %d (subcode %d): %s", e.Code, e.Subcode, e.Message)
}

// mediaNotReady reports whether the error means uploaded media has not
// finished processing and the operation is worth retrying after a wait.
func mediaNotReady(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	switch apiErr.Subcode {
	case 4279004, 4279009:
		return true
	}
	return strings.Contains(apiErr.Message, "Invalid parameter")
}

func (c *Client) httpClientFor(proxy models.Proxy) *http.Client {
	client := &http.Client{Timeout: c.timeout}
	if proxy.IsConfigured() {
		proxyURL := &url.URL{Scheme: "http", Host: proxy.ServerAddr()}
		if proxy.Username != "" {
			proxyURL.User = url.UserPassword(proxy.Username, proxy.Password)
		}
		client.Transport = &http.Transport{Proxy: http.ProxyURL(proxyURL)}
	}
	return client
}

type apiResponse struct {
	ID        string    `json:"id"`
	Permalink string    `json:"permalink"`
	Error     *APIError `json:"error"`
}

func (c *Client) do(ctx context.Context, creds Credentials, method, path string, params url.Values) (*apiResponse, error) {
	endpoint := c.baseURL + path

	var req *http.Request
	var err error
	if method == http.MethodGet {
		req, err = http.NewRequestWithContext(ctx, method, endpoint+"?"+params.Encode(), nil)
	} else {
		req, err = http.NewRequestWithContext(ctx, method, endpoint, strings.NewReader(params.Encode()))
		if req != nil {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClientFor(creds.Proxy).Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var parsed apiResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse response (status %d): %s", resp.StatusCode, string(body))
	}

	if parsed.Error != nil {
		return nil, parsed.Error
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("threads API returned status %d: %s", resp.StatusCode, string(body))
	}
	return &parsed, nil
}

// createContainer creates a media container and returns its ID.
func (c *Client) createContainer(ctx context.Context, creds Credentials, params url.Values) (string, error) {
	params.Set("access_token", creds.Token)
	resp, err := c.do(ctx, creds, http.MethodPost, "/"+creds.UserID+"/threads", params)
	if err != nil {
		return "", fmt.Errorf("create container: %w", err)
	}
	if resp.ID == "" {
		return "", fmt.Errorf("create container: response had no id")
	}
	return resp.ID, nil
}

// publish promotes a finished container to a live post and returns the post ID.
func (c *Client) publish(ctx context.Context, creds Credentials, containerID string) (string, error) {
	params := url.Values{}
	params.Set("creation_id", containerID)
	params.Set("access_token", creds.Token)

	resp, err := c.do(ctx, creds, http.MethodPost, "/"+creds.UserID+"/threads_publish", params)
	if err != nil {
		return "", fmt.Errorf("publish container: %w", err)
	}
	if resp.ID == "" {
		return "", fmt.Errorf("publish container: response had no id")
	}
	return resp.ID, nil
}

// PostText publishes a text-only post.
func (c *Client) PostText(ctx context.Context, creds Credentials, text string) (string, error) {
	params := url.Values{}
	params.Set("media_type", "TEXT")
	params.Set("text", text)

	containerID, err := c.createContainer(ctx, creds, params)
	if err != nil {
		return "", err
	}
	return c.publish(ctx, creds, containerID)
}

// PostImage publishes a single-image post.
func (c *Client) PostImage(ctx context.Context, creds Credentials, text, imageURL string) (string, error) {
	params := url.Values{}
	params.Set("media_type", "IMAGE")
	params.Set("image_url", imageURL)
	if text != "" {
		params.Set("text", text)
	}

	containerID, err := c.createContainer(ctx, creds, params)
	if err != nil {
		return "", err
	}
	return c.publish(ctx, creds, containerID)
}

// PostVideo publishes a single-video post. Video processing is asynchronous
// on the platform side, so the publish waits for the media to settle and
// retries once if the first attempt lands too early.
func (c *Client) PostVideo(ctx context.Context, creds Credentials, text, videoURL string) (string, error) {
	params := url.Values{}
	params.Set("media_type", "VIDEO")
	params.Set("video_url", videoURL)
	if text != "" {
		params.Set("text", text)
	}

	containerID, err := c.createContainer(ctx, creds, params)
	if err != nil {
		return "", err
	}

	if err := sleepCtx(ctx, c.videoSettle); err != nil {
		return "", err
	}

	postID, err := c.publish(ctx, creds, containerID)
	if err == nil {
		return postID, nil
	}

	c.logger.Warn("video publish failed, retrying once",
		"user_id", creds.UserID, "error", err)
	if waitErr := sleepCtx(ctx, c.publishRetry); waitErr != nil {
		return "", waitErr
	}
	return c.publish(ctx, creds, containerID)
}

// PostImageCarousel publishes a carousel of two or more images.
func (c *Client) PostImageCarousel(ctx context.Context, creds Credentials, text string, imageURLs []string) (string, error) {
	if len(imageURLs) < 2 {
		return "", fmt.Errorf("carousel requires at least 2 images, got %d", len(imageURLs))
	}
	items := make([]models.MediaItem, len(imageURLs))
	for i, u := range imageURLs {
		items[i] = models.MediaItem{Type: models.MediaImage, URL: u}
	}
	return c.PostMixedCarousel(ctx, creds, text, items)
}

// PostMixedCarousel publishes a carousel of 2 to 20 image and video items.
// Carousel assembly fails while any child is still processing, so the first
// attempt waits for the slowest media kind and subsequent attempts back off
// between retries.
func (c *Client) PostMixedCarousel(ctx context.Context, creds Credentials, text string, items []models.MediaItem) (string, error) {
	if len(items) < 2 || len(items) > 20 {
		return "", fmt.Errorf("carousel requires 2 to 20 items, got %d", len(items))
	}

	childIDs := make([]string, 0, len(items))
	hasVideo := false
	for i, item := range items {
		params := url.Values{}
		params.Set("is_carousel_item", "true")
		switch item.Type {
		case models.MediaImage:
			params.Set("media_type", "IMAGE")
			params.Set("image_url", item.URL)
		case models.MediaVideo:
			params.Set("media_type", "VIDEO")
			params.Set("video_url", item.URL)
			hasVideo = true
		default:
			return "", fmt.Errorf("carousel item %d has unknown media type %q", i, item.Type)
		}

		childID, err := c.createContainer(ctx, creds, params)
		if err != nil {
			return "", fmt.Errorf("carousel item %d: %w", i, err)
		}
		childIDs = append(childIDs, childID)
	}

	settle := c.carouselImage
	if hasVideo {
		settle = c.carouselVideo
	}
	if err := sleepCtx(ctx, settle); err != nil {
		return "", err
	}

	parentParams := url.Values{}
	parentParams.Set("media_type", "CAROUSEL")
	parentParams.Set("children", strings.Join(childIDs, ","))
	if text != "" {
		parentParams.Set("text", text)
	}

	var parentID string
	var err error
	for attempt := 0; attempt <= maxCarouselRetries; attempt++ {
		if attempt > 0 {
			c.logger.Warn("carousel media not ready, retrying",
				"user_id", creds.UserID, "attempt", attempt)
			if waitErr := sleepCtx(ctx, c.retryWait); waitErr != nil {
				return "", waitErr
			}
		}

		parentID, err = c.createContainer(ctx, creds, cloneValues(parentParams))
		if err == nil {
			break
		}
		if !mediaNotReady(err) {
			return "", err
		}
	}
	if err != nil {
		return "", fmt.Errorf("carousel media never became ready: %w", err)
	}

	return c.publish(ctx, creds, parentID)
}

// ResolvePermalink fetches the public URL of a published post. Callers fall
// back to a constructed URL when the lookup fails.
func (c *Client) ResolvePermalink(ctx context.Context, creds Credentials, postID string) (string, error) {
	params := url.Values{}
	params.Set("fields", "permalink")
	params.Set("access_token", creds.Token)

	resp, err := c.do(ctx, creds, http.MethodGet, "/"+postID, params)
	if err != nil {
		return "", fmt.Errorf("resolve permalink: %w", err)
	}
	if resp.Permalink == "" {
		return "", fmt.Errorf("resolve permalink: response had no permalink")
	}
	return resp.Permalink, nil
}

// FallbackPermalink builds a best-effort public URL for a post ID.
func FallbackPermalink(postID string) string {
	return "https://www.threads.com/t/" + postID
}

// CheckProxyIP reports the public IP the given proxy exits through, using an
// external echo service. Some echo services return "client, proxy" pairs, so
// only the first address is kept.
func (c *Client) CheckProxyIP(ctx context.Context, proxy models.Proxy) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.ipEchoURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClientFor(proxy).Do(req)
	if err != nil {
		return "", fmt.Errorf("ip check failed: %w", err)
	}
	defer resp.Body.Close()

	var echo struct {
		Origin string `json:"origin"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&echo); err != nil {
		return "", fmt.Errorf("failed to parse ip check response: %w", err)
	}

	ip, _, _ := strings.Cut(echo.Origin, ",")
	return strings.TrimSpace(ip), nil
}

func cloneValues(v url.Values) url.Values {
	out := make(url.Values, len(v))
	for k, vals := range v {
		out[k] = append([]string(nil), vals...)
	}
	return out
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
