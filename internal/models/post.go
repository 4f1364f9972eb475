package models

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// PostStatus represents the lifecycle state of a post in the backlog.
type PostStatus string

const (
	PostStatusWaiting   PostStatus = "waiting"
	PostStatusRunning   PostStatus = "running"
	PostStatusCompleted PostStatus = "completed"
)

// ContentKind tags the shape of a post's media payload. The kind is decided
// once when the post is created, not re-derived by probing optional fields.
type ContentKind string

const (
	ContentText          ContentKind = "text"
	ContentImage         ContentKind = "image"
	ContentImageCarousel ContentKind = "carousel"
	ContentVideo         ContentKind = "video"
	ContentMixedCarousel ContentKind = "mixed"
)

// MediaType distinguishes items inside a mixed carousel.
type MediaType string

const (
	MediaImage MediaType = "IMAGE"
	MediaVideo MediaType = "VIDEO"
)

// MediaItem is one ordered entry of a mixed carousel.
type MediaItem struct {
	Type MediaType `json:"type"`
	URL  string    `json:"url"`
}

// PostContent is the tagged union of post shapes. Exactly the fields implied
// by Kind are populated.
type PostContent struct {
	Kind      ContentKind `json:"kind"`
	ImageURL  string      `json:"image_url,omitempty"`
	ImageURLs []string    `json:"image_urls,omitempty"`
	VideoURL  string      `json:"video_url,omitempty"`
	Items     []MediaItem `json:"items,omitempty"`
}

// ResolveContent decides the content shape from raw form inputs: a
// comma-separated image URL list, a video URL, and optional ordered mixed
// media items. Mixed items win, then video, then images, then plain text.
func ResolveContent(imageCSV, videoURL string, items []MediaItem) (PostContent, error) {
	if len(items) > 0 {
		if len(items) < 2 {
			return PostContent{}, fmt.Errorf("mixed carousel requires at least 2 media items, got %d", len(items))
		}
		if len(items) > 20 {
			return PostContent{}, fmt.Errorf("mixed carousel allows at most 20 media items, got %d", len(items))
		}
		for i, item := range items {
			if item.Type != MediaImage && item.Type != MediaVideo {
				return PostContent{}, fmt.Errorf("media item %d: unsupported type %q", i, item.Type)
			}
			if strings.TrimSpace(item.URL) == "" {
				return PostContent{}, fmt.Errorf("media item %d: empty URL", i)
			}
		}
		return PostContent{Kind: ContentMixedCarousel, Items: items}, nil
	}

	if v := strings.TrimSpace(videoURL); v != "" {
		return PostContent{Kind: ContentVideo, VideoURL: v}, nil
	}

	var urls []string
	for _, u := range strings.Split(imageCSV, ",") {
		if u = strings.TrimSpace(u); u != "" {
			urls = append(urls, u)
		}
	}
	switch len(urls) {
	case 0:
		return PostContent{Kind: ContentText}, nil
	case 1:
		return PostContent{Kind: ContentImage, ImageURL: urls[0]}, nil
	default:
		return PostContent{Kind: ContentImageCarousel, ImageURLs: urls}, nil
	}
}

// Post is one content unit to broadcast across the selected accounts.
type Post struct {
	ID             string      `json:"id"`
	Title          string      `json:"title"`
	Body           string      `json:"body"`
	Content        PostContent `json:"content"`
	Status         PostStatus  `json:"status"`
	StatusLabel    string      `json:"status_label,omitempty"`
	RepeatCount    int         `json:"repeat_count"`
	RepeatProgress int         `json:"repeat_progress"`
	Deleted        bool        `json:"deleted,omitempty"`
}

// NewPost creates a waiting post with a resolved content shape.
func NewPost(title, body string, content PostContent) Post {
	return Post{
		ID:          uuid.NewString(),
		Title:       title,
		Body:        body,
		Content:     content,
		Status:      PostStatusWaiting,
		RepeatCount: 1,
	}
}

// Validate checks the repeat invariants.
func (p *Post) Validate() error {
	if p.RepeatCount < 1 {
		return fmt.Errorf("repeat_count must be >= 1, got %d", p.RepeatCount)
	}
	if p.RepeatProgress < 0 || p.RepeatProgress > p.RepeatCount {
		return fmt.Errorf("repeat_progress %d out of range [0,%d]", p.RepeatProgress, p.RepeatCount)
	}
	return nil
}

// NeedsWork reports whether the post still has cycles to run: it is waiting,
// or it is a repeating post whose progress has not reached its count.
func (p *Post) NeedsWork() bool {
	if p.Deleted {
		return false
	}
	if p.Status == PostStatusWaiting {
		return true
	}
	return p.RepeatCount > 1 && p.RepeatProgress < p.RepeatCount
}
