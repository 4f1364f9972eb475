package api

import (
	"fmt"
	"strings"

	"github.com/threadcast/threadcast/internal/models"
)

// ValidationError represents a validation error
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateAccountUpdate validates fields supplied on an account update.
func ValidateAccountUpdate(acct *models.Account) error {
	if acct.ID == "" {
		return ValidationError{Field: "id", Message: "Account ID is required"}
	}

	if acct.Proxy.Host != "" && acct.Proxy.Port == "" {
		return ValidationError{Field: "proxy", Message: "Proxy port is required when a host is set"}
	}
	if acct.Proxy.Port != "" && acct.Proxy.Host == "" {
		return ValidationError{Field: "proxy", Message: "Proxy host is required when a port is set"}
	}

	if acct.APIToken != "" && acct.APIIdentity == "" {
		return ValidationError{Field: "api_identity", Message: "API identity is required when a token is set"}
	}

	return nil
}

// ValidatePostContent checks the content fields for a post before it is stored.
func ValidatePostContent(content models.PostContent) error {
	switch content.Kind {
	case models.ContentText:
		// Text alone is fine.
	case models.ContentImage:
		if content.ImageURL == "" {
			return ValidationError{Field: "image_url", Message: "Image URL is required for image posts"}
		}
	case models.ContentVideo:
		if content.VideoURL == "" {
			return ValidationError{Field: "video_url", Message: "Video URL is required for video posts"}
		}
	case models.ContentImageCarousel:
		if len(content.ImageURLs) < 2 {
			return ValidationError{Field: "image_urls", Message: "Carousels need at least two images"}
		}
	case models.ContentMixedCarousel:
		if len(content.Items) < 2 || len(content.Items) > 20 {
			return ValidationError{Field: "items", Message: "Mixed carousels need between 2 and 20 items"}
		}
	default:
		return ValidationError{Field: "kind", Message: fmt.Sprintf("Unknown content kind %q", content.Kind)}
	}
	return nil
}

// ValidateActionRange parses a "min-max" engagement range expression. An
// empty expression means the action is disabled.
func ValidateActionRange(field, expr string) (models.ActionRange, error) {
	if strings.TrimSpace(expr) == "" {
		return models.ActionRange{}, nil
	}
	r, err := models.ParseActionRange(expr)
	if err != nil {
		return models.ActionRange{}, ValidationError{Field: field, Message: err.Error()}
	}
	return r, nil
}

// ValidateUploadFilename rejects names that could escape the upload form.
func ValidateUploadFilename(name string) error {
	if name == "" {
		return ValidationError{Field: "file", Message: "Filename is required"}
	}
	if strings.ContainsAny(name, "/\\") {
		return ValidationError{Field: "file", Message: "Filename must not contain path separators"}
	}
	return nil
}
