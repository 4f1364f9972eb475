package models

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// AccountStatus represents the lifecycle state of an account within a run.
type AccountStatus string

const (
	AccountStatusIdle      AccountStatus = "idle"
	AccountStatusQueued    AccountStatus = "queued"
	AccountStatusRunning   AccountStatus = "running"
	AccountStatusCompleted AccountStatus = "completed"
	AccountStatusFailed    AccountStatus = "failed"
)

// Proxy holds optional per-account outbound proxy settings.
type Proxy struct {
	Host     string `json:"host"`
	Port     string `json:"port"`
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`
}

// IsConfigured reports whether both host and port are set.
func (p Proxy) IsConfigured() bool {
	return strings.TrimSpace(p.Host) != "" && strings.TrimSpace(p.Port) != ""
}

// ServerAddr returns the host:port form used by browsers and transports.
func (p Proxy) ServerAddr() string {
	return fmt.Sprintf("%s:%s", strings.TrimSpace(p.Host), strings.TrimSpace(p.Port))
}

// Account is one Threads account managed by the roster. Credentials drive the
// browser session; APIIdentity/APIToken drive the Graph API client.
type Account struct {
	ID          string        `json:"id"`
	Username    string        `json:"username"`
	Credential  string        `json:"credential"`
	APIIdentity string        `json:"api_identity"`
	APIToken    string        `json:"api_token"`
	Proxy       Proxy         `json:"proxy"`
	Selected    bool          `json:"selected"`
	Status      AccountStatus `json:"status"`
	StatusLabel string        `json:"status_label,omitempty"`
}

// NewBlankAccount returns an unselected placeholder row used to pad the
// roster back to its fixed size after bulk deletion.
func NewBlankAccount() Account {
	return Account{
		ID:     uuid.NewString(),
		Status: AccountStatusIdle,
	}
}

// HasAPICredentials reports whether the account can be used for API posting.
func (a *Account) HasAPICredentials() bool {
	return strings.TrimSpace(a.APIIdentity) != "" && strings.TrimSpace(a.APIToken) != ""
}

// SetStatus updates the status and its human-readable label in one step.
func (a *Account) SetStatus(status AccountStatus, label string) {
	a.Status = status
	a.StatusLabel = label
}

// DisplayName falls back to the account ID when no username is set.
func (a *Account) DisplayName() string {
	if a.Username != "" {
		return a.Username
	}
	return a.ID
}
