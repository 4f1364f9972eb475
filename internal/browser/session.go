// Package browser drives logged-in Threads web sessions for engagement runs.
package browser

import (
	"context"
	"fmt"
	"sync"

	"log/slog"

	"github.com/threadcast/threadcast/internal/config"
	"github.com/threadcast/threadcast/internal/models"
)

// Target is one account surfaced while scanning the feed. Handle extraction
// happens lazily against the live DOM and can fail when the page has moved
// under us.
type Target interface {
	Handle() (string, error)
}

// Session is a logged-in browser context for one account. Search switches the
// scan to the result feed for a query; NextTarget advances the scan cursor and
// returns the account under it; Seek fast-forwards past already-processed
// targets after a restart.
type Session interface {
	IsLoginRequired(ctx context.Context) (bool, error)
	Login(ctx context.Context) error
	Search(ctx context.Context, query string) error
	Seek(ctx context.Context, index int) error
	NextTarget(ctx context.Context) (Target, error)
	Act(ctx context.Context, target Target, kind models.ActionKind, comment string) error
	Close() error
}

// Opener creates sessions. The concrete implementation launches Chrome; tests
// substitute fakes.
type Opener interface {
	Open(ctx context.Context, account models.Account) (Session, error)
}

// Manager is the session registry. Each account gets at most one live session,
// keyed by account ID, so stop requests can reach a running browser and a
// crashed run never leaks a second Chrome for the same profile.
type Manager struct {
	opener Opener
	logger *slog.Logger

	mu       sync.Mutex
	sessions map[string]Session
}

// NewManager creates a registry backed by the given opener.
func NewManager(opener Opener, logger *slog.Logger) *Manager {
	return &Manager{
		opener:   opener,
		logger:   logger,
		sessions: make(map[string]Session),
	}
}

// NewRodManager creates a registry that launches real Chrome sessions.
func NewRodManager(cfg config.BrowserConfig, logger *slog.Logger) *Manager {
	return NewManager(newRodOpener(cfg, logger), logger)
}

// Open creates and registers a session for the account, closing any previous
// session for the same account first.
func (m *Manager) Open(ctx context.Context, account models.Account) (Session, error) {
	m.mu.Lock()
	if old, ok := m.sessions[account.ID]; ok {
		delete(m.sessions, account.ID)
		m.mu.Unlock()
		if err := old.Close(); err != nil {
			m.logger.Warn("failed to close stale session",
				"account_id", account.ID, "error", err)
		}
		m.mu.Lock()
	}
	m.mu.Unlock()

	session, err := m.opener.Open(ctx, account)
	if err != nil {
		return nil, fmt.Errorf("open session for %s: %w", account.DisplayName(), err)
	}

	m.mu.Lock()
	m.sessions[account.ID] = session
	m.mu.Unlock()
	return session, nil
}

// Close shuts down the session for an account, if any.
func (m *Manager) Close(accountID string) error {
	m.mu.Lock()
	session, ok := m.sessions[accountID]
	delete(m.sessions, accountID)
	m.mu.Unlock()

	if !ok {
		return nil
	}
	return session.Close()
}

// CloseAll shuts down every live session. Used on shutdown and when a
// stop-all request comes in.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]Session)
	m.mu.Unlock()

	for id, session := range sessions {
		if err := session.Close(); err != nil {
			m.logger.Warn("failed to close session", "account_id", id, "error", err)
		}
	}
}

// Active returns the IDs of accounts with live sessions.
func (m *Manager) Active() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	return ids
}
