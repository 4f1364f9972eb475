package engage

import (
	"context"
	"errors"
	"fmt"

	"log/slog"

	"github.com/threadcast/threadcast/internal/browser"
	"github.com/threadcast/threadcast/internal/comments"
	"github.com/threadcast/threadcast/internal/models"
	"github.com/threadcast/threadcast/internal/store"
)

// How many restarts one account gets before its run is declared failed.
const maxRestarts = 3

// Supervisor runs engagement jobs and handles their restart protocol. Each
// restart request is checkpointed to disk before the new session starts, so a
// process crash resumes where the job left off instead of re-engaging the
// same targets.
type Supervisor struct {
	store     *store.Store
	sessions  *browser.Manager
	pool      *comments.Pool
	onAction  ActionFunc
	onRestart func()
	logger    *slog.Logger
}

// NewSupervisor wires the supervisor.
func NewSupervisor(st *store.Store, sessions *browser.Manager, pool *comments.Pool, onAction ActionFunc, logger *slog.Logger) *Supervisor {
	return &Supervisor{
		store:    st,
		sessions: sessions,
		pool:     pool,
		onAction: onAction,
		logger:   logger,
	}
}

// SetRestartHook registers an observer invoked on every session restart.
func (s *Supervisor) SetRestartHook(fn func()) {
	s.onRestart = fn
}

// RunAccount drives one account to completion, restarting the browser session
// when a job reports it has degraded. A persisted checkpoint from a previous
// process run is honored on the first attempt.
func (s *Supervisor) RunAccount(ctx context.Context, account models.Account, params Params) error {
	if err := params.Validate(); err != nil {
		return fmt.Errorf("invalid engage params: %w", err)
	}

	cp, err := s.checkpoint(account.ID)
	if err != nil {
		return err
	}

	for {
		session, err := s.sessions.Open(ctx, account)
		if err != nil {
			return err
		}

		job := NewJob(account, session, params, s.pool, s.onAction, s.logger)
		runErr := job.Run(ctx, cp.NextIndex)

		if closeErr := s.sessions.Close(account.ID); closeErr != nil {
			s.logger.Warn("failed to close session after run",
				"account", account.DisplayName(), "error", closeErr)
		}

		if runErr == nil {
			return s.clearCheckpoint(account.ID)
		}

		var restart *RestartError
		if !errors.As(runErr, &restart) {
			return runErr
		}

		cp.NextIndex = restart.NextIndex
		cp.Restarts++
		if err := s.saveCheckpoint(account.ID, cp); err != nil {
			return err
		}

		if cp.Restarts > maxRestarts {
			return fmt.Errorf("account %s exceeded %d restarts, giving up at target %d",
				account.DisplayName(), maxRestarts, cp.NextIndex)
		}

		if s.onRestart != nil {
			s.onRestart()
		}

		s.logger.Info("restarting engagement session",
			"account", account.DisplayName(),
			"next_index", cp.NextIndex, "restart", cp.Restarts)
	}
}

func (s *Supervisor) checkpoint(accountID string) (models.EngageCheckpoint, error) {
	state, err := s.store.LoadEngageState()
	if err != nil {
		return models.EngageCheckpoint{}, fmt.Errorf("load engage state: %w", err)
	}
	return state.Checkpoints[accountID], nil
}

func (s *Supervisor) saveCheckpoint(accountID string, cp models.EngageCheckpoint) error {
	state, err := s.store.LoadEngageState()
	if err != nil {
		return fmt.Errorf("load engage state: %w", err)
	}
	if state.Checkpoints == nil {
		state.Checkpoints = make(map[string]models.EngageCheckpoint)
	}
	state.Checkpoints[accountID] = cp
	if err := s.store.SaveEngageState(state); err != nil {
		return fmt.Errorf("save engage state: %w", err)
	}
	return nil
}

func (s *Supervisor) clearCheckpoint(accountID string) error {
	state, err := s.store.LoadEngageState()
	if err != nil {
		return fmt.Errorf("load engage state: %w", err)
	}
	if _, ok := state.Checkpoints[accountID]; !ok {
		return nil
	}
	delete(state.Checkpoints, accountID)
	if err := s.store.SaveEngageState(state); err != nil {
		return fmt.Errorf("save engage state: %w", err)
	}
	return nil
}
