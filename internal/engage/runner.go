package engage

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/threadcast/threadcast/internal/models"
	"github.com/threadcast/threadcast/internal/store"
)

// Runner starts and stops engagement runs. Each account runs in its own
// goroutine with its own cancel, so an operator can stop one account without
// touching the rest.
type Runner struct {
	supervisor *Supervisor
	store      *store.Store
	logger     *slog.Logger

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
	wg      sync.WaitGroup
}

// NewRunner wires the runner.
func NewRunner(supervisor *Supervisor, st *store.Store, logger *slog.Logger) *Runner {
	return &Runner{
		supervisor: supervisor,
		store:      st,
		logger:     logger,
		cancels:    make(map[string]context.CancelFunc),
	}
}

// Start launches a run for one account. It fails when the account is already
// running.
func (r *Runner) Start(account models.Account, params Params) error {
	r.mu.Lock()
	if _, running := r.cancels[account.ID]; running {
		r.mu.Unlock()
		return fmt.Errorf("account %s is already running", account.DisplayName())
	}

	ctx, cancel := context.WithCancel(context.Background())
	r.cancels[account.ID] = cancel
	r.wg.Add(1)
	r.mu.Unlock()

	go func() {
		defer r.wg.Done()
		defer r.release(account.ID)
		r.runOne(ctx, account, params)
	}()
	return nil
}

// StartAll launches runs for every given account with at most limit running
// concurrently. Each account gets its own cancel derived from a shared batch
// context, so stopping one account leaves the rest of the batch running. It
// returns immediately; progress lands in account statuses.
func (r *Runner) StartAll(accounts []models.Account, params Params, limit int) error {
	if limit < 1 {
		limit = 1
	}

	r.mu.Lock()
	for _, acct := range accounts {
		if _, running := r.cancels[acct.ID]; running {
			r.mu.Unlock()
			return fmt.Errorf("account %s is already running", acct.DisplayName())
		}
	}

	batchCtx, batchCancel := context.WithCancel(context.Background())
	started := make([]models.Account, len(accounts))
	copy(started, accounts)
	ctxs := make(map[string]context.Context, len(started))
	for _, acct := range started {
		ctx, cancel := context.WithCancel(batchCtx)
		ctxs[acct.ID] = ctx
		r.cancels[acct.ID] = cancel
		r.setStatus(acct.ID, models.AccountStatusQueued, "waiting for slot")
	}
	r.wg.Add(1)
	r.mu.Unlock()

	go func() {
		defer r.wg.Done()
		defer batchCancel()

		var g errgroup.Group
		g.SetLimit(limit)
		for _, acct := range started {
			acct := acct
			ctx := ctxs[acct.ID]
			g.Go(func() error {
				defer r.release(acct.ID)
				if ctx.Err() != nil {
					// Stopped while still waiting for a slot.
					r.setStatus(acct.ID, models.AccountStatusIdle, "stopped")
					return nil
				}
				r.runOne(ctx, acct, params)
				return nil
			})
		}
		_ = g.Wait()
	}()
	return nil
}

func (r *Runner) runOne(ctx context.Context, account models.Account, params Params) {
	r.setStatus(account.ID, models.AccountStatusRunning, "engaging")

	err := r.supervisor.RunAccount(ctx, account, params)
	switch {
	case err == nil:
		r.setStatus(account.ID, models.AccountStatusCompleted, "done")
	case errors.Is(err, context.Canceled):
		r.setStatus(account.ID, models.AccountStatusIdle, "stopped")
	case errors.Is(err, ErrLoginFailed):
		r.setStatus(account.ID, models.AccountStatusFailed, "login failed")
		r.logger.Error("engagement run failed",
			"account", account.DisplayName(), "error", err)
	default:
		r.setStatus(account.ID, models.AccountStatusFailed, err.Error())
		r.logger.Error("engagement run failed",
			"account", account.DisplayName(), "error", err)
	}
}

// Stop cancels the run for one account, if any.
func (r *Runner) Stop(accountID string) {
	r.mu.Lock()
	cancel, ok := r.cancels[accountID]
	r.mu.Unlock()
	if ok {
		cancel()
	}
}

// StopAll cancels every active run and waits for them to wind down.
func (r *Runner) StopAll() {
	r.mu.Lock()
	for _, cancel := range r.cancels {
		cancel()
	}
	r.mu.Unlock()
	r.wg.Wait()
}

// Running returns the IDs of accounts with active runs.
func (r *Runner) Running() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := make([]string, 0, len(r.cancels))
	for id := range r.cancels {
		ids = append(ids, id)
	}
	return ids
}

func (r *Runner) release(accountID string) {
	r.mu.Lock()
	if cancel, ok := r.cancels[accountID]; ok {
		cancel()
		delete(r.cancels, accountID)
	}
	r.mu.Unlock()
}

// setStatus updates the roster entry for the account. Status writes are best
// effort; a failed write never aborts a run.
func (r *Runner) setStatus(accountID string, status models.AccountStatus, label string) {
	accounts, err := r.store.LoadAccounts()
	if err != nil {
		r.logger.Warn("failed to load accounts for status update",
			"account_id", accountID, "error", err)
		return
	}
	for i := range accounts {
		if accounts[i].ID == accountID {
			accounts[i].SetStatus(status, label)
			break
		}
	}
	if err := r.store.SaveAccounts(accounts); err != nil {
		r.logger.Warn("failed to save account status",
			"account_id", accountID, "error", err)
	}
}
