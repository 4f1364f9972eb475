// Package engage runs browser-based engagement sessions: scanning the feed
// for target accounts and performing follow, like, repost, and reply actions
// against them.
package engage

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"log/slog"

	"github.com/threadcast/threadcast/internal/browser"
	"github.com/threadcast/threadcast/internal/comments"
	"github.com/threadcast/threadcast/internal/models"
)

const (
	// Handle extraction is retried on the same target this many times before
	// the target is skipped; this many skips in a row ask for a restart.
	// Success at any point clears both counters.
	maxHandleErrors = 3
	maxTargetSkips  = 3

	maxAdvanceErrors = 3

	loginProbeAttempts = 10
)

var (
	loginProbeInterval = 2 * time.Second
	minActionDelay     = 100 * time.Millisecond
)

// ErrLoginFailed marks a run that could not authenticate. It is fatal for the
// account; restarting will not help.
var ErrLoginFailed = errors.New("login failed")

// RestartError asks the supervisor to tear the session down and resume from
// NextIndex with a fresh browser.
type RestartError struct {
	NextIndex int
}

func (e *RestartError) Error() string {
	return fmt.Sprintf("session needs restart from target %d", e.NextIndex)
}

// Params configures one engagement run. Each range is drawn per target to
// decide how many actions of that kind to perform.
type Params struct {
	TargetCount int

	// Query selects the search feed to scan for targets. Empty scans the
	// home feed instead.
	Query string

	Follow  models.ActionRange
	Like    models.ActionRange
	Repost  models.ActionRange
	Comment models.ActionRange

	// Delay is the base pause between actions; actual pauses are jittered.
	Delay time.Duration
}

// Validate checks the run parameters.
func (p *Params) Validate() error {
	if p.TargetCount <= 0 {
		return fmt.Errorf("target count must be positive, got %d", p.TargetCount)
	}
	for _, r := range []struct {
		name string
		r    models.ActionRange
	}{
		{"follow", p.Follow}, {"like", p.Like}, {"repost", p.Repost}, {"comment", p.Comment},
	} {
		if err := r.r.Validate(); err != nil {
			return fmt.Errorf("%s range: %w", r.name, err)
		}
	}
	return nil
}

// ActionFunc receives every successful action so counters can be persisted as
// they happen.
type ActionFunc func(accountID string, kind models.ActionKind)

// Job is one engagement run for one account over one browser session.
type Job struct {
	account  models.Account
	session  browser.Session
	params   Params
	pool     *comments.Pool
	onAction ActionFunc
	logger   *slog.Logger
	rng      *rand.Rand

	handleErrors  int
	targetSkips   int
	advanceErrors int
}

// NewJob wires a run. pool may be nil when the comment range is zero.
func NewJob(account models.Account, session browser.Session, params Params, pool *comments.Pool, onAction ActionFunc, logger *slog.Logger) *Job {
	return &Job{
		account:  account,
		session:  session,
		params:   params,
		pool:     pool,
		onAction: onAction,
		logger:   logger,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Run executes the state machine: login probe, seek past already-processed
// targets, then scan and act until TargetCount targets are done. It returns
// nil on completion, ErrLoginFailed when authentication fails, a RestartError
// when the session has degraded, or the context error on cancellation.
func (j *Job) Run(ctx context.Context, startIndex int) error {
	if err := j.ensureLoggedIn(ctx); err != nil {
		return err
	}

	if j.params.Query != "" {
		if err := j.session.Search(ctx, j.params.Query); err != nil {
			return fmt.Errorf("open search feed for %q: %w", j.params.Query, err)
		}
	}

	if startIndex > 0 {
		if err := j.session.Seek(ctx, startIndex); err != nil {
			return fmt.Errorf("resume at target %d: %w", startIndex, err)
		}
		j.logger.Info("resumed engagement run",
			"account", j.account.DisplayName(), "start_index", startIndex)
	}

	for index := startIndex; index < j.params.TargetCount; {
		if err := ctx.Err(); err != nil {
			return err
		}

		target, err := j.session.NextTarget(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			j.advanceErrors++
			j.logger.Warn("failed to advance to next target",
				"account", j.account.DisplayName(),
				"index", index, "failures", j.advanceErrors, "error", err)
			if j.advanceErrors >= maxAdvanceErrors {
				return &RestartError{NextIndex: index}
			}
			if err := j.pause(ctx); err != nil {
				return err
			}
			continue
		}
		j.advanceErrors = 0

		handle, ok, err := j.readHandle(ctx, target, index)
		if err != nil {
			return err
		}
		if !ok {
			index++
			continue
		}

		if err := j.engageTarget(ctx, target, handle); err != nil {
			return err
		}
		index++
	}

	j.logger.Info("engagement run complete",
		"account", j.account.DisplayName(), "targets", j.params.TargetCount)
	return nil
}

// readHandle extracts the target's handle, retrying the same target on
// failure. After maxHandleErrors consecutive failures the target is reported
// as unreadable (ok == false) so the caller skips it; maxTargetSkips skips in
// a row escalate to a RestartError at the current index. A successful read
// clears both counters.
func (j *Job) readHandle(ctx context.Context, target browser.Target, index int) (string, bool, error) {
	for {
		handle, err := target.Handle()
		if err == nil {
			j.handleErrors = 0
			j.targetSkips = 0
			return handle, true, nil
		}

		j.handleErrors++
		j.logger.Warn("failed to read target handle",
			"account", j.account.DisplayName(),
			"index", index, "attempt", j.handleErrors, "error", err)
		if j.handleErrors >= maxHandleErrors {
			j.handleErrors = 0
			j.targetSkips++
			if j.targetSkips >= maxTargetSkips {
				return "", false, &RestartError{NextIndex: index}
			}
			j.logger.Warn("skipping unreadable target",
				"account", j.account.DisplayName(),
				"index", index, "skips", j.targetSkips)
			return "", false, nil
		}

		if err := j.pause(ctx); err != nil {
			return "", false, err
		}
	}
}

// ensureLoggedIn probes the page state up to loginProbeAttempts times. A page
// that never becomes readable is treated as needing login, which is the safe
// direction: a spurious login attempt fails loudly instead of silently acting
// while logged out.
func (j *Job) ensureLoggedIn(ctx context.Context) error {
	required := true
	resolved := false

	for attempt := 0; attempt < loginProbeAttempts; attempt++ {
		got, err := j.session.IsLoginRequired(ctx)
		if err == nil {
			required = got
			resolved = true
			break
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		j.logger.Debug("login probe inconclusive",
			"account", j.account.DisplayName(), "attempt", attempt+1, "error", err)
		if err := sleepCtx(ctx, loginProbeInterval); err != nil {
			return err
		}
	}

	if !resolved {
		j.logger.Warn("login state never resolved, assuming login required",
			"account", j.account.DisplayName())
	}
	if !required {
		return nil
	}

	if err := j.session.Login(ctx); err != nil {
		return fmt.Errorf("%w for %s: %v", ErrLoginFailed, j.account.DisplayName(), err)
	}
	return nil
}

func (j *Job) engageTarget(ctx context.Context, target browser.Target, handle string) error {
	actions := []struct {
		kind models.ActionKind
		r    models.ActionRange
	}{
		{models.ActionFollow, j.params.Follow},
		{models.ActionLike, j.params.Like},
		{models.ActionRepost, j.params.Repost},
		{models.ActionComment, j.params.Comment},
	}

	for _, action := range actions {
		count := action.r.Draw(j.rng)
		for i := 0; i < count; i++ {
			if err := j.pause(ctx); err != nil {
				return err
			}

			comment := ""
			if action.kind == models.ActionComment {
				if j.pool == nil {
					j.logger.Warn("comment action skipped, no pool loaded",
						"account", j.account.DisplayName())
					continue
				}
				picked, err := j.pool.Pick(ctx)
				if err != nil {
					j.logger.Warn("comment action skipped",
						"account", j.account.DisplayName(), "error", err)
					continue
				}
				comment = picked
			}

			if err := j.session.Act(ctx, target, action.kind, comment); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				j.logger.Warn("action failed",
					"account", j.account.DisplayName(),
					"target", handle, "action", action.kind, "error", err)
				continue
			}

			if j.onAction != nil {
				j.onAction(j.account.ID, action.kind)
			}
		}
	}
	return nil
}

// pause sleeps for the configured delay with +/-50% jitter, never below the
// floor, and returns early on cancellation.
func (j *Job) pause(ctx context.Context) error {
	d := j.params.Delay
	if d > 0 {
		d = time.Duration(float64(d) * (0.5 + j.rng.Float64()))
	}
	if d < minActionDelay {
		d = minActionDelay
	}
	return sleepCtx(ctx, d)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
