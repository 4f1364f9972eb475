package campaign

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"log/slog"

	"github.com/threadcast/threadcast/internal/schedule"
	"github.com/threadcast/threadcast/internal/store"
)

// Status is a snapshot of the campaign state for the control API.
type Status struct {
	Running   bool      `json:"running"`
	Scheduled bool      `json:"scheduled"`
	StartedAt time.Time `json:"started_at,omitzero"`
	LastError string    `json:"last_error,omitempty"`
}

// Controller owns the campaign lifecycle: one run at a time, with the repeat
// scheduler arming the next full run when the repeat interval is configured.
// Stop is two-phase: the pending trigger is disarmed before the live run is
// cancelled, so a stop never loses the race against an about-to-fire timer.
type Controller struct {
	executor  *Executor
	store     *store.Store
	scheduler *schedule.RepeatScheduler
	logger    *slog.Logger

	mu        sync.Mutex
	cancel    context.CancelFunc
	running   bool
	startedAt time.Time
	lastErr   string
	wg        sync.WaitGroup
}

// NewController wires the controller.
func NewController(executor *Executor, st *store.Store, scheduler *schedule.RepeatScheduler, logger *slog.Logger) *Controller {
	return &Controller{
		executor:  executor,
		store:     st,
		scheduler: scheduler,
		logger:    logger,
	}
}

// Start launches a campaign run in the background. It fails when a run is
// already active.
func (c *Controller) Start() error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return fmt.Errorf("campaign is already running")
	}

	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.running = true
	c.startedAt = time.Now()
	c.lastErr = ""
	c.wg.Add(1)
	c.mu.Unlock()

	c.scheduler.Reset()

	go func() {
		defer c.wg.Done()
		err := c.executor.Run(ctx)

		c.mu.Lock()
		c.running = false
		c.cancel = nil
		if err != nil && !errors.Is(err, context.Canceled) {
			c.lastErr = err.Error()
		}
		c.mu.Unlock()

		if err != nil {
			if !errors.Is(err, context.Canceled) {
				c.logger.Error("campaign run failed", "error", err)
			}
			return
		}

		c.logger.Info("campaign run complete")
		c.armRepeat()
	}()
	return nil
}

// armRepeat schedules the next full run when the repeat interval is set.
func (c *Controller) armRepeat() {
	settings, err := c.store.LoadSettings()
	if err != nil {
		c.logger.Warn("failed to load settings for repeat", "error", err)
		return
	}
	if !settings.RepeatEnabled() {
		return
	}

	interval := time.Duration(settings.RepeatIntervalMinutes) * time.Minute
	c.scheduler.Schedule(interval, func() {
		if err := c.Start(); err != nil {
			c.logger.Warn("scheduled run could not start", "error", err)
		}
	})
}

// Stop disarms the scheduler, then cancels the live run and waits for it to
// wind down.
func (c *Controller) Stop() {
	c.scheduler.Stop(func() {
		c.mu.Lock()
		cancel := c.cancel
		c.mu.Unlock()
		if cancel != nil {
			cancel()
		}
	})
	c.wg.Wait()
}

// Status reports the current campaign state.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Status{
		Running:   c.running,
		Scheduled: c.scheduler.Armed(),
		StartedAt: c.startedAt,
		LastError: c.lastErr,
	}
}
