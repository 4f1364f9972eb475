// Package schedule arms the delayed re-run of a campaign between repeat
// intervals.
package schedule

import (
	"sync"
	"time"

	"log/slog"
)

// RepeatScheduler holds at most one pending one-shot trigger. Stopping is
// two-phase: the stopped flag is raised before the timer is touched, so a
// callback that already fired but has not yet run observes the flag and
// aborts instead of racing the stop.
type RepeatScheduler struct {
	logger *slog.Logger

	mu      sync.Mutex
	timer   *time.Timer
	stopped bool
	armed   bool
}

// NewRepeatScheduler creates an idle scheduler.
func NewRepeatScheduler(logger *slog.Logger) *RepeatScheduler {
	return &RepeatScheduler{logger: logger}
}

// Schedule arms fn to run after d, replacing any pending trigger. A stopped
// scheduler must be Reset before it accepts new work.
func (s *RepeatScheduler) Schedule(d time.Duration, fn func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return false
	}
	if s.timer != nil {
		s.timer.Stop()
	}

	s.armed = true
	s.timer = time.AfterFunc(d, func() {
		s.mu.Lock()
		if s.stopped {
			s.mu.Unlock()
			return
		}
		s.armed = false
		s.mu.Unlock()
		fn()
	})

	s.logger.Info("next run scheduled", "in", d)
	return true
}

// Stop cancels any pending trigger and then invokes stopLive, which should
// cancel an in-flight run. stopLive may be nil.
func (s *RepeatScheduler) Stop(stopLive func()) {
	s.mu.Lock()
	s.stopped = true
	s.armed = false
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.mu.Unlock()

	if stopLive != nil {
		stopLive()
	}
}

// Reset makes a stopped scheduler usable again.
func (s *RepeatScheduler) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = false
}

// Armed reports whether a trigger is pending.
func (s *RepeatScheduler) Armed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.armed
}
