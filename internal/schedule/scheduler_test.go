package schedule

import (
	"io"
	"sync/atomic"
	"testing"
	"time"

	"log/slog"
)

func newTestScheduler() *RepeatScheduler {
	return NewRepeatScheduler(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestScheduleFires(t *testing.T) {
	s := newTestScheduler()

	fired := make(chan struct{})
	if !s.Schedule(5*time.Millisecond, func() { close(fired) }) {
		t.Fatal("Schedule returned false on a fresh scheduler")
	}
	if !s.Armed() {
		t.Fatal("expected scheduler to be armed")
	}

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("scheduled function never fired")
	}
	if s.Armed() {
		t.Fatal("expected scheduler to disarm after firing")
	}
}

func TestStopPreventsPendingTrigger(t *testing.T) {
	s := newTestScheduler()

	var fired atomic.Bool
	s.Schedule(20*time.Millisecond, func() { fired.Store(true) })

	var liveStopped atomic.Bool
	s.Stop(func() { liveStopped.Store(true) })

	time.Sleep(50 * time.Millisecond)
	if fired.Load() {
		t.Fatal("trigger fired after Stop")
	}
	if !liveStopped.Load() {
		t.Fatal("live stop hook was not invoked")
	}
}

func TestStoppedSchedulerRejectsWorkUntilReset(t *testing.T) {
	s := newTestScheduler()
	s.Stop(nil)

	if s.Schedule(time.Millisecond, func() {}) {
		t.Fatal("stopped scheduler accepted work")
	}

	s.Reset()
	fired := make(chan struct{})
	if !s.Schedule(time.Millisecond, func() { close(fired) }) {
		t.Fatal("reset scheduler rejected work")
	}
	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("trigger never fired after reset")
	}
}

func TestRescheduleReplacesPendingTrigger(t *testing.T) {
	s := newTestScheduler()

	var first atomic.Bool
	s.Schedule(30*time.Millisecond, func() { first.Store(true) })

	second := make(chan struct{})
	s.Schedule(5*time.Millisecond, func() { close(second) })

	select {
	case <-second:
	case <-time.After(time.Second):
		t.Fatal("replacement trigger never fired")
	}

	time.Sleep(50 * time.Millisecond)
	if first.Load() {
		t.Fatal("replaced trigger still fired")
	}
}
