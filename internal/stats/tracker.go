// Package stats maintains per-account engagement counters.
package stats

import (
	"fmt"
	"sync"

	"log/slog"

	"github.com/threadcast/threadcast/internal/metrics"
	"github.com/threadcast/threadcast/internal/models"
	"github.com/threadcast/threadcast/internal/store"
)

// Tracker keeps engagement counters in memory and persists them after every
// increment, so a crash mid-run costs at most the action in flight. Counters
// only grow until an explicit Reset.
type Tracker struct {
	store     *store.Store
	collector *metrics.Collector
	logger    *slog.Logger

	mu    sync.Mutex
	stats models.EngagementStats
}

// NewTracker loads persisted counters. collector may be nil.
func NewTracker(st *store.Store, collector *metrics.Collector, logger *slog.Logger) (*Tracker, error) {
	loaded, err := st.LoadStats()
	if err != nil {
		return nil, fmt.Errorf("load engagement stats: %w", err)
	}
	return &Tracker{
		store:     st,
		collector: collector,
		logger:    logger,
		stats:     loaded,
	}, nil
}

// Record bumps the counter for one action and persists the new totals.
func (t *Tracker) Record(accountID string, kind models.ActionKind) {
	t.mu.Lock()
	counts, ok := t.stats[accountID]
	if !ok {
		counts = &models.ActionCounts{}
		t.stats[accountID] = counts
	}
	counts.Inc(kind)

	if err := t.store.SaveStats(t.stats); err != nil {
		t.logger.Warn("failed to persist engagement stats",
			"account_id", accountID, "error", err)
	}
	t.mu.Unlock()

	if t.collector != nil {
		t.collector.RecordEngageAction(string(kind))
	}
}

// Snapshot returns a copy of all counters.
func (t *Tracker) Snapshot() models.EngagementStats {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make(models.EngagementStats, len(t.stats))
	for id, counts := range t.stats {
		c := *counts
		out[id] = &c
	}
	return out
}

// Reset zeroes every counter and persists the empty state.
func (t *Tracker) Reset() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.stats = models.EngagementStats{}
	if err := t.store.SaveStats(t.stats); err != nil {
		return fmt.Errorf("persist stats reset: %w", err)
	}
	return nil
}
