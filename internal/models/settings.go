package models

import "fmt"

const (
	// MaxConcurrency caps both worker-pool sizes; each worker may own a
	// browser session, so the bound also bounds peak resource usage.
	MaxConcurrency = 50
)

// CampaignSettings is the operator configuration snapshot a run is started
// with. Edits apply to the next run, never to a run in flight.
type CampaignSettings struct {
	RepeatIntervalMinutes int  `json:"repeat_interval_minutes"`
	AutoDeleteCompleted   bool `json:"auto_delete_completed"`
	ConcurrencyLimit      int  `json:"concurrency_limit"`
	EngageConcurrency     int  `json:"engage_concurrency_limit"`
}

// DefaultCampaignSettings mirrors the defaults written on first start.
func DefaultCampaignSettings() CampaignSettings {
	return CampaignSettings{
		RepeatIntervalMinutes: 0,
		AutoDeleteCompleted:   false,
		ConcurrencyLimit:      1,
		EngageConcurrency:     1,
	}
}

// Validate bounds the concurrency limits and rejects negative intervals.
func (s *CampaignSettings) Validate() error {
	if s.RepeatIntervalMinutes < 0 {
		return fmt.Errorf("repeat_interval_minutes must be >= 0, got %d", s.RepeatIntervalMinutes)
	}
	if s.ConcurrencyLimit < 1 || s.ConcurrencyLimit > MaxConcurrency {
		return fmt.Errorf("concurrency_limit must be in [1,%d], got %d", MaxConcurrency, s.ConcurrencyLimit)
	}
	if s.EngageConcurrency < 1 || s.EngageConcurrency > MaxConcurrency {
		return fmt.Errorf("engage_concurrency_limit must be in [1,%d], got %d", MaxConcurrency, s.EngageConcurrency)
	}
	return nil
}

// RepeatEnabled reports whether repeat cycles are configured at all. With
// repetition disabled every post runs exactly one cycle.
func (s *CampaignSettings) RepeatEnabled() bool {
	return s.RepeatIntervalMinutes > 0
}
