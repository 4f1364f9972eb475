package store

import (
	"github.com/threadcast/threadcast/internal/models"
)

const (
	keyAccounts    = "accounts"
	keyPosts       = "posts"
	keySettings    = "settings"
	keyStats       = "engage_stats"
	keyEngageState = "engage_state"
)

// SeedAccountCount is how many blank account rows a fresh install starts
// with. The UI presents a fixed-size roster, so bulk deletes pad back up to
// this count.
const SeedAccountCount = 50

// LoadAccounts returns the account roster, seeding a blank roster on first
// run.
func (s *Store) LoadAccounts() ([]models.Account, error) {
	return loadOrSeed(s, keyAccounts, func() []models.Account {
		accounts := make([]models.Account, SeedAccountCount)
		for i := range accounts {
			accounts[i] = models.NewBlankAccount()
		}
		return accounts
	})
}

// SaveAccounts persists the full roster.
func (s *Store) SaveAccounts(accounts []models.Account) error {
	return s.Save(keyAccounts, accounts)
}

// LoadPosts returns the post backlog, seeding an empty one on first run.
func (s *Store) LoadPosts() ([]models.Post, error) {
	return loadOrSeed(s, keyPosts, func() []models.Post {
		return []models.Post{}
	})
}

// SavePosts persists the full backlog.
func (s *Store) SavePosts(posts []models.Post) error {
	return s.Save(keyPosts, posts)
}

// LoadSettings returns campaign settings, seeding defaults on first run.
func (s *Store) LoadSettings() (models.CampaignSettings, error) {
	return loadOrSeed(s, keySettings, models.DefaultCampaignSettings)
}

// SaveSettings persists campaign settings.
func (s *Store) SaveSettings(settings models.CampaignSettings) error {
	return s.Save(keySettings, settings)
}

// LoadStats returns per-account engagement counters.
func (s *Store) LoadStats() (models.EngagementStats, error) {
	return loadOrSeed(s, keyStats, func() models.EngagementStats {
		return models.EngagementStats{}
	})
}

// SaveStats persists engagement counters.
func (s *Store) SaveStats(stats models.EngagementStats) error {
	return s.Save(keyStats, stats)
}

// LoadEngageState returns the engagement restart ledger.
func (s *Store) LoadEngageState() (models.EngageState, error) {
	return loadOrSeed(s, keyEngageState, models.NewEngageState)
}

// SaveEngageState persists the engagement restart ledger.
func (s *Store) SaveEngageState(state models.EngageState) error {
	return s.Save(keyEngageState, state)
}
