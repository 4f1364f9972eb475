package models

// EngageCheckpoint records where an interrupted engagement run should resume
// for one account. NextIndex is the position in the account's target backlog;
// Restarts counts how many times the run has already been resumed.
type EngageCheckpoint struct {
	NextIndex int `json:"next_index"`
	Restarts  int `json:"restarts"`
}

// EngageState is the persisted restart ledger, keyed by account ID. Entries
// are removed once an account's run completes cleanly.
type EngageState struct {
	Checkpoints map[string]EngageCheckpoint `json:"checkpoints"`
}

// NewEngageState returns an empty ledger.
func NewEngageState() EngageState {
	return EngageState{Checkpoints: make(map[string]EngageCheckpoint)}
}
