package models

// ActionKind names one discrete engagement action.
type ActionKind string

const (
	ActionFollow  ActionKind = "follow"
	ActionLike    ActionKind = "like"
	ActionRepost  ActionKind = "repost"
	ActionComment ActionKind = "comment"
)

// ActionCounts holds cumulative engagement counters for one account. The
// counters only ever grow; reset happens through an explicit operator action.
type ActionCounts struct {
	Follows  int `json:"follows"`
	Likes    int `json:"likes"`
	Reposts  int `json:"reposts"`
	Comments int `json:"comments"`
}

// Inc bumps the counter for the given action kind.
func (c *ActionCounts) Inc(kind ActionKind) {
	switch kind {
	case ActionFollow:
		c.Follows++
	case ActionLike:
		c.Likes++
	case ActionRepost:
		c.Reposts++
	case ActionComment:
		c.Comments++
	}
}

// Total sums all counters.
func (c ActionCounts) Total() int {
	return c.Follows + c.Likes + c.Reposts + c.Comments
}

// EngagementStats maps account ID to its cumulative counters.
type EngagementStats map[string]*ActionCounts
