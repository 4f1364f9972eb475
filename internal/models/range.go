package models

import (
	"fmt"
	"math/rand"
	"strconv"
	"strings"
)

// ActionRange is an inclusive [Min,Max] count of engagement actions to
// perform per target; the actual count is drawn uniformly per target.
type ActionRange struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// ParseActionRange parses "a-b" or a single integer "n" (meaning [n,n]).
func ParseActionRange(s string) (ActionRange, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return ActionRange{}, fmt.Errorf("empty range")
	}
	if lo, hi, ok := strings.Cut(s, "-"); ok {
		minV, err := strconv.Atoi(strings.TrimSpace(lo))
		if err != nil {
			return ActionRange{}, fmt.Errorf("invalid range %q: %w", s, err)
		}
		maxV, err := strconv.Atoi(strings.TrimSpace(hi))
		if err != nil {
			return ActionRange{}, fmt.Errorf("invalid range %q: %w", s, err)
		}
		r := ActionRange{Min: minV, Max: maxV}
		return r, r.Validate()
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return ActionRange{}, fmt.Errorf("invalid range %q: %w", s, err)
	}
	r := ActionRange{Min: v, Max: v}
	return r, r.Validate()
}

// Validate rejects negative bounds and inverted ranges.
func (r ActionRange) Validate() error {
	if r.Min < 0 {
		return fmt.Errorf("range min must be >= 0, got %d", r.Min)
	}
	if r.Max < r.Min {
		return fmt.Errorf("range max %d below min %d", r.Max, r.Min)
	}
	return nil
}

// Draw returns a uniform random count within the range.
func (r ActionRange) Draw(rng *rand.Rand) int {
	if r.Max == r.Min {
		return r.Min
	}
	return r.Min + rng.Intn(r.Max-r.Min+1)
}
