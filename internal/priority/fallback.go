package priority

import (
	"time"
)

// Deterministic implements the fallback scoring formula of spec §4.3.
// It is a pure function of its input: identical input always produces
// identical scores (spec R3).
func Deterministic(c Context) map[string]float64 {
	allocByProject := make(map[string]float64, len(c.Allocations))
	for _, a := range c.Allocations {
		allocByProject[a.ProjectID] = a.PriorityWeight
	}

	weekStart, _ := time.Parse("2006-01-02", c.WeekStart)

	out := make(map[string]float64, len(c.Tasks))
	for _, t := range c.Tasks {
		score := 10 - 2*float64(t.UserPriority-1)

		if t.DueAt != nil && !weekStart.IsZero() {
			days := int(t.DueAt.Sub(weekStart).Hours() / 24)
			switch {
			case days <= 3:
				score += 3
			case days <= 7:
				score += 2
			case days <= 14:
				score += 1
			}
		}

		score += 2 * allocByProject[t.ProjectID]

		switch {
		case t.RemainingHours <= 2:
			score += 1
		case t.RemainingHours >= 8:
			score -= 0.5
		}

		out[t.ID] = clamp(score, 0, 10)
	}
	return out
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
