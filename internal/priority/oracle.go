// Package priority implements C4: the priority oracle port and its two
// adapters (AI-backed, deterministic fallback), per spec §4.3 and §9
// "Priority port isolation".
package priority

import (
	"context"

	"github.com/humancompiler/planner/internal/domain"
)

// Context is the structured envelope sent to an Oracle. It carries
// everything a priority-scoring call might need, independent of
// whether the adapter is AI-backed or deterministic.
type Context struct {
	UserID      string
	WeekStart   string
	Projects    []*domain.Project
	Goals       []*domain.Goal
	Tasks       []*domain.SchedulerTask
	Allocations []domain.ProjectAllocation
}

// Oracle returns a priority score in [0,10] per task ID. An
// implementation may return an error (the AI-backed adapter does);
// BulkheadOracle and internal/pipeline's PRIORITIES stage recover such
// errors with the deterministic scores (see FallbackOracle) and report
// them as warnings.
type Oracle interface {
	Priorities(ctx context.Context, c Context, userPrompt string) (map[string]float64, error)
}

// FallbackOracle is the deterministic scorer (spec §4.3). It never
// returns an error.
type FallbackOracle struct{}

func (FallbackOracle) Priorities(ctx context.Context, c Context, userPrompt string) (map[string]float64, error) {
	return Deterministic(c), nil
}
