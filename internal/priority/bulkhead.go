package priority

import (
	"context"
	"log"

	"golang.org/x/time/rate"

	"github.com/humancompiler/planner/internal/observability"
)

// BulkheadOracle wraps an AI-backed Oracle with a per-process token
// bucket and a deterministic fallback, so the oracle port as a whole
// matches spec §4.3 exactly: "Oracle errors are never fatal to a
// planning run", including the case where the bucket itself is
// exhausted. Modeled on control_plane/scheduler.TokenBucketLimiter,
// minus the per-key map: priority calls are scoped to one caller
// process, not one bucket per tenant.
type BulkheadOracle struct {
	inner    Oracle
	fallback Oracle
	limiter  *rate.Limiter
}

// NewBulkheadOracle builds a bulkhead allowing r calls/sec to inner,
// bursting up to b, falling back to Deterministic on either a denied
// reservation or an inner error.
func NewBulkheadOracle(inner Oracle, r float64, b int) *BulkheadOracle {
	return &BulkheadOracle{
		inner:    inner,
		fallback: FallbackOracle{},
		limiter:  rate.NewLimiter(rate.Limit(r), b),
	}
}

func (b *BulkheadOracle) Priorities(ctx context.Context, c Context, userPrompt string) (map[string]float64, error) {
	if !b.limiter.Allow() {
		log.Printf("priority: bulkhead rejected call for user %s, falling back", c.UserID)
		observability.OracleCallsTotal.WithLabelValues("rate_limited").Inc()
		return b.fallback.Priorities(ctx, c, userPrompt)
	}

	scores, err := b.inner.Priorities(ctx, c, userPrompt)
	if err != nil {
		log.Printf("priority: oracle call failed for user %s, falling back: %v", c.UserID, err)
		observability.OracleCallsTotal.WithLabelValues("error").Inc()
		return b.fallback.Priorities(ctx, c, userPrompt)
	}
	observability.OracleCallsTotal.WithLabelValues("success").Inc()

	// An oracle that returns scores for a subset of tasks (or extra IDs
	// that no longer exist) is backfilled from the deterministic scorer
	// rather than treated as an error: partial credit beats discarding
	// a whole planning run's AI pass over one missing ID.
	want := make(map[string]bool, len(c.Tasks))
	for _, t := range c.Tasks {
		want[t.ID] = true
	}
	missing := false
	for id := range want {
		if _, ok := scores[id]; !ok {
			missing = true
			break
		}
	}
	if missing {
		det := Deterministic(c)
		for id := range want {
			if _, ok := scores[id]; !ok {
				scores[id] = det[id]
			}
		}
	}
	return scores, nil
}
