package priority

import (
	"context"
	"errors"
	"testing"

	"github.com/humancompiler/planner/internal/domain"
)

type stubOracle struct {
	scores map[string]float64
	err    error
}

func (s stubOracle) Priorities(ctx context.Context, c Context, userPrompt string) (map[string]float64, error) {
	return s.scores, s.err
}

func TestBulkheadFallsBackOnInnerError(t *testing.T) {
	c := Context{Tasks: []*domain.SchedulerTask{{ID: "t1", UserPriority: 3}}}
	b := NewBulkheadOracle(stubOracle{err: errors.New("boom")}, 100, 10)
	scores, err := b.Priorities(context.Background(), c, "")
	if err != nil {
		t.Fatalf("expected bulkhead to recover the inner error, got %v", err)
	}
	if _, ok := scores["t1"]; !ok {
		t.Fatalf("expected deterministic fallback score for t1, got %v", scores)
	}
}

func TestBulkheadFallsBackWhenRateLimited(t *testing.T) {
	c := Context{Tasks: []*domain.SchedulerTask{{ID: "t1", UserPriority: 1}}}
	b := NewBulkheadOracle(stubOracle{scores: map[string]float64{"t1": 9}}, 0, 0)
	scores, err := b.Priorities(context.Background(), c, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if scores["t1"] == 9 {
		t.Fatalf("expected the rate-limited call to bypass the inner oracle entirely")
	}
}

func TestBulkheadBackfillsMissingTaskIDs(t *testing.T) {
	c := Context{Tasks: []*domain.SchedulerTask{
		{ID: "t1", UserPriority: 1}, {ID: "t2", UserPriority: 5},
	}}
	b := NewBulkheadOracle(stubOracle{scores: map[string]float64{"t1": 7}}, 100, 10)
	scores, err := b.Priorities(context.Background(), c, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if scores["t1"] != 7 {
		t.Fatalf("expected t1's oracle score preserved, got %v", scores["t1"])
	}
	if _, ok := scores["t2"]; !ok {
		t.Fatalf("expected t2 backfilled from the deterministic scorer, got %v", scores)
	}
}

func TestBulkheadPassesThroughSuccess(t *testing.T) {
	c := Context{Tasks: []*domain.SchedulerTask{{ID: "t1"}}}
	b := NewBulkheadOracle(stubOracle{scores: map[string]float64{"t1": 4.5}}, 100, 10)
	scores, err := b.Priorities(context.Background(), c, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if scores["t1"] != 4.5 {
		t.Fatalf("expected inner oracle's score to pass through unchanged, got %v", scores["t1"])
	}
}
