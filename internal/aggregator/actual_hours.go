// Package aggregator implements C2: reducing work-log minutes into
// per-task actual hours.
package aggregator

import (
	"context"
	"log"

	"github.com/humancompiler/planner/internal/domain"
)

// ActualHours computes Σ actual_minutes / 60 per task ID. Task IDs with
// no logs map to 0. The call never fails: a backend error is logged and
// an empty map is returned, per spec §4.1.
func ActualHours(ctx context.Context, store domain.Store, taskIDs []string) map[string]float64 {
	out := make(map[string]float64, len(taskIDs))
	for _, id := range taskIDs {
		out[id] = 0
	}
	if len(taskIDs) == 0 {
		return out
	}

	logs, err := store.ListWorkLogsByTask(ctx, taskIDs)
	if err != nil {
		log.Printf("aggregator: failed to list work logs for %d tasks: %v", len(taskIDs), err)
		return map[string]float64{}
	}

	want := make(map[string]bool, len(taskIDs))
	for _, id := range taskIDs {
		want[id] = true
	}

	for _, l := range logs {
		if !want[l.TaskID] {
			log.Printf("aggregator: skipping work log for unrequested task %s", l.TaskID)
			continue
		}
		out[l.TaskID] += float64(l.ActualMinutes) / 60.0
	}
	return out
}

// RemainingHours is max(0, estimate - actual), per spec §4.1.
func RemainingHours(estimateHours, actualHours float64) float64 {
	r := estimateHours - actualHours
	if r < 0 {
		return 0
	}
	return r
}
