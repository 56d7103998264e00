package aggregator

import (
	"context"
	"testing"

	"github.com/humancompiler/planner/internal/domain"
	"github.com/humancompiler/planner/internal/store"
)

func TestActualHoursSumsLogsPerTask(t *testing.T) {
	s := store.NewMemoryStore()
	s.SeedWorkLog(&domain.WorkLog{ID: "l1", TaskID: "t1", ActualMinutes: 90})
	s.SeedWorkLog(&domain.WorkLog{ID: "l2", TaskID: "t1", ActualMinutes: 30})
	s.SeedWorkLog(&domain.WorkLog{ID: "l3", TaskID: "t2", ActualMinutes: 45})

	out := ActualHours(context.Background(), s, []string{"t1", "t2", "t3"})
	if out["t1"] != 2.0 {
		t.Fatalf("expected t1 = 2.0h (90+30 min), got %v", out["t1"])
	}
	if out["t2"] != 0.75 {
		t.Fatalf("expected t2 = 0.75h, got %v", out["t2"])
	}
	if out["t3"] != 0 {
		t.Fatalf("expected t3 with no logs to be 0, got %v", out["t3"])
	}
}

func TestActualHoursEmptyTaskListReturnsEmptyMap(t *testing.T) {
	s := store.NewMemoryStore()
	out := ActualHours(context.Background(), s, nil)
	if len(out) != 0 {
		t.Fatalf("expected an empty map for no task IDs, got %+v", out)
	}
}

func TestActualHoursIgnoresLogsForUnrequestedTasks(t *testing.T) {
	s := store.NewMemoryStore()
	s.SeedWorkLog(&domain.WorkLog{ID: "l1", TaskID: "other-task", ActualMinutes: 120})

	out := ActualHours(context.Background(), s, []string{"t1"})
	if out["t1"] != 0 {
		t.Fatalf("expected t1 untouched by another task's log, got %v", out["t1"])
	}
	if _, ok := out["other-task"]; ok {
		t.Fatalf("expected no entry for a task that wasn't requested")
	}
}

func TestRemainingHoursFloorsAtZero(t *testing.T) {
	if got := RemainingHours(4, 6); got != 0 {
		t.Fatalf("expected remaining hours floored at 0 when actual exceeds estimate, got %v", got)
	}
	if got := RemainingHours(4, 1.5); got != 2.5 {
		t.Fatalf("expected 2.5 remaining hours, got %v", got)
	}
}
