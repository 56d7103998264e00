package optimize

import (
	"context"
	"testing"

	"github.com/humancompiler/planner/internal/domain"
)

func TestSolveWeeklySelectsWithinCapacity(t *testing.T) {
	in := WeeklyInput{
		Tasks: []domain.SchedulerTask{
			{ID: "t1", RemainingHours: 5, Priority: 5},
			{ID: "t2", RemainingHours: 10, Priority: 1},
		},
		Capacity: domain.UserCapacity{TotalCapacityHours: 5},
	}
	sel := SolveWeekly(context.Background(), in)
	if !sel.Success {
		t.Fatalf("expected a feasible selection, got %+v", sel)
	}
	if len(sel.SelectedTaskIDs) != 1 || sel.SelectedTaskIDs[0] != "t1" {
		t.Fatalf("expected only the higher-priority task to fit under 5h capacity, got %+v", sel.SelectedTaskIDs)
	}
}

func TestSolveWeeklyRespectsProjectAllocationBand(t *testing.T) {
	in := WeeklyInput{
		Tasks: []domain.SchedulerTask{
			{ID: "a1", ProjectID: "proj-a", RemainingHours: 8, Priority: 3},
			{ID: "b1", ProjectID: "proj-b", RemainingHours: 8, Priority: 3},
		},
		Capacity: domain.UserCapacity{
			TotalCapacityHours: 16,
			Allocations: []domain.ProjectAllocation{
				{ProjectID: "proj-a", TargetHours: 8, PriorityWeight: 1},
				{ProjectID: "proj-b", TargetHours: 0, PriorityWeight: 1},
			},
		},
	}
	sel := SolveWeekly(context.Background(), in)
	if !sel.Success {
		t.Fatalf("expected a feasible selection, got %+v", sel)
	}
	for _, id := range sel.SelectedTaskIDs {
		if id == "b1" {
			t.Fatalf("expected proj-b excluded by its zero-target band, got %+v", sel.SelectedTaskIDs)
		}
	}
}

func TestSolveWeeklyIncludesRecurringTasksSeparately(t *testing.T) {
	in := WeeklyInput{
		Recurring: []domain.SchedulerTask{{ID: "r1", RemainingHours: 2, Priority: 1, IsRecurring: true}},
		Capacity:  domain.UserCapacity{TotalCapacityHours: 10},
	}
	sel := SolveWeekly(context.Background(), in)
	if !sel.Success || len(sel.SelectedRecurringIDs) != 1 || sel.SelectedRecurringIDs[0] != "r1" {
		t.Fatalf("expected r1 selected as a recurring task, got %+v", sel)
	}
	if len(sel.SelectedTaskIDs) != 0 {
		t.Fatalf("expected no project tasks selected, got %+v", sel.SelectedTaskIDs)
	}
}

func TestSolveWeeklyZeroCapacityYieldsNoSelection(t *testing.T) {
	in := WeeklyInput{
		Tasks:    []domain.SchedulerTask{{ID: "t1", RemainingHours: 1, Priority: 1}},
		Capacity: domain.UserCapacity{TotalCapacityHours: 0},
	}
	sel := SolveWeekly(context.Background(), in)
	if !sel.Success {
		t.Fatalf("expected success=true with an empty (still valid) selection, got %+v", sel)
	}
	if len(sel.SelectedTaskIDs) != 0 {
		t.Fatalf("expected nothing selected at zero capacity, got %+v", sel.SelectedTaskIDs)
	}
}
