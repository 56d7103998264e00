package dependency

import (
	"context"
	"testing"

	"github.com/humancompiler/planner/internal/domain"
	"github.com/humancompiler/planner/internal/store"
)

func TestTaskDepsSatisfiedByCompletedPrerequisite(t *testing.T) {
	s := store.NewMemoryStore()
	s.SeedTask(&domain.Task{ID: "t1", UserID: "user-1", GoalID: "g1", Status: domain.TaskCompleted})
	s.SeedTask(&domain.Task{ID: "t2", UserID: "user-1", GoalID: "g1", Status: domain.TaskPending})
	s.SeedEdge(domain.DependencyEdge{Kind: domain.DependencyTask, Dependent: "t2", Prerequisite: "t1"})

	r, err := NewResolver(context.Background(), s, "user-1")
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}
	if !r.TaskDepsSatisfied("t2", map[string]bool{}) {
		t.Fatalf("expected t2 satisfied since its only prerequisite t1 is completed")
	}
}

func TestTaskDepsSatisfiedByCoSchedulingInSet(t *testing.T) {
	s := store.NewMemoryStore()
	s.SeedTask(&domain.Task{ID: "t1", GoalID: "g1", Status: domain.TaskPending})
	s.SeedTask(&domain.Task{ID: "t2", GoalID: "g1", Status: domain.TaskPending})
	s.SeedEdge(domain.DependencyEdge{Kind: domain.DependencyTask, Dependent: "t2", Prerequisite: "t1"})

	r, err := NewResolver(context.Background(), s, "user-1")
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}
	if r.TaskDepsSatisfied("t2", map[string]bool{}) {
		t.Fatalf("expected t2 unsatisfied when t1 is neither completed nor in the candidate set")
	}
	if !r.TaskDepsSatisfied("t2", map[string]bool{"t1": true}) {
		t.Fatalf("expected t2 satisfied once t1 is co-scheduled in the candidate set")
	}
}

func TestGoalDepsSatisfiedWhenPrerequisiteGoalHasNoTasks(t *testing.T) {
	s := store.NewMemoryStore()
	s.SeedGoal(&domain.Goal{ID: "g1", UserID: "user-1"})
	s.SeedEdge(domain.DependencyEdge{Kind: domain.DependencyGoal, Dependent: "g2", Prerequisite: "g1"})

	r, err := NewResolver(context.Background(), s, "user-1")
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}
	if !r.GoalDepsSatisfied("g2", map[string]string{}) {
		t.Fatalf("expected g2 satisfied since g1 vacuously has no incomplete tasks")
	}
}

func TestGoalDepsSatisfiedRequiresCoScheduledOrCompletePrerequisiteGoal(t *testing.T) {
	s := store.NewMemoryStore()
	s.SeedTask(&domain.Task{ID: "t1", GoalID: "g1", Status: domain.TaskPending})
	s.SeedEdge(domain.DependencyEdge{Kind: domain.DependencyGoal, Dependent: "g2", Prerequisite: "g1"})

	r, err := NewResolver(context.Background(), s, "user-1")
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}
	if r.GoalDepsSatisfied("g2", map[string]string{}) {
		t.Fatalf("expected g2 unsatisfied since g1 has an incomplete task not in the candidate set")
	}
	if !r.GoalDepsSatisfied("g2", map[string]string{"t1": "g1"}) {
		t.Fatalf("expected g2 satisfied once a g1 task is in the candidate set")
	}
}
