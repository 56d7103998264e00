// Package dependency implements C3: relaxed dependency satisfiability
// for tasks and goals, batch-resolved to avoid N+1 lookups (spec §4.2,
// §9 "Dependency graph & batching").
package dependency

import (
	"context"

	"github.com/humancompiler/planner/internal/domain"
)

// Resolver answers satisfiability questions against a fixed snapshot of
// dependency edges and completion status, built once per planning run.
type Resolver struct {
	taskEdges map[string][]string // dependent task ID -> prerequisite task IDs
	goalEdges map[string][]string // dependent goal ID -> prerequisite goal IDs
	taskDone  map[string]bool
	goalDone  map[string]bool
}

// NewResolver batch-loads dependency edges and completion status for
// userID, then returns a Resolver ready for per-task queries in O(1)
// amortized setup + O(deps-per-task) per query.
func NewResolver(ctx context.Context, store domain.Store, userID string) (*Resolver, error) {
	taskEdgeList, err := store.ListDependencyEdges(ctx, userID, domain.DependencyTask)
	if err != nil {
		return nil, err
	}
	goalEdgeList, err := store.ListDependencyEdges(ctx, userID, domain.DependencyGoal)
	if err != nil {
		return nil, err
	}

	r := &Resolver{
		taskEdges: make(map[string][]string),
		goalEdges: make(map[string][]string),
		taskDone:  make(map[string]bool),
		goalDone:  make(map[string]bool),
	}
	for _, e := range taskEdgeList {
		r.taskEdges[e.Dependent] = append(r.taskEdges[e.Dependent], e.Prerequisite)
	}
	for _, e := range goalEdgeList {
		r.goalEdges[e.Dependent] = append(r.goalEdges[e.Dependent], e.Prerequisite)
	}

	// Batch-resolve completion: one read per kind, not one per task.
	tasks, err := store.ListTasks(ctx, userID)
	if err != nil {
		return nil, err
	}
	for _, t := range tasks {
		r.taskDone[t.ID] = t.Status == domain.TaskCompleted
	}

	goals, err := store.ListGoals(ctx, userID)
	if err != nil {
		return nil, err
	}
	for _, g := range goals {
		r.goalDone[g.ID] = goalHasOnlyCompletedOrNoTasks(g.ID, tasks)
	}

	return r, nil
}

// goalHasOnlyCompletedOrNoTasks treats a goal as "completed" for
// dependency purposes when every task under it is COMPLETED (including
// vacuously, when it has none).
func goalHasOnlyCompletedOrNoTasks(goalID string, tasks []*domain.Task) bool {
	for _, t := range tasks {
		if t.GoalID == goalID && t.Status != domain.TaskCompleted {
			return false
		}
	}
	return true
}

// TaskDepsSatisfied reports whether every prerequisite task of taskID is
// COMPLETED or itself present in the candidate set S (relaxed/
// co-schedulable rule, spec §4.2). Weekly-recurring tasks bypass this
// check entirely and should never be passed in.
func (r *Resolver) TaskDepsSatisfied(taskID string, inSet map[string]bool) bool {
	for _, prereq := range r.taskEdges[taskID] {
		if r.taskDone[prereq] || inSet[prereq] {
			continue
		}
		return false
	}
	return true
}

// GoalDepsSatisfied reports whether every prerequisite goal of goalID is
// COMPLETED or contains at least one task in the candidate set S.
func (r *Resolver) GoalDepsSatisfied(goalID string, tasksInSet map[string]string /* taskID -> goalID */) bool {
	for _, prereqGoal := range r.goalEdges[goalID] {
		if r.goalDone[prereqGoal] {
			continue
		}
		satisfied := false
		for _, gid := range tasksInSet {
			if gid == prereqGoal {
				satisfied = true
				break
			}
		}
		if !satisfied {
			return false
		}
	}
	return true
}
