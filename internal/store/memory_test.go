package store

import (
	"context"
	"errors"
	"testing"

	"github.com/humancompiler/planner/internal/domain"
)

func TestGetTaskReturnsNilNotFoundForWrongUser(t *testing.T) {
	s := NewMemoryStore()
	s.SeedTask(&domain.Task{ID: "t1", UserID: "user-1"})

	got, err := s.GetTask(context.Background(), "user-2", "t1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil for a task owned by a different user, got %+v", got)
	}
}

func TestListTasksScopesByUser(t *testing.T) {
	s := NewMemoryStore()
	s.SeedTask(&domain.Task{ID: "t1", UserID: "user-1"})
	s.SeedTask(&domain.Task{ID: "t2", UserID: "user-2"})

	got, err := s.ListTasks(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].ID != "t1" {
		t.Fatalf("expected only user-1's task, got %+v", got)
	}
}

func TestCreateSessionRejectsSecondActiveSessionForSameUser(t *testing.T) {
	s := NewMemoryStore()
	if err := s.CreateSession(context.Background(), &domain.WorkSession{ID: "s1", UserID: "user-1"}); err != nil {
		t.Fatalf("seed first session: %v", err)
	}
	err := s.CreateSession(context.Background(), &domain.WorkSession{ID: "s2", UserID: "user-1"})
	var conflict *domain.ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected ConflictError for a second active session, got %v", err)
	}
}

func TestCreateSessionAllowsConcurrentSessionsForDifferentUsers(t *testing.T) {
	s := NewMemoryStore()
	if err := s.CreateSession(context.Background(), &domain.WorkSession{ID: "s1", UserID: "user-1"}); err != nil {
		t.Fatalf("seed user-1 session: %v", err)
	}
	if err := s.CreateSession(context.Background(), &domain.WorkSession{ID: "s2", UserID: "user-2"}); err != nil {
		t.Fatalf("expected a different user's active session to be allowed, got %v", err)
	}
}

func TestGetActiveSessionReturnsNilWhenNoneActive(t *testing.T) {
	s := NewMemoryStore()
	ended := domain.WorkSession{ID: "s1", UserID: "user-1"}
	if err := s.CreateSession(context.Background(), &ended); err != nil {
		t.Fatalf("seed: %v", err)
	}
	stored, _ := s.GetSession(context.Background(), "s1")
	now := stored.StartedAt
	stored.EndedAt = &now
	if err := s.SaveSession(context.Background(), stored); err != nil {
		t.Fatalf("save ended session: %v", err)
	}

	got, err := s.GetActiveSession(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil active session once the only session has ended, got %+v", got)
	}
}

func TestSeededCopiesAreIndependentOfCallerMutation(t *testing.T) {
	s := NewMemoryStore()
	orig := &domain.Project{ID: "p1", UserID: "user-1", Title: "Original"}
	s.SeedProject(orig)

	got, _ := s.GetProject(context.Background(), "user-1", "p1")
	got.Title = "Mutated by caller"

	again, _ := s.GetProject(context.Background(), "user-1", "p1")
	if again.Title != "Original" {
		t.Fatalf("expected store's internal copy unaffected by caller mutation, got %q", again.Title)
	}
}
