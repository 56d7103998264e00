package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/humancompiler/planner/internal/domain"
	"github.com/humancompiler/planner/internal/store"
)

func newFixture(t *testing.T) (*Engine, *store.MemoryStore) {
	t.Helper()
	s := store.NewMemoryStore()
	s.SeedTask(&domain.Task{ID: "task-1", UserID: "user-1", Title: "Write report", EstimateHours: 4})
	return &Engine{Store: s}, s
}

func TestStartRejectsUnknownTask(t *testing.T) {
	e, _ := newFixture(t)
	_, err := e.Start(context.Background(), StartInput{UserID: "user-1", TaskID: "missing", PlannedCheckoutAt: time.Now().Add(time.Hour)})
	var nf *domain.NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}

func TestStartRejectsSecondActiveSession(t *testing.T) {
	e, _ := newFixture(t)
	ctx := context.Background()
	in := StartInput{UserID: "user-1", TaskID: "task-1", PlannedCheckoutAt: time.Now().Add(time.Hour)}
	if _, err := e.Start(ctx, in); err != nil {
		t.Fatalf("first Start: %v", err)
	}
	_, err := e.Start(ctx, in)
	var ce *domain.ConflictError
	if !errors.As(err, &ce) {
		t.Fatalf("expected ConflictError, got %v", err)
	}
}

func TestPauseResumeCreditsPausedSeconds(t *testing.T) {
	e, _ := newFixture(t)
	ctx := context.Background()
	s, err := e.Start(ctx, StartInput{UserID: "user-1", TaskID: "task-1", PlannedCheckoutAt: time.Now().Add(time.Hour)})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	if _, err := e.Pause(ctx, "user-1"); err != nil {
		t.Fatalf("Pause: %v", err)
	}
	if _, err := e.Pause(ctx, "user-1"); err == nil {
		t.Fatalf("expected error pausing an already-paused session")
	}

	original := s.PlannedCheckoutAt
	out, err := e.Resume(ctx, "user-1", true)
	if err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if out.PausedAt != nil {
		t.Fatalf("expected PausedAt cleared after resume")
	}
	if !out.PlannedCheckoutAt.After(original) {
		t.Fatalf("expected checkout deadline extended by pause duration, got %v (was %v)", out.PlannedCheckoutAt, original)
	}

	if _, err := e.Resume(ctx, "user-1", false); err == nil {
		t.Fatalf("expected error resuming an already-running session")
	}
}

func TestSnoozeResetsNotificationFlagsAndCapsAtTwo(t *testing.T) {
	e, _ := newFixture(t)
	ctx := context.Background()
	if _, err := e.Start(ctx, StartInput{UserID: "user-1", TaskID: "task-1", PlannedCheckoutAt: time.Now().Add(time.Hour)}); err != nil {
		t.Fatalf("Start: %v", err)
	}

	if _, err := e.Snooze(ctx, "user-1", 0); err == nil {
		t.Fatalf("expected error for snooze below 1 minute")
	}
	if _, err := e.Snooze(ctx, "user-1", 16); err == nil {
		t.Fatalf("expected error for snooze above 15 minutes")
	}

	if _, err := e.Snooze(ctx, "user-1", 5); err != nil {
		t.Fatalf("snooze 1: %v", err)
	}
	out, err := e.Snooze(ctx, "user-1", 5)
	if err != nil {
		t.Fatalf("snooze 2: %v", err)
	}
	if out.SnoozeCount != 2 {
		t.Fatalf("expected snooze_count 2, got %d", out.SnoozeCount)
	}
	if _, err := e.Snooze(ctx, "user-1", 5); err == nil {
		t.Fatalf("expected snooze cap to reject a third snooze")
	}
}

func TestSnoozeBlockedAfterUnresponsive(t *testing.T) {
	e, s := newFixture(t)
	ctx := context.Background()
	sess, err := e.Start(ctx, StartInput{UserID: "user-1", TaskID: "task-1", PlannedCheckoutAt: time.Now().Add(-time.Hour)})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := e.MarkUnresponsive(ctx, sess); err != nil {
		t.Fatalf("MarkUnresponsive: %v", err)
	}
	_, err = e.Snooze(ctx, "user-1", 5)
	if err == nil {
		t.Fatalf("expected snooze to be rejected once marked unresponsive")
	}
	got, _ := s.GetActiveSession(ctx, "user-1")
	if got.MarkedUnresponsiveAt == nil {
		t.Fatalf("expected MarkedUnresponsiveAt to persist")
	}
}

func TestCheckoutContinueRequiresKPTField(t *testing.T) {
	e, _ := newFixture(t)
	ctx := context.Background()
	if _, err := e.Start(ctx, StartInput{UserID: "user-1", TaskID: "task-1", PlannedCheckoutAt: time.Now().Add(time.Hour)}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	_, err := e.Checkout(ctx, CheckoutInput{UserID: "user-1", CheckoutType: domain.CheckoutManual, Decision: domain.DecisionContinue})
	if err == nil {
		t.Fatalf("expected error when CONTINUE has no KPT field set")
	}
}

func TestCheckoutLogsWorkAndRecomputesEstimate(t *testing.T) {
	e, s := newFixture(t)
	ctx := context.Background()
	sess, err := e.Start(ctx, StartInput{UserID: "user-1", TaskID: "task-1", PlannedCheckoutAt: time.Now().Add(time.Hour)})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	sess.StartedAt = time.Now().Add(-90 * time.Minute)
	if err := s.SaveSession(ctx, sess); err != nil {
		t.Fatalf("seed elapsed time: %v", err)
	}

	remaining := 1.5
	out, err := e.Checkout(ctx, CheckoutInput{
		UserID: "user-1", CheckoutType: domain.CheckoutManual, Decision: domain.DecisionContinue,
		KeepNote: "good focus", RemainingEstimateHours: &remaining,
	})
	if err != nil {
		t.Fatalf("Checkout: %v", err)
	}
	if out.EndedAt == nil {
		t.Fatalf("expected EndedAt to be set")
	}

	logs, _ := s.ListWorkLogsByTask(ctx, []string{"task-1"})
	if len(logs) != 1 {
		t.Fatalf("expected one work log, got %d", len(logs))
	}
	if logs[0].ActualMinutes < 85 || logs[0].ActualMinutes > 95 {
		t.Fatalf("expected ~90 logged minutes, got %d", logs[0].ActualMinutes)
	}

	task, _ := s.GetTask(ctx, "user-1", "task-1")
	wantEstimate := roundHalfUp(float64(logs[0].ActualMinutes)/60+remaining, 2)
	if task.EstimateHours != wantEstimate {
		t.Fatalf("expected recomputed estimate %v, got %v", wantEstimate, task.EstimateHours)
	}
}

func TestCheckoutRejectsNegativeRemainingEstimate(t *testing.T) {
	e, _ := newFixture(t)
	ctx := context.Background()
	if _, err := e.Start(ctx, StartInput{UserID: "user-1", TaskID: "task-1", PlannedCheckoutAt: time.Now().Add(time.Hour)}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	negative := -0.5
	_, err := e.Checkout(ctx, CheckoutInput{
		UserID: "user-1", CheckoutType: domain.CheckoutManual, Decision: domain.DecisionComplete,
		RemainingEstimateHours: &negative,
	})
	if err == nil {
		t.Fatalf("expected error for negative remaining estimate")
	}
}

func TestUpdateKPTRequiresCheckedOutSession(t *testing.T) {
	e, s := newFixture(t)
	ctx := context.Background()
	sess, err := e.Start(ctx, StartInput{UserID: "user-1", TaskID: "task-1", PlannedCheckoutAt: time.Now().Add(time.Hour)})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	keep := "keep this"
	if _, err := e.UpdateKPT(ctx, sess.ID, &keep, nil, nil); err == nil {
		t.Fatalf("expected error updating KPT before checkout")
	}

	out, err := e.Checkout(ctx, CheckoutInput{UserID: "user-1", CheckoutType: domain.CheckoutManual, Decision: domain.DecisionComplete})
	if err != nil {
		t.Fatalf("Checkout: %v", err)
	}
	updated, err := e.UpdateKPT(ctx, out.ID, &keep, nil, nil)
	if err != nil {
		t.Fatalf("UpdateKPT after checkout: %v", err)
	}
	if updated.KeepNote != keep {
		t.Fatalf("expected KeepNote %q, got %q", keep, updated.KeepNote)
	}

	got, _ := s.GetSession(ctx, out.ID)
	if got.KeepNote != keep {
		t.Fatalf("expected update to persist")
	}
}
