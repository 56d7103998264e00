// Package session implements C8: the work-session state machine. Only
// this package's Engine mutates domain.WorkSession; every transition is
// a guarded, numbered admission chain in the style of the teacher
// scheduler's Submit() rather than ad hoc field checks in a request
// handler, and each transition reads-checks-writes the session row as a
// single step (the store is expected to serialize concurrent writers
// per session, e.g. via a row lock or a uniqueness constraint on
// user_id where ended_at is null).
package session

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/humancompiler/planner/internal/domain"
	"github.com/humancompiler/planner/internal/observability"
)

// recordTransition emits the operation-outcome counter every guarded
// transition reports through, win or lose.
func recordTransition(operation string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "rejected"
	}
	observability.SessionTransitionsTotal.WithLabelValues(operation, outcome).Inc()
}

// Engine is C8. Store is the domain store; only this type may call its
// session-mutating methods.
type Engine struct {
	Store domain.Store
}

// StartInput is the payload for Start.
type StartInput struct {
	UserID            string
	TaskID            string
	PlannedCheckoutAt time.Time
}

// Start begins a new work session. Fails with ConflictError if the user
// already has an active session, NotFoundError if the task doesn't
// exist.
func (e *Engine) Start(ctx context.Context, in StartInput) (s *domain.WorkSession, err error) {
	defer func() { recordTransition("start", err) }()
	// 1. Task must exist.
	task, err := e.Store.GetTask(ctx, in.UserID, in.TaskID)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, &domain.NotFoundError{Kind: "task", ID: in.TaskID}
	}

	// 2. At most one active session per user.
	active, err := e.Store.GetActiveSession(ctx, in.UserID)
	if err != nil {
		return nil, err
	}
	if active != nil {
		return nil, &domain.ConflictError{Reason: "an active work session already exists for this user"}
	}

	now := time.Now()
	s = &domain.WorkSession{
		ID:                uuid.NewString(),
		UserID:            in.UserID,
		TaskID:            in.TaskID,
		StartedAt:         now,
		PlannedCheckoutAt: in.PlannedCheckoutAt,
	}
	if err := e.Store.CreateSession(ctx, s); err != nil {
		return nil, err
	}
	return s, nil
}

// Pause pauses the user's active session. Only legal when not already
// paused.
func (e *Engine) Pause(ctx context.Context, userID string) (out *domain.WorkSession, err error) {
	defer func() { recordTransition("pause", err) }()
	s, err := e.activeSessionOrNotFound(ctx, userID)
	if err != nil {
		return nil, err
	}
	if s.IsPaused() {
		return nil, &domain.ValidationError{Field: "session", Reason: "already paused"}
	}
	now := time.Now()
	s.PausedAt = &now
	if err := e.Store.SaveSession(ctx, s); err != nil {
		return nil, err
	}
	return s, nil
}

// Resume resumes a paused session, crediting the pause duration to
// total_paused_seconds. If extendCheckout, planned_checkout_at shifts
// by the same delta so the user doesn't lose runway to the pause.
func (e *Engine) Resume(ctx context.Context, userID string, extendCheckout bool) (out *domain.WorkSession, err error) {
	defer func() { recordTransition("resume", err) }()
	s, err := e.activeSessionOrNotFound(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !s.IsPaused() {
		return nil, &domain.ValidationError{Field: "session", Reason: "not paused"}
	}
	now := time.Now()
	delta := now.Sub(*s.PausedAt)
	s.TotalPausedSeconds += int64(delta.Seconds())
	if extendCheckout {
		s.PlannedCheckoutAt = s.PlannedCheckoutAt.Add(delta)
	}
	s.PausedAt = nil
	if err := e.Store.SaveSession(ctx, s); err != nil {
		return nil, err
	}
	return s, nil
}

const (
	snoozeMaxCount  = 2
	snoozeMinMin    = 1
	snoozeMaxMin    = 15
)

// Snooze pushes the planned checkout back by minutes and resets
// escalation flags so the notification ladder restarts for the new
// deadline.
func (e *Engine) Snooze(ctx context.Context, userID string, minutes int) (out *domain.WorkSession, err error) {
	defer func() { recordTransition("snooze", err) }()
	if minutes < snoozeMinMin || minutes > snoozeMaxMin {
		return nil, &domain.ValidationError{Field: "snooze_minutes", Reason: "must be between 1 and 15"}
	}
	s, err := e.activeSessionOrNotFound(ctx, userID)
	if err != nil {
		return nil, err
	}
	if s.MarkedUnresponsiveAt != nil {
		return nil, &domain.ValidationError{Field: "session", Reason: "already marked unresponsive"}
	}
	if s.SnoozeCount >= snoozeMaxCount {
		return nil, &domain.ValidationError{Field: "snooze_count", Reason: "snooze cap reached"}
	}

	now := time.Now()
	s.PlannedCheckoutAt = s.PlannedCheckoutAt.Add(time.Duration(minutes) * time.Minute)
	s.SnoozeCount++
	s.LastSnoozeAt = &now
	s.Notification5MinSent = false
	s.NotificationCheckoutSent = false
	s.NotificationOverdueSent = false
	if err := e.Store.SaveSession(ctx, s); err != nil {
		return nil, err
	}
	return s, nil
}

// CheckoutInput is the payload for Checkout.
type CheckoutInput struct {
	UserID                 string
	CheckoutType           domain.CheckoutType
	Decision               domain.SessionDecision
	ContinueReason         string
	KeepNote               string
	ProblemNote            string
	TryNote                string
	RemainingEstimateHours *float64
}

const (
	kptFieldMaxLen  = 100
	kptSummaryMax   = 500
	minEstimateHrs  = 0.0
	maxEstimateHrs  = 999.99
)

// Checkout ends the active session, logs actual time spent, and
// optionally recomputes the task's remaining estimate.
func (e *Engine) Checkout(ctx context.Context, in CheckoutInput) (out *domain.WorkSession, err error) {
	defer func() { recordTransition("checkout", err) }()
	s, err := e.activeSessionOrNotFound(ctx, in.UserID)
	if err != nil {
		return nil, err
	}

	if in.Decision == domain.DecisionContinue {
		if strings.TrimSpace(in.KeepNote) == "" && strings.TrimSpace(in.ProblemNote) == "" && strings.TrimSpace(in.TryNote) == "" {
			return nil, &domain.ValidationError{Field: "kpt", Reason: "at least one KPT field is required when decision is CONTINUE"}
		}
	}
	for field, v := range map[string]string{"keep": in.KeepNote, "problem": in.ProblemNote, "try": in.TryNote} {
		if len(v) > kptFieldMaxLen {
			return nil, &domain.ValidationError{Field: field, Reason: fmt.Sprintf("must be at most %d characters", kptFieldMaxLen)}
		}
	}
	if in.RemainingEstimateHours != nil && *in.RemainingEstimateHours < minEstimateHrs {
		return nil, &domain.ValidationError{Field: "remaining_estimate_hours", Reason: "must not be negative"}
	}

	now := time.Now()

	rawElapsed := now.Sub(s.StartedAt)
	totalPaused := s.TotalPausedSeconds
	if s.IsPaused() {
		totalPaused += int64(now.Sub(*s.PausedAt).Seconds())
		s.PausedAt = nil
	}

	netSeconds := rawElapsed.Seconds() - float64(totalPaused)
	actualMinutes := int(math.Floor(netSeconds / 60))
	if actualMinutes < 1 {
		actualMinutes = 1
	}

	s.TotalPausedSeconds = totalPaused
	s.EndedAt = &now
	s.CheckoutType = in.CheckoutType
	s.Decision = in.Decision
	s.ContinueReason = in.ContinueReason
	s.KeepNote = in.KeepNote
	s.ProblemNote = in.ProblemNote
	s.TryNote = in.TryNote
	s.RemainingEstimateHours = in.RemainingEstimateHours

	summary := kptSummary(in.KeepNote, in.ProblemNote, in.TryNote)
	if len(summary) > kptSummaryMax {
		summary = summary[:kptSummaryMax]
	}
	logEntry := &domain.WorkLog{
		ID:            uuid.NewString(),
		TaskID:        s.TaskID,
		ActualMinutes: actualMinutes,
		Comment:       summary,
		CreatedAt:     now,
	}
	if err := e.Store.CreateWorkLog(ctx, logEntry); err != nil {
		return nil, err
	}

	if in.RemainingEstimateHours != nil {
		task, err := e.Store.GetTask(ctx, in.UserID, s.TaskID)
		if err != nil {
			return nil, err
		}
		if task == nil {
			return nil, &domain.NotFoundError{Kind: "task", ID: s.TaskID}
		}
		logs, err := e.Store.ListWorkLogsByTask(ctx, []string{s.TaskID})
		if err != nil {
			return nil, err
		}
		totalLoggedMinutes := 0
		for _, l := range logs {
			totalLoggedMinutes += l.ActualMinutes
		}
		newEstimate := roundHalfUp(float64(totalLoggedMinutes)/60+*in.RemainingEstimateHours, 2)
		if newEstimate <= minEstimateHrs || newEstimate > maxEstimateHrs {
			return nil, &domain.ValidationError{Field: "estimate_hours", Reason: "recomputed estimate out of range"}
		}
		if err := e.Store.UpdateTaskEstimate(ctx, in.UserID, s.TaskID, newEstimate); err != nil {
			return nil, err
		}
	}

	if err := e.Store.SaveSession(ctx, s); err != nil {
		return nil, err
	}
	return s, nil
}

// UpdateKPT edits only the KPT fields of an already-checked-out
// session. An empty string clears a field; nil leaves it unchanged.
func (e *Engine) UpdateKPT(ctx context.Context, sessionID string, keep, problem, try *string) (out *domain.WorkSession, err error) {
	defer func() { recordTransition("update_kpt", err) }()
	s, err := e.Store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, &domain.NotFoundError{Kind: "session", ID: sessionID}
	}
	if s.IsActive() {
		return nil, &domain.ValidationError{Field: "session", Reason: "cannot update KPT before checkout"}
	}
	for field, v := range map[string]*string{"keep": keep, "problem": problem, "try": try} {
		if v != nil && len(*v) > kptFieldMaxLen {
			return nil, &domain.ValidationError{Field: field, Reason: fmt.Sprintf("must be at most %d characters", kptFieldMaxLen)}
		}
	}
	if keep != nil {
		s.KeepNote = *keep
	}
	if problem != nil {
		s.ProblemNote = *problem
	}
	if try != nil {
		s.TryNote = *try
	}
	if err := e.Store.SaveSession(ctx, s); err != nil {
		return nil, err
	}
	return s, nil
}

// MarkUnresponsive sets marked_unresponsive_at if unset. Idempotent;
// called by the escalator (C9), never by a user RPC.
func (e *Engine) MarkUnresponsive(ctx context.Context, s *domain.WorkSession) error {
	if !s.IsActive() || s.MarkedUnresponsiveAt != nil {
		return nil
	}
	now := time.Now()
	s.MarkedUnresponsiveAt = &now
	return e.Store.SaveSession(ctx, s)
}

func (e *Engine) activeSessionOrNotFound(ctx context.Context, userID string) (*domain.WorkSession, error) {
	s, err := e.Store.GetActiveSession(ctx, userID)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, &domain.NotFoundError{Kind: "session", ID: userID}
	}
	return s, nil
}

func kptSummary(keep, problem, try string) string {
	return fmt.Sprintf("K: %s | P: %s | T: %s", keep, problem, try)
}

// roundHalfUp rounds v to places decimal places, half away from zero.
func roundHalfUp(v float64, places int) float64 {
	mult := math.Pow(10, float64(places))
	if v >= 0 {
		return math.Floor(v*mult+0.5) / mult
	}
	return math.Ceil(v*mult-0.5) / mult
}
