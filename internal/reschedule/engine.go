// Package reschedule implements C11: at checkout, compute how the rest
// of today's plan should shift around the session that just ended, and
// propose it to the user as a RescheduleSuggestion.
package reschedule

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/humancompiler/planner/internal/domain"
	"github.com/humancompiler/planner/internal/observability"
)

// Engine is C11. Only this type creates RescheduleSuggestion rows and
// (on accept) swaps a day's stored plan.
type Engine struct {
	Store domain.Store
}

// Trigger runs at checkout: if today's saved schedule exists and has
// assignments, compute the proposed plan, diff it against the
// original, and persist a PENDING suggestion if the diff is
// significant. Returns nil, nil when there is nothing to propose.
func (e *Engine) Trigger(ctx context.Context, s *domain.WorkSession) (*domain.RescheduleSuggestion, error) {
	if s.EndedAt == nil {
		return nil, &domain.ValidationError{Field: "session", Reason: "cannot trigger reschedule before checkout"}
	}
	date := s.EndedAt.Format("2006-01-02")
	plan, err := e.Store.GetDailySchedule(ctx, s.UserID, date)
	if err != nil {
		return nil, err
	}
	if plan == nil || len(plan.Assignments) == 0 {
		return nil, nil
	}

	originalIdx := indexOfTask(plan.Assignments, s.TaskID)
	var proposed []domain.PlannedSlot
	var triggerType domain.TriggerType
	if originalIdx >= 0 {
		proposed = normalCheckoutPlan(plan.Assignments, originalIdx, s)
		triggerType = domain.TriggerCheckout
	} else {
		proposed = manualExecutionPlan(plan.Assignments, s.StartedAt, *s.EndedAt)
		triggerType = domain.TriggerManualCheckout
	}

	diff := diffPlans(plan.Assignments, proposed)
	if !diff.HasSignificantChanges {
		return nil, nil
	}

	suggestion := &domain.RescheduleSuggestion{
		ID:              uuid.NewString(),
		UserID:          s.UserID,
		WorkSessionID:   s.ID,
		TriggerType:     triggerType,
		TriggerDecision: s.Decision,
		OriginalPlan:    domain.DayPlan{Date: date, Assignments: plan.Assignments},
		ProposedPlan:    domain.DayPlan{Date: date, Assignments: proposed},
		Diff:            diff,
		Status:          domain.SuggestionPending,
		ExpiresAt:       endOfDay(*s.EndedAt),
	}
	if err := e.Store.CreateSuggestion(ctx, suggestion); err != nil {
		return nil, err
	}
	observability.RescheduleSuggestionsTotal.WithLabelValues(string(triggerType)).Inc()
	return suggestion, nil
}

func indexOfTask(slots []domain.PlannedSlot, taskID string) int {
	for i, sl := range slots {
		if sl.TaskID == taskID {
			return i
		}
	}
	return -1
}

// normalCheckoutPlan handles the case where the ended session's task
// is one of today's planned slots: COMPLETE drops it, CONTINUE keeps
// it annotated with the session's remaining estimate, SWITCH/BREAK
// pass it through unchanged. Every other slot passes through as-is.
func normalCheckoutPlan(original []domain.PlannedSlot, idx int, s *domain.WorkSession) []domain.PlannedSlot {
	out := make([]domain.PlannedSlot, 0, len(original))
	for i, sl := range original {
		if i != idx {
			out = append(out, sl)
			continue
		}
		switch s.Decision {
		case domain.DecisionComplete:
			// dropped
		case domain.DecisionContinue:
			cp := sl
			cp.RemainingHours = s.RemainingEstimateHours
			out = append(out, cp)
		default: // SWITCH, BREAK
			out = append(out, sl)
		}
	}
	return out
}

// manualExecutionPlan handles the case where the ended session's task
// was not in today's plan: the actual wall-clock window
// [executionStart, executionEnd] displaces any original slot it
// overlaps or follows, preserving each slot's own duration.
func manualExecutionPlan(original []domain.PlannedSlot, executionStart, executionEnd time.Time) []domain.PlannedSlot {
	out := make([]domain.PlannedSlot, 0, len(original))
	nextAvailable := executionEnd

	for _, sl := range original {
		duration := sl.End.Sub(sl.Start)

		switch {
		case sl.End.Before(executionStart) || sl.End.Equal(executionStart):
			out = append(out, sl)

		case !sl.Start.Before(executionEnd):
			if nextAvailable.After(sl.Start) {
				shift := nextAvailable.Sub(sl.Start)
				cp := sl
				cp.Start = sl.Start.Add(shift)
				cp.End = cp.Start.Add(duration)
				out = append(out, cp)
				nextAvailable = cp.End
			} else {
				out = append(out, sl)
				if sl.End.After(nextAvailable) {
					nextAvailable = sl.End
				}
			}

		default: // overlaps the execution window
			start := executionEnd
			if nextAvailable.After(start) {
				start = nextAvailable
			}
			cp := sl
			cp.Start = start
			cp.End = start.Add(duration)
			out = append(out, cp)
			nextAvailable = cp.End
		}
	}
	return out
}

// diffPlans classifies every task_id present in either plan by how its
// position changed, per spec §4.10 Diff.
func diffPlans(original, proposed []domain.PlannedSlot) domain.ScheduleDiff {
	origIdx := make(map[string]int, len(original))
	for i, sl := range original {
		origIdx[sl.TaskID] = i
	}
	propIdx := make(map[string]int, len(proposed))
	propTitle := make(map[string]string, len(proposed))
	for i, sl := range proposed {
		propIdx[sl.TaskID] = i
		propTitle[sl.TaskID] = sl.TaskTitle
	}

	var diff domain.ScheduleDiff
	for id, oi := range origIdx {
		oiCopy := oi
		if pi, ok := propIdx[id]; ok {
			piCopy := pi
			switch {
			case pi > oi:
				diff.Pushed = append(diff.Pushed, domain.DiffItem{
					TaskID: id, TaskTitle: propTitle[id], ChangeType: domain.ChangePushed,
					OriginalSlotIndex: &oiCopy, NewSlotIndex: &piCopy,
					Reason: "Pushed back due to earlier task overrun",
				})
			case pi < oi:
				diff.Reordered = append(diff.Reordered, domain.DiffItem{
					TaskID: id, TaskTitle: propTitle[id], ChangeType: domain.ChangeReordered,
					OriginalSlotIndex: &oiCopy, NewSlotIndex: &piCopy,
					Reason: "Moved earlier in schedule",
				})
			}
		} else {
			diff.Removed = append(diff.Removed, domain.DiffItem{
				TaskID: id, ChangeType: domain.ChangeRemoved,
				OriginalSlotIndex: &oiCopy,
				Reason:            "Time exceeded - deferred to later",
			})
		}
	}
	for id, pi := range propIdx {
		if _, ok := origIdx[id]; ok {
			continue
		}
		piCopy := pi
		diff.Added = append(diff.Added, domain.DiffItem{
			TaskID: id, TaskTitle: propTitle[id], ChangeType: domain.ChangeAdded,
			NewSlotIndex: &piCopy,
			Reason:       "Added to fill available time",
		})
	}

	diff.TotalChanges = len(diff.Pushed) + len(diff.Added) + len(diff.Removed) + len(diff.Reordered)
	diff.HasSignificantChanges = diff.TotalChanges > 0
	return diff
}

func endOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, 0, t.Location())
}

// Accept commits a PENDING suggestion: it replaces today's stored plan
// with the proposed one and marks the suggestion decided. Both writes
// are expected to commit atomically at the storage layer (spec §5).
func (e *Engine) Accept(ctx context.Context, suggestionID string) (*domain.RescheduleSuggestion, error) {
	s, err := e.pendingOrErr(ctx, suggestionID)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	s.Status = domain.SuggestionAccepted
	s.DecidedAt = &now
	if err := e.Store.SaveDailySchedule(ctx, s.UserID, s.ProposedPlan.Date, &s.ProposedPlan); err != nil {
		return nil, err
	}
	if err := e.Store.SaveSuggestion(ctx, s); err != nil {
		return nil, err
	}
	observability.RescheduleDecisionsTotal.WithLabelValues("accepted").Inc()
	return s, nil
}

// Reject marks a PENDING suggestion REJECTED without touching the
// stored plan.
func (e *Engine) Reject(ctx context.Context, suggestionID, reason string) (*domain.RescheduleSuggestion, error) {
	s, err := e.pendingOrErr(ctx, suggestionID)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	s.Status = domain.SuggestionRejected
	s.DecidedAt = &now
	if err := e.Store.SaveSuggestion(ctx, s); err != nil {
		return nil, err
	}
	observability.RescheduleDecisionsTotal.WithLabelValues("rejected").Inc()
	return s, nil
}

func (e *Engine) pendingOrErr(ctx context.Context, suggestionID string) (*domain.RescheduleSuggestion, error) {
	s, err := e.Store.GetSuggestion(ctx, suggestionID)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, &domain.NotFoundError{Kind: "suggestion", ID: suggestionID}
	}
	if s.Status != domain.SuggestionPending {
		return nil, &domain.ValidationError{Field: "status", Reason: fmt.Sprintf("suggestion is %s, not PENDING", s.Status)}
	}
	return s, nil
}
