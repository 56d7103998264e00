package optimize

import (
	"context"
	"testing"
	"time"

	"github.com/humancompiler/planner/internal/domain"
)

func day(hh, mm int) time.Time {
	return time.Date(2026, 7, 29, hh, mm, 0, 0, time.UTC)
}

func TestSolveDailyPacksTaskIntoSlotWithCorrectStartTime(t *testing.T) {
	in := DailyInput{
		Tasks: []domain.SchedulerTask{{ID: "t1", RemainingHours: 1, UserPriority: 3}},
		Slots: []domain.TimeSlot{{Start: day(9, 0), End: day(12, 0), Kind: domain.SlotFocused}},
		ScheduleDate: day(0, 0),
	}
	res := SolveDaily(context.Background(), in)
	if !res.Success || len(res.Assignments) != 1 {
		t.Fatalf("expected one assignment, got %+v", res)
	}
	a := res.Assignments[0]
	if a.TaskID != "t1" || !a.StartTime.Equal(day(9, 0)) {
		t.Fatalf("expected t1 to start at the slot's own start time 09:00, got %+v", a)
	}
	if a.DurationHours != 1 {
		t.Fatalf("expected 1h duration, got %v", a.DurationHours)
	}
}

func TestSolveDailySecondTaskStartsAfterFirstInSameSlot(t *testing.T) {
	in := DailyInput{
		Tasks: []domain.SchedulerTask{
			{ID: "t1", RemainingHours: 1, UserPriority: 3},
			{ID: "t2", RemainingHours: 1, UserPriority: 3},
		},
		Slots:        []domain.TimeSlot{{Start: day(9, 0), End: day(12, 0), Kind: domain.SlotFocused}},
		ScheduleDate: day(0, 0),
	}
	res := SolveDaily(context.Background(), in)
	if len(res.Assignments) != 2 {
		t.Fatalf("expected both tasks packed into the 3h slot, got %+v", res.Assignments)
	}
	starts := map[string]time.Time{}
	for _, a := range res.Assignments {
		starts[a.TaskID] = a.StartTime
	}
	if !starts["t1"].Equal(day(9, 0)) {
		t.Fatalf("expected t1 to start at 09:00, got %v", starts["t1"])
	}
	if !starts["t2"].Equal(day(10, 0)) {
		t.Fatalf("expected t2 to start at 10:00 right after t1's 1h block, got %v", starts["t2"])
	}
}

func TestSolveDailyFixedAssignmentReservesSlotBeforeDynamicPacking(t *testing.T) {
	fixedHours := 1.0
	in := DailyInput{
		Tasks: []domain.SchedulerTask{
			{ID: "fixed", RemainingHours: 1, UserPriority: 3},
			{ID: "dyn", RemainingHours: 1, UserPriority: 3},
		},
		Slots: []domain.TimeSlot{{Start: day(9, 0), End: day(11, 0), Kind: domain.SlotFocused}},
		Fixed: []domain.FixedAssignment{{TaskID: "fixed", SlotIndex: 0, DurationHours: &fixedHours}},
		ScheduleDate: day(0, 0),
	}
	res := SolveDaily(context.Background(), in)
	var fixedA, dynA *domain.Assignment
	for i := range res.Assignments {
		switch res.Assignments[i].TaskID {
		case "fixed":
			fixedA = &res.Assignments[i]
		case "dyn":
			dynA = &res.Assignments[i]
		}
	}
	if fixedA == nil || !fixedA.IsFixed || !fixedA.StartTime.Equal(day(9, 0)) {
		t.Fatalf("expected fixed task pinned at slot start, got %+v", fixedA)
	}
	if dynA == nil || !dynA.StartTime.Equal(day(10, 0)) {
		t.Fatalf("expected dynamic task packed after the fixed block, got %+v", dynA)
	}
}

func TestSolveDailyNoTasksOrSlotsReturnsImmediately(t *testing.T) {
	res := SolveDaily(context.Background(), DailyInput{ScheduleDate: day(0, 0)})
	if res.Status != domain.StatusNoTasksOrSlots {
		t.Fatalf("expected StatusNoTasksOrSlots, got %+v", res)
	}
}

func TestSolveDailyClampsDurationToAvailableSlotCapacity(t *testing.T) {
	in := DailyInput{
		Tasks:        []domain.SchedulerTask{{ID: "big", RemainingHours: 5, UserPriority: 3}},
		Slots:        []domain.TimeSlot{{Start: day(9, 0), End: day(10, 0), Kind: domain.SlotFocused}},
		ScheduleDate: day(0, 0),
	}
	res := SolveDaily(context.Background(), in)
	if len(res.Assignments) != 1 || res.Assignments[0].DurationHours != 1 {
		t.Fatalf("expected the task clamped to the slot's 1h capacity, got %+v", res.Assignments)
	}
}
