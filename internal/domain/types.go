// Package domain holds the entities shared by every planning and
// session-control component. Types here carry no storage or transport
// concerns; see internal/store for persistence and internal/pipeline,
// internal/session, internal/escalator, internal/reschedule for the
// components that mutate them.
package domain

import "time"

// WorkKind tags the nature of a task's work for slot-affinity scoring.
type WorkKind string

const (
	LightWork   WorkKind = "LIGHT_WORK"
	FocusedWork WorkKind = "FOCUSED_WORK"
	Study       WorkKind = "STUDY"
)

// TaskStatus is the lifecycle state of a Task.
type TaskStatus string

const (
	TaskPending    TaskStatus = "PENDING"
	TaskInProgress TaskStatus = "IN_PROGRESS"
	TaskCompleted  TaskStatus = "COMPLETED"
	TaskCancelled  TaskStatus = "CANCELLED"
)

// Task is a unit of schedulable work owned by a goal.
type Task struct {
	ID            string
	UserID        string
	GoalID        string
	Title         string
	EstimateHours float64
	Kind          WorkKind
	Priority      int // 1..5, 1 = highest
	DueAt         *time.Time
	Status        TaskStatus
}

// Goal is a hierarchical container owned by a project.
type Goal struct {
	ID        string
	UserID    string
	ProjectID string
	Title     string
}

// Project is the top-level container owned by a user.
type Project struct {
	ID     string
	UserID string
	Title  string
}

// DependencyKind distinguishes task-level from goal-level edges.
type DependencyKind string

const (
	DependencyTask DependencyKind = "TASK"
	DependencyGoal DependencyKind = "GOAL"
)

// DependencyEdge is a directed prerequisite relation: Dependent depends
// on Prerequisite. No self-edges; acyclic within the planning horizon.
type DependencyEdge struct {
	Kind         DependencyKind
	Dependent    string
	Prerequisite string
}

// WorkLog is an append-only record of actual time spent on a task.
type WorkLog struct {
	ID            string
	TaskID        string
	ActualMinutes int
	Comment       string
	CreatedAt     time.Time
}

// WeeklyRecurringTask is a soft-deletable task with no dependencies that
// is always schedulable.
type WeeklyRecurringTask struct {
	ID            string
	UserID        string
	Title         string
	EstimateHours float64
	Category      string
	Active        bool
	DeletedAt     *time.Time
}

// SlotKind tags a time slot for kind-affinity scoring.
type SlotKind string

const (
	SlotLight   SlotKind = "LIGHT_WORK"
	SlotFocused SlotKind = "FOCUSED_WORK"
	SlotStudy   SlotKind = "STUDY"
	SlotMeeting SlotKind = "MEETING"
)

// TimeSlot is an input window available for scheduling on a given day.
type TimeSlot struct {
	Start            time.Time
	End              time.Time
	Kind             SlotKind
	CapacityHours    *float64
	PinnedProjectID  *string
}

// Duration returns the slot's wall-clock span.
func (s TimeSlot) Duration() time.Duration { return s.End.Sub(s.Start) }

// FixedAssignment is a user pin that the daily packer must honor.
type FixedAssignment struct {
	TaskID       string
	SlotIndex    int
	DurationHours *float64
}

// SchedulerTask is the derived, planning-only view of a Task (or
// recurring task) fed into C5/C6.
type SchedulerTask struct {
	ID            string
	Title         string
	RemainingHours float64
	ActualHours    float64
	Priority       float64 // oracle/fallback score in [0,10] for C5/C6 objective use
	UserPriority   int     // 1..5 raw field, used by fallback scoring
	DueAt          *time.Time
	Kind           WorkKind
	GoalID         string
	ProjectID      string
	IsRecurring    bool
}

// Assignment is a solved (task, slot) pairing.
type Assignment struct {
	TaskID        string
	SlotIndex     int
	StartTime     time.Time
	DurationHours float64
	IsFixed       bool
}

// SolveStatus is the outcome of a CP-style solve.
type SolveStatus string

const (
	StatusOptimal         SolveStatus = "OPTIMAL"
	StatusFeasible        SolveStatus = "FEASIBLE"
	StatusInfeasible      SolveStatus = "INFEASIBLE"
	StatusUnknown         SolveStatus = "UNKNOWN"
	StatusNoTasksOrSlots  SolveStatus = "NO_TASKS_OR_SLOTS"
)

// UnscheduledTask records why a candidate task did not make it into a
// ScheduleResult.
type UnscheduledTask struct {
	TaskID string
	Reason string
}

// ScheduleResult is the output of the daily packer (C6).
type ScheduleResult struct {
	Success       bool
	Assignments   []Assignment
	Unscheduled   []UnscheduledTask
	TotalHours    float64
	Status        SolveStatus
	SolveSeconds  float64
	Objective     float64
}

// ProjectAllocation drives C5's per-project band constraints.
type ProjectAllocation struct {
	ProjectID      string
	TargetHours    float64
	MaxHours       float64
	PriorityWeight float64
}

// WeeklySelection is the output of the weekly selector (C5).
type WeeklySelection struct {
	SelectedTaskIDs         []string
	SelectedRecurringIDs    []string
	SelectedHours           float64
	HoursByProject          map[string]float64
	Status                  SolveStatus
	Objective               float64
	Success                 bool
	NodesVisited            int
}

// CheckoutType distinguishes a manually-triggered checkout from one
// driven by the escalator.
type CheckoutType string

const (
	CheckoutManual CheckoutType = "MANUAL"
	CheckoutSystem CheckoutType = "SYSTEM"
)

// SessionDecision is the outcome recorded at checkout.
type SessionDecision string

const (
	DecisionContinue SessionDecision = "CONTINUE"
	DecisionSwitch   SessionDecision = "SWITCH"
	DecisionBreak    SessionDecision = "BREAK"
	DecisionComplete SessionDecision = "COMPLETE"
)

// WorkSession is a focus-session state machine instance (C8). Only C8
// mutates this type; C9 mutates only the notification_* flags and
// MarkedUnresponsiveAt.
type WorkSession struct {
	ID                     string
	UserID                 string
	TaskID                 string
	StartedAt              time.Time
	PlannedCheckoutAt      time.Time
	PausedAt               *time.Time
	TotalPausedSeconds     int64
	EndedAt                *time.Time
	CheckoutType           CheckoutType
	Decision               SessionDecision
	ContinueReason         string
	KeepNote               string
	ProblemNote            string
	TryNote                string
	RemainingEstimateHours *float64
	SnoozeCount            int
	LastSnoozeAt           *time.Time
	Notification5MinSent   bool
	NotificationCheckoutSent bool
	NotificationOverdueSent bool
	MarkedUnresponsiveAt   *time.Time
}

// IsActive reports whether the session has not yet ended.
func (s *WorkSession) IsActive() bool { return s.EndedAt == nil }

// IsPaused reports whether the session is currently paused.
func (s *WorkSession) IsPaused() bool { return s.PausedAt != nil }

// PushSubscription is a durable web-push registration (C10).
type PushSubscription struct {
	ID            string
	UserID        string
	Endpoint      string
	P256dhKey     string
	AuthKey       string
	Active        bool
	FailureCount  int
	LastSuccessAt *time.Time
	DeviceType    string
	UserAgent     string
}

// TriggerType names what caused a RescheduleSuggestion to be created.
type TriggerType string

const (
	TriggerCheckout        TriggerType = "CHECKOUT"
	TriggerManualCheckout  TriggerType = "MANUAL_CHECKOUT"
	TriggerOverdueRecovery TriggerType = "OVERDUE_RECOVERY"
)

// SuggestionStatus is the lifecycle state of a RescheduleSuggestion.
type SuggestionStatus string

const (
	SuggestionPending  SuggestionStatus = "PENDING"
	SuggestionAccepted SuggestionStatus = "ACCEPTED"
	SuggestionRejected SuggestionStatus = "REJECTED"
	SuggestionExpired  SuggestionStatus = "EXPIRED"
)

// PlannedSlot is one entry of a day's assignment timeline, used by both
// the original and proposed plans in a RescheduleSuggestion.
type PlannedSlot struct {
	TaskID        string
	TaskTitle     string
	Start         time.Time
	End           time.Time
	RemainingHours *float64
}

// DayPlan is the slot sequence for a single day, as stored alongside a
// weekly schedule or referenced by a reschedule suggestion.
type DayPlan struct {
	Date        string // YYYY-MM-DD
	Assignments []PlannedSlot
}

// ChangeType classifies one diff entry between an original and a
// proposed DayPlan.
type ChangeType string

const (
	ChangePushed    ChangeType = "PUSHED"
	ChangeAdded     ChangeType = "ADDED"
	ChangeRemoved   ChangeType = "REMOVED"
	ChangeReordered ChangeType = "REORDERED"
)

// DiffItem is one changed task between the original and proposed plan.
type DiffItem struct {
	TaskID            string
	TaskTitle         string
	ChangeType        ChangeType
	OriginalSlotIndex *int
	NewSlotIndex      *int
	Reason            string
}

// ScheduleDiff groups diff items by change type.
type ScheduleDiff struct {
	Pushed                []DiffItem
	Added                 []DiffItem
	Removed               []DiffItem
	Reordered             []DiffItem
	TotalChanges          int
	HasSignificantChanges bool
}

// RescheduleSuggestion is C11's proposal, pending user accept/reject.
type RescheduleSuggestion struct {
	ID              string
	UserID          string
	WorkSessionID   string
	TriggerType     TriggerType
	TriggerDecision SessionDecision
	OriginalPlan    DayPlan
	ProposedPlan    DayPlan
	Diff            ScheduleDiff
	Status          SuggestionStatus
	ExpiresAt       time.Time
	DecidedAt       *time.Time
}

// UserCapacity is the user's declared weekly capacity and per-project
// allocation bands, used by C5.
type UserCapacity struct {
	UserID             string
	TotalCapacityHours float64
	Allocations        []ProjectAllocation
}
