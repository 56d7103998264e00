package domain

import (
	"context"
	"time"
)

// Store is the read-mostly domain store (C1). It abstracts over the
// durable backend (Postgres); callers never see SQL.
type Store interface {
	// Projects / Goals
	GetProject(ctx context.Context, userID, projectID string) (*Project, error)
	ListProjects(ctx context.Context, userID string) ([]*Project, error)
	GetGoal(ctx context.Context, userID, goalID string) (*Goal, error)
	ListGoals(ctx context.Context, userID string) ([]*Goal, error)

	// Tasks
	GetTask(ctx context.Context, userID, taskID string) (*Task, error)
	ListTasks(ctx context.Context, userID string) ([]*Task, error)
	UpdateTaskEstimate(ctx context.Context, userID, taskID string, estimateHours float64) error

	// Work logs
	ListWorkLogsByTask(ctx context.Context, taskIDs []string) ([]*WorkLog, error)
	CreateWorkLog(ctx context.Context, log *WorkLog) error

	// Weekly recurring tasks
	ListWeeklyRecurringTasks(ctx context.Context, userID string, ids []string) ([]*WeeklyRecurringTask, error)

	// Dependency edges
	ListDependencyEdges(ctx context.Context, userID string, kind DependencyKind) ([]DependencyEdge, error)

	// Capacity
	GetUserCapacity(ctx context.Context, userID string) (*UserCapacity, error)

	// Weekly / daily schedule persistence (blobs, per spec §4.6/§6)
	SaveWeeklySchedule(ctx context.Context, userID, weekStart string, schedule *WeeklyScheduleRecord) error
	GetWeeklySchedule(ctx context.Context, userID, weekStart string) (*WeeklyScheduleRecord, error)
	SaveDailySchedule(ctx context.Context, userID, date string, plan *DayPlan) error
	GetDailySchedule(ctx context.Context, userID, date string) (*DayPlan, error)

	// Work sessions (C8 exclusive writer, but reads flow through here too)
	GetActiveSession(ctx context.Context, userID string) (*WorkSession, error)
	GetSession(ctx context.Context, sessionID string) (*WorkSession, error)
	CreateSession(ctx context.Context, s *WorkSession) error
	SaveSession(ctx context.Context, s *WorkSession) error
	ListActiveSessions(ctx context.Context) ([]*WorkSession, error)
	ListSessionHistory(ctx context.Context, userID string, skip, limit int) ([]*WorkSession, error)

	// Push subscriptions (C10)
	ListActivePushSubscriptions(ctx context.Context, userID string) ([]*PushSubscription, error)
	UpsertPushSubscription(ctx context.Context, sub *PushSubscription) error
	DeactivatePushSubscription(ctx context.Context, userID, endpoint string) error
	SavePushSubscription(ctx context.Context, sub *PushSubscription) error

	// Reschedule suggestions (C11)
	CreateSuggestion(ctx context.Context, s *RescheduleSuggestion) error
	GetSuggestion(ctx context.Context, id string) (*RescheduleSuggestion, error)
	ListPendingSuggestions(ctx context.Context, userID string) ([]*RescheduleSuggestion, error)
	ListExpirableSuggestions(ctx context.Context, now time.Time) ([]*RescheduleSuggestion, error)
	SaveSuggestion(ctx context.Context, s *RescheduleSuggestion) error
}

// WeeklyScheduleRecord is the single blob persisted per user+week on a
// successful pipeline run (spec §4.6 Persistence).
type WeeklyScheduleRecord struct {
	UserID                  string
	WeekStart               string
	SelectedTaskIDs         []string
	SelectedRecurringTaskIDs []string
	Allocations             map[string]float64
	DailySummaries          []DailySummary
	Insights                []string
}

// DailySummary is one day's integrated result inside a WeeklyScheduleRecord.
type DailySummary struct {
	Date          string
	ScheduledHours float64
	Status        SolveStatus
}
