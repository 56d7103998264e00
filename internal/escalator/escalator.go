// Package escalator implements C9: a ticking scanner over every active
// work session that emits warn/checkout/overdue notifications and
// drives C8's unresponsive marking. The ticker/context-cancellation
// loop is grounded on control_plane/coordination/janitor.go's
// Start/loop shape.
package escalator

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/humancompiler/planner/internal/domain"
	"github.com/humancompiler/planner/internal/observability"
	"github.com/humancompiler/planner/internal/session"
)

// Level is the severity of an emitted notification.
type Level string

const (
	LevelLight    Level = "LIGHT"
	LevelStrong   Level = "STRONG"
	LevelOverdue  Level = "OVERDUE"
)

const (
	warnWindow   = 5 * time.Minute
	unrespWindow = 10 * time.Minute
)

// Notification is one emitted delivery-fabric message (spec §4.8 Content).
type Notification struct {
	ID        string
	Type      string
	Level     Level
	Title     string
	Body      string
	SessionID string
	ActionURL string
	Timestamp time.Time
}

// Delivery is C10's send port, kept narrow so the escalator doesn't
// depend on transport details.
type Delivery interface {
	SendLive(ctx context.Context, userID string, n Notification) int
	SendPush(ctx context.Context, userID string, n Notification) int
}

// Escalator is C9.
type Escalator struct {
	Store    domain.Store
	Sessions *session.Engine
	Delivery Delivery
	Interval time.Duration
}

// Start runs the tick loop until ctx is cancelled.
func (e *Escalator) Start(ctx context.Context) {
	go e.loop(ctx)
}

func (e *Escalator) loop(ctx context.Context) {
	interval := e.Interval
	if interval <= 0 {
		interval = 60 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.Tick(ctx, time.Now())
		}
	}
}

// Tick runs one scan pass at instant now. Exported so tests can drive
// it deterministically instead of waiting on the ticker.
func (e *Escalator) Tick(ctx context.Context, now time.Time) {
	sessions, err := e.Store.ListActiveSessions(ctx)
	if err != nil {
		log.Printf("escalator: list active sessions: %v", err)
		return
	}
	observability.ActiveSessions.Set(float64(len(sessions)))
	for _, s := range sessions {
		e.evaluate(ctx, s, now)
	}
}

func (e *Escalator) evaluate(ctx context.Context, s *domain.WorkSession, now time.Time) {
	deadline := s.PlannedCheckoutAt

	overdueBranchTaken := false
	if !deadline.After(now.Add(-unrespWindow)) && !s.NotificationOverdueSent {
		n := e.buildNotification(ctx, s, LevelOverdue)
		e.Delivery.SendLive(ctx, s.UserID, n)
		e.Delivery.SendPush(ctx, s.UserID, n)
		observability.NotificationsSentTotal.WithLabelValues(string(LevelOverdue), "live").Inc()
		observability.NotificationsSentTotal.WithLabelValues(string(LevelOverdue), "push").Inc()
		s.NotificationOverdueSent = true
		if err := e.Store.SaveSession(ctx, s); err != nil {
			log.Printf("escalator: save session %s: %v", s.ID, err)
			return
		}
		if s.MarkedUnresponsiveAt == nil {
			if err := e.Sessions.MarkUnresponsive(ctx, s); err != nil {
				log.Printf("escalator: mark unresponsive %s: %v", s.ID, err)
			}
		}
		overdueBranchTaken = true
	}

	if !overdueBranchTaken && !deadline.After(now) && !s.NotificationCheckoutSent {
		n := e.buildNotification(ctx, s, LevelStrong)
		e.Delivery.SendLive(ctx, s.UserID, n)
		e.Delivery.SendPush(ctx, s.UserID, n)
		observability.NotificationsSentTotal.WithLabelValues(string(LevelStrong), "live").Inc()
		observability.NotificationsSentTotal.WithLabelValues(string(LevelStrong), "push").Inc()
		s.NotificationCheckoutSent = true
		if err := e.Store.SaveSession(ctx, s); err != nil {
			log.Printf("escalator: save session %s: %v", s.ID, err)
		}
		return
	}

	if overdueBranchTaken {
		return
	}

	if now.Before(deadline) && !deadline.After(now.Add(warnWindow)) && !s.Notification5MinSent {
		n := e.buildNotification(ctx, s, LevelLight)
		e.Delivery.SendLive(ctx, s.UserID, n) // advisory: no push fallback
		observability.NotificationsSentTotal.WithLabelValues(string(LevelLight), "live").Inc()
		s.Notification5MinSent = true
		if err := e.Store.SaveSession(ctx, s); err != nil {
			log.Printf("escalator: save session %s: %v", s.ID, err)
		}
	}
}

func (e *Escalator) buildNotification(ctx context.Context, s *domain.WorkSession, level Level) Notification {
	title, body := localizedContent(level, e.taskTitle(ctx, s))
	return Notification{
		ID:        uuid.NewString(),
		Type:      "notification",
		Level:     level,
		Title:     title,
		Body:      body,
		SessionID: s.ID,
		ActionURL: "/runner",
		Timestamp: time.Now(),
	}
}

func (e *Escalator) taskTitle(ctx context.Context, s *domain.WorkSession) string {
	task, err := e.Store.GetTask(ctx, s.UserID, s.TaskID)
	if err != nil || task == nil {
		return ""
	}
	return task.Title
}
