package escalator

import (
	"context"
	"testing"
	"time"

	"github.com/humancompiler/planner/internal/domain"
	"github.com/humancompiler/planner/internal/session"
	"github.com/humancompiler/planner/internal/store"
)

type recordingDelivery struct {
	live []Notification
	push []Notification
}

func (r *recordingDelivery) SendLive(_ context.Context, _ string, n Notification) int {
	r.live = append(r.live, n)
	return 1
}

func (r *recordingDelivery) SendPush(_ context.Context, _ string, n Notification) int {
	r.push = append(r.push, n)
	return 1
}

func newFixture(t *testing.T, checkoutIn time.Duration) (*Escalator, *store.MemoryStore, *recordingDelivery, *domain.WorkSession) {
	t.Helper()
	s := store.NewMemoryStore()
	s.SeedTask(&domain.Task{ID: "task-1", UserID: "user-1", Title: "Write report"})
	sessions := &session.Engine{Store: s}
	sess, err := sessions.Start(context.Background(), session.StartInput{
		UserID: "user-1", TaskID: "task-1", PlannedCheckoutAt: time.Now().Add(checkoutIn),
	})
	if err != nil {
		t.Fatalf("seed session: %v", err)
	}
	delivery := &recordingDelivery{}
	e := &Escalator{Store: s, Sessions: sessions, Delivery: delivery}
	return e, s, delivery, sess
}

func TestEvaluateEmitsLightWithinWarnWindowOnce(t *testing.T) {
	e, s, d, sess := newFixture(t, 3*time.Minute)
	now := time.Now()

	e.Tick(context.Background(), now)
	if len(d.live) != 1 || d.live[0].Level != LevelLight {
		t.Fatalf("expected one LIGHT live notification, got %+v", d.live)
	}
	if len(d.push) != 0 {
		t.Fatalf("LIGHT must never fan out to push, got %d push sends", len(d.push))
	}

	e.Tick(context.Background(), now.Add(time.Second))
	if len(d.live) != 1 {
		t.Fatalf("expected LIGHT to be idempotent, got %d sends", len(d.live))
	}

	got, _ := s.GetSession(context.Background(), sess.ID)
	if !got.Notification5MinSent {
		t.Fatalf("expected Notification5MinSent flag set")
	}
}

func TestEvaluateEmitsStrongAtDeadlineWithBothChannels(t *testing.T) {
	e, _, d, _ := newFixture(t, -time.Minute)
	e.Tick(context.Background(), time.Now())

	if len(d.live) != 1 || d.live[0].Level != LevelStrong {
		t.Fatalf("expected one STRONG live notification, got %+v", d.live)
	}
	if len(d.push) != 1 || d.push[0].Level != LevelStrong {
		t.Fatalf("expected one STRONG push notification, got %+v", d.push)
	}
}

func TestEvaluateEmitsOverdueAndMarksUnresponsive(t *testing.T) {
	e, s, d, sess := newFixture(t, -11*time.Minute)
	e.Tick(context.Background(), time.Now())

	if len(d.live) != 1 || d.live[0].Level != LevelOverdue {
		t.Fatalf("expected one OVERDUE live notification, got %+v", d.live)
	}
	if len(d.push) != 1 || d.push[0].Level != LevelOverdue {
		t.Fatalf("expected one OVERDUE push notification, got %+v", d.push)
	}

	got, _ := s.GetSession(context.Background(), sess.ID)
	if got.MarkedUnresponsiveAt == nil {
		t.Fatalf("expected overdue tick to mark the session unresponsive")
	}
}

func TestEvaluateOverdueSuppressesOtherLevelsSameTick(t *testing.T) {
	// A session 11 minutes overdue also satisfies the STRONG level's
	// "deadline has passed" check if it were evaluated independently
	// (the LIGHT warn window needs now before the deadline, so it does
	// not match); only the OVERDUE branch may fire per tick.
	e, _, d, _ := newFixture(t, -11*time.Minute)
	e.Tick(context.Background(), time.Now())

	total := len(d.live) + len(d.push)
	if total != 2 {
		t.Fatalf("expected exactly one live + one push send for the single OVERDUE level, got %d total sends", total)
	}
}
