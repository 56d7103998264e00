package delivery

import (
	"context"
	"errors"
	"testing"

	"github.com/humancompiler/planner/internal/domain"
	"github.com/humancompiler/planner/internal/escalator"
	"github.com/humancompiler/planner/internal/store"
)

type failingTransport struct{ fail bool }

func (f *failingTransport) Send(_ context.Context, _ *domain.PushSubscription, _ []byte) error {
	if f.fail {
		return errors.New("endpoint unreachable")
	}
	return nil
}

func TestSendPushSuccessResetsFailureCount(t *testing.T) {
	s := store.NewMemoryStore()
	sub := &domain.PushSubscription{ID: "sub-1", UserID: "user-1", Endpoint: "https://push.example/1", Active: true, FailureCount: 1}
	if err := seedSub(s, sub); err != nil {
		t.Fatalf("seed: %v", err)
	}

	sender := &PushSender{Store: s, Transport: &failingTransport{fail: false}}
	sent := sender.SendPush(context.Background(), "user-1", escalator.Notification{ID: "n1"})
	if sent != 1 {
		t.Fatalf("expected 1 successful send, got %d", sent)
	}

	subs, _ := s.ListActivePushSubscriptions(context.Background(), "user-1")
	if subs[0].FailureCount != 0 {
		t.Fatalf("expected failure count reset to 0, got %d", subs[0].FailureCount)
	}
	if subs[0].LastSuccessAt == nil {
		t.Fatalf("expected LastSuccessAt to be set")
	}
}

func TestSendPushDeactivatesAfterThreeFailures(t *testing.T) {
	s := store.NewMemoryStore()
	sub := &domain.PushSubscription{ID: "sub-1", UserID: "user-1", Endpoint: "https://push.example/1", Active: true, FailureCount: 2}
	if err := seedSub(s, sub); err != nil {
		t.Fatalf("seed: %v", err)
	}

	sender := &PushSender{Store: s, Transport: &failingTransport{fail: true}}
	sent := sender.SendPush(context.Background(), "user-1", escalator.Notification{ID: "n1"})
	if sent != 0 {
		t.Fatalf("expected 0 successful sends, got %d", sent)
	}

	subs, _ := s.ListActivePushSubscriptions(context.Background(), "user-1")
	if len(subs) != 0 {
		t.Fatalf("expected subscription deactivated and excluded from active list, got %d", len(subs))
	}
}

func TestSendPushBelowThresholdStaysActive(t *testing.T) {
	s := store.NewMemoryStore()
	sub := &domain.PushSubscription{ID: "sub-1", UserID: "user-1", Endpoint: "https://push.example/1", Active: true, FailureCount: 0}
	if err := seedSub(s, sub); err != nil {
		t.Fatalf("seed: %v", err)
	}

	sender := &PushSender{Store: s, Transport: &failingTransport{fail: true}}
	sender.SendPush(context.Background(), "user-1", escalator.Notification{ID: "n1"})

	subs, _ := s.ListActivePushSubscriptions(context.Background(), "user-1")
	if len(subs) != 1 || subs[0].FailureCount != 1 {
		t.Fatalf("expected subscription to stay active with failure_count 1, got %+v", subs)
	}
}

func TestRegisterRevivesInactiveSubscription(t *testing.T) {
	s := store.NewMemoryStore()
	ctx := context.Background()
	sub := &domain.PushSubscription{UserID: "user-1", Endpoint: "https://push.example/1", FailureCount: 5}
	if err := Register(ctx, s, sub); err != nil {
		t.Fatalf("Register: %v", err)
	}
	subs, _ := s.ListActivePushSubscriptions(ctx, "user-1")
	if len(subs) != 1 || subs[0].FailureCount != 0 {
		t.Fatalf("expected active subscription with failure_count reset, got %+v", subs)
	}

	if err := Unregister(ctx, s, "user-1", "https://push.example/1"); err != nil {
		t.Fatalf("Unregister: %v", err)
	}
	subs, _ = s.ListActivePushSubscriptions(ctx, "user-1")
	if len(subs) != 0 {
		t.Fatalf("expected no active subscriptions after Unregister, got %d", len(subs))
	}
}

// seedSub writes a subscription directly, bypassing Register's
// always-active-zero-failures semantics, so tests can seed a specific
// FailureCount.
func seedSub(s *store.MemoryStore, sub *domain.PushSubscription) error {
	return s.SavePushSubscription(context.Background(), sub)
}
