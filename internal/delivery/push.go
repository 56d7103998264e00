package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/humancompiler/planner/internal/domain"
	"github.com/humancompiler/planner/internal/escalator"
	"github.com/humancompiler/planner/internal/observability"
)

const pushFailureDeactivateThreshold = 3

// PushTransport is the external push port (spec §4.9). No web-push
// client library appears anywhere in the retrieved corpus, so the
// default implementation below POSTs the payload with net/http — the
// one knowingly-stdlib piece of C10, justified by the absence of any
// pack-provided push client to ground on.
type PushTransport interface {
	Send(ctx context.Context, sub *domain.PushSubscription, payload []byte) error
}

// HTTPPushTransport POSTs the notification payload to each
// subscription's endpoint, the shape web-push and most push relays
// expect.
type HTTPPushTransport struct {
	Client *http.Client
}

func (t *HTTPPushTransport) Send(ctx context.Context, sub *domain.PushSubscription, payload []byte) error {
	client := t.Client
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, sub.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("push: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("push: send: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("push: endpoint returned status %d", resp.StatusCode)
	}
	return nil
}

// PushSender implements escalator.Delivery's SendPush half, fanning
// out to every active subscription for a user and tracking per-row
// failure counts per spec §4.9.
type PushSender struct {
	Store     domain.Store
	Transport PushTransport
}

// SendPush implements escalator.Delivery.
func (p *PushSender) SendPush(ctx context.Context, userID string, n escalator.Notification) int {
	subs, err := p.Store.ListActivePushSubscriptions(ctx, userID)
	if err != nil {
		log.Printf("delivery: list push subscriptions for %s: %v", userID, err)
		return 0
	}
	payload, err := json.Marshal(n)
	if err != nil {
		log.Printf("delivery: encode push payload: %v", err)
		return 0
	}

	sent := 0
	for _, sub := range subs {
		if err := p.Transport.Send(ctx, sub, payload); err != nil {
			sub.FailureCount++
			if sub.FailureCount >= pushFailureDeactivateThreshold {
				sub.Active = false
				observability.PushDeactivationsTotal.Inc()
				log.Printf("delivery: deactivating push subscription %s for user %s after %d failures", sub.ID, userID, sub.FailureCount)
			}
			if saveErr := p.Store.SavePushSubscription(ctx, sub); saveErr != nil {
				log.Printf("delivery: save push subscription %s: %v", sub.ID, saveErr)
			}
			continue
		}
		now := time.Now()
		sub.LastSuccessAt = &now
		sub.FailureCount = 0
		if saveErr := p.Store.SavePushSubscription(ctx, sub); saveErr != nil {
			log.Printf("delivery: save push subscription %s: %v", sub.ID, saveErr)
			continue
		}
		sent++
	}
	return sent
}

// Fabric combines the live hub and push sender into the single
// escalator.Delivery port C9 depends on.
type Fabric struct {
	*LiveHub
	*PushSender
}

// Register upserts a subscription by (user, endpoint); reviving an
// inactive row and zeroing its failure count.
func Register(ctx context.Context, store domain.Store, sub *domain.PushSubscription) error {
	sub.Active = true
	sub.FailureCount = 0
	return store.UpsertPushSubscription(ctx, sub)
}

// Unregister deactivates a subscription by (user, endpoint).
func Unregister(ctx context.Context, store domain.Store, userID, endpoint string) error {
	return store.DeactivatePushSubscription(ctx, userID, endpoint)
}
