package reschedule

import (
	"context"
	"log"
	"time"

	"github.com/humancompiler/planner/internal/domain"
	"github.com/humancompiler/planner/internal/observability"
)

// Janitor periodically expires PENDING suggestions past their
// expires_at, grounded on control_plane/coordination/janitor.go's
// ticker/context-cancellation loop shape.
type Janitor struct {
	Store    domain.Store
	Interval time.Duration
}

// Start runs the sweep loop until ctx is cancelled.
func (j *Janitor) Start(ctx context.Context) {
	go j.loop(ctx)
}

func (j *Janitor) loop(ctx context.Context) {
	interval := j.Interval
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := j.ExpireOld(ctx, time.Now()); err != nil {
				log.Printf("reschedule janitor: expire sweep: %v", err)
			}
		}
	}
}

// ExpireOld sets status=EXPIRED on every PENDING suggestion whose
// expires_at is before now.
func (j *Janitor) ExpireOld(ctx context.Context, now time.Time) error {
	suggestions, err := j.Store.ListExpirableSuggestions(ctx, now)
	if err != nil {
		return err
	}
	for _, s := range suggestions {
		s.Status = domain.SuggestionExpired
		s.DecidedAt = &now
		if err := j.Store.SaveSuggestion(ctx, s); err != nil {
			log.Printf("reschedule janitor: save suggestion %s: %v", s.ID, err)
			continue
		}
		observability.RescheduleDecisionsTotal.WithLabelValues("expired").Inc()
	}
	return nil
}
