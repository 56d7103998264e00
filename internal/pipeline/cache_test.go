package pipeline

import (
	"testing"
	"time"
)

func TestCacheKindOfParsesTrailingSegment(t *testing.T) {
	key := cacheKey("user-1", "2026-07-27", "priorities")
	if got := cacheKindOf(key); got != "priorities" {
		t.Fatalf("expected kind %q, got %q", "priorities", got)
	}
}

func TestCacheKindOfHandlesMalformedKey(t *testing.T) {
	if got := cacheKindOf("no-colons-here"); got != "unknown" {
		t.Fatalf("expected \"unknown\" for a key with no separators, got %q", got)
	}
}

func TestUntilNextMondayIsAlwaysWithinAWeek(t *testing.T) {
	for day := 0; day < 7; day++ {
		now := time.Date(2026, 7, 27+day, 10, 0, 0, 0, time.UTC) // a Monday plus 0..6 days
		ttl := untilNextMonday(now)
		if ttl <= 0 || ttl > 7*24*time.Hour {
			t.Fatalf("day offset %d: expected TTL in (0, 7d], got %v", day, ttl)
		}
	}
}

func TestUntilNextMondayOnAMondayIsAFullWeek(t *testing.T) {
	monday := time.Date(2026, 7, 27, 0, 0, 0, 0, time.UTC)
	ttl := untilNextMonday(monday)
	if ttl != 7*24*time.Hour {
		t.Fatalf("expected exactly 7 days from a Monday midnight, got %v", ttl)
	}
}
