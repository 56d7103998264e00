package pipeline

import (
	"errors"
	"testing"
)

func TestBuildIntegrationInsightsFlagsHighUtilizationAndFastSolve(t *testing.T) {
	out := buildIntegrationInsights(0.95, 0.95, nil, 0.5)
	if len(out) != 3 {
		t.Fatalf("expected 3 insights (utilization, consistency, speed), got %+v", out)
	}
}

func TestBuildIntegrationInsightsFlagsLowUtilizationAndFailedDays(t *testing.T) {
	out := buildIntegrationInsights(0.4, 0.5, []string{"OPTIMAL", "INFEASIBLE", "UNKNOWN"}, 6.0)
	if len(out) != 4 {
		t.Fatalf("expected 4 insights (utilization, consistency, days, slow solve), got %+v", out)
	}
	found := false
	for _, s := range out {
		if s == "2 days were difficult to optimize — consider adjusting their time constraints." {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a pluralized 2-day insight, got %+v", out)
	}
}

func TestBuildIntegrationInsightsMidRangeProducesNoInsights(t *testing.T) {
	out := buildIntegrationInsights(0.75, 0.8, []string{"OPTIMAL"}, 2.0)
	if len(out) != 0 {
		t.Fatalf("expected no insights in the unremarkable middle band, got %+v", out)
	}
}

func TestPluralDaysInsightSingular(t *testing.T) {
	if got := pluralDaysInsight(1); got != "1 day was difficult to optimize — consider adjusting its time constraints." {
		t.Fatalf("unexpected singular insight: %q", got)
	}
}

func TestItoaRoundTripsSmallIntegers(t *testing.T) {
	cases := map[int]string{0: "0", 1: "1", 9: "9", 10: "10", 42: "42", 123: "123"}
	for n, want := range cases {
		if got := itoa(n); got != want {
			t.Fatalf("itoa(%d) = %q, want %q", n, got, want)
		}
	}
}

func TestOracleFailureInsightClassifiesKnownErrors(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{errors.New("dial tcp: connection refused"), "Couldn't reach the AI prioritization service; continuing with deterministic scoring."},
		{errors.New("context deadline exceeded"), "Couldn't reach the AI prioritization service; continuing with deterministic scoring."},
		{errors.New("invalid api key"), "AI prioritization is misconfigured (authentication); continuing with deterministic scoring."},
		{errors.New("rate limit exceeded"), "AI prioritization hit a rate limit; continuing with deterministic scoring."},
		{errors.New("something else broke"), "AI prioritization failed; continuing with deterministic scoring."},
	}
	for _, c := range cases {
		if got := oracleFailureInsight(c.err); got != c.want {
			t.Fatalf("oracleFailureInsight(%v) = %q, want %q", c.err, got, c.want)
		}
	}
}

func TestOracleFailureInsightNilError(t *testing.T) {
	want := "AI task prioritization is unavailable; continuing with deterministic scoring."
	if got := oracleFailureInsight(nil); got != want {
		t.Fatalf("oracleFailureInsight(nil) = %q, want %q", got, want)
	}
}
