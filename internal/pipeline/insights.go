package pipeline

import "strings"

// buildIntegrationInsights mirrors the original's
// _generate_integration_insights: capacity/consistency bands, a
// day-level INFEASIBLE/UNKNOWN count, and a fast/slow solve flag,
// translated to English content in this repo's voice (spec §4.6
// "Generate insights").
func buildIntegrationInsights(capacityUtilization, consistencyScore float64, dayStatuses []string, totalSolveSeconds float64) []string {
	var out []string

	switch {
	case capacityUtilization > 0.9:
		out = append(out, "High capacity utilization (over 90%): the weekly plan is packed efficiently.")
	case capacityUtilization < 0.6:
		out = append(out, "Low capacity utilization (under 60%): there is room to add more tasks to this week's plan.")
	}

	switch {
	case consistencyScore > 0.9:
		out = append(out, "High consistency: the weekly plan and the daily packing agree closely.")
	case consistencyScore < 0.7:
		out = append(out, "Consistency gap: the weekly plan and the daily constraints don't fully line up.")
	}

	failedDays := 0
	for _, s := range dayStatuses {
		if s == "INFEASIBLE" || s == "UNKNOWN" {
			failedDays++
		}
	}
	if failedDays > 0 {
		out = append(out, pluralDaysInsight(failedDays))
	}

	switch {
	case totalSolveSeconds < 1.0:
		out = append(out, "Fast optimization: every constraint solved efficiently.")
	case totalSolveSeconds > 5.0:
		out = append(out, "Optimization took longer than usual — consider reviewing how tight the constraints are.")
	}

	return out
}

func pluralDaysInsight(n int) string {
	if n == 1 {
		return "1 day was difficult to optimize — consider adjusting its time constraints."
	}
	return strings.Join([]string{
		itoa(n), " days were difficult to optimize — consider adjusting their time constraints.",
	}, "")
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	digits := []byte{}
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	return string(digits)
}

// oracleFailureInsight maps an oracle error to a localized, user-facing
// warning string, grounded on the original's
// _create_japanese_error_insights classification (connection, auth,
// rate-limit, generic) but content-equivalent in English and
// single-line rather than a Japanese troubleshooting block — the
// coordinator attaches this as a stage warning, not a UI panel.
func oracleFailureInsight(err error) string {
	if err == nil {
		return "AI task prioritization is unavailable; continuing with deterministic scoring."
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "connection") || strings.Contains(msg, "timeout") || strings.Contains(msg, "deadline"):
		return "Couldn't reach the AI prioritization service; continuing with deterministic scoring."
	case strings.Contains(msg, "api key") || strings.Contains(msg, "auth"):
		return "AI prioritization is misconfigured (authentication); continuing with deterministic scoring."
	case strings.Contains(msg, "rate limit"):
		return "AI prioritization hit a rate limit; continuing with deterministic scoring."
	default:
		return "AI prioritization failed; continuing with deterministic scoring."
	}
}
