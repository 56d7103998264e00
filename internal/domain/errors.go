package domain

import "fmt"

// NotFoundError reports a missing entity (session, task, goal, suggestion).
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.ID)
}

// ConflictError reports a state conflict (second active session,
// duplicate dependency edge, self-dependency).
type ConflictError struct {
	Reason string
}

func (e *ConflictError) Error() string { return "conflict: " + e.Reason }

// ValidationError reports malformed input (bad date, empty slots,
// non-positive capacity, invalid snooze minutes, CONTINUE without KPT).
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation: " + e.Reason
	}
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Reason)
}

// ExternalError wraps a failure from the priority oracle or a push
// transport. It is always recovered locally by its caller; it exists so
// callers can classify the failure for a localized insight string.
type ExternalError struct {
	Kind string // "connection", "auth", "rate_limit", "timeout", "malformed"
	Err  error
}

func (e *ExternalError) Error() string {
	return fmt.Sprintf("external(%s): %v", e.Kind, e.Err)
}

func (e *ExternalError) Unwrap() error { return e.Err }
