// Package observability declares the prometheus metrics shared across
// the planning pipeline, session engine, escalator, and delivery
// fabric, in the same promauto var-block style as
// control_plane/observability/metrics.go.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PipelineRunsTotal counts weekly pipeline runs by final status.
	PipelineRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "planner_pipeline_runs_total",
		Help: "Total weekly pipeline runs by final status",
	}, []string{"status"})

	// PipelineStageDuration tracks per-stage wall-clock time.
	PipelineStageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "planner_pipeline_stage_duration_seconds",
		Help:    "Duration of each pipeline stage",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
	}, []string{"stage"})

	// WeeklySolveNodes tracks branch-and-bound nodes visited per weekly solve.
	WeeklySolveNodes = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "planner_weekly_solve_nodes",
		Help:    "Search nodes visited by the weekly selector per solve",
		Buckets: prometheus.ExponentialBuckets(1, 4, 12),
	})

	// DailySolveStatus counts daily packer outcomes by status.
	DailySolveStatus = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "planner_daily_solve_status_total",
		Help: "Daily packer solve outcomes by status",
	}, []string{"status"})

	// OracleCallsTotal counts priority-oracle calls by outcome.
	OracleCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "planner_oracle_calls_total",
		Help: "Priority oracle calls by outcome (success, rate_limited, error)",
	}, []string{"outcome"})

	// CacheHits tracks pipeline cache hit/miss counts.
	CacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "planner_cache_result_total",
		Help: "Pipeline cache lookups by hit/miss",
	}, []string{"kind", "result"})

	// ActiveSessions tracks the current number of active work sessions.
	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "planner_active_sessions",
		Help: "Current number of work sessions with ended_at null",
	})

	// SessionTransitionsTotal counts session-engine operations by
	// transition and outcome.
	SessionTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "planner_session_transitions_total",
		Help: "Work session transitions by operation and outcome",
	}, []string{"operation", "outcome"})

	// NotificationsSentTotal counts escalator emissions by level and channel.
	NotificationsSentTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "planner_notifications_sent_total",
		Help: "Notifications emitted by the escalator, by level and channel",
	}, []string{"level", "channel"})

	// PushDeactivationsTotal counts push subscriptions deactivated after
	// repeated delivery failures.
	PushDeactivationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "planner_push_deactivations_total",
		Help: "Push subscriptions deactivated after reaching the failure threshold",
	})

	// LiveClientsConnected tracks the number of live-channel handles
	// currently registered, across all users.
	LiveClientsConnected = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "planner_live_clients_connected",
		Help: "Current number of registered live-channel client handles",
	})

	// RescheduleSuggestionsTotal counts suggestions created by trigger type.
	RescheduleSuggestionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "planner_reschedule_suggestions_total",
		Help: "Reschedule suggestions created, by trigger type",
	}, []string{"trigger_type"})

	// RescheduleDecisionsTotal counts accept/reject/expire decisions.
	RescheduleDecisionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "planner_reschedule_decisions_total",
		Help: "Reschedule suggestion decisions, by outcome",
	}, []string{"outcome"})
)
