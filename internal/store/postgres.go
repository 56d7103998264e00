package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/humancompiler/planner/internal/domain"
)

// PostgresStore implements domain.Store using a PostgreSQL backend.
// Query shape (explicit column lists, ON CONFLICT upserts, no ORM) is
// grounded on the teacher's control_plane/store/postgres.go.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore initializes a connection pool and verifies connectivity.
func NewPostgresStore(ctx context.Context, connString string) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, err
	}

	config.MaxConns = 25
	config.MinConns = 2
	config.MaxConnLifetime = time.Hour
	config.HealthCheckPeriod = 30 * time.Second

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, err
	}
	return &PostgresStore{pool: pool}, nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() { s.pool.Close() }

// --- Projects / Goals ---

func (s *PostgresStore) GetProject(ctx context.Context, userID, projectID string) (*domain.Project, error) {
	query := `SELECT id, user_id, title FROM projects WHERE id = $1 AND user_id = $2`
	var p domain.Project
	err := s.pool.QueryRow(ctx, query, projectID, userID).Scan(&p.ID, &p.UserID, &p.Title)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *PostgresStore) ListProjects(ctx context.Context, userID string) ([]*domain.Project, error) {
	query := `SELECT id, user_id, title FROM projects WHERE user_id = $1`
	rows, err := s.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Project
	for rows.Next() {
		var p domain.Project
		if err := rows.Scan(&p.ID, &p.UserID, &p.Title); err != nil {
			return nil, err
		}
		out = append(out, &p)
	}
	return out, rows.Err()
}

func (s *PostgresStore) GetGoal(ctx context.Context, userID, goalID string) (*domain.Goal, error) {
	query := `SELECT id, user_id, project_id, title FROM goals WHERE id = $1 AND user_id = $2`
	var g domain.Goal
	err := s.pool.QueryRow(ctx, query, goalID, userID).Scan(&g.ID, &g.UserID, &g.ProjectID, &g.Title)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &g, nil
}

func (s *PostgresStore) ListGoals(ctx context.Context, userID string) ([]*domain.Goal, error) {
	query := `SELECT id, user_id, project_id, title FROM goals WHERE user_id = $1`
	rows, err := s.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Goal
	for rows.Next() {
		var g domain.Goal
		if err := rows.Scan(&g.ID, &g.UserID, &g.ProjectID, &g.Title); err != nil {
			return nil, err
		}
		out = append(out, &g)
	}
	return out, rows.Err()
}

// --- Tasks ---

func (s *PostgresStore) GetTask(ctx context.Context, userID, taskID string) (*domain.Task, error) {
	query := `
		SELECT id, user_id, goal_id, title, estimate_hours, kind, priority, due_at, status
		FROM tasks WHERE id = $1 AND user_id = $2
	`
	var t domain.Task
	err := s.pool.QueryRow(ctx, query, taskID, userID).Scan(
		&t.ID, &t.UserID, &t.GoalID, &t.Title, &t.EstimateHours, &t.Kind, &t.Priority, &t.DueAt, &t.Status,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *PostgresStore) ListTasks(ctx context.Context, userID string) ([]*domain.Task, error) {
	query := `
		SELECT id, user_id, goal_id, title, estimate_hours, kind, priority, due_at, status
		FROM tasks WHERE user_id = $1
	`
	rows, err := s.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Task
	for rows.Next() {
		var t domain.Task
		if err := rows.Scan(&t.ID, &t.UserID, &t.GoalID, &t.Title, &t.EstimateHours, &t.Kind, &t.Priority, &t.DueAt, &t.Status); err != nil {
			return nil, err
		}
		out = append(out, &t)
	}
	return out, rows.Err()
}

func (s *PostgresStore) UpdateTaskEstimate(ctx context.Context, userID, taskID string, estimateHours float64) error {
	query := `UPDATE tasks SET estimate_hours = $1 WHERE id = $2 AND user_id = $3`
	tag, err := s.pool.Exec(ctx, query, estimateHours, taskID, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return &domain.NotFoundError{Kind: "task", ID: taskID}
	}
	return nil
}

// --- Work logs ---

func (s *PostgresStore) ListWorkLogsByTask(ctx context.Context, taskIDs []string) ([]*domain.WorkLog, error) {
	if len(taskIDs) == 0 {
		return nil, nil
	}
	query := `SELECT id, task_id, actual_minutes, comment, created_at FROM work_logs WHERE task_id = ANY($1)`
	rows, err := s.pool.Query(ctx, query, taskIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.WorkLog
	for rows.Next() {
		var l domain.WorkLog
		if err := rows.Scan(&l.ID, &l.TaskID, &l.ActualMinutes, &l.Comment, &l.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &l)
	}
	return out, rows.Err()
}

func (s *PostgresStore) CreateWorkLog(ctx context.Context, l *domain.WorkLog) error {
	query := `
		INSERT INTO work_logs (id, task_id, actual_minutes, comment, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := s.pool.Exec(ctx, query, l.ID, l.TaskID, l.ActualMinutes, l.Comment, l.CreatedAt)
	return err
}

// --- Weekly recurring tasks ---

func (s *PostgresStore) ListWeeklyRecurringTasks(ctx context.Context, userID string, ids []string) ([]*domain.WeeklyRecurringTask, error) {
	var query string
	var args []interface{}
	if ids != nil {
		query = `
			SELECT id, user_id, title, estimate_hours, category, active, deleted_at
			FROM weekly_recurring_tasks
			WHERE user_id = $1 AND active = true AND deleted_at IS NULL AND id = ANY($2)
		`
		args = []interface{}{userID, ids}
	} else {
		query = `
			SELECT id, user_id, title, estimate_hours, category, active, deleted_at
			FROM weekly_recurring_tasks
			WHERE user_id = $1 AND active = true AND deleted_at IS NULL
		`
		args = []interface{}{userID}
	}
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.WeeklyRecurringTask
	for rows.Next() {
		var r domain.WeeklyRecurringTask
		if err := rows.Scan(&r.ID, &r.UserID, &r.Title, &r.EstimateHours, &r.Category, &r.Active, &r.DeletedAt); err != nil {
			return nil, err
		}
		out = append(out, &r)
	}
	return out, rows.Err()
}

// --- Dependency edges ---

func (s *PostgresStore) ListDependencyEdges(ctx context.Context, userID string, kind domain.DependencyKind) ([]domain.DependencyEdge, error) {
	query := `
		SELECT dependent_id, prerequisite_id
		FROM dependency_edges de
		JOIN (
			SELECT id, user_id FROM tasks
			UNION ALL
			SELECT id, user_id FROM goals
		) owned ON owned.id = de.dependent_id
		WHERE de.kind = $1 AND owned.user_id = $2
	`
	rows, err := s.pool.Query(ctx, query, kind, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.DependencyEdge
	for rows.Next() {
		e := domain.DependencyEdge{Kind: kind}
		if err := rows.Scan(&e.Dependent, &e.Prerequisite); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// --- Capacity ---

func (s *PostgresStore) GetUserCapacity(ctx context.Context, userID string) (*domain.UserCapacity, error) {
	query := `SELECT total_capacity_hours FROM user_capacities WHERE user_id = $1`
	var c domain.UserCapacity
	c.UserID = userID
	err := s.pool.QueryRow(ctx, query, userID).Scan(&c.TotalCapacityHours)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	allocQuery := `SELECT project_id, target_hours, max_hours, priority_weight FROM project_allocations WHERE user_id = $1`
	rows, err := s.pool.Query(ctx, allocQuery, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var a domain.ProjectAllocation
		if err := rows.Scan(&a.ProjectID, &a.TargetHours, &a.MaxHours, &a.PriorityWeight); err != nil {
			return nil, err
		}
		c.Allocations = append(c.Allocations, a)
	}
	return &c, rows.Err()
}

// --- Schedule persistence ---
//
// Both weekly and daily schedules are persisted as a single JSON blob
// keyed by (user, period) per spec §4.6/§6; the blob's internal shape
// follows domain.WeeklyScheduleRecord / domain.DayPlan directly rather
// than a normalized schema, matching the source system's "single blob"
// design.

func (s *PostgresStore) SaveWeeklySchedule(ctx context.Context, userID, weekStart string, rec *domain.WeeklyScheduleRecord) error {
	query := `
		INSERT INTO weekly_schedules (user_id, week_start, plan_json, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (user_id, week_start) DO UPDATE SET plan_json = EXCLUDED.plan_json, updated_at = NOW()
	`
	_, err := s.pool.Exec(ctx, query, userID, weekStart, rec)
	return err
}

func (s *PostgresStore) GetWeeklySchedule(ctx context.Context, userID, weekStart string) (*domain.WeeklyScheduleRecord, error) {
	query := `SELECT plan_json FROM weekly_schedules WHERE user_id = $1 AND week_start = $2`
	var rec domain.WeeklyScheduleRecord
	err := s.pool.QueryRow(ctx, query, userID, weekStart).Scan(&rec)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *PostgresStore) SaveDailySchedule(ctx context.Context, userID, date string, plan *domain.DayPlan) error {
	query := `
		INSERT INTO daily_schedules (user_id, date, plan_json, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (user_id, date) DO UPDATE SET plan_json = EXCLUDED.plan_json, updated_at = NOW()
	`
	_, err := s.pool.Exec(ctx, query, userID, date, plan)
	return err
}

func (s *PostgresStore) GetDailySchedule(ctx context.Context, userID, date string) (*domain.DayPlan, error) {
	query := `SELECT plan_json FROM daily_schedules WHERE user_id = $1 AND date = $2`
	var plan domain.DayPlan
	err := s.pool.QueryRow(ctx, query, userID, date).Scan(&plan)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &plan, nil
}

// --- Work sessions ---
//
// CreateSession relies on a partial unique index
// (user_id) WHERE ended_at IS NULL to enforce P6 (at most one active
// session per user) as a transactional conflict, per spec §5.

func (s *PostgresStore) GetActiveSession(ctx context.Context, userID string) (*domain.WorkSession, error) {
	query := sessionSelect + ` WHERE user_id = $1 AND ended_at IS NULL`
	return s.scanSession(ctx, query, userID)
}

func (s *PostgresStore) GetSession(ctx context.Context, sessionID string) (*domain.WorkSession, error) {
	query := sessionSelect + ` WHERE id = $1`
	return s.scanSession(ctx, query, sessionID)
}

func (s *PostgresStore) CreateSession(ctx context.Context, sess *domain.WorkSession) error {
	query := `
		INSERT INTO work_sessions (
			id, user_id, task_id, started_at, planned_checkout_at, total_paused_seconds, snooze_count
		) VALUES ($1, $2, $3, $4, $5, 0, 0)
	`
	_, err := s.pool.Exec(ctx, query, sess.ID, sess.UserID, sess.TaskID, sess.StartedAt, sess.PlannedCheckoutAt)
	if err != nil {
		// A unique-violation on the partial index maps to the P6 conflict.
		return &domain.ConflictError{Reason: "active session already exists for user: " + err.Error()}
	}
	return nil
}

func (s *PostgresStore) SaveSession(ctx context.Context, sess *domain.WorkSession) error {
	query := `
		UPDATE work_sessions SET
			planned_checkout_at = $2, paused_at = $3, total_paused_seconds = $4, ended_at = $5,
			checkout_type = $6, decision = $7, continue_reason = $8,
			keep_note = $9, problem_note = $10, try_note = $11, remaining_estimate_hours = $12,
			snooze_count = $13, last_snooze_at = $14,
			notification_5min_sent = $15, notification_checkout_sent = $16, notification_overdue_sent = $17,
			marked_unresponsive_at = $18
		WHERE id = $1
	`
	tag, err := s.pool.Exec(ctx, query,
		sess.ID, sess.PlannedCheckoutAt, sess.PausedAt, sess.TotalPausedSeconds, sess.EndedAt,
		sess.CheckoutType, sess.Decision, sess.ContinueReason,
		sess.KeepNote, sess.ProblemNote, sess.TryNote, sess.RemainingEstimateHours,
		sess.SnoozeCount, sess.LastSnoozeAt,
		sess.Notification5MinSent, sess.NotificationCheckoutSent, sess.NotificationOverdueSent,
		sess.MarkedUnresponsiveAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return &domain.NotFoundError{Kind: "session", ID: sess.ID}
	}
	return nil
}

func (s *PostgresStore) ListActiveSessions(ctx context.Context) ([]*domain.WorkSession, error) {
	query := sessionSelect + ` WHERE ended_at IS NULL`
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSessions(rows)
}

func (s *PostgresStore) ListSessionHistory(ctx context.Context, userID string, skip, limit int) ([]*domain.WorkSession, error) {
	query := sessionSelect + ` WHERE user_id = $1 AND ended_at IS NOT NULL ORDER BY ended_at DESC OFFSET $2 LIMIT $3`
	rows, err := s.pool.Query(ctx, query, userID, skip, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSessions(rows)
}

const sessionSelect = `
	SELECT id, user_id, task_id, started_at, planned_checkout_at, paused_at, total_paused_seconds,
		ended_at, checkout_type, decision, continue_reason, keep_note, problem_note, try_note,
		remaining_estimate_hours, snooze_count, last_snooze_at,
		notification_5min_sent, notification_checkout_sent, notification_overdue_sent, marked_unresponsive_at
	FROM work_sessions
`

func (s *PostgresStore) scanSession(ctx context.Context, query string, arg interface{}) (*domain.WorkSession, error) {
	var sess domain.WorkSession
	err := s.pool.QueryRow(ctx, query, arg).Scan(
		&sess.ID, &sess.UserID, &sess.TaskID, &sess.StartedAt, &sess.PlannedCheckoutAt, &sess.PausedAt, &sess.TotalPausedSeconds,
		&sess.EndedAt, &sess.CheckoutType, &sess.Decision, &sess.ContinueReason, &sess.KeepNote, &sess.ProblemNote, &sess.TryNote,
		&sess.RemainingEstimateHours, &sess.SnoozeCount, &sess.LastSnoozeAt,
		&sess.Notification5MinSent, &sess.NotificationCheckoutSent, &sess.NotificationOverdueSent, &sess.MarkedUnresponsiveAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sess, nil
}

func scanSessions(rows pgx.Rows) ([]*domain.WorkSession, error) {
	var out []*domain.WorkSession
	for rows.Next() {
		var sess domain.WorkSession
		if err := rows.Scan(
			&sess.ID, &sess.UserID, &sess.TaskID, &sess.StartedAt, &sess.PlannedCheckoutAt, &sess.PausedAt, &sess.TotalPausedSeconds,
			&sess.EndedAt, &sess.CheckoutType, &sess.Decision, &sess.ContinueReason, &sess.KeepNote, &sess.ProblemNote, &sess.TryNote,
			&sess.RemainingEstimateHours, &sess.SnoozeCount, &sess.LastSnoozeAt,
			&sess.Notification5MinSent, &sess.NotificationCheckoutSent, &sess.NotificationOverdueSent, &sess.MarkedUnresponsiveAt,
		); err != nil {
			return nil, err
		}
		out = append(out, &sess)
	}
	return out, rows.Err()
}

// --- Push subscriptions ---

func (s *PostgresStore) ListActivePushSubscriptions(ctx context.Context, userID string) ([]*domain.PushSubscription, error) {
	query := `
		SELECT id, user_id, endpoint, p256dh_key, auth_key, active, failure_count, last_success_at, device_type, user_agent
		FROM push_subscriptions WHERE user_id = $1 AND active = true
	`
	rows, err := s.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.PushSubscription
	for rows.Next() {
		var p domain.PushSubscription
		if err := rows.Scan(&p.ID, &p.UserID, &p.Endpoint, &p.P256dhKey, &p.AuthKey, &p.Active, &p.FailureCount, &p.LastSuccessAt, &p.DeviceType, &p.UserAgent); err != nil {
			return nil, err
		}
		out = append(out, &p)
	}
	return out, rows.Err()
}

func (s *PostgresStore) UpsertPushSubscription(ctx context.Context, sub *domain.PushSubscription) error {
	query := `
		INSERT INTO push_subscriptions (id, user_id, endpoint, p256dh_key, auth_key, active, failure_count, device_type, user_agent)
		VALUES ($1, $2, $3, $4, $5, true, 0, $6, $7)
		ON CONFLICT (user_id, endpoint) DO UPDATE SET
			p256dh_key = EXCLUDED.p256dh_key, auth_key = EXCLUDED.auth_key,
			active = true, failure_count = 0, device_type = EXCLUDED.device_type, user_agent = EXCLUDED.user_agent
	`
	_, err := s.pool.Exec(ctx, query, sub.ID, sub.UserID, sub.Endpoint, sub.P256dhKey, sub.AuthKey, sub.DeviceType, sub.UserAgent)
	return err
}

func (s *PostgresStore) DeactivatePushSubscription(ctx context.Context, userID, endpoint string) error {
	query := `UPDATE push_subscriptions SET active = false WHERE user_id = $1 AND endpoint = $2`
	tag, err := s.pool.Exec(ctx, query, userID, endpoint)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return &domain.NotFoundError{Kind: "push_subscription", ID: endpoint}
	}
	return nil
}

func (s *PostgresStore) SavePushSubscription(ctx context.Context, sub *domain.PushSubscription) error {
	query := `
		UPDATE push_subscriptions SET active = $3, failure_count = $4, last_success_at = $5
		WHERE user_id = $1 AND endpoint = $2
	`
	_, err := s.pool.Exec(ctx, query, sub.UserID, sub.Endpoint, sub.Active, sub.FailureCount, sub.LastSuccessAt)
	return err
}

// --- Reschedule suggestions ---

func (s *PostgresStore) CreateSuggestion(ctx context.Context, sug *domain.RescheduleSuggestion) error {
	query := `
		INSERT INTO reschedule_suggestions (
			id, user_id, work_session_id, trigger_type, trigger_decision,
			original_plan, proposed_plan, diff, status, expires_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := s.pool.Exec(ctx, query,
		sug.ID, sug.UserID, sug.WorkSessionID, sug.TriggerType, sug.TriggerDecision,
		sug.OriginalPlan, sug.ProposedPlan, sug.Diff, sug.Status, sug.ExpiresAt,
	)
	return err
}

func (s *PostgresStore) GetSuggestion(ctx context.Context, id string) (*domain.RescheduleSuggestion, error) {
	query := suggestionSelect + ` WHERE id = $1`
	return s.scanSuggestion(ctx, query, id)
}

func (s *PostgresStore) ListPendingSuggestions(ctx context.Context, userID string) ([]*domain.RescheduleSuggestion, error) {
	query := suggestionSelect + ` WHERE user_id = $1 AND status = 'PENDING'`
	rows, err := s.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSuggestions(rows)
}

func (s *PostgresStore) ListExpirableSuggestions(ctx context.Context, now time.Time) ([]*domain.RescheduleSuggestion, error) {
	query := suggestionSelect + ` WHERE status = 'PENDING' AND expires_at < $1`
	rows, err := s.pool.Query(ctx, query, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSuggestions(rows)
}

func (s *PostgresStore) SaveSuggestion(ctx context.Context, sug *domain.RescheduleSuggestion) error {
	query := `
		UPDATE reschedule_suggestions SET status = $2, proposed_plan = $3, decided_at = $4
		WHERE id = $1
	`
	tag, err := s.pool.Exec(ctx, query, sug.ID, sug.Status, sug.ProposedPlan, sug.DecidedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return &domain.NotFoundError{Kind: "suggestion", ID: sug.ID}
	}
	return nil
}

const suggestionSelect = `
	SELECT id, user_id, work_session_id, trigger_type, trigger_decision,
		original_plan, proposed_plan, diff, status, expires_at, decided_at
	FROM reschedule_suggestions
`

func (s *PostgresStore) scanSuggestion(ctx context.Context, query string, arg interface{}) (*domain.RescheduleSuggestion, error) {
	var sug domain.RescheduleSuggestion
	err := s.pool.QueryRow(ctx, query, arg).Scan(
		&sug.ID, &sug.UserID, &sug.WorkSessionID, &sug.TriggerType, &sug.TriggerDecision,
		&sug.OriginalPlan, &sug.ProposedPlan, &sug.Diff, &sug.Status, &sug.ExpiresAt, &sug.DecidedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sug, nil
}

func scanSuggestions(rows pgx.Rows) ([]*domain.RescheduleSuggestion, error) {
	var out []*domain.RescheduleSuggestion
	for rows.Next() {
		var sug domain.RescheduleSuggestion
		if err := rows.Scan(
			&sug.ID, &sug.UserID, &sug.WorkSessionID, &sug.TriggerType, &sug.TriggerDecision,
			&sug.OriginalPlan, &sug.ProposedPlan, &sug.Diff, &sug.Status, &sug.ExpiresAt, &sug.DecidedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, &sug)
	}
	return out, rows.Err()
}

var _ domain.Store = (*PostgresStore)(nil)
