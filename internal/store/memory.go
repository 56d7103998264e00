// Package store provides domain.Store implementations: an in-memory
// store for tests and local development, and a Postgres-backed store
// for production, grounded on the teacher's store/memory.go and
// store/postgres.go.
package store

import (
	"context"
	"sync"
	"time"

	"github.com/humancompiler/planner/internal/domain"
)

// MemoryStore is an in-memory domain.Store implementation. Safe for
// concurrent use.
type MemoryStore struct {
	mu sync.RWMutex

	projects  map[string]*domain.Project
	goals     map[string]*domain.Goal
	tasks     map[string]*domain.Task
	logs      []*domain.WorkLog
	recurring map[string]*domain.WeeklyRecurringTask
	edges     []domain.DependencyEdge
	capacity  map[string]*domain.UserCapacity

	weekly map[string]*domain.WeeklyScheduleRecord // key: userID+"/"+weekStart
	daily  map[string]*domain.DayPlan              // key: userID+"/"+date

	sessions     map[string]*domain.WorkSession
	subs         map[string]*domain.PushSubscription
	suggestions  map[string]*domain.RescheduleSuggestion
}

// NewMemoryStore builds an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		projects:    make(map[string]*domain.Project),
		goals:       make(map[string]*domain.Goal),
		tasks:       make(map[string]*domain.Task),
		recurring:   make(map[string]*domain.WeeklyRecurringTask),
		capacity:    make(map[string]*domain.UserCapacity),
		weekly:      make(map[string]*domain.WeeklyScheduleRecord),
		daily:       make(map[string]*domain.DayPlan),
		sessions:    make(map[string]*domain.WorkSession),
		subs:        make(map[string]*domain.PushSubscription),
		suggestions: make(map[string]*domain.RescheduleSuggestion),
	}
}

// --- Seeding helpers (tests only; not part of domain.Store) ---

func (s *MemoryStore) SeedProject(p *domain.Project)               { s.mu.Lock(); defer s.mu.Unlock(); s.projects[p.ID] = p }
func (s *MemoryStore) SeedGoal(g *domain.Goal)                     { s.mu.Lock(); defer s.mu.Unlock(); s.goals[g.ID] = g }
func (s *MemoryStore) SeedTask(t *domain.Task)                     { s.mu.Lock(); defer s.mu.Unlock(); s.tasks[t.ID] = t }
func (s *MemoryStore) SeedRecurring(r *domain.WeeklyRecurringTask) { s.mu.Lock(); defer s.mu.Unlock(); s.recurring[r.ID] = r }
func (s *MemoryStore) SeedCapacity(c *domain.UserCapacity)         { s.mu.Lock(); defer s.mu.Unlock(); s.capacity[c.UserID] = c }
func (s *MemoryStore) SeedEdge(e domain.DependencyEdge)            { s.mu.Lock(); defer s.mu.Unlock(); s.edges = append(s.edges, e) }
func (s *MemoryStore) SeedWorkLog(l *domain.WorkLog)               { s.mu.Lock(); defer s.mu.Unlock(); s.logs = append(s.logs, l) }

// --- Projects / Goals ---

func (s *MemoryStore) GetProject(ctx context.Context, userID, projectID string) (*domain.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.projects[projectID]
	if !ok || p.UserID != userID {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (s *MemoryStore) ListProjects(ctx context.Context, userID string) ([]*domain.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*domain.Project
	for _, p := range s.projects {
		if p.UserID == userID {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *MemoryStore) GetGoal(ctx context.Context, userID, goalID string) (*domain.Goal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.goals[goalID]
	if !ok || g.UserID != userID {
		return nil, nil
	}
	cp := *g
	return &cp, nil
}

func (s *MemoryStore) ListGoals(ctx context.Context, userID string) ([]*domain.Goal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*domain.Goal
	for _, g := range s.goals {
		if g.UserID == userID {
			cp := *g
			out = append(out, &cp)
		}
	}
	return out, nil
}

// --- Tasks ---

func (s *MemoryStore) GetTask(ctx context.Context, userID, taskID string) (*domain.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tasks[taskID]
	if !ok || t.UserID != userID {
		return nil, nil
	}
	cp := *t
	return &cp, nil
}

func (s *MemoryStore) ListTasks(ctx context.Context, userID string) ([]*domain.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*domain.Task
	for _, t := range s.tasks {
		if t.UserID == userID {
			cp := *t
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *MemoryStore) UpdateTaskEstimate(ctx context.Context, userID, taskID string, estimateHours float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[taskID]
	if !ok || t.UserID != userID {
		return &domain.NotFoundError{Kind: "task", ID: taskID}
	}
	t.EstimateHours = estimateHours
	return nil
}

// --- Work logs ---

func (s *MemoryStore) ListWorkLogsByTask(ctx context.Context, taskIDs []string) ([]*domain.WorkLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	want := make(map[string]bool, len(taskIDs))
	for _, id := range taskIDs {
		want[id] = true
	}
	var out []*domain.WorkLog
	for _, l := range s.logs {
		if want[l.TaskID] {
			cp := *l
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *MemoryStore) CreateWorkLog(ctx context.Context, l *domain.WorkLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *l
	s.logs = append(s.logs, &cp)
	return nil
}

// --- Weekly recurring tasks ---

func (s *MemoryStore) ListWeeklyRecurringTasks(ctx context.Context, userID string, ids []string) ([]*domain.WeeklyRecurringTask, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var want map[string]bool
	if ids != nil {
		want = make(map[string]bool, len(ids))
		for _, id := range ids {
			want[id] = true
		}
	}
	var out []*domain.WeeklyRecurringTask
	for _, r := range s.recurring {
		if r.UserID != userID || !r.Active || r.DeletedAt != nil {
			continue
		}
		if want != nil && !want[r.ID] {
			continue
		}
		cp := *r
		out = append(out, &cp)
	}
	return out, nil
}

// --- Dependency edges ---

func (s *MemoryStore) ListDependencyEdges(ctx context.Context, userID string, kind domain.DependencyKind) ([]domain.DependencyEdge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.DependencyEdge
	for _, e := range s.edges {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out, nil
}

// --- Capacity ---

func (s *MemoryStore) GetUserCapacity(ctx context.Context, userID string) (*domain.UserCapacity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.capacity[userID]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

// --- Schedule persistence ---

func scheduleKey(userID, part string) string { return userID + "/" + part }

func (s *MemoryStore) SaveWeeklySchedule(ctx context.Context, userID, weekStart string, rec *domain.WeeklyScheduleRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.weekly[scheduleKey(userID, weekStart)] = rec
	return nil
}

func (s *MemoryStore) GetWeeklySchedule(ctx context.Context, userID, weekStart string) (*domain.WeeklyScheduleRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.weekly[scheduleKey(userID, weekStart)]
	if !ok {
		return nil, nil
	}
	return r, nil
}

func (s *MemoryStore) SaveDailySchedule(ctx context.Context, userID, date string, plan *domain.DayPlan) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.daily[scheduleKey(userID, date)] = plan
	return nil
}

func (s *MemoryStore) GetDailySchedule(ctx context.Context, userID, date string) (*domain.DayPlan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.daily[scheduleKey(userID, date)]
	if !ok {
		return nil, nil
	}
	return p, nil
}

// --- Work sessions ---

func (s *MemoryStore) GetActiveSession(ctx context.Context, userID string) (*domain.WorkSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, sess := range s.sessions {
		if sess.UserID == userID && sess.IsActive() {
			cp := *sess
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *MemoryStore) GetSession(ctx context.Context, sessionID string) (*domain.WorkSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil, nil
	}
	cp := *sess
	return &cp, nil
}

func (s *MemoryStore) CreateSession(ctx context.Context, sess *domain.WorkSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.sessions {
		if existing.UserID == sess.UserID && existing.IsActive() {
			return &domain.ConflictError{Reason: "active session already exists for user"}
		}
	}
	cp := *sess
	s.sessions[sess.ID] = &cp
	return nil
}

func (s *MemoryStore) SaveSession(ctx context.Context, sess *domain.WorkSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sess.ID]; !ok {
		return &domain.NotFoundError{Kind: "session", ID: sess.ID}
	}
	cp := *sess
	s.sessions[sess.ID] = &cp
	return nil
}

func (s *MemoryStore) ListActiveSessions(ctx context.Context) ([]*domain.WorkSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*domain.WorkSession
	for _, sess := range s.sessions {
		if sess.IsActive() {
			cp := *sess
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *MemoryStore) ListSessionHistory(ctx context.Context, userID string, skip, limit int) ([]*domain.WorkSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var all []*domain.WorkSession
	for _, sess := range s.sessions {
		if sess.UserID == userID && !sess.IsActive() {
			cp := *sess
			all = append(all, &cp)
		}
	}
	if skip >= len(all) {
		return nil, nil
	}
	end := skip + limit
	if limit <= 0 || end > len(all) {
		end = len(all)
	}
	return all[skip:end], nil
}

// --- Push subscriptions ---

func (s *MemoryStore) ListActivePushSubscriptions(ctx context.Context, userID string) ([]*domain.PushSubscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*domain.PushSubscription
	for _, sub := range s.subs {
		if sub.UserID == userID && sub.Active {
			cp := *sub
			out = append(out, &cp)
		}
	}
	return out, nil
}

func subKey(userID, endpoint string) string { return userID + "|" + endpoint }

func (s *MemoryStore) UpsertPushSubscription(ctx context.Context, sub *domain.PushSubscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := subKey(sub.UserID, sub.Endpoint)
	if existing, ok := s.subs[key]; ok {
		existing.Active = true
		existing.FailureCount = 0
		existing.P256dhKey = sub.P256dhKey
		existing.AuthKey = sub.AuthKey
		existing.DeviceType = sub.DeviceType
		existing.UserAgent = sub.UserAgent
		return nil
	}
	cp := *sub
	cp.Active = true
	cp.FailureCount = 0
	s.subs[key] = &cp
	return nil
}

func (s *MemoryStore) DeactivatePushSubscription(ctx context.Context, userID, endpoint string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := subKey(userID, endpoint)
	sub, ok := s.subs[key]
	if !ok {
		return &domain.NotFoundError{Kind: "push_subscription", ID: endpoint}
	}
	sub.Active = false
	return nil
}

func (s *MemoryStore) SavePushSubscription(ctx context.Context, sub *domain.PushSubscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := subKey(sub.UserID, sub.Endpoint)
	cp := *sub
	s.subs[key] = &cp
	return nil
}

// --- Reschedule suggestions ---

func (s *MemoryStore) CreateSuggestion(ctx context.Context, sug *domain.RescheduleSuggestion) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *sug
	s.suggestions[sug.ID] = &cp
	return nil
}

func (s *MemoryStore) GetSuggestion(ctx context.Context, id string) (*domain.RescheduleSuggestion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sug, ok := s.suggestions[id]
	if !ok {
		return nil, nil
	}
	cp := *sug
	return &cp, nil
}

func (s *MemoryStore) ListPendingSuggestions(ctx context.Context, userID string) ([]*domain.RescheduleSuggestion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*domain.RescheduleSuggestion
	for _, sug := range s.suggestions {
		if sug.UserID == userID && sug.Status == domain.SuggestionPending {
			cp := *sug
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *MemoryStore) ListExpirableSuggestions(ctx context.Context, now time.Time) ([]*domain.RescheduleSuggestion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*domain.RescheduleSuggestion
	for _, sug := range s.suggestions {
		if sug.Status == domain.SuggestionPending && sug.ExpiresAt.Before(now) {
			cp := *sug
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *MemoryStore) SaveSuggestion(ctx context.Context, sug *domain.RescheduleSuggestion) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.suggestions[sug.ID]; !ok {
		return &domain.NotFoundError{Kind: "suggestion", ID: sug.ID}
	}
	cp := *sug
	s.suggestions[sug.ID] = &cp
	return nil
}

var _ domain.Store = (*MemoryStore)(nil)
