// Package pipeline implements C7: the weekly planning pipeline that
// sequences PRIORITIES → SELECT → PACK×7 → INTEGRATE, per spec §4.6.
package pipeline

import (
	"context"
	"fmt"
	"log"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/humancompiler/planner/internal/aggregator"
	"github.com/humancompiler/planner/internal/dependency"
	"github.com/humancompiler/planner/internal/domain"
	"github.com/humancompiler/planner/internal/observability"
	"github.com/humancompiler/planner/internal/optimize"
	"github.com/humancompiler/planner/internal/priority"
)

// StageName identifies one pipeline stage for StageResult reporting.
type StageName string

const (
	StageInit       StageName = "INIT"
	StagePriorities StageName = "PRIORITIES"
	StageSelect     StageName = "SELECT"
	StagePack       StageName = "PACK"
	StageIntegrate  StageName = "INTEGRATE"
)

// StageResult is the per-stage outcome record spec §4.6 requires.
type StageResult struct {
	Stage    StageName
	Success  bool
	Duration time.Duration
	Warnings []string
	Errors   []string
}

// RunStatus is the overall pipeline outcome.
type RunStatus string

const (
	RunSuccess        RunStatus = "SUCCESS"
	RunPartialSuccess RunStatus = "PARTIAL_SUCCESS"
	RunFailed         RunStatus = "FAILED"
	RunNoTasks        RunStatus = "NO_TASKS"
)

// Request is one planning run's input, spanning a Monday-anchored week.
type Request struct {
	UserID                string
	WeekStartDate         string // YYYY-MM-DD, must be a Monday
	Slots                 [7][]domain.TimeSlot
	FixedAssignments      [7][]domain.FixedAssignment
	UserPrompt            string
	EnableCaching         bool
	FallbackOnFailure     bool
	OptimizationTimeout   time.Duration
}

// DayResult is one PACK stage's output alongside its date.
type DayResult struct {
	Date   string
	Result domain.ScheduleResult
}

// Result is the coordinator's aggregated output (spec §4.6 INTEGRATE).
type Result struct {
	Status               RunStatus
	Stages                []StageResult
	WeeklySelection       domain.WeeklySelection
	DailyResults          []DayResult
	TotalOptimizedHours   float64
	CapacityUtilization   float64
	ConsistencyScore      float64
	Insights              []string
}

const defaultGlobalTimeout = 30 * time.Second

// keyTracker is implemented by Cache backends (RedisCache) that can
// remember which keys belong to a user for bulk invalidation. Plain
// Cache implementations without this are still usable; they just can't
// participate in InvalidateUser.
type keyTracker interface {
	TrackKey(ctx context.Context, userID, key string) error
}

// Coordinator wires C1 (store), C3 (dependency resolver), C4 (oracle),
// C5/C6 (optimize) into the full weekly pipeline.
type Coordinator struct {
	Store             domain.Store
	Oracle            priority.Oracle
	Cache             Cache
	MaxDayConcurrency int
	WeeklyTimeout     time.Duration
	DailyTimeout      time.Duration
}

// Run executes INIT → PRIORITIES → SELECT → PACK×7 → INTEGRATE for one
// user+week, honoring the global optimization_timeout_seconds budget.
func (c *Coordinator) Run(ctx context.Context, req Request) (result Result) {
	timeout := req.OptimizationTimeout
	if timeout <= 0 {
		timeout = defaultGlobalTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	defer func() {
		observability.PipelineRunsTotal.WithLabelValues(string(result.Status)).Inc()
		for _, st := range result.Stages {
			observability.PipelineStageDuration.WithLabelValues(string(st.Stage)).Observe(st.Duration.Seconds())
		}
	}()

	initRes, ok := c.runInit(req, &result)
	result.Stages = append(result.Stages, initRes)
	if !ok {
		result.Status = RunFailed
		return result
	}

	tasks, goalProject, allocations, capacity, resolver, priErr := c.loadInputs(ctx, req)

	var prioritiesRes StageResult
	var scores map[string]float64
	cached := false
	if req.EnableCaching && c.Cache != nil && priErr == nil {
		key := cacheKey(req.UserID, req.WeekStartDate, "priorities")
		if hit, err := c.Cache.Get(ctx, key, &scores); err != nil {
			log.Printf("pipeline: priorities cache read failed for user %s: %v", req.UserID, err)
		} else if hit {
			cached = true
			prioritiesRes = StageResult{Stage: StagePriorities, Success: true}
		}
	}
	if !cached {
		prioritiesRes, scores = c.runPriorities(ctx, req, tasks, goalProject, allocations, priErr)
	}
	result.Stages = append(result.Stages, prioritiesRes)
	if !cached && prioritiesRes.Success && req.EnableCaching && c.Cache != nil && priErr == nil {
		key := cacheKey(req.UserID, req.WeekStartDate, "priorities")
		if err := c.Cache.Set(ctx, key, scores, untilNextMonday(time.Now())); err != nil {
			log.Printf("pipeline: failed to cache priorities for user %s: %v", req.UserID, err)
		} else if tr, ok := c.Cache.(keyTracker); ok {
			if err := tr.TrackKey(ctx, req.UserID, key); err != nil {
				log.Printf("pipeline: failed to track priorities cache key for user %s: %v", req.UserID, err)
			}
		}
	}

	schedTasks := c.toSchedulerTasks(ctx, req, tasks, goalProject, scores, resolver)

	selectRes, selection := c.runSelect(ctx, req, schedTasks, capacity)
	result.Stages = append(result.Stages, selectRes)
	result.WeeklySelection = selection

	if !selection.Success || (len(selection.SelectedTaskIDs) == 0 && len(selection.SelectedRecurringIDs) == 0) {
		result.Status = RunNoTasks
		return result
	}

	selectedSchedTasks := filterSelected(schedTasks, selection)

	packRes, dayResults := c.runPack(ctx, req, selectedSchedTasks)
	result.Stages = append(result.Stages, packRes)
	result.DailyResults = dayResults

	integrateRes := c.runIntegrate(&result, selection, capacity.TotalCapacityHours)
	result.Stages = append(result.Stages, integrateRes)

	result.Status = overallStatus(result.Stages)
	if result.Status == RunFailed || result.Status == RunPartialSuccess {
		return result
	}

	if req.EnableCaching && c.Cache != nil {
		titleByTask := make(map[string]string, len(selectedSchedTasks))
		for _, t := range selectedSchedTasks {
			titleByTask[t.ID] = t.Title
		}
		c.persist(ctx, req, &result, titleByTask)
	}

	return result
}

func (c *Coordinator) runInit(req Request, result *Result) (StageResult, bool) {
	start := time.Now()
	var errs []string

	if _, err := time.Parse("2006-01-02", req.WeekStartDate); err != nil {
		errs = append(errs, fmt.Sprintf("week_start_date %q is not parseable: %v", req.WeekStartDate, err))
	} else {
		weekStart, _ := time.Parse("2006-01-02", req.WeekStartDate)
		if weekStart.Before(time.Now().AddDate(0, 0, -7)) {
			errs = append(errs, "week_start_date is more than 7 days in the past")
		}
	}

	anySlots := false
	for _, day := range req.Slots {
		if len(day) > 0 {
			anySlots = true
			break
		}
	}
	if !anySlots {
		errs = append(errs, "no slots provided for any day")
	}

	if len(errs) == 0 {
		return StageResult{Stage: StageInit, Success: true, Duration: time.Since(start)}, true
	}
	if req.FallbackOnFailure {
		return StageResult{Stage: StageInit, Success: true, Duration: time.Since(start), Warnings: errs}, true
	}
	return StageResult{Stage: StageInit, Success: false, Duration: time.Since(start), Errors: errs}, false
}

// loadInputs fetches this user's tasks, resolves each task's project
// via its goal (Task carries GoalID only; Project is reached through
// Goal), and builds the dependency resolver.
func (c *Coordinator) loadInputs(ctx context.Context, req Request) (tasks []*domain.Task, goalProject map[string]string, allocations []domain.ProjectAllocation, capacity domain.UserCapacity, resolver *dependency.Resolver, err error) {
	tasks, err = c.Store.ListTasks(ctx, req.UserID)
	if err != nil {
		return nil, nil, nil, domain.UserCapacity{}, nil, err
	}
	goals, err := c.Store.ListGoals(ctx, req.UserID)
	if err != nil {
		return nil, nil, nil, domain.UserCapacity{}, nil, err
	}
	goalProject = make(map[string]string, len(goals))
	for _, g := range goals {
		goalProject[g.ID] = g.ProjectID
	}

	capPtr, err := c.Store.GetUserCapacity(ctx, req.UserID)
	if err != nil {
		return nil, nil, nil, domain.UserCapacity{}, nil, err
	}
	if capPtr != nil {
		capacity = *capPtr
	}

	resolver, err = dependency.NewResolver(ctx, c.Store, req.UserID)
	if err != nil {
		return nil, nil, capacity.Allocations, capacity, nil, err
	}
	return tasks, goalProject, capacity.Allocations, capacity, resolver, nil
}

func (c *Coordinator) runPriorities(ctx context.Context, req Request, tasks []*domain.Task, goalProject map[string]string, allocations []domain.ProjectAllocation, loadErr error) (StageResult, map[string]float64) {
	start := time.Now()
	if loadErr != nil {
		return StageResult{Stage: StagePriorities, Success: false, Duration: time.Since(start), Errors: []string{loadErr.Error()}}, map[string]float64{}
	}

	schedTasksForOracle := make([]*domain.SchedulerTask, 0, len(tasks))
	for _, t := range tasks {
		schedTasksForOracle = append(schedTasksForOracle, &domain.SchedulerTask{
			ID: t.ID, Title: t.Title, ProjectID: goalProject[t.GoalID], GoalID: t.GoalID,
			UserPriority: t.Priority, DueAt: t.DueAt, Kind: t.Kind,
		})
	}

	pc := priority.Context{
		UserID: req.UserID, WeekStart: req.WeekStartDate,
		Tasks: schedTasksForOracle, Allocations: allocations,
	}

	scores, err := c.Oracle.Priorities(ctx, pc, req.UserPrompt)
	if err != nil {
		log.Printf("pipeline: priorities stage falling back for user %s: %v", req.UserID, err)
		scores = priority.Deterministic(pc)
		return StageResult{
			Stage: StagePriorities, Success: true, Duration: time.Since(start),
			Warnings: []string{oracleFailureInsight(err)},
		}, scores
	}
	return StageResult{Stage: StagePriorities, Success: true, Duration: time.Since(start)}, scores
}

// toSchedulerTasks builds C5's candidate set S: non-completed tasks
// with remaining hours, filtered by the relaxed dependency rule (spec
// §4.2) against the full schedulable pool, plus active weekly
// recurring tasks (which bypass dependency checks entirely), fetched
// fresh here since they are looked up by ID elsewhere in the store.
func (c *Coordinator) toSchedulerTasks(ctx context.Context, req Request, tasks []*domain.Task, goalProject map[string]string, scores map[string]float64, resolver *dependency.Resolver) []domain.SchedulerTask {
	pool := make(map[string]bool, len(tasks))
	taskIDs := make([]string, 0, len(tasks))
	for _, t := range tasks {
		if t.Status == domain.TaskCompleted || t.Status == domain.TaskCancelled {
			continue
		}
		pool[t.ID] = true
		taskIDs = append(taskIDs, t.ID)
	}

	actualHours := aggregator.ActualHours(ctx, c.Store, taskIDs)
	taskGoal := make(map[string]string, len(tasks))
	for _, t := range tasks {
		if pool[t.ID] {
			taskGoal[t.ID] = t.GoalID
		}
	}

	out := make([]domain.SchedulerTask, 0, len(tasks))
	for _, t := range tasks {
		if !pool[t.ID] {
			continue
		}
		remaining := aggregator.RemainingHours(t.EstimateHours, actualHours[t.ID])
		if remaining <= 0 {
			continue
		}
		if resolver != nil {
			if !resolver.TaskDepsSatisfied(t.ID, pool) {
				continue
			}
			if !resolver.GoalDepsSatisfied(t.GoalID, taskGoal) {
				continue
			}
		}
		out = append(out, domain.SchedulerTask{
			ID: t.ID, Title: t.Title, RemainingHours: remaining, ActualHours: actualHours[t.ID],
			Priority: scores[t.ID], UserPriority: t.Priority, DueAt: t.DueAt, Kind: t.Kind,
			GoalID: t.GoalID, ProjectID: goalProject[t.GoalID],
		})
	}

	recurring, err := c.Store.ListWeeklyRecurringTasks(ctx, req.UserID, nil)
	if err != nil {
		log.Printf("pipeline: failed to list weekly recurring tasks for user %s: %v", req.UserID, err)
		return out
	}
	for _, r := range recurring {
		if !r.Active || r.DeletedAt != nil {
			continue
		}
		out = append(out, domain.SchedulerTask{
			ID: r.ID, Title: r.Title, RemainingHours: r.EstimateHours,
			Priority: scores[r.ID], IsRecurring: true,
		})
	}
	return out
}

func (c *Coordinator) runSelect(ctx context.Context, req Request, schedTasks []domain.SchedulerTask, capacity domain.UserCapacity) (StageResult, domain.WeeklySelection) {
	start := time.Now()

	var candidates, recurring []domain.SchedulerTask
	for _, t := range schedTasks {
		if t.IsRecurring {
			recurring = append(recurring, t)
		} else {
			candidates = append(candidates, t)
		}
	}

	selection := optimize.SolveWeekly(ctx, optimize.WeeklyInput{
		Tasks: candidates, Recurring: recurring, Capacity: capacity, Timeout: c.WeeklyTimeout,
	})
	observability.WeeklySolveNodes.Observe(float64(selection.NodesVisited))

	if !selection.Success {
		return StageResult{Stage: StageSelect, Success: true, Duration: time.Since(start), Warnings: []string{"weekly selection returned no feasible plan"}}, selection
	}
	return StageResult{Stage: StageSelect, Success: true, Duration: time.Since(start)}, selection
}

func filterSelected(schedTasks []domain.SchedulerTask, selection domain.WeeklySelection) []domain.SchedulerTask {
	want := make(map[string]bool, len(selection.SelectedTaskIDs)+len(selection.SelectedRecurringIDs))
	for _, id := range selection.SelectedTaskIDs {
		want[id] = true
	}
	for _, id := range selection.SelectedRecurringIDs {
		want[id] = true
	}
	var out []domain.SchedulerTask
	for _, t := range schedTasks {
		if want[t.ID] {
			out = append(out, t)
		}
	}
	return out
}

func (c *Coordinator) runPack(ctx context.Context, req Request, selected []domain.SchedulerTask) (StageResult, []DayResult) {
	start := time.Now()
	results := make([]DayResult, 7)

	weekStart, _ := time.Parse("2006-01-02", req.WeekStartDate)

	g, gctx := errgroup.WithContext(ctx)
	maxConc := c.MaxDayConcurrency
	if maxConc <= 0 {
		maxConc = 7
	}
	g.SetLimit(maxConc)

	for i := 0; i < 7; i++ {
		i := i
		g.Go(func() error {
			date := weekStart.AddDate(0, 0, i)
			res := optimize.SolveDaily(gctx, optimize.DailyInput{
				Tasks:        selected,
				Slots:        req.Slots[i],
				Fixed:        req.FixedAssignments[i],
				ScheduleDate: date,
				Timeout:      c.DailyTimeout,
			})
			results[i] = DayResult{Date: date.Format("2006-01-02"), Result: res}
			observability.DailySolveStatus.WithLabelValues(string(res.Status)).Inc()
			return nil
		})
	}
	_ = g.Wait() // SolveDaily never errors; it reports via ScheduleResult

	return StageResult{Stage: StagePack, Success: true, Duration: time.Since(start)}, results
}

func (c *Coordinator) runIntegrate(result *Result, selection domain.WeeklySelection, weeklyCapacity float64) StageResult {
	start := time.Now()

	var totalOptimized float64
	var totalSolveSeconds float64
	var statuses []string
	for _, dr := range result.DailyResults {
		totalOptimized += dr.Result.TotalHours
		totalSolveSeconds += dr.Result.SolveSeconds
		statuses = append(statuses, string(dr.Result.Status))
	}

	var utilization float64
	if weeklyCapacity > 0 {
		// capacity_utilization is optimized hours over the user's weekly
		// capacity.
		utilization = totalOptimized / weeklyCapacity
	}

	var consistency float64
	switch {
	case selection.SelectedHours == 0 && totalOptimized == 0:
		consistency = 1.0
	case selection.SelectedHours > 0:
		consistency = totalOptimized / selection.SelectedHours
		if consistency > 1.0 {
			consistency = 1.0
		}
	}

	result.TotalOptimizedHours = totalOptimized
	result.CapacityUtilization = utilization
	result.ConsistencyScore = consistency
	result.Insights = buildIntegrationInsights(utilization, consistency, statuses, totalSolveSeconds)

	return StageResult{Stage: StageIntegrate, Success: true, Duration: time.Since(start)}
}

func overallStatus(stages []StageResult) RunStatus {
	allSuccess := true
	anySuccess := false
	for _, s := range stages {
		if s.Success {
			anySuccess = true
		} else {
			allSuccess = false
		}
	}
	switch {
	case allSuccess:
		return RunSuccess
	case anySuccess:
		return RunPartialSuccess
	default:
		return RunFailed
	}
}

func (c *Coordinator) persist(ctx context.Context, req Request, result *Result, titleByTask map[string]string) {
	summaries := make([]domain.DailySummary, 0, len(result.DailyResults))
	for _, dr := range result.DailyResults {
		summaries = append(summaries, domain.DailySummary{
			Date: dr.Date, ScheduledHours: dr.Result.TotalHours, Status: dr.Result.Status,
		})
	}
	rec := &domain.WeeklyScheduleRecord{
		UserID:                   req.UserID,
		WeekStart:                req.WeekStartDate,
		SelectedTaskIDs:          result.WeeklySelection.SelectedTaskIDs,
		SelectedRecurringTaskIDs: result.WeeklySelection.SelectedRecurringIDs,
		Allocations:              result.WeeklySelection.HoursByProject,
		DailySummaries:           summaries,
		Insights:                 result.Insights,
	}
	if err := c.Store.SaveWeeklySchedule(ctx, req.UserID, req.WeekStartDate, rec); err != nil {
		log.Printf("pipeline: failed to persist weekly schedule for user %s week %s: %v", req.UserID, req.WeekStartDate, err)
	}
	for _, dr := range result.DailyResults {
		plan := dayResultToPlan(dr, titleByTask)
		if err := c.Store.SaveDailySchedule(ctx, req.UserID, dr.Date, &plan); err != nil {
			log.Printf("pipeline: failed to persist daily schedule for user %s date %s: %v", req.UserID, dr.Date, err)
		}
	}
}

func dayResultToPlan(dr DayResult, titleByTask map[string]string) domain.DayPlan {
	plan := domain.DayPlan{Date: dr.Date}
	for _, a := range dr.Result.Assignments {
		end := a.StartTime.Add(time.Duration(a.DurationHours * float64(time.Hour)))
		plan.Assignments = append(plan.Assignments, domain.PlannedSlot{
			TaskID:    a.TaskID,
			TaskTitle: titleByTask[a.TaskID],
			Start:     a.StartTime,
			End:       end,
		})
	}
	return plan
}
