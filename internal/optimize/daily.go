package optimize

import (
	"context"
	"log"
	"sort"
	"time"

	"github.com/humancompiler/planner/internal/domain"
)

const defaultDailyTimeout = 5 * time.Second

// DailyInput is everything C6 needs for one day's solve. Tasks and
// slots must already be restricted to this day's weekly-selected
// candidates — the daily packer never sees a task the weekly selector
// rejected.
type DailyInput struct {
	Tasks        []domain.SchedulerTask
	Slots        []domain.TimeSlot
	Fixed        []domain.FixedAssignment
	TaskDeps     []domain.DependencyEdge // Kind == DependencyTask, restricted to Tasks
	GoalDeps     []domain.DependencyEdge // Kind == DependencyGoal
	ScheduleDate time.Time
	Timeout      time.Duration
}

type dailyTask struct {
	id            string
	durationMin   int // remaining duration, minutes
	kind          domain.WorkKind
	goalID        string
	projectID     string
	isRecurring   bool
	priorityW     float64
	deadlineBonus float64
	forcedSlot    int // -1 unless pinned
	forcedMinutes int
	forcedOffset  int // minutes into the slot where the forced block starts
}

type dailySlot struct {
	start           time.Time
	capacityMin     int
	remainingMin    int
	forcedMin       int // minutes reserved by fixed assignments before dfs runs
	kind            domain.SlotKind
	pinnedProjectID *string
}

// SolveDaily packs tasks into a single day's slots under capacity,
// ordering, pinning, and kind-affinity/priority/deadline scoring, per
// spec §4.5.
func SolveDaily(ctx context.Context, in DailyInput) domain.ScheduleResult {
	if len(in.Tasks) == 0 || len(in.Slots) == 0 {
		return domain.ScheduleResult{Success: true, Status: domain.StatusNoTasksOrSlots}
	}

	solveStart := time.Now()
	timeout := in.Timeout
	if timeout <= 0 {
		timeout = defaultDailyTimeout
	}
	deadline := time.Now().Add(timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	slots := make([]dailySlot, len(in.Slots))
	for i, s := range in.Slots {
		capMin := int(s.Duration().Minutes())
		if s.CapacityHours != nil {
			byHours := int(*s.CapacityHours * 60)
			if byHours < capMin {
				capMin = byHours
			}
		}
		slots[i] = dailySlot{start: s.Start, capacityMin: capMin, remainingMin: capMin, kind: s.Kind, pinnedProjectID: s.PinnedProjectID}
	}

	tasksByID := make(map[string]*dailyTask, len(in.Tasks))
	var unscheduled []domain.UnscheduledTask
	var tasks []*dailyTask
	for _, t := range in.Tasks {
		if t.RemainingHours <= 0 && !t.IsRecurring {
			log.Printf("optimize: skipping task %s with no remaining hours", t.ID)
			continue // spec: skip with log, not reported as unscheduled
		}
		durMin := int(t.RemainingHours*60 + 0.999999)
		if durMin < 1 {
			durMin = 1
		}
		dt := &dailyTask{
			id:            t.ID,
			durationMin:   durMin,
			kind:          t.Kind,
			goalID:        t.GoalID,
			projectID:     t.ProjectID,
			isRecurring:   t.IsRecurring,
			priorityW:     priorityWeight(t.UserPriority),
			deadlineBonus: deadlineBonus(t.DueAt, in.ScheduleDate),
			forcedSlot:    -1,
		}
		tasksByID[t.ID] = dt
		tasks = append(tasks, dt)
	}

	// Fixed assignments: clamp to remaining slot capacity, reserve it,
	// and record the forced (task, slot, duration) before anything else
	// is decided (spec §4.5 preprocessing).
	for _, f := range in.Fixed {
		dt, ok := tasksByID[f.TaskID]
		if !ok || f.SlotIndex < 0 || f.SlotIndex >= len(slots) {
			continue
		}
		dur := dt.durationMin
		if f.DurationHours != nil {
			dur = int(*f.DurationHours * 60)
		}
		slot := &slots[f.SlotIndex]
		if dur > slot.remainingMin {
			dur = slot.remainingMin
		}
		if dur < 1 {
			dur = 1
		}
		dt.forcedOffset = slot.forcedMin
		slot.forcedMin += dur
		slot.remainingMin -= dur
		dt.forcedSlot = f.SlotIndex
		dt.forcedMinutes = dur
	}

	order, skipped, prereqsOf := topoOrder(tasks, in.TaskDeps, in.GoalDeps)
	for _, id := range skipped {
		unscheduled = append(unscheduled, domain.UnscheduledTask{TaskID: id, Reason: "dependency unsatisfiable within this day"})
		delete(tasksByID, id)
	}
	filtered := order[:0]
	for _, t := range order {
		if _, ok := tasksByID[t.id]; ok {
			filtered = append(filtered, t)
		}
	}
	order = filtered

	d := &dailySolver{
		order:     order,
		slots:     slots,
		deadline:  deadline,
		prereqsOf: prereqsOf,
	}
	d.assignedSlot = make(map[string]int, len(order))
	d.search(0)

	res := d.toResult(unscheduled)
	res.SolveSeconds = time.Since(solveStart).Seconds()
	return res
}

func priorityWeight(userPriority int) float64 {
	w := 10 - float64(userPriority)
	if w < 1 {
		w = 1
	}
	return w
}

func deadlineBonus(dueAt *time.Time, scheduleDate time.Time) float64 {
	if dueAt == nil {
		return 1
	}
	if dueAt.Before(scheduleDate) {
		return 1
	}
	days := int(dueAt.Sub(scheduleDate).Hours() / 24)
	b := 10 - float64(days)
	if b < 1 {
		b = 1
	}
	return b
}

func kindBonus(taskKind domain.WorkKind, slotKind domain.SlotKind) float64 {
	if string(taskKind) == string(slotKind) {
		return 10
	}
	return 1
}

// topoOrder returns tasks ordered so every prerequisite (task- or
// goal-level) precedes its dependents, per spec §4.5 C6.5/C6.6. Tasks
// involved in a cycle (should not happen within one relaxed-resolved
// day, but defended against) are returned in the skipped list.
func topoOrder(tasks []*dailyTask, taskDeps, goalDeps []domain.DependencyEdge) ([]*dailyTask, []string, map[string]map[string]bool) {
	byID := make(map[string]*dailyTask, len(tasks))
	for _, t := range tasks {
		byID[t.id] = t
	}

	goalMembers := make(map[string][]string)
	for _, t := range tasks {
		goalMembers[t.goalID] = append(goalMembers[t.goalID], t.id)
	}

	prereqsOf := make(map[string]map[string]bool) // dependent -> set of prerequisites, kept intact for ordering checks
	addEdge := func(dependent, prereq string) {
		if dependent == prereq {
			return
		}
		if prereqsOf[dependent] == nil {
			prereqsOf[dependent] = make(map[string]bool)
		}
		prereqsOf[dependent][prereq] = true
	}

	for _, e := range taskDeps {
		if byID[e.Dependent] == nil || byID[e.Prerequisite] == nil {
			continue
		}
		addEdge(e.Dependent, e.Prerequisite)
	}
	for _, e := range goalDeps {
		for _, dep := range goalMembers[e.Dependent] {
			for _, pre := range goalMembers[e.Prerequisite] {
				addEdge(dep, pre)
			}
		}
	}

	// edges is a scratch copy consumed by Kahn's algorithm below;
	// prereqsOf is returned intact for the solver's ordering checks.
	edges := make(map[string]map[string]bool, len(prereqsOf))
	for dependent, prereqs := range prereqsOf {
		cp := make(map[string]bool, len(prereqs))
		for p := range prereqs {
			cp[p] = true
		}
		edges[dependent] = cp
	}

	indegree := make(map[string]int, len(tasks))
	for _, t := range tasks {
		indegree[t.id] = 0
	}
	for dependent, prereqs := range edges {
		indegree[dependent] = len(prereqs)
	}

	var queue []string
	for _, t := range tasks {
		if indegree[t.id] == 0 {
			queue = append(queue, t.id)
		}
	}
	sort.Strings(queue)

	var ordered []*dailyTask
	done := make(map[string]bool, len(tasks))
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if done[id] {
			continue
		}
		done[id] = true
		ordered = append(ordered, byID[id])

		var freed []string
		for dependent, prereqs := range edges {
			if !prereqs[id] || done[dependent] {
				continue
			}
			delete(prereqs, id)
			if len(prereqs) == 0 {
				freed = append(freed, dependent)
			}
		}
		sort.Strings(freed)
		queue = append(queue, freed...)
	}

	var skipped []string
	if len(ordered) < len(tasks) {
		for _, t := range tasks {
			if !done[t.id] {
				skipped = append(skipped, t.id)
			}
		}
	}
	return ordered, skipped, prereqsOf
}

type dailySolver struct {
	order     []*dailyTask
	slots     []dailySlot
	deadline  time.Time
	prereqsOf map[string]map[string]bool // dependent task id -> set of prerequisite task ids

	assignedSlot map[string]int // task id -> chosen slot index, for ordering checks
	nodesVisited int
	timedOut     bool

	bestObjective float64
	bestPlan      []plannedPick
	foundAny      bool
}

type plannedPick struct {
	taskID      string
	slotIndex   int
	startOffset int // minutes into the slot where this block starts
	minutes     int
	isFixed     bool
}

// search is a branch-and-bound over order[i:], deciding for each task
// either "skip" or "assign to slot j" (subject to capacity, project
// pin, and ordering against already-decided prerequisites — order[]
// is already a topological sort, so every prerequisite of order[i] was
// decided in order[0:i]).
func (d *dailySolver) search(i int) {
	d.dfs(i, 0, nil, make([]int, len(d.slots)))
}

func (d *dailySolver) dfs(i int, objective float64, picks []plannedPick, used []int) {
	if d.timedOut {
		return
	}
	d.nodesVisited++
	if d.nodesVisited%256 == 0 && time.Now().After(d.deadline) {
		d.timedOut = true
	}

	if i == len(d.order) {
		d.foundAny = true
		if objective > d.bestObjective || d.bestPlan == nil {
			d.bestObjective = objective
			d.bestPlan = append([]plannedPick(nil), picks...)
		}
		return
	}
	if d.timedOut {
		// Still record whatever partial incumbent we have; a timed-out
		// search returns the best plan found so far, never an error.
		if !d.foundAny {
			d.foundAny = true
			d.bestObjective = objective
			d.bestPlan = append([]plannedPick(nil), picks...)
		}
		return
	}

	t := d.order[i]

	if t.forcedSlot >= 0 {
		bonus := kindBonus(t.kind, d.slots[t.forcedSlot].kind) * t.priorityW * t.deadlineBonus
		pick := plannedPick{taskID: t.id, slotIndex: t.forcedSlot, startOffset: t.forcedOffset, minutes: t.forcedMinutes, isFixed: true}
		d.assignedSlot[t.id] = t.forcedSlot
		d.dfs(i+1, objective+float64(t.forcedMinutes)*bonus, append(picks, pick), used)
		delete(d.assignedSlot, t.id)
		return
	}

	// Branch: skip this task.
	d.dfs(i+1, objective, picks, used)

	// Branch: assign to each feasible slot.
	for j := range d.slots {
		slot := &d.slots[j]
		remaining := slot.remainingMin - used[j]
		if remaining <= 0 {
			continue
		}
		if slot.pinnedProjectID != nil && !t.isRecurring && t.projectID != *slot.pinnedProjectID {
			continue
		}
		if !d.orderingOK(t, j) {
			continue
		}

		dur := t.durationMin
		if dur > remaining {
			dur = remaining
		}
		bonus := kindBonus(t.kind, slot.kind) * t.priorityW * t.deadlineBonus
		offset := slot.forcedMin + used[j]

		used[j] += dur
		d.assignedSlot[t.id] = j
		d.dfs(i+1, objective+float64(dur)*bonus, append(picks, plannedPick{taskID: t.id, slotIndex: j, startOffset: offset, minutes: dur}), used)
		delete(d.assignedSlot, t.id)
		used[j] -= dur
	}
}

// orderingOK enforces C6.5/C6.6: t cannot take a slot earlier than any
// of its own already-assigned prerequisites (ties allowed — d.order is
// topological, so every prerequisite of t was already decided).
func (d *dailySolver) orderingOK(t *dailyTask, slotIndex int) bool {
	for prereq := range d.prereqsOf[t.id] {
		prereqSlot, assigned := d.assignedSlot[prereq]
		if assigned && prereqSlot > slotIndex {
			return false
		}
	}
	return true
}

func (d *dailySolver) toResult(unscheduled []domain.UnscheduledTask) domain.ScheduleResult {
	if !d.foundAny {
		return domain.ScheduleResult{Success: true, Status: domain.StatusNoTasksOrSlots, Unscheduled: unscheduled}
	}

	assignedIDs := make(map[string]bool, len(d.bestPlan))
	var assignments []domain.Assignment
	var totalMinutes int
	for _, p := range d.bestPlan {
		start := d.slots[p.slotIndex].start.Add(time.Duration(p.startOffset) * time.Minute)
		assignments = append(assignments, domain.Assignment{
			TaskID:        p.taskID,
			SlotIndex:     p.slotIndex,
			StartTime:     start,
			DurationHours: float64(p.minutes) / 60,
			IsFixed:       p.isFixed,
		})
		assignedIDs[p.taskID] = true
		totalMinutes += p.minutes
	}

	for _, t := range d.order {
		if !assignedIDs[t.id] {
			unscheduled = append(unscheduled, domain.UnscheduledTask{TaskID: t.id, Reason: "no feasible slot within capacity/ordering constraints"})
		}
	}

	status := domain.StatusOptimal
	if d.timedOut {
		status = domain.StatusFeasible
	}

	return domain.ScheduleResult{
		Success:     true,
		Assignments: assignments,
		Unscheduled: unscheduled,
		TotalHours:  float64(totalMinutes) / 60,
		Status:      status,
		Objective:   d.bestObjective,
	}
}
