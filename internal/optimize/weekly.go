// Package optimize implements C5 and C6: the weekly selector and daily
// packer. No Go CP-SAT binding exists anywhere in the retrieved corpus
// (OR-Tools has no maintained Go wrapper, and nothing in the pack
// imports a constraint-solving library), so both solvers are hand-rolled
// branch-and-bound integer programs over the exact models of spec §4.4
// and §4.5, with the teacher's own timeout-and-best-effort discipline:
// a context deadline bounds the search, and the best incumbent found so
// far is always returned rather than an error.
package optimize

import (
	"context"
	"sort"
	"time"

	"github.com/humancompiler/planner/internal/domain"
)

const (
	defaultWeeklyTimeout = 30 * time.Second
	hoursScale           = 10
	priorityScale        = 100
	projectBonusScale    = 1000
)

// WeeklyInput is everything C5 needs for one solve.
type WeeklyInput struct {
	Tasks     []domain.SchedulerTask // candidate project tasks (IsRecurring == false)
	Recurring []domain.SchedulerTask // candidate recurring tasks (IsRecurring == true)
	Capacity  domain.UserCapacity
	Timeout   time.Duration
}

type weeklyItem struct {
	id          string
	hours       int // scaled by hoursScale
	value       int // scaled objective contribution if selected
	projectID   string
	isRecurring bool
}

type projectBand struct {
	min, max int // scaled hours bounds; max == -1 means unbounded
	avail    int // scaled sum of candidate hours in this project
}

// SolveWeekly selects candidate tasks and recurring tasks under the
// weekly capacity and per-project allocation bands of spec §4.4,
// maximizing the scaled priority/project-bonus objective.
func SolveWeekly(ctx context.Context, in WeeklyInput) domain.WeeklySelection {
	timeout := in.Timeout
	if timeout <= 0 {
		timeout = defaultWeeklyTimeout
	}
	deadline := time.Now().Add(timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	allocByProject := make(map[string]domain.ProjectAllocation, len(in.Capacity.Allocations))
	for _, a := range in.Capacity.Allocations {
		allocByProject[a.ProjectID] = a
	}

	items := make([]weeklyItem, 0, len(in.Tasks)+len(in.Recurring))
	projAvail := make(map[string]int)
	for _, t := range in.Tasks {
		h := scaleHours(t.RemainingHours)
		v := int(t.Priority*priorityScale) + int(allocByProject[t.ProjectID].PriorityWeight*projectBonusScale)
		items = append(items, weeklyItem{id: t.ID, hours: h, value: v, projectID: t.ProjectID})
		projAvail[t.ProjectID] += h
	}
	for _, r := range in.Recurring {
		h := scaleHours(r.RemainingHours)
		v := int(r.Priority * priorityScale)
		items = append(items, weeklyItem{id: r.ID, hours: h, value: v, isRecurring: true})
	}

	bands := make(map[string]projectBand, len(in.Capacity.Allocations))
	const eps = 0.001
	for _, a := range in.Capacity.Allocations {
		avail := projAvail[a.ProjectID]
		if a.TargetHours <= eps {
			bands[a.ProjectID] = projectBand{min: 0, max: 0, avail: avail}
			continue
		}
		idealMin := scaleHours(a.TargetHours * 0.95)
		idealMax := scaleHours(a.TargetHours * 1.05)
		if avail < idealMin {
			bands[a.ProjectID] = projectBand{min: avail, max: avail, avail: avail}
			continue
		}
		if idealMax > avail {
			idealMax = avail
		}
		bands[a.ProjectID] = projectBand{min: idealMin, max: idealMax, avail: avail}
	}

	capScaled := scaleHours(in.Capacity.TotalCapacityHours)

	// Sort by value density descending: gives a tight greedy bound for
	// branch-and-bound pruning and a reasonable incumbent fast.
	sort.SliceStable(items, func(i, j int) bool {
		di := density(items[i])
		dj := density(items[j])
		return di > dj
	})

	s := &weeklySolver{
		items:    items,
		bands:    bands,
		capacity: capScaled,
		deadline: deadline,
	}
	s.search(0, 0, 0, map[string]int{}, nil)

	// No feasible selection at all (e.g. impossible bands): spec
	// requires success=false, empty selection in that case.
	return s.toSelection()
}

func scaleHours(h float64) int {
	return int(h*hoursScale + 0.5)
}

func density(it weeklyItem) float64 {
	if it.hours == 0 {
		return 0
	}
	return float64(it.value) / float64(it.hours)
}

type weeklySolver struct {
	items    []weeklyItem
	bands    map[string]projectBand
	capacity int
	deadline time.Time

	foundFeasible bool
	bestObjective int
	bestChosen    []string
	timedOut      bool
	nodesVisited  int
}

// search explores item index i, having decided items[0:i]. chosen
// accumulates included item IDs for the current partial solution.
func (s *weeklySolver) search(i, hoursUsed, objective int, projSums map[string]int, chosen []string) {
	if s.timedOut {
		return
	}
	s.nodesVisited++
	if s.nodesVisited%256 == 0 && time.Now().After(s.deadline) {
		s.timedOut = true
		return
	}

	if i == len(s.items) {
		if s.leafSatisfiesBands(projSums) {
			s.considerIncumbent(objective, chosen)
		}
		return
	}

	// Bound: current objective + best achievable from remaining items
	// within remaining capacity, ignoring project bands (admissible
	// relaxation — dropping constraints can only raise the optimum).
	bound := objective + fractionalBound(s.items[i:], s.capacity-hoursUsed)
	if bound <= s.bestObjective && s.foundFeasible {
		return
	}

	// Branch 1: exclude item i.
	s.search(i+1, hoursUsed, objective, projSums, chosen)

	// Branch 2: include item i, if capacity and project max allow it.
	it := s.items[i]
	if hoursUsed+it.hours > s.capacity {
		return
	}
	if it.projectID != "" {
		band, ok := s.bands[it.projectID]
		if ok && band.max >= 0 && projSums[it.projectID]+it.hours > band.max {
			return
		}
	}

	var projDelta string
	if it.projectID != "" {
		projSums[it.projectID] += it.hours
		projDelta = it.projectID
	}
	s.search(i+1, hoursUsed+it.hours, objective+it.value, projSums, append(chosen, it.id))
	if projDelta != "" {
		projSums[projDelta] -= it.hours
	}
}

func (s *weeklySolver) leafSatisfiesBands(projSums map[string]int) bool {
	for pid, band := range s.bands {
		if band.min > 0 && projSums[pid] < band.min {
			return false
		}
	}
	return true
}

func (s *weeklySolver) considerIncumbent(objective int, chosen []string) {
	s.foundFeasible = true
	if objective > s.bestObjective || s.bestChosen == nil {
		s.bestObjective = objective
		s.bestChosen = append([]string(nil), chosen...)
	}
}

// fractionalBound computes a fractional-knapsack upper bound over items
// (already sorted by density descending) within the given remaining
// capacity.
func fractionalBound(items []weeklyItem, capacity int) int {
	if capacity <= 0 {
		return 0
	}
	total := 0
	remaining := capacity
	for _, it := range items {
		if it.hours <= remaining {
			total += it.value
			remaining -= it.hours
			continue
		}
		if remaining > 0 && it.hours > 0 {
			total += int(float64(it.value) * float64(remaining) / float64(it.hours))
		}
		break
	}
	return total
}

func (s *weeklySolver) toSelection() domain.WeeklySelection {
	if !s.foundFeasible {
		return domain.WeeklySelection{Status: domain.StatusInfeasible, Success: false, NodesVisited: s.nodesVisited}
	}

	chosenSet := make(map[string]bool, len(s.bestChosen))
	for _, id := range s.bestChosen {
		chosenSet[id] = true
	}

	var taskIDs, recurringIDs []string
	hoursByProject := make(map[string]float64)
	var totalHours float64
	for _, it := range s.items {
		if !chosenSet[it.id] {
			continue
		}
		h := float64(it.hours) / hoursScale
		totalHours += h
		if it.isRecurring {
			recurringIDs = append(recurringIDs, it.id)
			continue
		}
		taskIDs = append(taskIDs, it.id)
		hoursByProject[it.projectID] += h
	}

	status := domain.StatusOptimal
	if s.timedOut {
		status = domain.StatusFeasible
	}

	return domain.WeeklySelection{
		SelectedTaskIDs:      taskIDs,
		SelectedRecurringIDs: recurringIDs,
		SelectedHours:        totalHours,
		HoursByProject:       hoursByProject,
		Status:               status,
		Objective:            float64(s.bestObjective) / priorityScale,
		Success:              true,
		NodesVisited:         s.nodesVisited,
	}
}
