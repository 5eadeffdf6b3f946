// Package report computes team metrics over a date range and renders them as
// a standalone HTML page.
package report

import (
	"math"
	"slices"
	"strings"
	"time"

	"github.com/colonyops/taskflow/internal/core/task"
)

// DefaultWindow is the range used when no bounds are given.
const DefaultWindow = 30 * 24 * time.Hour

// Range is an inclusive range of calendar days.
type Range struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// DefaultRange returns the 30 days up to and including now.
func DefaultRange(now time.Time) Range {
	return Range{From: now.Add(-DefaultWindow), To: now}
}

// Contains reports whether the day of t lies within the range.
func (r Range) Contains(t time.Time) bool {
	d := day(t)
	return !d.Before(day(r.From)) && !d.After(day(r.To))
}

// Report is the computed summary.
type Report struct {
	Range          Range           `json:"range"`
	Assignee       string          `json:"assignee,omitempty"`
	GeneratedAt    time.Time       `json:"generated_at"`
	Total          int             `json:"total"`
	Assigned       int             `json:"assigned"`
	InProgress     int             `json:"in_progress"`
	OnHold         int             `json:"on_hold"`
	Completed      int             `json:"completed"`
	Overdue        int             `json:"overdue"`
	CompletionRate float64         `json:"completion_rate"` // percent
	HealthScore    float64         `json:"health_score"`    // 0..100
	Hours          float64         `json:"hours"`
	ByAssignee     []AssigneeStats `json:"by_assignee"`
	ByPriority     []PriorityStats `json:"by_priority"`
	Tasks          []Row           `json:"tasks"`
}

// AssigneeStats is one line of the per-person breakdown.
type AssigneeStats struct {
	Name           string  `json:"name"`
	Total          int     `json:"total"`
	Completed      int     `json:"completed"`
	Overdue        int     `json:"overdue"`
	Hours          float64 `json:"hours"`
	CompletionRate float64 `json:"completion_rate"`
}

// PriorityStats counts tasks per priority.
type PriorityStats struct {
	Priority task.Priority `json:"priority"`
	Label    string        `json:"label"`
	Total    int           `json:"total"`
}

// Row is a task as listed in the report.
type Row struct {
	ID         int64         `json:"id"`
	Title      string        `json:"title"`
	AssignedTo string        `json:"assigned_to"`
	DueDate    time.Time     `json:"due_date"`
	Status     task.Status   `json:"status"`
	Priority   task.Priority `json:"priority"`
	Hours      float64       `json:"hours"`
	Overdue    bool          `json:"overdue"`
}

// Build computes the report over tasks due within r. Archived tasks and tasks
// without a due date are left out. An empty assignee includes everyone.
func Build(tasks []task.Task, r Range, assignee string, now time.Time) Report {
	rep := Report{
		Range:       r,
		Assignee:    assignee,
		GeneratedAt: now.UTC().Truncate(time.Second),
	}

	people := map[string]*AssigneeStats{}
	priorities := map[task.Priority]int{}

	for _, t := range tasks {
		if t.Status == task.StatusArchived || t.DueDate == nil || !r.Contains(*t.DueDate) {
			continue
		}
		if assignee != "" && !strings.EqualFold(t.AssignedTo, assignee) {
			continue
		}

		overdue := t.IsOverdue(now)
		rep.Total++
		rep.Hours += t.HoursSpent
		priorities[t.Priority]++

		switch t.Status {
		case task.StatusCompleted:
			rep.Completed++
		case task.StatusInProgress:
			rep.InProgress++
		case task.StatusOnHold:
			rep.OnHold++
		default:
			rep.Assigned++
		}
		if overdue {
			rep.Overdue++
		}

		name := strings.TrimSpace(t.AssignedTo)
		if name == "" {
			name = "Unassigned"
		}
		ps, ok := people[strings.ToLower(name)]
		if !ok {
			ps = &AssigneeStats{Name: name}
			people[strings.ToLower(name)] = ps
		}
		ps.Total++
		ps.Hours += t.HoursSpent
		if t.Status == task.StatusCompleted {
			ps.Completed++
		}
		if overdue {
			ps.Overdue++
		}

		rep.Tasks = append(rep.Tasks, Row{
			ID:         t.ID,
			Title:      t.Title,
			AssignedTo: t.AssignedTo,
			DueDate:    *t.DueDate,
			Status:     t.Status,
			Priority:   t.Priority,
			Hours:      t.HoursSpent,
			Overdue:    overdue,
		})
	}

	rep.CompletionRate = percent(rep.Completed, rep.Total)
	rep.HealthScore = healthScore(rep)
	rep.Hours = round1(rep.Hours)

	for _, ps := range people {
		ps.CompletionRate = percent(ps.Completed, ps.Total)
		ps.Hours = round1(ps.Hours)
		rep.ByAssignee = append(rep.ByAssignee, *ps)
	}
	slices.SortFunc(rep.ByAssignee, func(a, b AssigneeStats) int {
		return strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
	})

	for _, p := range []task.Priority{task.PriorityHigh, task.PriorityMedium, task.PriorityLow} {
		rep.ByPriority = append(rep.ByPriority, PriorityStats{Priority: p, Label: p.String(), Total: priorities[p]})
	}

	slices.SortStableFunc(rep.Tasks, func(a, b Row) int {
		if c := a.DueDate.Compare(b.DueDate); c != 0 {
			return c
		}
		return int(a.Priority - b.Priority)
	})

	return rep
}

// healthScore starts at 100 and subtracts up to 50 for the overdue share and
// up to 30 for the incomplete share.
func healthScore(r Report) float64 {
	if r.Total == 0 {
		return 100
	}
	total := float64(r.Total)
	score := 100 - float64(r.Overdue)/total*50 - float64(r.Total-r.Completed)/total*30
	return round1(math.Max(0, score))
}

func percent(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return round1(float64(n) / float64(total) * 100)
}

func round1(f float64) float64 {
	return math.Round(f*10) / 10
}

func day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
