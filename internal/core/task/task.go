// Package task defines the task domain model shared by every backing store.
package task

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Status represents the lifecycle state of a task.
type Status string

const (
	StatusAssigned   Status = "Assigned"
	StatusInProgress Status = "In Progress"
	StatusOnHold     Status = "On Hold"
	StatusCompleted  Status = "Completed"
	StatusArchived   Status = "Archived"
)

// AllStatuses lists statuses in lifecycle order.
var AllStatuses = []Status{
	StatusAssigned,
	StatusInProgress,
	StatusOnHold,
	StatusCompleted,
	StatusArchived,
}

// ParseStatus normalizes a stored status cell. Older sheets wrote "Created"
// for freshly assigned tasks; it reads back as Assigned. Unknown values are
// returned unchanged so that hand-edited cells survive a round-trip.
func ParseStatus(s string) Status {
	trimmed := strings.TrimSpace(s)
	for _, st := range AllStatuses {
		if strings.EqualFold(trimmed, string(st)) {
			return st
		}
	}
	switch strings.ToLower(trimmed) {
	case "", "created":
		return StatusAssigned
	case "in_progress", "inprogress":
		return StatusInProgress
	case "on_hold", "onhold":
		return StatusOnHold
	}
	return Status(trimmed)
}

// IsValid reports whether s is one of the known statuses.
func (s Status) IsValid() bool {
	for _, st := range AllStatuses {
		if s == st {
			return true
		}
	}
	return false
}

// Priority is an ordinal where lower is more urgent.
type Priority int

const (
	PriorityHigh   Priority = 1
	PriorityMedium Priority = 2
	PriorityLow    Priority = 3
)

// DefaultPriority is used whenever a stored priority cannot be parsed.
const DefaultPriority = PriorityLow

// ParsePriority accepts "1".."3" (including "1.0" as written by some
// spreadsheet exports) and the words High, Medium and Low. Anything else
// yields DefaultPriority.
func ParsePriority(s string) Priority {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "high":
		return PriorityHigh
	case "medium":
		return PriorityMedium
	case "low":
		return PriorityLow
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return DefaultPriority
	}
	p := Priority(int(f))
	if !p.IsValid() || float64(p) != f {
		return DefaultPriority
	}
	return p
}

// ParsePriorityStrict is ParsePriority for user input: it rejects values
// that would otherwise fall back to DefaultPriority.
func ParsePriorityStrict(s string) (Priority, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "high", "medium", "low":
		return ParsePriority(s), nil
	}
	if n, err := strconv.Atoi(strings.TrimSpace(s)); err == nil && Priority(n).IsValid() {
		return Priority(n), nil
	}
	return 0, fmt.Errorf("%w: invalid priority %q: use high, medium, low or 1-3", ErrValidation, s)
}

// IsValid reports whether p is within 1..3.
func (p Priority) IsValid() bool {
	return p >= PriorityHigh && p <= PriorityLow
}

func (p Priority) String() string {
	switch p {
	case PriorityHigh:
		return "High"
	case PriorityMedium:
		return "Medium"
	case PriorityLow:
		return "Low"
	default:
		return strconv.Itoa(int(p))
	}
}

// Comment is a single entry in a task's append-only comment log.
type Comment struct {
	User string    `json:"user,omitempty"`
	Text string    `json:"text"`
	Time time.Time `json:"time,omitempty"`
}

// Task is the sole durable entity.
//
// ID is assigned once at creation and never changes. Revision is bumped by
// stores that support optimistic concurrency; stores without it leave the
// value untouched on read.
type Task struct {
	ID            int64      `json:"id"`
	Title         string     `json:"title"`
	AssignedTo    string     `json:"assigned_to"`
	StartDate     *time.Time `json:"start_date,omitempty"`
	DueDate       *time.Time `json:"due_date,omitempty"`
	CompletedDate *time.Time `json:"completed_date,omitempty"`
	Status        Status     `json:"status"`
	Priority      Priority   `json:"priority"`
	HoursSpent    float64    `json:"hours_spent"`
	Description   string     `json:"description,omitempty"`
	Comments      []Comment  `json:"comments,omitempty"`
	ExternalLink  string     `json:"external_link,omitempty"`
	CreatedBy     string     `json:"created_by"`
	LastModified  time.Time  `json:"last_modified"`
	CreatedAt     time.Time  `json:"created_at"`
	Revision      int64      `json:"revision"`
}

// NewID derives a task identifier from the creation time. Two tasks created
// in the same millisecond collide, so stores reject duplicates.
func NewID(now time.Time) int64 {
	return now.UnixMilli()
}

// IsOverdue reports whether the task is past its due date and still open.
func (t *Task) IsOverdue(now time.Time) bool {
	if t.DueDate == nil {
		return false
	}
	if t.Status == StatusCompleted || t.Status == StatusArchived {
		return false
	}
	today := truncateDay(now)
	return truncateDay(*t.DueDate).Before(today)
}

// IsOpen reports whether work on the task is still expected.
func (t *Task) IsOpen() bool {
	return t.Status != StatusCompleted && t.Status != StatusArchived
}

// DueIn returns a short human description of the time remaining until the
// due date, e.g. "Due today" or "Overdue by 3 days".
func (t *Task) DueIn(now time.Time) string {
	if t.DueDate == nil {
		return "No due date"
	}

	days := int(truncateDay(*t.DueDate).Sub(truncateDay(now)).Hours() / 24)
	switch {
	case days < 0:
		return "Overdue by " + strconv.Itoa(-days) + " days"
	case days == 0:
		return "Due today"
	case days == 1:
		return "Due tomorrow"
	default:
		return "Due in " + strconv.Itoa(days) + " days"
	}
}

// truncateDay maps t to midnight UTC of its own calendar day so that dates
// read from the store compare cleanly against wall-clock times.
func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
