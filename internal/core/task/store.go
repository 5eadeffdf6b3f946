package task

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
)

var (
	// ErrNotFound is returned when no row carries the requested identifier.
	ErrNotFound = errors.New("task not found")
	// ErrDuplicate is returned when creating a task whose identifier exists.
	ErrDuplicate = errors.New("task id already exists")
	// ErrConflict is returned when an update carries a stale revision.
	ErrConflict = errors.New("task was modified concurrently")
	// ErrInvalidTransition is returned when strict transitions are enabled
	// and the requested status change is not allowed.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrForbidden is returned when the acting user may not touch the task.
	ErrForbidden = errors.New("not permitted")
	// ErrValidation is returned when a task or patch is malformed.
	ErrValidation = errors.New("invalid task")
)

// Store defines the backing-store contract for tasks.
//
// Implementations never cache the mapping from identifier to row location
// across calls; Update resolves it fresh every time.
type Store interface {
	// List returns the complete, schema-normalized task collection.
	// Malformed cells degrade to documented defaults and never fail the read.
	List(ctx context.Context) ([]Task, error)

	// Create appends one task. Returns ErrDuplicate without writing when the
	// identifier is already taken.
	Create(ctx context.Context, t Task) error

	// Update re-resolves the task by identifier, merges the patch into the
	// current stored row, stamps LastModified with now and writes the full
	// row back. Returns ErrNotFound without writing when the identifier is
	// missing and ErrConflict when ExpectedRevision does not match.
	Update(ctx context.Context, id int64, patch Patch, now time.Time) (Task, error)
}

// Find returns the task with the given identifier from a listed collection.
func Find(tasks []Task, id int64) (Task, bool) {
	for _, t := range tasks {
		if t.ID == id {
			return t, true
		}
	}
	return Task{}, false
}

// ListFilter narrows a task collection. Zero values match everything.
type ListFilter struct {
	Status          Status     `json:"status,omitempty"`
	AssignedTo      string     `json:"assigned_to,omitempty"`
	Priority        Priority   `json:"priority,omitempty"`
	DueFrom         *time.Time `json:"due_from,omitempty"`
	DueTo           *time.Time `json:"due_to,omitempty"`
	Search          string     `json:"search,omitempty"`
	IncludeArchived bool       `json:"include_archived,omitempty"`
}

// Match reports whether t satisfies every set criterion of the filter.
// Archived tasks are excluded unless IncludeArchived is set or the filter
// explicitly asks for the Archived status.
func (f ListFilter) Match(t Task) bool {
	if f.Status != "" {
		if t.Status != f.Status {
			return false
		}
	} else if t.Status == StatusArchived && !f.IncludeArchived {
		return false
	}

	if f.AssignedTo != "" && !strings.EqualFold(t.AssignedTo, f.AssignedTo) {
		return false
	}

	if f.Priority != 0 && t.Priority != f.Priority {
		return false
	}

	if f.DueFrom != nil || f.DueTo != nil {
		if t.DueDate == nil {
			return false
		}
		due := truncateDay(*t.DueDate)
		if f.DueFrom != nil && due.Before(truncateDay(*f.DueFrom)) {
			return false
		}
		if f.DueTo != nil && due.After(truncateDay(*f.DueTo)) {
			return false
		}
	}

	if f.Search != "" && !matchSearch(f.Search, t) {
		return false
	}

	return true
}

// Apply returns the tasks matching the filter, preserving order.
func (f ListFilter) Apply(tasks []Task) []Task {
	out := make([]Task, 0, len(tasks))
	for _, t := range tasks {
		if f.Match(t) {
			out = append(out, t)
		}
	}
	return out
}

// matchSearch treats queries containing glob metacharacters as doublestar
// patterns and everything else as a case-insensitive substring.
func matchSearch(query string, t Task) bool {
	q := strings.ToLower(query)
	fields := []string{strings.ToLower(t.Title), strings.ToLower(t.Description)}

	if strings.ContainsAny(q, "*?[{") {
		for _, f := range fields {
			if ok, err := doublestar.Match(q, f); err == nil && ok {
				return true
			}
		}
		return false
	}

	for _, f := range fields {
		if strings.Contains(f, q) {
			return true
		}
	}
	return false
}
