// Package audit defines the append-only notification and audit log written
// on every task mutation.
package audit

import (
	"context"
	"time"
)

// Action classifies what happened to a task.
type Action string

const (
	ActionCreated       Action = "created"
	ActionUpdated       Action = "updated"
	ActionStatusChanged Action = "status_changed"
	ActionCommented     Action = "commented"
	ActionArchived      Action = "archived"
	ActionTimerStarted  Action = "timer_started"
	ActionTimerStopped  Action = "timer_stopped"
)

// Entry is a single audit record. Entries are written once; only the Read
// flag changes afterwards.
type Entry struct {
	ID        int64     `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	TaskID    int64     `json:"task_id"`
	Title     string    `json:"title"`
	User      string    `json:"user"`
	Action    Action    `json:"action"`
	Details   string    `json:"details,omitempty"`
	Read      bool      `json:"read"`
}

// ListFilter controls which entries are returned by List.
type ListFilter struct {
	User       string // empty means all users
	UnreadOnly bool
	Limit      int // 0 means unlimited
}

// Store persists audit entries.
type Store interface {
	// Append writes a new entry and returns its ID.
	Append(ctx context.Context, e Entry) (int64, error)
	// List returns entries newest first.
	List(ctx context.Context, filter ListFilter) ([]Entry, error)
	// MarkRead sets the read flag. Returns ErrNotFound for unknown IDs.
	MarkRead(ctx context.Context, id int64) error
	// CountUnread returns the number of unread entries.
	CountUnread(ctx context.Context) (int64, error)
}
