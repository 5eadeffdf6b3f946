// Package timelog records timer start/stop events per task and derives the
// accumulated hours from them.
package timelog

import (
	"context"
	"errors"
	"slices"
	"time"
)

var (
	// ErrAlreadyRunning is returned when starting a timer that is running.
	ErrAlreadyRunning = errors.New("timer already running")
	// ErrNotRunning is returned when stopping a timer that is not running.
	ErrNotRunning = errors.New("timer not running")
)

// Kind is the type of timer event.
type Kind string

const (
	KindStart Kind = "start"
	KindStop  Kind = "stop"
)

// Event is a single timer transition for a task.
type Event struct {
	TaskID int64     `json:"task_id"`
	User   string    `json:"user"`
	Kind   Kind      `json:"kind"`
	At     time.Time `json:"at"`
}

// Store persists timer events.
type Store interface {
	Append(ctx context.Context, e Event) error
	// ListByTask returns all events for a task, oldest first.
	ListByTask(ctx context.Context, taskID int64) ([]Event, error)
}

// Hours scans the event log and sums the closed start/stop intervals.
//
// Each start is paired with the next stop. A start while already running is
// ignored, as is a stop while not running. A trailing start with no stop
// does not contribute.
func Hours(events []Event) float64 {
	sorted := sortByTime(events)

	var (
		total   time.Duration
		started *time.Time
	)
	for _, e := range sorted {
		switch e.Kind {
		case KindStart:
			if started == nil {
				at := e.At
				started = &at
			}
		case KindStop:
			if started != nil {
				if d := e.At.Sub(*started); d > 0 {
					total += d
				}
				started = nil
			}
		}
	}

	return total.Hours()
}

// Running returns the start time of an open interval, if any.
func Running(events []Event) (time.Time, bool) {
	sorted := sortByTime(events)

	var (
		started time.Time
		running bool
	)
	for _, e := range sorted {
		switch e.Kind {
		case KindStart:
			if !running {
				started, running = e.At, true
			}
		case KindStop:
			running = false
		}
	}
	return started, running
}

func sortByTime(events []Event) []Event {
	sorted := slices.Clone(events)
	slices.SortStableFunc(sorted, func(a, b Event) int {
		return a.At.Compare(b.At)
	})
	return sorted
}
