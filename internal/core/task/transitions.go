package task

import "fmt"

// transitions is the informal lifecycle:
//
//	Assigned -> In Progress -> {On Hold <-> In Progress} -> Completed -> Archived
//
// Completed may be re-opened. Any open state may be archived directly.
var transitions = map[Status][]Status{
	StatusAssigned:   {StatusInProgress, StatusOnHold, StatusCompleted, StatusArchived},
	StatusInProgress: {StatusOnHold, StatusCompleted, StatusArchived},
	StatusOnHold:     {StatusInProgress, StatusCompleted, StatusArchived},
	StatusCompleted:  {StatusInProgress, StatusArchived},
	StatusArchived:   {},
}

// CanTransition reports whether moving from one status to another follows
// the lifecycle. Writing the current status again is always allowed.
func CanTransition(from, to Status) bool {
	if from == to {
		return true
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// CheckTransition returns ErrInvalidTransition when CanTransition is false.
func CheckTransition(from, to Status) error {
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	return nil
}
