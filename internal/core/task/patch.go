package task

import (
	"fmt"
	"strings"
	"time"
)

// Patch is a partial update. Nil fields are left untouched. Comments are
// append-only: AddComments is concatenated onto the stored log and there is
// no way to remove or rewrite an existing entry.
//
// ClearCompletedDate distinguishes "set to null" from "leave alone" for the
// only nullable date that the application ever resets (re-opening a task).
type Patch struct {
	Title              *string    `json:"title,omitempty"`
	AssignedTo         *string    `json:"assigned_to,omitempty"`
	StartDate          *time.Time `json:"start_date,omitempty"`
	DueDate            *time.Time `json:"due_date,omitempty"`
	CompletedDate      *time.Time `json:"completed_date,omitempty"`
	ClearCompletedDate bool       `json:"clear_completed_date,omitempty"`
	Status             *Status    `json:"status,omitempty"`
	Priority           *Priority  `json:"priority,omitempty"`
	HoursSpent         *float64   `json:"hours_spent,omitempty"`
	Description        *string    `json:"description,omitempty"`
	AddComments        []Comment  `json:"add_comments,omitempty"`
	ExternalLink       *string    `json:"external_link,omitempty"`

	// ExpectedRevision, when set, makes the update conditional on the
	// stored revision still matching.
	ExpectedRevision *int64 `json:"expected_revision,omitempty"`
}

// IsEmpty reports whether the patch changes nothing.
func (p Patch) IsEmpty() bool {
	return p.Title == nil &&
		p.AssignedTo == nil &&
		p.StartDate == nil &&
		p.DueDate == nil &&
		p.CompletedDate == nil &&
		!p.ClearCompletedDate &&
		p.Status == nil &&
		p.Priority == nil &&
		p.HoursSpent == nil &&
		p.Description == nil &&
		len(p.AddComments) == 0 &&
		p.ExternalLink == nil
}

// Validate checks the values carried by the patch.
func (p Patch) Validate() error {
	if p.Title != nil && strings.TrimSpace(*p.Title) == "" {
		return fmt.Errorf("%w: title cannot be empty", ErrValidation)
	}
	if p.Status != nil && !p.Status.IsValid() {
		return fmt.Errorf("%w: unknown status %q", ErrValidation, *p.Status)
	}
	if p.Priority != nil && !p.Priority.IsValid() {
		return fmt.Errorf("%w: priority must be 1, 2 or 3", ErrValidation)
	}
	if p.HoursSpent != nil && *p.HoursSpent < 0 {
		return fmt.Errorf("%w: hours cannot be negative", ErrValidation)
	}
	for _, c := range p.AddComments {
		if strings.TrimSpace(c.Text) == "" {
			return fmt.Errorf("%w: comment text cannot be empty", ErrValidation)
		}
	}
	return nil
}

// Apply merges the patch into t and returns the result. LastModified and
// Revision are owned by the store and are not touched here.
func (p Patch) Apply(t Task) Task {
	if p.Title != nil {
		t.Title = *p.Title
	}
	if p.AssignedTo != nil {
		t.AssignedTo = *p.AssignedTo
	}
	if p.StartDate != nil {
		t.StartDate = dateOnly(*p.StartDate)
	}
	if p.DueDate != nil {
		t.DueDate = dateOnly(*p.DueDate)
	}
	if p.ClearCompletedDate {
		t.CompletedDate = nil
	}
	if p.CompletedDate != nil {
		t.CompletedDate = dateOnly(*p.CompletedDate)
	}
	if p.Status != nil {
		t.Status = *p.Status
	}
	if p.Priority != nil {
		t.Priority = *p.Priority
	}
	if p.HoursSpent != nil {
		t.HoursSpent = *p.HoursSpent
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if len(p.AddComments) > 0 {
		merged := make([]Comment, 0, len(t.Comments)+len(p.AddComments))
		merged = append(merged, t.Comments...)
		merged = append(merged, p.AddComments...)
		t.Comments = merged
	}
	if p.ExternalLink != nil {
		t.ExternalLink = *p.ExternalLink
	}
	return t
}

// CheckRevision returns ErrConflict when the patch expects a revision other
// than the stored one.
func (p Patch) CheckRevision(stored int64) error {
	if p.ExpectedRevision != nil && *p.ExpectedRevision != stored {
		return fmt.Errorf("%w: expected revision %d, stored %d", ErrConflict, *p.ExpectedRevision, stored)
	}
	return nil
}

// Touch stamps LastModified with now, never moving it backwards.
func Touch(t Task, now time.Time) Task {
	now = now.UTC().Truncate(time.Second)
	if now.Before(t.LastModified) {
		now = t.LastModified
	}
	t.LastModified = now
	return t
}

func dateOnly(t time.Time) *time.Time {
	d := truncateDay(t)
	return &d
}
