package task

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Column indexes into the fixed row schema.
const (
	ColID = iota
	ColTitle
	ColAssignedTo
	ColStartDate
	ColDueDate
	ColCompletedDate
	ColStatus
	ColPriority
	ColHoursSpent
	ColDescription
	ColComments
	ColExternalLink
	ColCreatedBy
	ColLastModified
	ColCreatedAt
	ColRevision
)

// Columns is the header of the current row schema, in storage order.
var Columns = []string{
	"ID",
	"Title",
	"Assigned To",
	"Start Date",
	"Due Date",
	"Completed Date",
	"Status",
	"Priority",
	"Time Spent (Hrs)",
	"Description",
	"Comments",
	"External Link",
	"Created By",
	"Last Modified",
	"Created At",
	"Revision",
}

// Storage formats for date and timestamp cells. Timestamps are UTC.
const (
	DateFormat     = "2006-01-02"
	DateTimeFormat = "2006-01-02 15:04:05"
)

// Normalize pads a short row with empty cells and truncates a long one so
// that it always has exactly len(Columns) cells. Hand-edited sheets often
// drop trailing empty cells.
func Normalize(row []string) []string {
	out := make([]string, len(Columns))
	copy(out, row)
	return out
}

// DecodeRow converts a positional row into a Task. It never fails: each
// malformed cell degrades to its documented default.
//
//	ID            -> 0
//	Priority      -> 3 (Low)
//	dates         -> nil
//	timestamps    -> zero time
//	Time Spent    -> 0.0
//	Revision      -> 0
//	Comments      -> JSON array, else one comment per non-empty line
func DecodeRow(row []string) Task {
	r := Normalize(row)

	id := ParseID(r[ColID])

	hours, err := strconv.ParseFloat(strings.TrimSpace(r[ColHoursSpent]), 64)
	if err != nil || hours < 0 {
		hours = 0
	}

	rev, err := parseInt(r[ColRevision])
	if err != nil || rev < 0 {
		rev = 0
	}

	return Task{
		ID:            id,
		Title:         strings.TrimSpace(r[ColTitle]),
		AssignedTo:    strings.TrimSpace(r[ColAssignedTo]),
		StartDate:     ParseDate(r[ColStartDate]),
		DueDate:       ParseDate(r[ColDueDate]),
		CompletedDate: ParseDate(r[ColCompletedDate]),
		Status:        ParseStatus(r[ColStatus]),
		Priority:      ParsePriority(r[ColPriority]),
		HoursSpent:    hours,
		Description:   r[ColDescription],
		Comments:      DecodeComments(r[ColComments]),
		ExternalLink:  strings.TrimSpace(r[ColExternalLink]),
		CreatedBy:     strings.TrimSpace(r[ColCreatedBy]),
		LastModified:  parseDateTime(r[ColLastModified]),
		CreatedAt:     parseDateTime(r[ColCreatedAt]),
		Revision:      rev,
	}
}

// EncodeRow converts a Task into a row in exact column order.
func EncodeRow(t Task) []string {
	row := make([]string, len(Columns))
	row[ColID] = strconv.FormatInt(t.ID, 10)
	row[ColTitle] = t.Title
	row[ColAssignedTo] = t.AssignedTo
	row[ColStartDate] = FormatDate(t.StartDate)
	row[ColDueDate] = FormatDate(t.DueDate)
	row[ColCompletedDate] = FormatDate(t.CompletedDate)
	row[ColStatus] = string(t.Status)
	row[ColPriority] = strconv.Itoa(int(t.Priority))
	row[ColHoursSpent] = strconv.FormatFloat(t.HoursSpent, 'f', -1, 64)
	row[ColDescription] = t.Description
	row[ColComments] = EncodeComments(t.Comments)
	row[ColExternalLink] = t.ExternalLink
	row[ColCreatedBy] = t.CreatedBy
	row[ColLastModified] = formatDateTime(t.LastModified)
	row[ColCreatedAt] = formatDateTime(t.CreatedAt)
	row[ColRevision] = strconv.FormatInt(t.Revision, 10)
	return row
}

// DecodeComments reads a comment log cell. Current rows hold a JSON array;
// older rows hold newline-delimited free text.
func DecodeComments(cell string) []Comment {
	cell = strings.TrimSpace(cell)
	if cell == "" {
		return nil
	}

	if strings.HasPrefix(cell, "[") {
		var comments []Comment
		if err := json.Unmarshal([]byte(cell), &comments); err == nil {
			return comments
		}
	}

	var comments []Comment
	for _, line := range strings.Split(cell, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		comments = append(comments, Comment{Text: line})
	}
	return comments
}

// EncodeComments writes a comment log cell as a JSON array.
func EncodeComments(comments []Comment) string {
	if len(comments) == 0 {
		return ""
	}
	data, err := json.Marshal(comments)
	if err != nil {
		// Comment only holds strings and a time; marshal cannot fail.
		return ""
	}
	return string(data)
}

// ParseDate parses a date cell, accepting a bare date or a timestamp.
// Returns nil for empty or unparsable cells.
func ParseDate(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range []string{DateFormat, DateTimeFormat, time.RFC3339, "01/02/2006", "1/2/2006"} {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			d := truncateDay(t)
			return &d
		}
	}
	return nil
}

// FormatDate formats a nullable date cell.
func FormatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(DateFormat)
}

func parseDateTime(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range []string{DateTimeFormat, time.RFC3339, DateFormat} {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

func formatDateTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(DateTimeFormat)
}

// ParseID reads an identifier cell. Malformed or empty cells yield 0, which
// never matches a real task.
func ParseID(s string) int64 {
	id, err := parseInt(s)
	if err != nil || id < 0 {
		return 0
	}
	return id
}

// parseInt accepts "42" and "42.0"; spreadsheets often export whole numbers
// as floats.
func parseInt(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if f != float64(int64(f)) {
		return 0, fmt.Errorf("not an integer: %q", s)
	}
	return int64(f), nil
}

// Validate checks a task before it is created.
func (t *Task) Validate() error {
	if t.ID <= 0 {
		return fmt.Errorf("%w: id must be positive", ErrValidation)
	}
	if strings.TrimSpace(t.Title) == "" {
		return fmt.Errorf("%w: title is required", ErrValidation)
	}
	if strings.TrimSpace(t.AssignedTo) == "" {
		return fmt.Errorf("%w: assignee is required", ErrValidation)
	}
	if !t.Status.IsValid() {
		return fmt.Errorf("%w: unknown status %q", ErrValidation, t.Status)
	}
	if !t.Priority.IsValid() {
		return fmt.Errorf("%w: priority must be 1, 2 or 3", ErrValidation)
	}
	if t.HoursSpent < 0 {
		return fmt.Errorf("%w: hours cannot be negative", ErrValidation)
	}
	return nil
}
