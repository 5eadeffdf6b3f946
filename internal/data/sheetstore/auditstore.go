package sheetstore

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/colonyops/taskflow/internal/core/audit"
	"github.com/colonyops/taskflow/internal/core/task"
)

// AuditColumns is the header of the notifications tab.
var AuditColumns = []string{"ID", "Timestamp", "Task ID", "Title", "User", "Action", "Details", "Read"}

const (
	auditColID = iota
	auditColTimestamp
	auditColTaskID
	auditColTitle
	auditColUser
	auditColAction
	auditColDetails
	auditColRead
)

// AuditStore implements audit.Store over the notifications tab.
type AuditStore struct {
	grid Grid
	tab  string
}

var _ audit.Store = (*AuditStore)(nil)

func NewAuditStore(grid Grid, tab string) *AuditStore {
	return &AuditStore{grid: grid, tab: tab}
}

func (s *AuditStore) Init(ctx context.Context) error {
	if err := ensureHeader(ctx, s.grid, s.tab, AuditColumns); err != nil {
		return fmt.Errorf("init %s tab: %w", s.tab, err)
	}
	return nil
}

// Append adds a row with the next free ID.
func (s *AuditStore) Append(ctx context.Context, e audit.Entry) (int64, error) {
	ids, err := s.grid.ReadColumn(ctx, s.tab, auditColID)
	if err != nil {
		return 0, fmt.Errorf("scan %s ids: %w", s.tab, err)
	}

	var maxID int64
	for _, c := range ids[min(1, len(ids)):] {
		maxID = max(maxID, task.ParseID(c))
	}
	e.ID = maxID + 1

	if err := s.grid.AppendRow(ctx, s.tab, encodeEntry(e)); err != nil {
		return 0, fmt.Errorf("append audit entry: %w", err)
	}
	return e.ID, nil
}

// List returns matching entries, newest first.
func (s *AuditStore) List(ctx context.Context, filter audit.ListFilter) ([]audit.Entry, error) {
	entries, err := s.readAll(ctx)
	if err != nil {
		return nil, err
	}

	out := entries[:0]
	for _, e := range entries {
		if filter.User != "" && !strings.EqualFold(e.User, filter.User) {
			continue
		}
		if filter.UnreadOnly && e.Read {
			continue
		}
		out = append(out, e)
	}

	slices.SortStableFunc(out, func(a, b audit.Entry) int {
		if c := b.Timestamp.Compare(a.Timestamp); c != 0 {
			return c
		}
		return int(b.ID - a.ID)
	})

	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// MarkRead re-resolves the entry by ID and rewrites its row.
func (s *AuditStore) MarkRead(ctx context.Context, id int64) error {
	ids, err := s.grid.ReadColumn(ctx, s.tab, auditColID)
	if err != nil {
		return fmt.Errorf("scan %s ids: %w", s.tab, err)
	}
	pos := findRow(ids, id, task.ParseID)
	if pos < 0 {
		return fmt.Errorf("%w: %d", audit.ErrNotFound, id)
	}

	row, err := s.grid.ReadRow(ctx, s.tab, pos)
	if err != nil {
		return fmt.Errorf("read audit entry %d: %w", id, err)
	}
	e := decodeEntry(row)
	if e.Read {
		return nil
	}
	e.Read = true

	if err := s.grid.WriteRow(ctx, s.tab, pos, encodeEntry(e)); err != nil {
		return fmt.Errorf("write audit entry %d: %w", id, err)
	}
	return nil
}

func (s *AuditStore) CountUnread(ctx context.Context) (int64, error) {
	entries, err := s.readAll(ctx)
	if err != nil {
		return 0, err
	}
	var n int64
	for _, e := range entries {
		if !e.Read {
			n++
		}
	}
	return n, nil
}

func (s *AuditStore) readAll(ctx context.Context) ([]audit.Entry, error) {
	rows, err := s.grid.ReadAll(ctx, s.tab)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.tab, err)
	}
	if len(rows) <= 1 {
		return nil, nil
	}

	entries := make([]audit.Entry, 0, len(rows)-1)
	for _, row := range rows[1:] {
		if isBlank(row) {
			continue
		}
		entries = append(entries, decodeEntry(row))
	}
	return entries, nil
}

func encodeEntry(e audit.Entry) []string {
	row := make([]string, len(AuditColumns))
	row[auditColID] = strconv.FormatInt(e.ID, 10)
	row[auditColTimestamp] = formatTimestamp(e.Timestamp)
	row[auditColTaskID] = strconv.FormatInt(e.TaskID, 10)
	row[auditColTitle] = e.Title
	row[auditColUser] = e.User
	row[auditColAction] = string(e.Action)
	row[auditColDetails] = e.Details
	row[auditColRead] = strconv.FormatBool(e.Read)
	return row
}

func decodeEntry(row []string) audit.Entry {
	r := pad(row, len(AuditColumns))
	read, _ := strconv.ParseBool(strings.TrimSpace(r[auditColRead]))
	return audit.Entry{
		ID:        task.ParseID(r[auditColID]),
		Timestamp: parseTimestamp(r[auditColTimestamp]),
		TaskID:    task.ParseID(r[auditColTaskID]),
		Title:     r[auditColTitle],
		User:      r[auditColUser],
		Action:    audit.Action(strings.TrimSpace(r[auditColAction])),
		Details:   r[auditColDetails],
		Read:      read,
	}
}

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(task.DateTimeFormat)
}

func parseTimestamp(s string) time.Time {
	t, err := time.ParseInLocation(task.DateTimeFormat, strings.TrimSpace(s), time.UTC)
	if err != nil {
		return time.Time{}
	}
	return t
}
