package stores

import (
	"context"
	"fmt"

	"github.com/colonyops/taskflow/internal/core/audit"
	"github.com/colonyops/taskflow/internal/data/db"
)

// AuditStore implements audit.Store using SQLite.
type AuditStore struct {
	db *db.DB
}

var _ audit.Store = (*AuditStore)(nil)

// NewAuditStore creates a new SQLite-backed audit log.
func NewAuditStore(db *db.DB) *AuditStore {
	return &AuditStore{db: db}
}

// Append persists an entry and returns its auto-generated ID.
func (s *AuditStore) Append(ctx context.Context, e audit.Entry) (int64, error) {
	id, err := s.db.Queries().InsertAuditLog(ctx, db.InsertAuditLogParams{
		CreatedAt: toUnixNano(e.Timestamp),
		TaskID:    e.TaskID,
		Title:     e.Title,
		User:      e.User,
		Action:    string(e.Action),
		Details:   e.Details,
	})
	if err != nil {
		return 0, fmt.Errorf("insert audit entry: %w", err)
	}
	return id, nil
}

// List returns entries matching the filter, newest first.
func (s *AuditStore) List(ctx context.Context, filter audit.ListFilter) ([]audit.Entry, error) {
	rows, err := s.db.Queries().ListAuditLog(ctx, db.ListAuditLogParams{
		User:       filter.User,
		UnreadOnly: filter.UnreadOnly,
		Limit:      filter.Limit,
	})
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}

	result := make([]audit.Entry, 0, len(rows))
	for _, row := range rows {
		result = append(result, rowToEntry(row))
	}
	return result, nil
}

// MarkRead flags an entry as read. Marking an already read entry is a no-op.
func (s *AuditStore) MarkRead(ctx context.Context, id int64) error {
	n, err := s.db.Queries().MarkAuditLogRead(ctx, id)
	if err != nil {
		return fmt.Errorf("mark audit entry read: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %d", audit.ErrNotFound, id)
	}
	return nil
}

// CountUnread returns the number of unread entries.
func (s *AuditStore) CountUnread(ctx context.Context) (int64, error) {
	n, err := s.db.Queries().CountUnreadAuditLog(ctx)
	if err != nil {
		return 0, fmt.Errorf("count unread audit entries: %w", err)
	}
	return n, nil
}

func rowToEntry(row db.AuditLog) audit.Entry {
	return audit.Entry{
		ID:        row.ID,
		Timestamp: fromUnixNano(row.CreatedAt),
		TaskID:    row.TaskID,
		Title:     row.Title,
		User:      row.User,
		Action:    audit.Action(row.Action),
		Details:   row.Details,
		Read:      row.IsRead,
	}
}
