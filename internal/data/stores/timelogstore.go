package stores

import (
	"context"
	"fmt"

	"github.com/colonyops/taskflow/internal/core/timelog"
	"github.com/colonyops/taskflow/internal/data/db"
)

// TimelogStore implements timelog.Store using SQLite.
type TimelogStore struct {
	db *db.DB
}

var _ timelog.Store = (*TimelogStore)(nil)

func NewTimelogStore(db *db.DB) *TimelogStore {
	return &TimelogStore{db: db}
}

func (s *TimelogStore) Append(ctx context.Context, e timelog.Event) error {
	err := s.db.Queries().InsertTimeEvent(ctx, db.InsertTimeEventParams{
		TaskID: e.TaskID,
		User:   e.User,
		Kind:   string(e.Kind),
		At:     toUnixNano(e.At),
	})
	if err != nil {
		return fmt.Errorf("insert time event: %w", err)
	}
	return nil
}

func (s *TimelogStore) ListByTask(ctx context.Context, taskID int64) ([]timelog.Event, error) {
	rows, err := s.db.Queries().ListTimeEventsByTask(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("list time events: %w", err)
	}

	events := make([]timelog.Event, 0, len(rows))
	for _, row := range rows {
		events = append(events, timelog.Event{
			TaskID: row.TaskID,
			User:   row.User,
			Kind:   timelog.Kind(row.Kind),
			At:     fromUnixNano(row.At),
		})
	}
	return events, nil
}
