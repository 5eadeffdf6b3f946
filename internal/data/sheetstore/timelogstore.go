package sheetstore

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/colonyops/taskflow/internal/core/task"
	"github.com/colonyops/taskflow/internal/core/timelog"
)

// TimeLogColumns is the header of the time log tab.
var TimeLogColumns = []string{"Task ID", "User", "Kind", "At"}

// TimelogStore implements timelog.Store over the time log tab. Rows are only
// ever appended.
type TimelogStore struct {
	grid Grid
	tab  string
}

var _ timelog.Store = (*TimelogStore)(nil)

func NewTimelogStore(grid Grid, tab string) *TimelogStore {
	return &TimelogStore{grid: grid, tab: tab}
}

func (s *TimelogStore) Init(ctx context.Context) error {
	if err := ensureHeader(ctx, s.grid, s.tab, TimeLogColumns); err != nil {
		return fmt.Errorf("init %s tab: %w", s.tab, err)
	}
	return nil
}

func (s *TimelogStore) Append(ctx context.Context, e timelog.Event) error {
	row := []string{
		strconv.FormatInt(e.TaskID, 10),
		e.User,
		string(e.Kind),
		formatTimestamp(e.At),
	}
	if err := s.grid.AppendRow(ctx, s.tab, row); err != nil {
		return fmt.Errorf("append time event: %w", err)
	}
	return nil
}

func (s *TimelogStore) ListByTask(ctx context.Context, taskID int64) ([]timelog.Event, error) {
	rows, err := s.grid.ReadAll(ctx, s.tab)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.tab, err)
	}

	var events []timelog.Event
	for _, row := range rows[min(1, len(rows)):] {
		r := pad(row, len(TimeLogColumns))
		if task.ParseID(r[0]) != taskID {
			continue
		}
		events = append(events, timelog.Event{
			TaskID: taskID,
			User:   r[1],
			Kind:   timelog.Kind(strings.TrimSpace(r[2])),
			At:     parseTimestamp(r[3]),
		})
	}

	slices.SortStableFunc(events, func(a, b timelog.Event) int {
		return a.At.Compare(b.At)
	})
	return events, nil
}
