package sheetstore

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/colonyops/taskflow/internal/core/task"
)

// TaskStore implements task.Store over a spreadsheet tab.
type TaskStore struct {
	grid Grid
	tab  string
	log  zerolog.Logger
}

var _ task.Store = (*TaskStore)(nil)

func NewTaskStore(grid Grid, tab string, log zerolog.Logger) *TaskStore {
	return &TaskStore{
		grid: grid,
		tab:  tab,
		log:  log.With().Str("component", "sheetstore").Str("tab", tab).Logger(),
	}
}

// Init creates the tab with the current header when it is missing or empty.
func (s *TaskStore) Init(ctx context.Context) error {
	if err := ensureHeader(ctx, s.grid, s.tab, task.Columns); err != nil {
		return fmt.Errorf("init %s tab: %w", s.tab, err)
	}
	return nil
}

// List reads every data row. Legacy layouts are upgraded in memory so reads
// keep working before the sheet itself is migrated. Blank rows are skipped.
func (s *TaskStore) List(ctx context.Context) ([]task.Task, error) {
	rows, err := s.grid.ReadAll(ctx, s.tab)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.tab, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	layout, err := task.DetectLayout(rows[0])
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.tab, err)
	}

	tasks := make([]task.Task, 0, len(rows)-1)
	for _, row := range rows[1:] {
		if isBlank(row) {
			continue
		}
		tasks = append(tasks, task.DecodeRow(layout.Migrate(row)))
	}
	return tasks, nil
}

// Create appends a row for t. Returns task.ErrDuplicate when the ID exists.
func (s *TaskStore) Create(ctx context.Context, t task.Task) error {
	if t.ID <= 0 {
		return fmt.Errorf("%w: id must be positive", task.ErrValidation)
	}
	if err := s.requireCurrent(ctx); err != nil {
		return err
	}

	ids, err := s.grid.ReadColumn(ctx, s.tab, task.ColID)
	if err != nil {
		return fmt.Errorf("scan %s ids: %w", s.tab, err)
	}
	if findRow(ids, t.ID, task.ParseID) >= 0 {
		return fmt.Errorf("%w: %d", task.ErrDuplicate, t.ID)
	}

	if err := s.grid.AppendRow(ctx, s.tab, task.EncodeRow(t)); err != nil {
		return fmt.Errorf("append task %d: %w", t.ID, err)
	}
	return nil
}

// Update runs the re-resolve protocol:
//
//  1. scan the ID column fresh to find the row position
//  2. fetch that full row
//  3. merge the patch into it
//  4. stamp Last Modified
//  5. write the whole row back in one call
//
// Nothing is written when the ID is not found or the expected revision is
// stale. The check and the write are separate calls, so a concurrent editor
// can still slip in between them.
func (s *TaskStore) Update(ctx context.Context, id int64, patch task.Patch, now time.Time) (task.Task, error) {
	if err := s.requireCurrent(ctx); err != nil {
		return task.Task{}, err
	}

	ids, err := s.grid.ReadColumn(ctx, s.tab, task.ColID)
	if err != nil {
		return task.Task{}, fmt.Errorf("scan %s ids: %w", s.tab, err)
	}
	pos := findRow(ids, id, task.ParseID)
	if pos < 0 {
		return task.Task{}, fmt.Errorf("%w: %d", task.ErrNotFound, id)
	}

	row, err := s.grid.ReadRow(ctx, s.tab, pos)
	if err != nil {
		return task.Task{}, fmt.Errorf("read task %d: %w", id, err)
	}
	current := task.DecodeRow(row)
	if current.ID != id {
		// The sheet was re-sorted between the scan and the fetch.
		return task.Task{}, fmt.Errorf("%w: row %d moved while updating task %d", task.ErrConflict, pos, id)
	}
	if err := patch.CheckRevision(current.Revision); err != nil {
		return task.Task{}, err
	}

	merged := task.Touch(patch.Apply(current), now)
	merged.Revision = current.Revision + 1

	if err := s.grid.WriteRow(ctx, s.tab, pos, task.EncodeRow(merged)); err != nil {
		return task.Task{}, fmt.Errorf("write task %d: %w", id, err)
	}

	s.log.Debug().Int64("id", id).Int("row", pos).Int64("revision", merged.Revision).Msg("task row written")
	return merged, nil
}

func (s *TaskStore) requireCurrent(ctx context.Context) error {
	header, err := s.grid.ReadRow(ctx, s.tab, 0)
	if err != nil {
		return fmt.Errorf("read %s header: %w", s.tab, err)
	}
	layout, err := task.DetectLayout(header)
	if err != nil {
		return fmt.Errorf("%s header: %w", s.tab, err)
	}
	if !layout.IsCurrent() {
		return fmt.Errorf("%s is layout %s: %w", s.tab, layout.Name, ErrLayoutNotCurrent)
	}
	return nil
}
