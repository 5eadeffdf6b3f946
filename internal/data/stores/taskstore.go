package stores

import (
	"context"
	"fmt"
	"time"

	"github.com/colonyops/taskflow/internal/core/task"
	"github.com/colonyops/taskflow/internal/data/db"
)

const (
	busyRetries = 3
	busyWait    = 50 * time.Millisecond
)

// TaskStore implements task.Store using SQLite.
type TaskStore struct {
	db *db.DB
}

var _ task.Store = (*TaskStore)(nil)

// NewTaskStore creates a new SQLite-backed task store.
func NewTaskStore(db *db.DB) *TaskStore {
	return &TaskStore{db: db}
}

// List returns every task in creation order.
func (s *TaskStore) List(ctx context.Context) ([]task.Task, error) {
	rows, err := s.db.Queries().ListTasks(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}

	tasks := make([]task.Task, 0, len(rows))
	for _, row := range rows {
		tasks = append(tasks, rowToTask(row))
	}
	return tasks, nil
}

// Create inserts a new task. Returns task.ErrDuplicate when the ID is taken.
func (s *TaskStore) Create(ctx context.Context, t task.Task) error {
	if t.ID <= 0 {
		return fmt.Errorf("%w: id must be positive", task.ErrValidation)
	}

	err := s.db.Queries().InsertTask(ctx, taskToRow(t))
	if err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("%w: %d", task.ErrDuplicate, t.ID)
		}
		return fmt.Errorf("insert task: %w", err)
	}
	return nil
}

// Update re-resolves the row by ID, merges the patch and writes the whole row
// back inside one transaction. The stored revision guards the write so a
// concurrent writer surfaces as task.ErrConflict instead of a lost update.
func (s *TaskStore) Update(ctx context.Context, id int64, patch task.Patch, now time.Time) (task.Task, error) {
	var (
		updated task.Task
		err     error
	)

	wait := busyWait
	for attempt := 0; attempt < busyRetries; attempt++ {
		updated, err = s.update(ctx, id, patch, now)
		if !IsBusyError(err) {
			break
		}
		time.Sleep(wait)
		wait *= 2
	}

	return updated, err
}

func (s *TaskStore) update(ctx context.Context, id int64, patch task.Patch, now time.Time) (task.Task, error) {
	var updated task.Task

	err := s.db.WithTx(ctx, func(q *db.Queries) error {
		row, err := q.GetTask(ctx, id)
		if err != nil {
			if IsNotFoundError(err) {
				return fmt.Errorf("%w: %d", task.ErrNotFound, id)
			}
			return fmt.Errorf("get task: %w", err)
		}

		current := rowToTask(row)
		if err := patch.CheckRevision(current.Revision); err != nil {
			return err
		}

		merged := task.Touch(patch.Apply(current), now)

		n, err := q.UpdateTask(ctx, taskToRow(merged))
		if err != nil {
			return fmt.Errorf("update task: %w", err)
		}
		if n == 0 {
			return fmt.Errorf("%w: revision %d is stale", task.ErrConflict, current.Revision)
		}

		merged.Revision = current.Revision + 1
		updated = merged
		return nil
	})
	if err != nil {
		return task.Task{}, err
	}

	return updated, nil
}

func rowToTask(row db.Task) task.Task {
	return task.Task{
		ID:            row.ID,
		Title:         row.Title,
		AssignedTo:    row.AssignedTo,
		StartDate:     task.ParseDate(fromNullString(row.StartDate)),
		DueDate:       task.ParseDate(fromNullString(row.DueDate)),
		CompletedDate: task.ParseDate(fromNullString(row.CompletedDate)),
		Status:        task.ParseStatus(row.Status),
		Priority:      task.ParsePriority(fmt.Sprint(row.Priority)),
		HoursSpent:    row.HoursSpent,
		Description:   row.Description,
		Comments:      task.DecodeComments(row.Comments),
		ExternalLink:  row.ExternalLink,
		CreatedBy:     row.CreatedBy,
		LastModified:  fromUnixNano(row.LastModified),
		CreatedAt:     fromUnixNano(row.CreatedAt),
		Revision:      row.Revision,
	}
}

func taskToRow(t task.Task) db.Task {
	return db.Task{
		ID:            t.ID,
		Title:         t.Title,
		AssignedTo:    t.AssignedTo,
		StartDate:     toNullString(task.FormatDate(t.StartDate)),
		DueDate:       toNullString(task.FormatDate(t.DueDate)),
		CompletedDate: toNullString(task.FormatDate(t.CompletedDate)),
		Status:        string(t.Status),
		Priority:      int64(t.Priority),
		HoursSpent:    t.HoursSpent,
		Description:   t.Description,
		Comments:      task.EncodeComments(t.Comments),
		ExternalLink:  t.ExternalLink,
		CreatedBy:     t.CreatedBy,
		LastModified:  toUnixNano(t.LastModified),
		CreatedAt:     toUnixNano(t.CreatedAt),
		Revision:      t.Revision,
	}
}
