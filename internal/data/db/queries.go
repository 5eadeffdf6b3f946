package db

import (
	"context"
	"database/sql"
	"strings"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
	QueryContext(context.Context, string, ...any) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...any) *sql.Row
}

// Queries holds every statement the stores run.
type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

// Task mirrors a row of the tasks table.
type Task struct {
	ID            int64
	Title         string
	AssignedTo    string
	StartDate     sql.NullString
	DueDate       sql.NullString
	CompletedDate sql.NullString
	Status        string
	Priority      int64
	HoursSpent    float64
	Description   string
	Comments      string
	ExternalLink  string
	CreatedBy     string
	LastModified  int64
	CreatedAt     int64
	Revision      int64
}

const taskColumns = `id, title, assigned_to, start_date, due_date, completed_date, status,
	priority, hours_spent, description, comments, external_link, created_by,
	last_modified, created_at, revision`

func scanTask(row interface{ Scan(...any) error }) (Task, error) {
	var t Task
	err := row.Scan(
		&t.ID,
		&t.Title,
		&t.AssignedTo,
		&t.StartDate,
		&t.DueDate,
		&t.CompletedDate,
		&t.Status,
		&t.Priority,
		&t.HoursSpent,
		&t.Description,
		&t.Comments,
		&t.ExternalLink,
		&t.CreatedBy,
		&t.LastModified,
		&t.CreatedAt,
		&t.Revision,
	)
	return t, err
}

const listTasks = `SELECT ` + taskColumns + ` FROM tasks ORDER BY created_at, id`

func (q *Queries) ListTasks(ctx context.Context) ([]Task, error) {
	rows, err := q.db.QueryContext(ctx, listTasks)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var items []Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, t)
	}
	return items, rows.Err()
}

const getTask = `SELECT ` + taskColumns + ` FROM tasks WHERE id = ?`

func (q *Queries) GetTask(ctx context.Context, id int64) (Task, error) {
	return scanTask(q.db.QueryRowContext(ctx, getTask, id))
}

const insertTask = `INSERT INTO tasks (` + taskColumns + `)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

func (q *Queries) InsertTask(ctx context.Context, t Task) error {
	_, err := q.db.ExecContext(ctx, insertTask,
		t.ID,
		t.Title,
		t.AssignedTo,
		t.StartDate,
		t.DueDate,
		t.CompletedDate,
		t.Status,
		t.Priority,
		t.HoursSpent,
		t.Description,
		t.Comments,
		t.ExternalLink,
		t.CreatedBy,
		t.LastModified,
		t.CreatedAt,
		t.Revision,
	)
	return err
}

const updateTask = `UPDATE tasks SET
	title = ?, assigned_to = ?, start_date = ?, due_date = ?, completed_date = ?,
	status = ?, priority = ?, hours_spent = ?, description = ?, comments = ?,
	external_link = ?, created_by = ?, last_modified = ?, created_at = ?,
	revision = revision + 1
WHERE id = ? AND revision = ?`

// UpdateTask writes every column of t and bumps the revision. The write only
// lands when the stored revision still equals t.Revision; the number of
// affected rows is returned so callers can detect a lost race.
func (q *Queries) UpdateTask(ctx context.Context, t Task) (int64, error) {
	res, err := q.db.ExecContext(ctx, updateTask,
		t.Title,
		t.AssignedTo,
		t.StartDate,
		t.DueDate,
		t.CompletedDate,
		t.Status,
		t.Priority,
		t.HoursSpent,
		t.Description,
		t.Comments,
		t.ExternalLink,
		t.CreatedBy,
		t.LastModified,
		t.CreatedAt,
		t.ID,
		t.Revision,
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// AuditLog mirrors a row of the audit_log table.
type AuditLog struct {
	ID        int64
	CreatedAt int64
	TaskID    int64
	Title     string
	User      string
	Action    string
	Details   string
	IsRead    bool
}

type InsertAuditLogParams struct {
	CreatedAt int64
	TaskID    int64
	Title     string
	User      string
	Action    string
	Details   string
}

const insertAuditLog = `INSERT INTO audit_log (created_at, task_id, title, username, action, details)
VALUES (?, ?, ?, ?, ?, ?)
RETURNING id`

func (q *Queries) InsertAuditLog(ctx context.Context, arg InsertAuditLogParams) (int64, error) {
	var id int64
	err := q.db.QueryRowContext(ctx, insertAuditLog,
		arg.CreatedAt,
		arg.TaskID,
		arg.Title,
		arg.User,
		arg.Action,
		arg.Details,
	).Scan(&id)
	return id, err
}

type ListAuditLogParams struct {
	User       string
	UnreadOnly bool
	Limit      int
}

// ListAuditLog returns entries newest first. The WHERE clause is assembled
// from the optional filters.
func (q *Queries) ListAuditLog(ctx context.Context, arg ListAuditLogParams) ([]AuditLog, error) {
	var (
		where []string
		args  []any
	)
	if arg.User != "" {
		where = append(where, "username = ? COLLATE NOCASE")
		args = append(args, arg.User)
	}
	if arg.UnreadOnly {
		where = append(where, "is_read = 0")
	}

	query := "SELECT id, created_at, task_id, title, username, action, details, is_read FROM audit_log"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC"
	if arg.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, arg.Limit)
	}

	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var items []AuditLog
	for rows.Next() {
		var a AuditLog
		if err := rows.Scan(
			&a.ID,
			&a.CreatedAt,
			&a.TaskID,
			&a.Title,
			&a.User,
			&a.Action,
			&a.Details,
			&a.IsRead,
		); err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	return items, rows.Err()
}

const markAuditLogRead = `UPDATE audit_log SET is_read = 1 WHERE id = ?`

func (q *Queries) MarkAuditLogRead(ctx context.Context, id int64) (int64, error) {
	res, err := q.db.ExecContext(ctx, markAuditLogRead, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const countUnreadAuditLog = `SELECT COUNT(*) FROM audit_log WHERE is_read = 0`

func (q *Queries) CountUnreadAuditLog(ctx context.Context) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, countUnreadAuditLog).Scan(&n)
	return n, err
}

// TimeEvent mirrors a row of the time_events table.
type TimeEvent struct {
	ID     int64
	TaskID int64
	User   string
	Kind   string
	At     int64
}

type InsertTimeEventParams struct {
	TaskID int64
	User   string
	Kind   string
	At     int64
}

const insertTimeEvent = `INSERT INTO time_events (task_id, username, kind, at) VALUES (?, ?, ?, ?)`

func (q *Queries) InsertTimeEvent(ctx context.Context, arg InsertTimeEventParams) error {
	_, err := q.db.ExecContext(ctx, insertTimeEvent, arg.TaskID, arg.User, arg.Kind, arg.At)
	return err
}

const listTimeEventsByTask = `SELECT id, task_id, username, kind, at FROM time_events
WHERE task_id = ?
ORDER BY at, id`

func (q *Queries) ListTimeEventsByTask(ctx context.Context, taskID int64) ([]TimeEvent, error) {
	rows, err := q.db.QueryContext(ctx, listTimeEventsByTask, taskID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var items []TimeEvent
	for rows.Next() {
		var e TimeEvent
		if err := rows.Scan(&e.ID, &e.TaskID, &e.User, &e.Kind, &e.At); err != nil {
			return nil, err
		}
		items = append(items, e)
	}
	return items, rows.Err()
}
