package taskflow

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/colonyops/taskflow/internal/core/audit"
	"github.com/colonyops/taskflow/internal/core/auth"
	"github.com/colonyops/taskflow/internal/core/logging"
	"github.com/colonyops/taskflow/internal/core/report"
	"github.com/colonyops/taskflow/internal/core/task"
	"github.com/colonyops/taskflow/internal/core/timelog"
)

// NewTask is the input to TaskService.Create.
type NewTask struct {
	Title        string        `json:"title"`
	AssignedTo   string        `json:"assigned_to"`
	StartDate    *time.Time    `json:"start_date,omitempty"`
	DueDate      *time.Time    `json:"due_date,omitempty"`
	Priority     task.Priority `json:"priority,omitempty"`
	Description  string        `json:"description,omitempty"`
	ExternalLink string        `json:"external_link,omitempty"`
}

// Validate checks the fields a new task needs.
func (n NewTask) Validate() error {
	if strings.TrimSpace(n.Title) == "" {
		return fmt.Errorf("%w: title is required", task.ErrValidation)
	}
	if strings.TrimSpace(n.AssignedTo) == "" {
		return fmt.Errorf("%w: assignee is required", task.ErrValidation)
	}
	if n.Priority != 0 && !n.Priority.IsValid() {
		return fmt.Errorf("%w: priority must be 1, 2 or 3", task.ErrValidation)
	}
	if n.StartDate != nil && n.DueDate != nil && n.DueDate.Before(*n.StartDate) {
		return fmt.Errorf("%w: due date is before start date", task.ErrValidation)
	}
	return nil
}

const maxIDAttempts = 5

// ServiceOptions toggles optional task rules.
type ServiceOptions struct {
	StrictTransitions bool
}

// TaskService applies permissions, lifecycle rules and auditing on top of a
// task.Store.
type TaskService struct {
	store   task.Store
	audit   audit.Store
	timelog timelog.Store
	opts    ServiceOptions
	now     func() time.Time
	log     zerolog.Logger
}

// NewTaskService creates a new TaskService.
func NewTaskService(store task.Store, auditStore audit.Store, timeStore timelog.Store, opts ServiceOptions, log zerolog.Logger) *TaskService {
	return &TaskService{
		store:   store,
		audit:   auditStore,
		timelog: timeStore,
		opts:    opts,
		now:     time.Now,
		log:     log.With().Str("component", "task-service").Logger(),
	}
}

// List returns the tasks matching filter in store order.
func (s *TaskService) List(ctx context.Context, filter task.ListFilter) ([]task.Task, error) {
	tasks, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return filter.Apply(tasks), nil
}

// Get returns a single task.
func (s *TaskService) Get(ctx context.Context, id int64) (task.Task, error) {
	tasks, err := s.store.List(ctx)
	if err != nil {
		return task.Task{}, fmt.Errorf("list tasks: %w", err)
	}
	t, ok := task.Find(tasks, id)
	if !ok {
		return task.Task{}, fmt.Errorf("task %d: %w", id, task.ErrNotFound)
	}
	return t, nil
}

// refresher is implemented by stores that can skip their read cache.
type refresher interface {
	Refresh(ctx context.Context) ([]task.Task, error)
}

// current reads a task straight from the backing store. Write paths use it
// so permission checks and not-found see the row as it is now.
func (s *TaskService) current(ctx context.Context, id int64) (task.Task, error) {
	list := s.store.List
	if r, ok := s.store.(refresher); ok {
		list = r.Refresh
	}
	tasks, err := list(ctx)
	if err != nil {
		return task.Task{}, fmt.Errorf("list tasks: %w", err)
	}
	t, ok := task.Find(tasks, id)
	if !ok {
		return task.Task{}, fmt.Errorf("task %d: %w", id, task.ErrNotFound)
	}
	return t, nil
}

// Create assigns an identifier and timestamps and appends the task. Only
// managers may create tasks.
func (s *TaskService) Create(ctx context.Context, user auth.User, in NewTask) (task.Task, error) {
	if !auth.CanCreate(user) {
		return task.Task{}, fmt.Errorf("create task: %w", task.ErrForbidden)
	}
	if err := in.Validate(); err != nil {
		return task.Task{}, err
	}

	created := s.now().UTC()
	now := created.Truncate(time.Second)
	t := task.Task{
		ID:           task.NewID(created),
		Title:        strings.TrimSpace(in.Title),
		AssignedTo:   strings.TrimSpace(in.AssignedTo),
		Status:       task.StatusAssigned,
		Priority:     in.Priority,
		Description:  in.Description,
		ExternalLink: in.ExternalLink,
		CreatedBy:    user.Name,
		CreatedAt:    now,
		LastModified: now,
	}
	if t.Priority == 0 {
		t.Priority = task.DefaultPriority
	}
	// Dates are stored at day granularity.
	t = task.Patch{StartDate: in.StartDate, DueDate: in.DueDate}.Apply(t)

	// IDs are millisecond timestamps; a collision moves on to the next one.
	for attempt := 0; ; attempt++ {
		err := s.store.Create(ctx, t)
		if err == nil {
			break
		}
		if !errors.Is(err, task.ErrDuplicate) || attempt == maxIDAttempts-1 {
			return task.Task{}, fmt.Errorf("create task: %w", err)
		}
		t.ID++
	}

	s.record(ctx, user, t, audit.ActionCreated, "assigned to "+t.AssignedTo)
	s.log.Info().Ctx(withUser(ctx, user)).Int64("task_id", t.ID).Msg("task created")
	return t, nil
}

// Update applies patch to the task after checking permissions and, when
// enabled, the status lifecycle. Moving into Completed stamps the completed
// date; moving out of it clears the date.
func (s *TaskService) Update(ctx context.Context, user auth.User, id int64, patch task.Patch) (task.Task, error) {
	if err := patch.Validate(); err != nil {
		return task.Task{}, err
	}
	if patch.IsEmpty() {
		return task.Task{}, fmt.Errorf("%w: nothing to update", task.ErrValidation)
	}

	current, err := s.current(ctx, id)
	if err != nil {
		return task.Task{}, err
	}

	if !auth.CanModify(user, current) {
		return task.Task{}, fmt.Errorf("update task %d: %w", id, task.ErrForbidden)
	}
	if patch.AssignedTo != nil && !strings.EqualFold(*patch.AssignedTo, current.AssignedTo) && !auth.CanReassign(user) {
		return task.Task{}, fmt.Errorf("reassign task %d: %w", id, task.ErrForbidden)
	}

	now := s.now()
	if patch.Status != nil {
		to := *patch.Status
		if s.opts.StrictTransitions {
			if err := task.CheckTransition(current.Status, to); err != nil {
				return task.Task{}, err
			}
		}
		switch {
		case to == task.StatusCompleted && current.Status != task.StatusCompleted && patch.CompletedDate == nil:
			patch.CompletedDate = &now
		case current.Status == task.StatusCompleted && to != task.StatusCompleted && to != task.StatusArchived && patch.CompletedDate == nil:
			patch.ClearCompletedDate = true
		}
	}

	updated, err := s.store.Update(ctx, id, patch, now)
	if err != nil {
		return task.Task{}, fmt.Errorf("update task %d: %w", id, err)
	}

	action, details := describe(current, patch)
	s.record(ctx, user, updated, action, details)
	s.log.Info().Ctx(withUser(ctx, user)).
		Int64("task_id", id).
		Str("action", string(action)).
		Int64("revision", updated.Revision).
		Msg("task updated")
	return updated, nil
}

// Archive moves the task to Archived. Archiving twice is not an error.
func (s *TaskService) Archive(ctx context.Context, user auth.User, id int64) (task.Task, error) {
	archived := task.StatusArchived
	return s.Update(ctx, user, id, task.Patch{Status: &archived})
}

// Comment appends a comment attributed to user.
func (s *TaskService) Comment(ctx context.Context, user auth.User, id int64, text string) (task.Task, error) {
	c := task.Comment{User: user.Name, Text: strings.TrimSpace(text), Time: s.now().UTC().Truncate(time.Second)}
	return s.Update(ctx, user, id, task.Patch{AddComments: []task.Comment{c}})
}

// TimerStatus reports the timer state for a task.
type TimerStatus struct {
	TaskID    int64      `json:"task_id"`
	Running   bool       `json:"running"`
	StartedAt *time.Time `json:"started_at,omitempty"`
	Hours     float64    `json:"hours"`
}

// Timer returns the current timer state derived from the event log.
func (s *TaskService) Timer(ctx context.Context, id int64) (TimerStatus, error) {
	events, err := s.timelog.ListByTask(ctx, id)
	if err != nil {
		return TimerStatus{}, fmt.Errorf("list time events: %w", err)
	}
	st := TimerStatus{TaskID: id, Hours: roundHours(timelog.Hours(events))}
	if at, ok := timelog.Running(events); ok {
		st.Running = true
		st.StartedAt = &at
	}
	return st, nil
}

// StartTimer records a start event for the task.
func (s *TaskService) StartTimer(ctx context.Context, user auth.User, id int64) (TimerStatus, error) {
	t, err := s.timerTask(ctx, user, id)
	if err != nil {
		return TimerStatus{}, err
	}

	st, err := s.Timer(ctx, id)
	if err != nil {
		return TimerStatus{}, err
	}
	if st.Running {
		return st, fmt.Errorf("task %d: %w", id, timelog.ErrAlreadyRunning)
	}

	now := s.now().UTC()
	if err := s.timelog.Append(ctx, timelog.Event{TaskID: id, User: user.Name, Kind: timelog.KindStart, At: now}); err != nil {
		return TimerStatus{}, fmt.Errorf("start timer: %w", err)
	}

	s.record(ctx, user, t, audit.ActionTimerStarted, "")
	st.Running = true
	st.StartedAt = &now
	return st, nil
}

// StopTimer records a stop event, recomputes the task's hours from the whole
// log and writes them back.
func (s *TaskService) StopTimer(ctx context.Context, user auth.User, id int64) (task.Task, error) {
	t, err := s.timerTask(ctx, user, id)
	if err != nil {
		return task.Task{}, err
	}

	events, err := s.timelog.ListByTask(ctx, id)
	if err != nil {
		return task.Task{}, fmt.Errorf("list time events: %w", err)
	}
	if _, ok := timelog.Running(events); !ok {
		return task.Task{}, fmt.Errorf("task %d: %w", id, timelog.ErrNotRunning)
	}

	now := s.now()
	stop := timelog.Event{TaskID: id, User: user.Name, Kind: timelog.KindStop, At: now.UTC()}
	if err := s.timelog.Append(ctx, stop); err != nil {
		return task.Task{}, fmt.Errorf("stop timer: %w", err)
	}

	hours := roundHours(timelog.Hours(append(events, stop)))
	updated, err := s.store.Update(ctx, id, task.Patch{HoursSpent: &hours}, now)
	if err != nil {
		return task.Task{}, fmt.Errorf("write hours for task %d: %w", id, err)
	}

	s.record(ctx, user, t, audit.ActionTimerStopped, fmt.Sprintf("%.2f hours total", hours))
	return updated, nil
}

func (s *TaskService) timerTask(ctx context.Context, user auth.User, id int64) (task.Task, error) {
	t, err := s.current(ctx, id)
	if err != nil {
		return task.Task{}, err
	}
	if !auth.CanModify(user, t) {
		return task.Task{}, fmt.Errorf("time task %d: %w", id, task.ErrForbidden)
	}
	if t.Status == task.StatusArchived {
		return task.Task{}, fmt.Errorf("%w: task %d is archived", task.ErrValidation, id)
	}
	return t, nil
}

// Report builds the metrics report. Members only see their own tasks.
func (s *TaskService) Report(ctx context.Context, user auth.User, r report.Range, assignee string) (report.Report, error) {
	if !user.IsManager() {
		if assignee != "" && !strings.EqualFold(assignee, user.Name) {
			return report.Report{}, fmt.Errorf("report for %s: %w", assignee, task.ErrForbidden)
		}
		assignee = user.Name
	}

	tasks, err := s.store.List(ctx)
	if err != nil {
		return report.Report{}, fmt.Errorf("list tasks: %w", err)
	}
	return report.Build(tasks, r, assignee, s.now()), nil
}

// record appends an audit entry. Audit failures are logged and do not undo
// the mutation that was already written.
func (s *TaskService) record(ctx context.Context, user auth.User, t task.Task, action audit.Action, details string) {
	entry := audit.Entry{
		Timestamp: s.now().UTC().Truncate(time.Second),
		TaskID:    t.ID,
		Title:     t.Title,
		User:      user.Name,
		Action:    action,
		Details:   details,
	}
	if _, err := s.audit.Append(ctx, entry); err != nil {
		s.log.Error().Ctx(withUser(ctx, user)).Err(err).Int64("task_id", t.ID).Str("action", string(action)).Msg("failed to write audit entry")
	}
}

// withUser tags ctx with the acting user unless a request already did.
func withUser(ctx context.Context, user auth.User) context.Context {
	if logging.GetUser(ctx) != "" {
		return ctx
	}
	return logging.WithUser(ctx, user.Name)
}

// describe picks the audit action for a patch and summarizes the change.
func describe(before task.Task, p task.Patch) (audit.Action, string) {
	if p.Status != nil && *p.Status != before.Status {
		if *p.Status == task.StatusArchived {
			return audit.ActionArchived, ""
		}
		return audit.ActionStatusChanged, fmt.Sprintf("%s -> %s", before.Status, *p.Status)
	}

	var fields []string
	add := func(set bool, name string) {
		if set {
			fields = append(fields, name)
		}
	}
	add(p.Title != nil, "title")
	add(p.AssignedTo != nil, "assigned_to")
	add(p.StartDate != nil, "start_date")
	add(p.DueDate != nil, "due_date")
	add(p.Priority != nil, "priority")
	add(p.HoursSpent != nil, "hours_spent")
	add(p.Description != nil, "description")
	add(p.ExternalLink != nil, "external_link")

	if len(p.AddComments) > 0 && len(fields) == 0 {
		return audit.ActionCommented, p.AddComments[len(p.AddComments)-1].Text
	}
	if len(fields) == 0 && p.Status != nil {
		return audit.ActionUpdated, "status unchanged"
	}
	return audit.ActionUpdated, strings.Join(fields, ", ")
}

func roundHours(h float64) float64 {
	return math.Round(h*100) / 100
}

// IsUserError reports whether err is caused by the request rather than the
// backing store.
func IsUserError(err error) bool {
	return errors.Is(err, task.ErrNotFound) ||
		errors.Is(err, task.ErrConflict) ||
		errors.Is(err, task.ErrForbidden) ||
		errors.Is(err, task.ErrValidation) ||
		errors.Is(err, task.ErrInvalidTransition) ||
		errors.Is(err, task.ErrDuplicate) ||
		errors.Is(err, timelog.ErrAlreadyRunning) ||
		errors.Is(err, timelog.ErrNotRunning)
}
