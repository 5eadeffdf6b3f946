package taskflow

import (
	"context"
	"fmt"
	"slices"

	"github.com/colonyops/taskflow/internal/core/audit"
	"github.com/colonyops/taskflow/internal/core/auth"
	"github.com/colonyops/taskflow/internal/core/logging"
	"github.com/colonyops/taskflow/internal/core/report"
	"github.com/colonyops/taskflow/internal/core/task"
)

// RequestContext carries the acting user and their current selection for the
// lifetime of one CLI invocation or one HTTP request. Nothing in it outlives
// the request.
type RequestContext struct {
	User          auth.User
	Tasks         *TaskService
	Notifications *NotificationService

	// Selection is the active list filter.
	Selection task.ListFilter
	// SelectedID is the task the request is acting on, zero when none.
	SelectedID int64
}

type requestContextKey struct{}

// WithRequestContext stores rc in ctx and tags the context with the user for
// logging.
func WithRequestContext(ctx context.Context, rc *RequestContext) context.Context {
	ctx = logging.WithUser(ctx, rc.User.Name)
	return context.WithValue(ctx, requestContextKey{}, rc)
}

// FromContext returns the RequestContext stored in ctx.
func FromContext(ctx context.Context) (*RequestContext, bool) {
	rc, ok := ctx.Value(requestContextKey{}).(*RequestContext)
	return rc, ok
}

// Select sets the task the request acts on.
func (rc *RequestContext) Select(id int64) {
	rc.SelectedID = id
}

// List lists tasks with the active selection.
func (rc *RequestContext) List(ctx context.Context) ([]task.Task, error) {
	return rc.Tasks.List(ctx, rc.Selection)
}

// Selected returns the selected task.
func (rc *RequestContext) Selected(ctx context.Context) (task.Task, error) {
	return rc.Tasks.Get(ctx, rc.SelectedID)
}

func (rc *RequestContext) Create(ctx context.Context, in NewTask) (task.Task, error) {
	t, err := rc.Tasks.Create(ctx, rc.User, in)
	if err == nil {
		rc.SelectedID = t.ID
	}
	return t, err
}

func (rc *RequestContext) Update(ctx context.Context, patch task.Patch) (task.Task, error) {
	return rc.Tasks.Update(ctx, rc.User, rc.SelectedID, patch)
}

func (rc *RequestContext) Archive(ctx context.Context) (task.Task, error) {
	return rc.Tasks.Archive(ctx, rc.User, rc.SelectedID)
}

func (rc *RequestContext) Comment(ctx context.Context, text string) (task.Task, error) {
	return rc.Tasks.Comment(ctx, rc.User, rc.SelectedID, text)
}

func (rc *RequestContext) StartTimer(ctx context.Context) (TimerStatus, error) {
	return rc.Tasks.StartTimer(ctx, rc.User, rc.SelectedID)
}

func (rc *RequestContext) StopTimer(ctx context.Context) (task.Task, error) {
	return rc.Tasks.StopTimer(ctx, rc.User, rc.SelectedID)
}

func (rc *RequestContext) Report(ctx context.Context, r report.Range, assignee string) (report.Report, error) {
	return rc.Tasks.Report(ctx, rc.User, r, assignee)
}

// MarkRead flags one notification as read. Members may only touch entries
// in their own inbox; anything else reads as missing.
func (rc *RequestContext) MarkRead(ctx context.Context, id int64) error {
	if !rc.User.IsManager() {
		mine, err := rc.Inbox(ctx, false, 0)
		if err != nil {
			return err
		}
		if !slices.ContainsFunc(mine, func(e audit.Entry) bool { return e.ID == id }) {
			return fmt.Errorf("notification %d: %w", id, audit.ErrNotFound)
		}
	}
	return rc.Notifications.MarkRead(ctx, id)
}

// Inbox lists notifications newest first. Managers see all activity;
// members see activity on tasks assigned to them.
func (rc *RequestContext) Inbox(ctx context.Context, unreadOnly bool, limit int) ([]audit.Entry, error) {
	if rc.User.IsManager() {
		return rc.Notifications.List(ctx, audit.ListFilter{UnreadOnly: unreadOnly, Limit: limit})
	}

	mine, err := rc.Tasks.List(ctx, task.ListFilter{AssignedTo: rc.User.Name, IncludeArchived: true})
	if err != nil {
		return nil, err
	}
	ids := make(map[int64]bool, len(mine))
	for _, t := range mine {
		ids[t.ID] = true
	}

	all, err := rc.Notifications.List(ctx, audit.ListFilter{UnreadOnly: unreadOnly})
	if err != nil {
		return nil, err
	}
	out := make([]audit.Entry, 0, len(all))
	for _, e := range all {
		if !ids[e.TaskID] {
			continue
		}
		out = append(out, e)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}
