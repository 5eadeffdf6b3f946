package taskflow

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colonyops/taskflow/internal/core/audit"
	"github.com/colonyops/taskflow/internal/core/logging"
	"github.com/colonyops/taskflow/internal/core/report"
	"github.com/colonyops/taskflow/internal/core/task"
	"github.com/colonyops/taskflow/internal/core/timelog"
)

func draft() NewTask {
	return NewTask{
		Title:      "Draft contract",
		AssignedTo: "Luke",
		StartDate:  day(2024, 3, 1),
		DueDate:    day(2024, 3, 15),
		Priority:   task.PriorityHigh,
	}
}

func TestTaskService_Create(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			st := open(t)
			svc, c := newTestService(t, st, ServiceOptions{})

			created, err := svc.Create(ctx, manager, draft())
			require.NoError(t, err)
			assert.Equal(t, c.Now().UnixMilli(), created.ID)
			assert.Equal(t, task.StatusAssigned, created.Status)
			assert.Equal(t, "Manager", created.CreatedBy)
			assert.Equal(t, c.Now(), created.CreatedAt)

			got, err := svc.Get(ctx, created.ID)
			require.NoError(t, err)
			assert.Equal(t, created, got)

			entries, err := st.Audit.List(ctx, audit.ListFilter{})
			require.NoError(t, err)
			require.Len(t, entries, 1)
			assert.Equal(t, audit.ActionCreated, entries[0].Action)
			assert.Equal(t, created.ID, entries[0].TaskID)
		})
	}
}

func TestTaskService_CreateSameMillisecond(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			svc, c := newTestService(t, open(t), ServiceOptions{})

			first, err := svc.Create(ctx, manager, draft())
			require.NoError(t, err)
			second, err := svc.Create(ctx, manager, draft())
			require.NoError(t, err)

			assert.Equal(t, c.Now().UnixMilli(), first.ID)
			assert.Equal(t, first.ID+1, second.ID)
		})
	}
}

func TestTaskService_CreateRules(t *testing.T) {
	ctx := context.Background()
	st := backends(t)["sqlite"](t)
	svc, _ := newTestService(t, st, ServiceOptions{})

	_, err := svc.Create(ctx, luke, draft())
	assert.ErrorIs(t, err, task.ErrForbidden, "members cannot create")

	in := draft()
	in.Title = "  "
	_, err = svc.Create(ctx, manager, in)
	assert.ErrorIs(t, err, task.ErrValidation)

	in = draft()
	in.DueDate = day(2024, 2, 1)
	_, err = svc.Create(ctx, manager, in)
	assert.ErrorIs(t, err, task.ErrValidation)

	in = draft()
	in.Priority = 0
	created, err := svc.Create(ctx, manager, in)
	require.NoError(t, err)
	assert.Equal(t, task.PriorityLow, created.Priority)
}

func TestTaskService_UpdatePermissions(t *testing.T) {
	ctx := context.Background()
	st := backends(t)["sqlite"](t)
	svc, _ := newTestService(t, st, ServiceOptions{})

	created, err := svc.Create(ctx, manager, draft())
	require.NoError(t, err)

	_, err = svc.Update(ctx, sarah, created.ID, task.Patch{Title: ptr("mine now")})
	assert.ErrorIs(t, err, task.ErrForbidden, "other members cannot edit")

	_, err = svc.Update(ctx, luke, created.ID, task.Patch{AssignedTo: ptr("Sarah")})
	assert.ErrorIs(t, err, task.ErrForbidden, "members cannot reassign")

	got, err := svc.Update(ctx, luke, created.ID, task.Patch{AssignedTo: ptr("luke"), Status: ptr(task.StatusInProgress)})
	require.NoError(t, err, "same assignee in different case is not a reassignment")
	assert.Equal(t, task.StatusInProgress, got.Status)

	_, err = svc.Archive(ctx, sarah, created.ID)
	assert.ErrorIs(t, err, task.ErrForbidden)

	_, err = svc.Update(ctx, manager, created.ID, task.Patch{})
	assert.ErrorIs(t, err, task.ErrValidation)

	_, err = svc.Update(ctx, manager, 42, task.Patch{Title: ptr("ghost")})
	assert.ErrorIs(t, err, task.ErrNotFound)
}

func TestTaskService_CompletedDate(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			svc, c := newTestService(t, open(t), ServiceOptions{})

			created, err := svc.Create(ctx, manager, draft())
			require.NoError(t, err)

			c.Advance(48 * time.Hour)
			done, err := svc.Update(ctx, luke, created.ID, task.Patch{Status: ptr(task.StatusCompleted)})
			require.NoError(t, err)
			require.NotNil(t, done.CompletedDate)
			assert.Equal(t, *day(2024, 3, 3), *done.CompletedDate)

			reopened, err := svc.Update(ctx, luke, created.ID, task.Patch{Status: ptr(task.StatusInProgress)})
			require.NoError(t, err)
			assert.Nil(t, reopened.CompletedDate)
		})
	}
}

func TestTaskService_StrictTransitions(t *testing.T) {
	ctx := context.Background()
	st := backends(t)["sqlite"](t)

	strict, _ := newTestService(t, st, ServiceOptions{StrictTransitions: true})
	created, err := strict.Create(ctx, manager, draft())
	require.NoError(t, err)

	_, err = strict.Archive(ctx, manager, created.ID)
	require.NoError(t, err)
	_, err = strict.Archive(ctx, manager, created.ID)
	require.NoError(t, err, "re-archiving is always allowed")

	_, err = strict.Update(ctx, manager, created.ID, task.Patch{Status: ptr(task.StatusInProgress)})
	assert.ErrorIs(t, err, task.ErrInvalidTransition)

	permissive, _ := newTestService(t, st, ServiceOptions{})
	got, err := permissive.Update(ctx, manager, created.ID, task.Patch{Status: ptr(task.StatusInProgress)})
	require.NoError(t, err)
	assert.Equal(t, task.StatusInProgress, got.Status)
}

func TestTaskService_AuditActions(t *testing.T) {
	ctx := context.Background()
	st := backends(t)["sheets"](t)
	svc, c := newTestService(t, st, ServiceOptions{})

	created, err := svc.Create(ctx, manager, draft())
	require.NoError(t, err)

	steps := []func() error{
		func() error { _, err := svc.Update(ctx, luke, created.ID, task.Patch{Status: ptr(task.StatusInProgress)}); return err },
		func() error { _, err := svc.Comment(ctx, luke, created.ID, "halfway"); return err },
		func() error { _, err := svc.Update(ctx, manager, created.ID, task.Patch{Priority: ptr(task.PriorityMedium)}); return err },
		func() error { _, err := svc.Archive(ctx, manager, created.ID); return err },
	}
	for _, step := range steps {
		c.Advance(time.Minute)
		require.NoError(t, step())
	}

	entries, err := st.Audit.List(ctx, audit.ListFilter{})
	require.NoError(t, err)

	var actions []audit.Action
	for _, e := range entries {
		actions = append(actions, e.Action)
	}
	assert.Equal(t, []audit.Action{
		audit.ActionArchived,
		audit.ActionUpdated,
		audit.ActionCommented,
		audit.ActionStatusChanged,
		audit.ActionCreated,
	}, actions)
	assert.Equal(t, "priority", entries[1].Details)
	assert.Equal(t, "halfway", entries[2].Details)
	assert.Equal(t, "Assigned -> In Progress", entries[3].Details)

	got, err := svc.Get(ctx, created.ID)
	require.NoError(t, err)
	require.Len(t, got.Comments, 1)
	assert.Equal(t, "Luke", got.Comments[0].User)

	_, err = svc.Comment(ctx, luke, created.ID, "   ")
	assert.ErrorIs(t, err, task.ErrValidation)
}

func TestTaskService_Timer(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			st := open(t)
			svc, c := newTestService(t, st, ServiceOptions{})

			created, err := svc.Create(ctx, manager, draft())
			require.NoError(t, err)

			_, err = svc.StopTimer(ctx, luke, created.ID)
			assert.ErrorIs(t, err, timelog.ErrNotRunning)

			status, err := svc.StartTimer(ctx, luke, created.ID)
			require.NoError(t, err)
			assert.True(t, status.Running)

			_, err = svc.StartTimer(ctx, luke, created.ID)
			assert.ErrorIs(t, err, timelog.ErrAlreadyRunning)

			_, err = svc.StartTimer(ctx, sarah, created.ID)
			assert.ErrorIs(t, err, task.ErrForbidden)

			c.Advance(90 * time.Minute)
			stopped, err := svc.StopTimer(ctx, luke, created.ID)
			require.NoError(t, err)
			assert.InDelta(t, 1.5, stopped.HoursSpent, 0.001)

			_, err = svc.StartTimer(ctx, luke, created.ID)
			require.NoError(t, err)
			c.Advance(30 * time.Minute)
			stopped, err = svc.StopTimer(ctx, luke, created.ID)
			require.NoError(t, err)
			assert.InDelta(t, 2.0, stopped.HoursSpent, 0.001, "hours are recomputed from the whole log")

			status, err = svc.Timer(ctx, created.ID)
			require.NoError(t, err)
			assert.False(t, status.Running)
			assert.InDelta(t, 2.0, status.Hours, 0.001)
		})
	}
}

func TestTaskService_Report(t *testing.T) {
	ctx := context.Background()
	st := backends(t)["sqlite"](t)
	svc, c := newTestService(t, st, ServiceOptions{})

	_, err := svc.Create(ctx, manager, draft())
	require.NoError(t, err)
	c.Advance(time.Second)
	other := draft()
	other.AssignedTo = "Sarah"
	_, err = svc.Create(ctx, manager, other)
	require.NoError(t, err)

	march := report.Range{From: *day(2024, 3, 1), To: *day(2024, 3, 31)}

	all, err := svc.Report(ctx, manager, march, "")
	require.NoError(t, err)
	assert.Equal(t, 2, all.Total)

	own, err := svc.Report(ctx, luke, march, "")
	require.NoError(t, err)
	assert.Equal(t, 1, own.Total, "members only see their own tasks")
	assert.Equal(t, "Luke", own.Assignee)

	_, err = svc.Report(ctx, luke, march, "Sarah")
	assert.ErrorIs(t, err, task.ErrForbidden)
}

func TestIsUserError(t *testing.T) {
	assert.True(t, IsUserError(task.ErrConflict))
	assert.True(t, IsUserError(timelog.ErrNotRunning))
	assert.False(t, IsUserError(context.DeadlineExceeded))
}

func TestTaskService_WritesBypassWarmCache(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			st := open(t)
			cache := NewCachedStore(st.Tasks, 5*time.Minute, zerolog.Nop())
			svc := NewTaskService(cache, st.Audit, st.TimeLog, ServiceOptions{}, zerolog.Nop())
			c := &clock{now: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
			svc.now = c.Now

			_, err := svc.List(ctx, task.ListFilter{})
			require.NoError(t, err)

			// Another writer adds a row while the listing is cached.
			require.NoError(t, st.Tasks.Create(ctx, task.Task{
				ID:           1001,
				Title:        "Draft contract",
				AssignedTo:   "Luke",
				Status:       task.StatusAssigned,
				Priority:     task.PriorityHigh,
				CreatedBy:    "Manager",
				CreatedAt:    c.Now(),
				LastModified: c.Now(),
			}))

			updated, err := svc.Update(ctx, manager, 1001, task.Patch{Status: ptr(task.StatusInProgress)})
			require.NoError(t, err)
			assert.Equal(t, task.StatusInProgress, updated.Status)

			// Reassigned behind the cache's back: the old assignee loses access.
			_, err = svc.List(ctx, task.ListFilter{})
			require.NoError(t, err)
			c.Advance(time.Minute)
			_, err = st.Tasks.Update(ctx, 1001, task.Patch{AssignedTo: ptr("Sarah")}, c.Now())
			require.NoError(t, err)

			_, err = svc.StartTimer(ctx, luke, 1001)
			assert.ErrorIs(t, err, task.ErrForbidden)
			_, err = svc.Comment(ctx, luke, 1001, "mine?")
			assert.ErrorIs(t, err, task.ErrForbidden)

			_, err = svc.StartTimer(ctx, sarah, 1001)
			assert.NoError(t, err)
		})
	}
}

func TestTaskService_LogsCarryRequestFields(t *testing.T) {
	st := backends(t)["sqlite"](t)

	var buf bytes.Buffer
	logger := zerolog.New(&buf).Hook(logging.ContextHook{})
	svc := NewTaskService(st.Tasks, st.Audit, st.TimeLog, ServiceOptions{}, logger)

	ctx := logging.WithRequestID(context.Background(), "req-42")
	created, err := svc.Create(ctx, manager, draft())
	require.NoError(t, err)
	_, err = svc.Update(ctx, luke, created.ID, task.Patch{Status: ptr(task.StatusInProgress)})
	require.NoError(t, err)

	var lines []map[string]any
	for _, raw := range bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n")) {
		var m map[string]any
		require.NoError(t, json.Unmarshal(raw, &m))
		lines = append(lines, m)
	}
	require.Len(t, lines, 2)

	assert.Equal(t, "task created", lines[0]["message"])
	assert.Equal(t, "req-42", lines[0]["request_id"])
	assert.Equal(t, "Manager", lines[0]["user"])

	assert.Equal(t, "task updated", lines[1]["message"])
	assert.Equal(t, "req-42", lines[1]["request_id"])
	assert.Equal(t, "Luke", lines[1]["user"])
	assert.Equal(t, string(audit.ActionStatusChanged), lines[1]["action"])
}
