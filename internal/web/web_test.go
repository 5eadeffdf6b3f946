package web

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colonyops/taskflow/internal/core/audit"
	"github.com/colonyops/taskflow/internal/core/auth"
	"github.com/colonyops/taskflow/internal/core/config"
	"github.com/colonyops/taskflow/internal/core/task"
	"github.com/colonyops/taskflow/internal/data/db"
	"github.com/colonyops/taskflow/internal/taskflow"
	"github.com/colonyops/taskflow/pkg/iojson"
)

type login struct{ name, password string }

var (
	asManager = &login{"Manager", "boss"}
	asLuke    = &login{"Luke", "jedi"}
	asSarah   = &login{"Sarah", "pilot"}
)

func newTestServer(t *testing.T) *Server {
	t.Helper()

	users, err := auth.NewDirectory([]auth.Credential{
		{Name: "Manager", Role: auth.RoleManager, Password: "boss"},
		{Name: "Luke", Role: auth.RoleMember, Password: "jedi"},
		{Name: "Sarah", Role: auth.RoleMember, Password: "pilot"},
	})
	require.NoError(t, err)

	database, err := db.Open(t.TempDir(), db.DefaultOpenOptions())
	require.NoError(t, err)
	st := taskflow.SQLiteStores(database)

	cfg := config.DefaultConfig()
	cfg.DataDir = t.TempDir()

	app := taskflow.NewApp(&cfg, st, users, zerolog.Nop())
	t.Cleanup(func() { _ = app.Close() })

	s := New(app, zerolog.Nop())
	s.now = func() time.Time { return time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC) }
	return s
}

func do(t *testing.T, s *Server, method, path string, as *login, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	if as != nil {
		req.SetBasicAuth(as.name, as.password)
	}
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func createTask(t *testing.T, s *Server, assignee string) task.Task {
	t.Helper()
	body := fmt.Sprintf(`{"title":"Draft contract","assigned_to":%q,"start_date":"2024-03-01","due_date":"2024-03-15","priority":1}`, assignee)
	rec := do(t, s, http.MethodPost, "/api/tasks", asManager, body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decodeBody[task.Task](t, rec)
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	rec := do(t, s, http.MethodGet, "/health", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "sqlite", decodeBody[map[string]string](t, rec)["backend"])
}

func TestAuthentication(t *testing.T) {
	s := newTestServer(t)

	rec := do(t, s, http.MethodGet, "/api/tasks", nil, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("WWW-Authenticate"))

	rec = do(t, s, http.MethodGet, "/api/tasks", &login{"Luke", "sith"}, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, s, http.MethodGet, "/api/me", asLuke, "")
	require.Equal(t, http.StatusOK, rec.Code)
	me := decodeBody[map[string]any](t, rec)
	assert.Equal(t, map[string]any{"name": "Luke", "role": "member"}, me["user"])
}

func TestTaskLifecycle(t *testing.T) {
	s := newTestServer(t)

	created := createTask(t, s, "Luke")
	assert.Equal(t, task.StatusAssigned, created.Status)
	assert.Equal(t, task.PriorityHigh, created.Priority)
	path := fmt.Sprintf("/api/tasks/%d", created.ID)

	rec := do(t, s, http.MethodGet, path, asLuke, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Draft contract", decodeBody[task.Task](t, rec).Title)

	rec = do(t, s, http.MethodPatch, path, asLuke, `{"status":"In Progress","hours_spent":2.5}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decodeBody[task.Task](t, rec)
	assert.Equal(t, task.StatusInProgress, updated.Status)
	assert.InDelta(t, 2.5, updated.HoursSpent, 0.0001)

	rec = do(t, s, http.MethodPost, path+"/comments", asLuke, `{"text":"on it"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Len(t, decodeBody[task.Task](t, rec).Comments, 1)

	rec = do(t, s, http.MethodGet, "/api/tasks?status=In%20Progress&assignee=luke", asManager, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]task.Task](t, rec), 1)

	rec = do(t, s, http.MethodPost, path+"/archive", asManager, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, task.StatusArchived, decodeBody[task.Task](t, rec).Status)

	rec = do(t, s, http.MethodGet, "/api/tasks", asManager, "")
	assert.Empty(t, decodeBody[[]task.Task](t, rec))
	rec = do(t, s, http.MethodGet, "/api/tasks?archived=true", asManager, "")
	assert.Len(t, decodeBody[[]task.Task](t, rec), 1)
}

func TestErrorMapping(t *testing.T) {
	s := newTestServer(t)
	created := createTask(t, s, "Luke")
	path := fmt.Sprintf("/api/tasks/%d", created.ID)

	tests := []struct {
		name   string
		method string
		path   string
		as     *login
		body   string
		want   int
	}{
		{"member cannot create", http.MethodPost, "/api/tasks", asLuke, `{"title":"x","assigned_to":"Luke"}`, http.StatusForbidden},
		{"other member cannot edit", http.MethodPatch, path, asSarah, `{"title":"mine now"}`, http.StatusForbidden},
		{"member cannot reassign", http.MethodPatch, path, asLuke, `{"assigned_to":"Sarah"}`, http.StatusForbidden},
		{"missing task", http.MethodGet, "/api/tasks/42", asManager, "", http.StatusNotFound},
		{"stale revision", http.MethodPatch, path, asManager, `{"title":"v2","expected_revision":7}`, http.StatusConflict},
		{"unknown field", http.MethodPatch, path, asManager, `{"colour":"red"}`, http.StatusBadRequest},
		{"bad date", http.MethodPatch, path, asManager, `{"due_date":"next week"}`, http.StatusBadRequest},
		{"empty patch", http.MethodPatch, path, asManager, `{}`, http.StatusBadRequest},
		{"bad status filter", http.MethodGet, "/api/tasks?status=Done", asManager, "", http.StatusBadRequest},
		{"unknown priority filter", http.MethodGet, "/api/tasks?priority=urgent", asManager, "", http.StatusBadRequest},
		{"out of range priority filter", http.MethodGet, "/api/tasks?priority=9", asManager, "", http.StatusBadRequest},
		{"unknown route", http.MethodGet, "/api/nope", asManager, "", http.StatusNotFound},
		{"wrong method", http.MethodDelete, path, asManager, "", http.StatusMethodNotAllowed},
		{"wrong method on collection", http.MethodPut, "/api/notifications", asManager, "", http.StatusMethodNotAllowed},
		{"wrong method outside api", http.MethodPost, "/health", nil, "", http.StatusMethodNotAllowed},
		{"unknown root route", http.MethodGet, "/nope", nil, "", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, s, tt.method, tt.path, tt.as, tt.body)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())

			env := decodeBody[iojson.Error](t, rec)
			assert.NotEmpty(t, env.Message)
		})
	}
}

func TestUpdate_IfMatch(t *testing.T) {
	s := newTestServer(t)
	created := createTask(t, s, "Luke")
	path := fmt.Sprintf("/api/tasks/%d", created.ID)

	req := httptest.NewRequest(http.MethodPatch, path, strings.NewReader(`{"title":"v2"}`))
	req.SetBasicAuth(asManager.name, asManager.password)
	req.Header.Set("If-Match", `"0"`)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	req = httptest.NewRequest(http.MethodPatch, path, strings.NewReader(`{"title":"v3"}`))
	req.SetBasicAuth(asManager.name, asManager.password)
	req.Header.Set("If-Match", `"0"`)
	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestTimer(t *testing.T) {
	s := newTestServer(t)
	created := createTask(t, s, "Luke")
	path := fmt.Sprintf("/api/tasks/%d/timer", created.ID)

	rec := do(t, s, http.MethodPost, path+"/stop", asLuke, "")
	assert.Equal(t, http.StatusConflict, rec.Code, "stop without start")

	rec = do(t, s, http.MethodPost, path+"/start", asLuke, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, decodeBody[taskflow.TimerStatus](t, rec).Running)

	rec = do(t, s, http.MethodPost, path+"/start", asLuke, "")
	assert.Equal(t, http.StatusConflict, rec.Code, "already running")

	rec = do(t, s, http.MethodPost, path+"/start", asSarah, "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = do(t, s, http.MethodGet, path, asLuke, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decodeBody[taskflow.TimerStatus](t, rec).Running)

	rec = do(t, s, http.MethodPost, path+"/stop", asLuke, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = do(t, s, http.MethodGet, path, asLuke, "")
	assert.False(t, decodeBody[taskflow.TimerStatus](t, rec).Running)
}

func TestNotifications(t *testing.T) {
	s := newTestServer(t)
	mine := createTask(t, s, "Luke")
	createTask(t, s, "Sarah")

	rec := do(t, s, http.MethodGet, "/api/notifications?unread=true", asManager, "")
	require.Equal(t, http.StatusOK, rec.Code)
	all := decodeBody[[]audit.Entry](t, rec)
	require.Len(t, all, 2)

	rec = do(t, s, http.MethodGet, "/api/notifications", asLuke, "")
	require.Equal(t, http.StatusOK, rec.Code)
	lukes := decodeBody[[]audit.Entry](t, rec)
	require.Len(t, lukes, 1)
	assert.Equal(t, mine.ID, lukes[0].TaskID)

	rec = do(t, s, http.MethodPost, fmt.Sprintf("/api/notifications/%d/read", lukes[0].ID), asSarah, "")
	assert.Equal(t, http.StatusNotFound, rec.Code, "another member's notification")

	rec = do(t, s, http.MethodGet, "/api/notifications?unread=true", asManager, "")
	assert.Len(t, decodeBody[[]audit.Entry](t, rec), 2)

	rec = do(t, s, http.MethodPost, fmt.Sprintf("/api/notifications/%d/read", lukes[0].ID), asLuke, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, s, http.MethodGet, "/api/notifications?unread=true&limit=5", asManager, "")
	assert.Len(t, decodeBody[[]audit.Entry](t, rec), 1)

	rec = do(t, s, http.MethodPost, "/api/notifications/999/read", asManager, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestReport(t *testing.T) {
	s := newTestServer(t)
	createTask(t, s, "Luke")
	createTask(t, s, "Sarah")

	rec := do(t, s, http.MethodGet, "/api/report?from=2024-03-01&to=2024-03-31", asManager, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rep := decodeBody[map[string]any](t, rec)
	assert.EqualValues(t, 2, rep["total"])

	rec = do(t, s, http.MethodGet, "/api/report?from=2024-03-01&to=2024-03-31&format=html", asManager, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), "Draft contract")

	rec = do(t, s, http.MethodGet, "/api/report?from=2024-03-31&to=2024-03-01", asManager, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRequestID(t *testing.T) {
	s := newTestServer(t)

	rec := do(t, s, http.MethodGet, "/health", nil, "")
	generated := rec.Header().Get(requestIDHeader)
	assert.NotEmpty(t, generated)

	const id = "5f0c9c4e-8a7d-4c39-9d5e-0f6b2f2a1c11"
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(requestIDHeader, id)
	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	assert.Equal(t, id, rec.Header().Get(requestIDHeader))

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(requestIDHeader, "not a uuid\n")
	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	assert.NotEqual(t, "not a uuid\n", rec.Header().Get(requestIDHeader))
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusInternalServerError, statusFor(fmt.Errorf("disk on fire")))
	assert.Equal(t, http.StatusNotFound, statusFor(fmt.Errorf("get: %w", task.ErrNotFound)))
	assert.Equal(t, http.StatusBadRequest, statusFor(fmt.Errorf("move: %w", task.ErrInvalidTransition)))
}
