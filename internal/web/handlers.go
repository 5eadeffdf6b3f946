package web

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/colonyops/taskflow/internal/core/audit"
	"github.com/colonyops/taskflow/internal/core/report"
	"github.com/colonyops/taskflow/internal/core/task"
	"github.com/colonyops/taskflow/internal/taskflow"
)

const maxBodyBytes = 1 << 20

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "backend": string(s.app.Config.Backend)})
}

// requestContext returns the authenticated request, with the {id} route
// variable selected when present.
func requestContext(r *http.Request) (*taskflow.RequestContext, error) {
	rc, ok := taskflow.FromContext(r.Context())
	if !ok {
		return nil, fmt.Errorf("request is not authenticated")
	}
	if raw, ok := mux.Vars(r)["id"]; ok {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: bad id %q", task.ErrValidation, raw)
		}
		rc.Select(id)
	}
	return rc, nil
}

func decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: decode body: %v", task.ErrValidation, err)
	}
	return nil
}

func (s *Server) me(w http.ResponseWriter, r *http.Request) {
	rc, err := requestContext(r)
	if err != nil {
		fail(w, r, err)
		return
	}
	unread, err := rc.Inbox(r.Context(), true, 0)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"user":      rc.User,
		"unread":    len(unread),
		"assignees": s.app.Config.KnownAssignees(),
	})
}

func (s *Server) listTasks(w http.ResponseWriter, r *http.Request) {
	rc, err := requestContext(r)
	if err != nil {
		fail(w, r, err)
		return
	}

	filter, err := parseFilter(r)
	if err != nil {
		fail(w, r, err)
		return
	}
	rc.Selection = filter

	tasks, err := rc.List(r.Context())
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tasks)
}

func parseFilter(r *http.Request) (task.ListFilter, error) {
	q := r.URL.Query()
	f := task.ListFilter{
		AssignedTo: q.Get("assignee"),
		Search:     q.Get("search"),
	}

	if v := q.Get("status"); v != "" {
		f.Status = task.ParseStatus(v)
		if !f.Status.IsValid() {
			return f, fmt.Errorf("%w: unknown status %q", task.ErrValidation, v)
		}
	}
	if v := q.Get("priority"); v != "" {
		p, err := task.ParsePriorityStrict(v)
		if err != nil {
			return f, err
		}
		f.Priority = p
	}
	if v := q.Get("archived"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return f, fmt.Errorf("%w: archived must be a boolean", task.ErrValidation)
		}
		f.IncludeArchived = b
	}

	var err error
	if f.DueFrom, err = parseDay(q.Get("due_from")); err != nil {
		return f, err
	}
	if f.DueTo, err = parseDay(q.Get("due_to")); err != nil {
		return f, err
	}
	return f, nil
}

func parseDay(v string) (*time.Time, error) {
	if v == "" {
		return nil, nil
	}
	t, err := time.ParseInLocation(task.DateFormat, v, time.UTC)
	if err != nil {
		return nil, fmt.Errorf("%w: date %q must be YYYY-MM-DD", task.ErrValidation, v)
	}
	return &t, nil
}

type createRequest struct {
	Title        string `json:"title"`
	AssignedTo   string `json:"assigned_to"`
	StartDate    string `json:"start_date"`
	DueDate      string `json:"due_date"`
	Priority     int    `json:"priority"`
	Description  string `json:"description"`
	ExternalLink string `json:"external_link"`
}

func (s *Server) createTask(w http.ResponseWriter, r *http.Request) {
	rc, err := requestContext(r)
	if err != nil {
		fail(w, r, err)
		return
	}

	var req createRequest
	if err := decode(w, r, &req); err != nil {
		fail(w, r, err)
		return
	}

	in := taskflow.NewTask{
		Title:        req.Title,
		AssignedTo:   req.AssignedTo,
		Priority:     task.Priority(req.Priority),
		Description:  req.Description,
		ExternalLink: req.ExternalLink,
	}
	if in.StartDate, err = parseDay(req.StartDate); err != nil {
		fail(w, r, err)
		return
	}
	if in.DueDate, err = parseDay(req.DueDate); err != nil {
		fail(w, r, err)
		return
	}

	created, err := rc.Create(r.Context(), in)
	if err != nil {
		fail(w, r, err)
		return
	}
	w.Header().Set("Location", fmt.Sprintf("/api/tasks/%d", created.ID))
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) getTask(w http.ResponseWriter, r *http.Request) {
	rc, err := requestContext(r)
	if err != nil {
		fail(w, r, err)
		return
	}
	t, err := rc.Selected(r.Context())
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// patchRequest mirrors task.Patch with dates as YYYY-MM-DD strings. An empty
// completed_date clears the date.
type patchRequest struct {
	Title            *string  `json:"title"`
	AssignedTo       *string  `json:"assigned_to"`
	StartDate        *string  `json:"start_date"`
	DueDate          *string  `json:"due_date"`
	CompletedDate    *string  `json:"completed_date"`
	Status           *string  `json:"status"`
	Priority         *int     `json:"priority"`
	HoursSpent       *float64 `json:"hours_spent"`
	Description      *string  `json:"description"`
	ExternalLink     *string  `json:"external_link"`
	ExpectedRevision *int64   `json:"expected_revision"`
}

func (req patchRequest) toPatch() (task.Patch, error) {
	p := task.Patch{
		Title:            req.Title,
		AssignedTo:       req.AssignedTo,
		HoursSpent:       req.HoursSpent,
		Description:      req.Description,
		ExternalLink:     req.ExternalLink,
		ExpectedRevision: req.ExpectedRevision,
	}

	var err error
	if req.StartDate != nil {
		if p.StartDate, err = parseDay(*req.StartDate); err != nil {
			return p, err
		}
	}
	if req.DueDate != nil {
		if p.DueDate, err = parseDay(*req.DueDate); err != nil {
			return p, err
		}
	}
	if req.CompletedDate != nil {
		if *req.CompletedDate == "" {
			p.ClearCompletedDate = true
		} else if p.CompletedDate, err = parseDay(*req.CompletedDate); err != nil {
			return p, err
		}
	}
	if req.Status != nil {
		st := task.ParseStatus(*req.Status)
		p.Status = &st
	}
	if req.Priority != nil {
		pr := task.Priority(*req.Priority)
		p.Priority = &pr
	}
	return p, nil
}

func (s *Server) updateTask(w http.ResponseWriter, r *http.Request) {
	rc, err := requestContext(r)
	if err != nil {
		fail(w, r, err)
		return
	}

	var req patchRequest
	if err := decode(w, r, &req); err != nil {
		fail(w, r, err)
		return
	}
	patch, err := req.toPatch()
	if err != nil {
		fail(w, r, err)
		return
	}

	if patch.ExpectedRevision == nil {
		if v := strings.Trim(r.Header.Get("If-Match"), `"`); v != "" {
			rev, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				fail(w, r, fmt.Errorf("%w: If-Match must be a revision number", task.ErrValidation))
				return
			}
			patch.ExpectedRevision = &rev
		}
	}

	updated, err := rc.Update(r.Context(), patch)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) archiveTask(w http.ResponseWriter, r *http.Request) {
	rc, err := requestContext(r)
	if err != nil {
		fail(w, r, err)
		return
	}
	archived, err := rc.Archive(r.Context())
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, archived)
}

func (s *Server) commentTask(w http.ResponseWriter, r *http.Request) {
	rc, err := requestContext(r)
	if err != nil {
		fail(w, r, err)
		return
	}

	var req struct {
		Text string `json:"text"`
	}
	if err := decode(w, r, &req); err != nil {
		fail(w, r, err)
		return
	}

	updated, err := rc.Comment(r.Context(), req.Text)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, updated)
}

func (s *Server) timerStatus(w http.ResponseWriter, r *http.Request) {
	rc, err := requestContext(r)
	if err != nil {
		fail(w, r, err)
		return
	}
	st, err := rc.Tasks.Timer(r.Context(), rc.SelectedID)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) timerAction(w http.ResponseWriter, r *http.Request) {
	rc, err := requestContext(r)
	if err != nil {
		fail(w, r, err)
		return
	}

	if mux.Vars(r)["action"] == "start" {
		st, err := rc.StartTimer(r.Context())
		if err != nil {
			fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, st)
		return
	}

	updated, err := rc.StopTimer(r.Context())
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) listNotifications(w http.ResponseWriter, r *http.Request) {
	rc, err := requestContext(r)
	if err != nil {
		fail(w, r, err)
		return
	}

	q := r.URL.Query()
	unread, _ := strconv.ParseBool(q.Get("unread"))
	limit, _ := strconv.Atoi(q.Get("limit"))

	entries, err := rc.Inbox(r.Context(), unread, limit)
	if err != nil {
		fail(w, r, err)
		return
	}
	if entries == nil {
		entries = []audit.Entry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) markNotificationRead(w http.ResponseWriter, r *http.Request) {
	rc, err := requestContext(r)
	if err != nil {
		fail(w, r, err)
		return
	}
	if err := rc.MarkRead(r.Context(), rc.SelectedID); err != nil {
		fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) report(w http.ResponseWriter, r *http.Request) {
	rc, err := requestContext(r)
	if err != nil {
		fail(w, r, err)
		return
	}

	q := r.URL.Query()
	rng := report.DefaultRange(s.now())
	if from, err := parseDay(q.Get("from")); err != nil {
		fail(w, r, err)
		return
	} else if from != nil {
		rng.From = *from
	}
	if to, err := parseDay(q.Get("to")); err != nil {
		fail(w, r, err)
		return
	} else if to != nil {
		rng.To = *to
	}
	if rng.To.Before(rng.From) {
		fail(w, r, fmt.Errorf("%w: to is before from", task.ErrValidation))
		return
	}

	rep, err := rc.Report(r.Context(), rng, q.Get("assignee"))
	if err != nil {
		fail(w, r, err)
		return
	}

	if q.Get("format") == "html" || strings.Contains(r.Header.Get("Accept"), "text/html") {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := report.Render(w, rep); err != nil {
			fail(w, r, err)
		}
		return
	}
	writeJSON(w, http.StatusOK, rep)
}
