package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/hlog"

	"github.com/colonyops/taskflow/internal/core/audit"
	"github.com/colonyops/taskflow/internal/core/task"
	"github.com/colonyops/taskflow/internal/core/timelog"
	"github.com/colonyops/taskflow/internal/data/sheetstore"
	"github.com/colonyops/taskflow/pkg/iojson"
)

// statusFor maps domain errors onto HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, task.ErrNotFound), errors.Is(err, audit.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, task.ErrConflict),
		errors.Is(err, task.ErrDuplicate),
		errors.Is(err, timelog.ErrAlreadyRunning),
		errors.Is(err, timelog.ErrNotRunning),
		errors.Is(err, sheetstore.ErrLayoutNotCurrent):
		return http.StatusConflict
	case errors.Is(err, task.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, task.ErrValidation), errors.Is(err, task.ErrInvalidTransition):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// fail writes err with its mapped status. Internal errors are logged and
// their message is not sent to the client.
func fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		hlog.FromRequest(r).Error().Err(err).Msg("request failed")
		writeError(w, r, status, "internal error")
		return
	}
	writeError(w, r, status, err.Error())
}

func writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	data := map[string]any{"status": status}
	if id := w.Header().Get(requestIDHeader); id != "" {
		data["request_id"] = id
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = iojson.WriteError(w, msg, data)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
