// Package web serves the task API over HTTP with Basic authentication.
package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/colonyops/taskflow/internal/taskflow"
)

// Server routes API requests to the application services.
type Server struct {
	app    *taskflow.App
	router *mux.Router
	log    zerolog.Logger
	now    func() time.Time
}

// New builds the router.
func New(app *taskflow.App, log zerolog.Logger) *Server {
	s := &Server{
		app:    app,
		router: mux.NewRouter(),
		log:    log.With().Str("component", "web").Logger(),
		now:    time.Now,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	r := s.router
	r.Use(s.requestID, s.accessLog, s.recoverer)

	r.HandleFunc("/health", s.health).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.Use(s.authenticate)

	api.HandleFunc("/me", s.me).Methods(http.MethodGet)

	api.HandleFunc("/tasks", s.listTasks).Methods(http.MethodGet)
	api.HandleFunc("/tasks", s.createTask).Methods(http.MethodPost)
	api.HandleFunc("/tasks/{id:[0-9]+}", s.getTask).Methods(http.MethodGet)
	api.HandleFunc("/tasks/{id:[0-9]+}", s.updateTask).Methods(http.MethodPatch)
	api.HandleFunc("/tasks/{id:[0-9]+}/archive", s.archiveTask).Methods(http.MethodPost)
	api.HandleFunc("/tasks/{id:[0-9]+}/comments", s.commentTask).Methods(http.MethodPost)
	api.HandleFunc("/tasks/{id:[0-9]+}/timer", s.timerStatus).Methods(http.MethodGet)
	api.HandleFunc("/tasks/{id:[0-9]+}/timer/{action:start|stop}", s.timerAction).Methods(http.MethodPost)

	api.HandleFunc("/notifications", s.listNotifications).Methods(http.MethodGet)
	api.HandleFunc("/notifications/{id:[0-9]+}/read", s.markNotificationRead).Methods(http.MethodPost)

	api.HandleFunc("/report", s.report).Methods(http.MethodGet)

	notFound := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusNotFound, "route not found")
	})
	notAllowed := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
	})

	// A subrouter answers misses itself; the root handlers only see paths
	// outside /api.
	for _, router := range []*mux.Router{r, api} {
		router.NotFoundHandler = notFound
		router.MethodNotAllowedHandler = notAllowed
	}
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Options configure ListenAndServe.
type Options struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, opts Options) error {
	srv := &http.Server{
		Addr:              opts.Addr,
		Handler:           s,
		ReadTimeout:       opts.ReadTimeout,
		ReadHeaderTimeout: opts.ReadTimeout,
		WriteTimeout:      opts.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", opts.Addr).Msg("listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), opts.ShutdownTimeout)
	defer cancel()

	s.log.Info().Msg("shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
