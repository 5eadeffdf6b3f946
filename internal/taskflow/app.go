package taskflow

import (
	"github.com/rs/zerolog"

	"github.com/colonyops/taskflow/internal/core/auth"
	"github.com/colonyops/taskflow/internal/core/config"
)

// App is the central entry point for all taskflow operations.
// Commands and the HTTP API consume App instead of cherry-picking raw
// dependencies.
type App struct {
	Tasks         *TaskService
	Notifications *NotificationService

	Users  *auth.Directory
	Cache  *CachedStore
	Stores *Stores
	Config *config.Config
}

// NewApp constructs an App from explicit dependencies. The task store is
// wrapped in the read cache configured by cfg.
func NewApp(cfg *config.Config, st *Stores, users *auth.Directory, log zerolog.Logger) *App {
	cache := NewCachedStore(st.Tasks, cfg.CacheTTL(), log)
	opts := ServiceOptions{StrictTransitions: cfg.Tasks.StrictTransitions}

	return &App{
		Tasks:         NewTaskService(cache, st.Audit, st.TimeLog, opts, log),
		Notifications: NewNotificationService(st.Audit, log),
		Users:         users,
		Cache:         cache,
		Stores:        st,
		Config:        cfg,
	}
}

// NewRequestContext starts a request for an already authenticated user.
func (a *App) NewRequestContext(u auth.User) *RequestContext {
	return &RequestContext{
		User:          u,
		Tasks:         a.Tasks,
		Notifications: a.Notifications,
	}
}

// Login authenticates and starts a request.
func (a *App) Login(name, password string) (*RequestContext, error) {
	u, err := a.Users.Authenticate(name, password)
	if err != nil {
		return nil, err
	}
	return a.NewRequestContext(u), nil
}

// Close releases the backing store.
func (a *App) Close() error {
	if a.Stores == nil {
		return nil
	}
	return a.Stores.Close()
}
