package taskflow

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/colonyops/taskflow/internal/core/auth"
	"github.com/colonyops/taskflow/internal/core/config"
	"github.com/colonyops/taskflow/internal/data/db"
	"github.com/colonyops/taskflow/internal/data/sheetstore"
	"github.com/colonyops/taskflow/internal/data/sheetstore/sheettest"
)

var (
	manager = auth.User{Name: "Manager", Role: auth.RoleManager}
	luke    = auth.User{Name: "Luke", Role: auth.RoleMember}
	sarah   = auth.User{Name: "Sarah", Role: auth.RoleMember}
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func ptr[T any](v T) *T { return &v }

func day(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

// backends returns a fresh Stores per backend so every test runs against
// both.
func backends(t *testing.T) map[string]func(t *testing.T) *Stores {
	t.Helper()
	return map[string]func(t *testing.T) *Stores{
		"sqlite": func(t *testing.T) *Stores {
			database, err := db.Open(t.TempDir(), db.DefaultOpenOptions())
			require.NoError(t, err)
			st := SQLiteStores(database)
			t.Cleanup(func() { _ = st.Close() })
			return st
		},
		"sheets": func(t *testing.T) *Stores {
			tabs := sheetstore.Tabs{Tasks: "Tasks", Notifications: "Notifications", TimeLog: "TimeLog"}
			st, err := SheetStores(context.Background(), sheettest.New(), tabs, zerolog.Nop())
			require.NoError(t, err)
			return st
		},
	}
}

func newTestService(t *testing.T, st *Stores, opts ServiceOptions) (*TaskService, *clock) {
	t.Helper()
	c := &clock{now: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
	svc := NewTaskService(st.Tasks, st.Audit, st.TimeLog, opts, zerolog.Nop())
	svc.now = c.Now
	return svc, c
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.DataDir = t.TempDir()
	return &cfg
}
