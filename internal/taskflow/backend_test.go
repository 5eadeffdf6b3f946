package taskflow

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colonyops/taskflow/internal/core/config"
	"github.com/colonyops/taskflow/internal/core/task"
	"github.com/colonyops/taskflow/internal/data/db"
	"github.com/colonyops/taskflow/internal/data/sheetstore"
	"github.com/colonyops/taskflow/internal/data/sheetstore/sheettest"
)

func TestSheetStores_CreatesTabs(t *testing.T) {
	grid := sheettest.New()
	tabs := sheetstore.Tabs{Tasks: "Work", Notifications: "Inbox", TimeLog: "Hours"}

	st, err := SheetStores(context.Background(), grid, tabs, zerolog.Nop())
	require.NoError(t, err)
	assert.Same(t, grid, st.Grid)

	assert.Equal(t, task.Columns, grid.Rows("Work")[0])
	assert.Equal(t, sheetstore.AuditColumns, grid.Rows("Inbox")[0])
	assert.Equal(t, sheetstore.TimeLogColumns, grid.Rows("Hours")[0])
	assert.NoError(t, st.Close())
}

func TestOpenStores_SQLite(t *testing.T) {
	cfg := testConfig(t)

	st, err := OpenStores(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	require.NotNil(t, st.DB)
	assert.Nil(t, st.Grid)
	assert.FileExists(t, filepath.Join(cfg.DataDir, db.FileName))
	require.NoError(t, st.Close())
}

func TestOpenStores_RecoversFromCorruption(t *testing.T) {
	cfg := testConfig(t)
	path := filepath.Join(cfg.DataDir, db.FileName)
	require.NoError(t, os.WriteFile(path, []byte(strings.Repeat("not a database ", 512)), 0o644))

	st, err := OpenStores(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	tasks, err := st.Tasks.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, tasks)

	backups, err := filepath.Glob(path + ".corrupt.*")
	require.NoError(t, err)
	assert.NotEmpty(t, backups)
}

func TestOpenStores_UnknownBackend(t *testing.T) {
	cfg := testConfig(t)
	cfg.Backend = config.Backend("excel")

	_, err := OpenStores(context.Background(), cfg, zerolog.Nop())
	assert.Error(t, err)
}
