package taskflow

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/colonyops/taskflow/internal/core/audit"
	"github.com/colonyops/taskflow/internal/core/config"
	"github.com/colonyops/taskflow/internal/core/task"
	"github.com/colonyops/taskflow/internal/core/timelog"
	"github.com/colonyops/taskflow/internal/data/db"
	"github.com/colonyops/taskflow/internal/data/sheetstore"
	"github.com/colonyops/taskflow/internal/data/stores"
	"github.com/colonyops/taskflow/internal/integration/gsheets"
)

// Stores bundles the three persistence contracts for one backend.
type Stores struct {
	Tasks   task.Store
	Audit   audit.Store
	TimeLog timelog.Store

	// DB is set for the sqlite backend.
	DB *db.DB
	// Grid and Tabs are set for the sheets backend.
	Grid sheetstore.Grid
	Tabs sheetstore.Tabs
}

// Close releases the backend.
func (s *Stores) Close() error {
	if s.DB != nil {
		return s.DB.Close()
	}
	return nil
}

// OpenStores connects to the configured backend.
func OpenStores(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*Stores, error) {
	switch cfg.Backend {
	case config.BackendSQLite:
		return openSQLite(cfg, log)
	case config.BackendSheets:
		grid, err := gsheets.Open(ctx, gsheets.Config{
			SpreadsheetID:   cfg.Sheets.SpreadsheetID,
			CredentialsFile: cfg.Sheets.CredentialsFile,
			CredentialsJSON: credentialsFromEnv(cfg.Sheets.CredentialsEnv),
		}, log)
		if err != nil {
			return nil, fmt.Errorf("open spreadsheet: %w", err)
		}
		tabs := sheetstore.Tabs{
			Tasks:         cfg.Sheets.Tabs.Tasks,
			Notifications: cfg.Sheets.Tabs.Notifications,
			TimeLog:       cfg.Sheets.Tabs.TimeLog,
		}
		return SheetStores(ctx, grid, tabs, log)
	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
}

// SheetStores builds the sheets backend over grid, creating missing tabs.
func SheetStores(ctx context.Context, grid sheetstore.Grid, tabs sheetstore.Tabs, log zerolog.Logger) (*Stores, error) {
	taskStore := sheetstore.NewTaskStore(grid, tabs.Tasks, log)
	auditStore := sheetstore.NewAuditStore(grid, tabs.Notifications)
	timeStore := sheetstore.NewTimelogStore(grid, tabs.TimeLog)

	if err := taskStore.Init(ctx); err != nil {
		return nil, err
	}
	if err := auditStore.Init(ctx); err != nil {
		return nil, err
	}
	if err := timeStore.Init(ctx); err != nil {
		return nil, err
	}

	return &Stores{
		Tasks:   taskStore,
		Audit:   auditStore,
		TimeLog: timeStore,
		Grid:    grid,
		Tabs:    tabs,
	}, nil
}

// openSQLite opens the database, moving a corrupted file aside and starting
// fresh when SQLite reports corruption.
func openSQLite(cfg *config.Config, log zerolog.Logger) (*Stores, error) {
	opts := db.OpenOptions{
		MaxOpenConns: cfg.Database.MaxOpenConns,
		MaxIdleConns: cfg.Database.MaxIdleConns,
		BusyTimeout:  cfg.Database.BusyTimeout,
	}

	database, err := db.Open(cfg.DataDir, opts)
	if err != nil && stores.IsCorruptionError(err) {
		backup, recErr := stores.RecoverFromCorruption(cfg.DataDir)
		if recErr != nil {
			return nil, errors.Join(err, recErr)
		}
		log.Warn().Err(err).Str("backup", backup).Msg("database was corrupted; moved aside and starting fresh")
		database, err = db.Open(cfg.DataDir, opts)
	}
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	return SQLiteStores(database), nil
}

// SQLiteStores builds the sqlite backend over an open database.
func SQLiteStores(database *db.DB) *Stores {
	return &Stores{
		Tasks:   stores.NewTaskStore(database),
		Audit:   stores.NewAuditStore(database),
		TimeLog: stores.NewTimelogStore(database),
		DB:      database,
	}
}

func credentialsFromEnv(name string) string {
	if name == "" {
		return ""
	}
	return os.Getenv(name)
}
