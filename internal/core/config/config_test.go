package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colonyops/taskflow/internal/core/auth"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	dataDir := t.TempDir()
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), dataDir)
	require.NoError(t, err)

	assert.Equal(t, BackendSQLite, cfg.Backend)
	assert.Equal(t, dataDir, cfg.DataDir)
	assert.Equal(t, DefaultCacheTTL, cfg.CacheTTL())
	assert.Equal(t, "Tasks", cfg.Sheets.Tabs.Tasks)
	assert.Equal(t, "127.0.0.1:8080", cfg.Server.Addr)
	assert.False(t, cfg.Tasks.StrictTransitions)
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
backend: Sheets
sheets:
  spreadsheet_id: abc123
  tabs:
    tasks: Work
cache:
  ttl: 30s
tasks:
  strict_transitions: true
users:
  - name: Manager
    role: Manager
    password_env: TASKFLOW_MANAGER_PASSWORD
  - name: Luke
    role: member
    password_hash: "$2a$04$abcdefghijklmnopqrstuu"
assignees: [Luke, Sarah]
server:
  addr: ":9090"
`)

	cfg, err := Load(path, t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, BackendSheets, cfg.Backend)
	assert.Equal(t, "abc123", cfg.Sheets.SpreadsheetID)
	assert.Equal(t, "Work", cfg.Sheets.Tabs.Tasks)
	assert.Equal(t, "Notifications", cfg.Sheets.Tabs.Notifications, "unset tabs keep defaults")
	assert.Equal(t, 30*time.Second, cfg.CacheTTL())
	assert.True(t, cfg.Tasks.StrictTransitions)
	require.Len(t, cfg.Users, 2)
	assert.Equal(t, auth.RoleManager, cfg.Users[0].Role, "roles are lower-cased")
	assert.Equal(t, []string{"Luke", "Sarah"}, cfg.KnownAssignees())
	assert.Equal(t, ":9090", cfg.Server.Addr)
}

func TestLoad_ZeroTTLDisablesCache(t *testing.T) {
	path := writeConfig(t, "cache:\n  ttl: 0s\n")
	cfg, err := Load(path, t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, time.Duration(0), cfg.CacheTTL())
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "backend: [")
	_, err := Load(path, t.TempDir())
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{name: "unknown backend", mutate: func(c *Config) { c.Backend = "excel" }, wantErr: "backend"},
		{name: "empty data dir", mutate: func(c *Config) { c.DataDir = "" }, wantErr: "data directory"},
		{name: "sheets without id", mutate: func(c *Config) { c.Backend = BackendSheets }, wantErr: "spreadsheet_id"},
		{name: "duplicate tabs", mutate: func(c *Config) { c.Sheets.Tabs.TimeLog = "Tasks" }, wantErr: "more than once"},
		{name: "negative ttl", mutate: func(c *Config) { d := -time.Second; c.Cache.TTL = &d }, wantErr: "cache.ttl"},
		{name: "user without name", mutate: func(c *Config) { c.Users = []UserConfig{{Role: auth.RoleMember, PasswordEnv: "X"}} }, wantErr: "name is required"},
		{name: "user bad role", mutate: func(c *Config) { c.Users = []UserConfig{{Name: "a", Role: "admin", PasswordEnv: "X"}} }, wantErr: "role"},
		{name: "user without secret", mutate: func(c *Config) { c.Users = []UserConfig{{Name: "a", Role: auth.RoleMember}} }, wantErr: "password"},
		{
			name: "duplicate user",
			mutate: func(c *Config) {
				c.Users = []UserConfig{
					{Name: "Luke", Role: auth.RoleMember, PasswordEnv: "X"},
					{Name: "luke", Role: auth.RoleMember, PasswordEnv: "Y"},
				}
			},
			wantErr: "duplicate user",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.DataDir = t.TempDir()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestCredentials_ReadsEnv(t *testing.T) {
	t.Setenv("TASKFLOW_TEST_SECRET", "hunter2")
	cfg := DefaultConfig()
	cfg.Users = []UserConfig{
		{Name: "Luke", Role: auth.RoleMember, PasswordEnv: "TASKFLOW_TEST_SECRET"},
		{Name: "Manager", Role: auth.RoleManager, PasswordHash: "$2a$..."},
	}

	creds := cfg.Credentials()
	require.Len(t, creds, 2)
	assert.Equal(t, "hunter2", creds[0].Password)
	assert.Equal(t, "$2a$...", creds[1].PasswordHash)
	assert.Empty(t, creds[1].Password)
}
