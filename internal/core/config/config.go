// Package config handles configuration loading and validation for taskflow.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/colonyops/taskflow/internal/core/auth"
)

// Backend selects where tasks are stored.
type Backend string

const (
	BackendSQLite Backend = "sqlite"
	BackendSheets Backend = "sheets"
)

// IsValid reports whether b is a supported backend.
func (b Backend) IsValid() bool {
	return b == BackendSQLite || b == BackendSheets
}

// Config holds the application configuration.
type Config struct {
	Backend   Backend        `yaml:"backend"`
	Database  DatabaseConfig `yaml:"database"`
	Sheets    SheetsConfig   `yaml:"sheets"`
	Cache     CacheConfig    `yaml:"cache"`
	Tasks     TasksConfig    `yaml:"tasks"`
	Users     []UserConfig   `yaml:"users"`
	Assignees []string       `yaml:"assignees"`
	Server    ServerConfig   `yaml:"server"`
	DataDir   string         `yaml:"-"` // set by caller, not from config file
}

// DatabaseConfig tunes the SQLite connection pool.
type DatabaseConfig struct {
	MaxOpenConns int `yaml:"max_open_conns"`
	MaxIdleConns int `yaml:"max_idle_conns"`
	BusyTimeout  int `yaml:"busy_timeout"` // milliseconds
}

// SheetsConfig locates the spreadsheet backend.
type SheetsConfig struct {
	SpreadsheetID   string     `yaml:"spreadsheet_id"`
	CredentialsFile string     `yaml:"credentials_file"`
	CredentialsEnv  string     `yaml:"credentials_env"` // env var holding the service account JSON
	Tabs            TabsConfig `yaml:"tabs"`
}

// TabsConfig names the tabs inside the spreadsheet.
type TabsConfig struct {
	Tasks         string `yaml:"tasks"`
	Notifications string `yaml:"notifications"`
	TimeLog       string `yaml:"time_log"`
}

// CacheConfig controls the read cache in front of the task store.
type CacheConfig struct {
	// TTL is how long a fetched task list is reused. Zero disables caching;
	// nil means the default.
	TTL           *time.Duration `yaml:"ttl"`
	SweepInterval time.Duration  `yaml:"sweep_interval"`
}

// TasksConfig holds task behaviour switches.
type TasksConfig struct {
	StrictTransitions bool `yaml:"strict_transitions"`
}

// UserConfig is one configured account.
type UserConfig struct {
	Name         string    `yaml:"name"`
	Role         auth.Role `yaml:"role"`
	PasswordHash string    `yaml:"password_hash"`
	PasswordEnv  string    `yaml:"password_env"`
}

// ServerConfig configures `taskflow serve`.
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// DefaultCacheTTL is used when cache.ttl is not set.
const DefaultCacheTTL = 5 * time.Minute

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	ttl := DefaultCacheTTL
	return Config{
		Backend: BackendSQLite,
		Database: DatabaseConfig{
			MaxOpenConns: 10,
			MaxIdleConns: 5,
			BusyTimeout:  5000,
		},
		Sheets: SheetsConfig{
			Tabs: TabsConfig{
				Tasks:         "Tasks",
				Notifications: "Notifications",
				TimeLog:       "TimeLog",
			},
		},
		Cache: CacheConfig{
			TTL:           &ttl,
			SweepInterval: time.Minute,
		},
		Server: ServerConfig{
			Addr:            "127.0.0.1:8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
	}
}

// Load reads configuration from the given path and sets the data directory.
// If configPath is empty or doesn't exist, returns defaults with the provided dataDir.
func Load(configPath, dataDir string) (*Config, error) {
	cfg := DefaultConfig()

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			data, err := os.ReadFile(configPath)
			if err != nil {
				return nil, fmt.Errorf("read config file: %w", err)
			}

			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("parse config file: %w", err)
			}
		}
	}

	cfg.DataDir = dataDir
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// applyDefaults sets default values for any unset configuration options.
func (c *Config) applyDefaults() {
	defaults := DefaultConfig()
	if c.Backend == "" {
		c.Backend = defaults.Backend
	}
	c.Backend = Backend(strings.ToLower(string(c.Backend)))

	if c.Database.MaxOpenConns == 0 {
		c.Database.MaxOpenConns = defaults.Database.MaxOpenConns
	}
	if c.Database.MaxIdleConns == 0 {
		c.Database.MaxIdleConns = defaults.Database.MaxIdleConns
	}
	if c.Database.BusyTimeout == 0 {
		c.Database.BusyTimeout = defaults.Database.BusyTimeout
	}

	if c.Sheets.Tabs.Tasks == "" {
		c.Sheets.Tabs.Tasks = defaults.Sheets.Tabs.Tasks
	}
	if c.Sheets.Tabs.Notifications == "" {
		c.Sheets.Tabs.Notifications = defaults.Sheets.Tabs.Notifications
	}
	if c.Sheets.Tabs.TimeLog == "" {
		c.Sheets.Tabs.TimeLog = defaults.Sheets.Tabs.TimeLog
	}

	if c.Cache.TTL == nil {
		c.Cache.TTL = defaults.Cache.TTL
	}
	if c.Cache.SweepInterval == 0 {
		c.Cache.SweepInterval = defaults.Cache.SweepInterval
	}

	if c.Server.Addr == "" {
		c.Server.Addr = defaults.Server.Addr
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = defaults.Server.ReadTimeout
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = defaults.Server.WriteTimeout
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = defaults.Server.ShutdownTimeout
	}

	for i := range c.Users {
		c.Users[i].Role = auth.Role(strings.ToLower(string(c.Users[i].Role)))
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if !c.Backend.IsValid() {
		return fmt.Errorf("backend must be %q or %q, got %q", BackendSQLite, BackendSheets, c.Backend)
	}

	if c.DataDir == "" {
		return fmt.Errorf("data directory cannot be empty")
	}

	if c.Database.MaxOpenConns < 1 {
		return fmt.Errorf("database.max_open_conns must be at least 1")
	}
	if c.Database.MaxIdleConns < 0 {
		return fmt.Errorf("database.max_idle_conns cannot be negative")
	}
	if c.Database.BusyTimeout < 0 {
		return fmt.Errorf("database.busy_timeout cannot be negative")
	}

	if c.Backend == BackendSheets && c.Sheets.SpreadsheetID == "" {
		return fmt.Errorf("sheets.spreadsheet_id is required when backend is %q", BackendSheets)
	}

	tabs := map[string]bool{}
	for _, tab := range []string{c.Sheets.Tabs.Tasks, c.Sheets.Tabs.Notifications, c.Sheets.Tabs.TimeLog} {
		if tabs[tab] {
			return fmt.Errorf("sheets.tabs: %q is used more than once", tab)
		}
		tabs[tab] = true
	}

	if c.Cache.TTL != nil && *c.Cache.TTL < 0 {
		return fmt.Errorf("cache.ttl cannot be negative")
	}
	if c.Cache.SweepInterval < 0 {
		return fmt.Errorf("cache.sweep_interval cannot be negative")
	}

	seen := map[string]bool{}
	for i, u := range c.Users {
		if strings.TrimSpace(u.Name) == "" {
			return fmt.Errorf("users[%d]: name is required", i)
		}
		key := strings.ToLower(u.Name)
		if seen[key] {
			return fmt.Errorf("users[%d]: duplicate user %q", i, u.Name)
		}
		seen[key] = true

		if !u.Role.IsValid() {
			return fmt.Errorf("users[%d]: role must be %q or %q", i, auth.RoleManager, auth.RoleMember)
		}
		if u.PasswordHash == "" && u.PasswordEnv == "" {
			return fmt.Errorf("users[%d]: one of password_hash or password_env is required", i)
		}
	}

	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr cannot be empty")
	}

	return nil
}

// CacheTTL returns the effective cache time to live.
func (c *Config) CacheTTL() time.Duration {
	if c.Cache.TTL == nil {
		return DefaultCacheTTL
	}
	return *c.Cache.TTL
}

// Credentials resolves the configured users into auth credentials, reading
// plaintext secrets from the environment.
func (c *Config) Credentials() []auth.Credential {
	creds := make([]auth.Credential, 0, len(c.Users))
	for _, u := range c.Users {
		cred := auth.Credential{Name: u.Name, Role: u.Role, PasswordHash: u.PasswordHash}
		if u.PasswordEnv != "" {
			cred.Password = os.Getenv(u.PasswordEnv)
		}
		creds = append(creds, cred)
	}
	return creds
}

// KnownAssignees returns the configured assignee list, falling back to the
// configured user names.
func (c *Config) KnownAssignees() []string {
	if len(c.Assignees) > 0 {
		return c.Assignees
	}
	names := make([]string, 0, len(c.Users))
	for _, u := range c.Users {
		names = append(names, u.Name)
	}
	return names
}
