package commands

import (
	"os"
	"path/filepath"
	"runtime"

	"github.com/colonyops/taskflow/internal/core/config"
)

type Flags struct {
	LogLevel   string
	LogFile    string
	ConfigPath string
	DataDir    string

	// User and Password identify the caller for commands that act on tasks.
	User     string
	Password string

	// Config is loaded in the Before hook and available to all commands
	Config *config.Config
}

// DefaultConfigPath returns the default config file path using XDG_CONFIG_HOME.
func DefaultConfigPath() string {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, _ := os.UserHomeDir()
		configHome = filepath.Join(home, ".config")
	}
	return filepath.Join(configHome, "taskflow", "config.yaml")
}

// DefaultDataDir returns the default data directory using XDG_DATA_HOME.
func DefaultDataDir() string {
	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		home, _ := os.UserHomeDir()
		dataHome = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataHome, "taskflow")
}

// DefaultLogFile returns the default log file path using the system's state directory.
// On macOS: ~/Library/Logs/taskflow/taskflow.log
// On Linux: $XDG_STATE_HOME/taskflow/taskflow.log (defaults to ~/.local/state/taskflow/taskflow.log)
func DefaultLogFile() string {
	stateHome := os.Getenv("XDG_STATE_HOME")
	if stateHome != "" {
		return filepath.Join(stateHome, "taskflow", "taskflow.log")
	}

	home, _ := os.UserHomeDir()
	if runtime.GOOS == "darwin" {
		return filepath.Join(home, "Library", "Logs", "taskflow", "taskflow.log")
	}
	return filepath.Join(home, ".local", "state", "taskflow", "taskflow.log")
}

// NeedsStores reports whether the named top-level command reads or writes
// task data. Commands that only inspect configuration run without opening
// the backend.
func NeedsStores(command string) bool {
	switch command {
	case "", "config", "user", "help", "h", "completion":
		return false
	}
	return true
}
