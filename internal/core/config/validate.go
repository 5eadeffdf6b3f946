package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/hay-kot/criterio"
	"golang.org/x/crypto/bcrypt"

	"github.com/colonyops/taskflow/internal/core/auth"
)

// ValidationWarning represents a non-fatal configuration issue.
type ValidationWarning struct {
	Category string `json:"category"`
	Item     string `json:"item,omitempty"`
	Message  string `json:"message"`
}

// ValidateDeep performs comprehensive validation of the configuration,
// including file accessibility, credentials and password hashes. The
// configPath argument specifies the config file location to validate (empty
// string skips the config file check). This calls Validate() first for basic
// structural validation, then adds I/O checks.
func (c *Config) ValidateDeep(configPath string) error {
	if err := c.Validate(); err != nil {
		return err
	}

	return criterio.ValidateStruct(
		c.validateFileAccess(configPath),
		c.validateSheets(),
		c.validateUsers(),
	)
}

// Warnings returns non-fatal configuration issues.
func (c *Config) Warnings() []ValidationWarning {
	var warnings []ValidationWarning

	if len(c.Users) == 0 {
		warnings = append(warnings, ValidationWarning{
			Category: "Users",
			Message:  "no users configured; every login will fail",
		})
	}

	hasManager := false
	names := map[string]bool{}
	for _, u := range c.Users {
		names[strings.ToLower(u.Name)] = true
		if u.Role == auth.RoleManager {
			hasManager = true
		}
	}
	if len(c.Users) > 0 && !hasManager {
		warnings = append(warnings, ValidationWarning{
			Category: "Users",
			Message:  "no manager configured; nobody can create tasks",
		})
	}

	for _, a := range c.Assignees {
		if !names[strings.ToLower(a)] {
			warnings = append(warnings, ValidationWarning{
				Category: "Assignees",
				Item:     a,
				Message:  "assignee has no matching user and cannot sign in",
			})
		}
	}

	if c.Backend == BackendSheets && c.CacheTTL() == 0 {
		warnings = append(warnings, ValidationWarning{
			Category: "Cache",
			Message:  "cache disabled with the sheets backend; every read calls the Sheets API",
		})
	}

	return warnings
}

// validateFileAccess checks the config file and data directory.
func (c *Config) validateFileAccess(configPath string) error {
	return criterio.ValidateStruct(
		validateConfigFile(configPath),
		criterio.Run("data_dir", c.DataDir, isDirectoryOrNotExist),
	)
}

func validateConfigFile(configPath string) error {
	if configPath == "" {
		return nil
	}

	info, err := os.Stat(configPath)
	if os.IsNotExist(err) {
		return nil // not found is fine, using defaults
	}
	if err != nil {
		return criterio.NewFieldErrors("config_file", fmt.Errorf("cannot access: %w", err))
	}
	if info.IsDir() {
		return criterio.NewFieldErrors("config_file", fmt.Errorf("%s is a directory, not a file", configPath))
	}
	return nil
}

// isDirectoryOrNotExist validates that a path is a directory or doesn't exist.
func isDirectoryOrNotExist(path string) error {
	if path == "" {
		return nil
	}
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil // will be created
	}
	if err != nil {
		return fmt.Errorf("cannot access: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("exists but is not a directory")
	}
	return nil
}

func isReadableFile(path string) error {
	if path == "" {
		return nil
	}
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("cannot access: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory, not a file", path)
	}
	return nil
}

func envIsSet(name string) error {
	if name == "" {
		return nil
	}
	if os.Getenv(name) == "" {
		return fmt.Errorf("environment variable %s is not set", name)
	}
	return nil
}

func (c *Config) validateSheets() error {
	if c.Backend != BackendSheets {
		return nil
	}

	var errs criterio.FieldErrorsBuilder
	if c.Sheets.CredentialsFile != "" && c.Sheets.CredentialsEnv != "" {
		errs = errs.Append("sheets", fmt.Errorf("set only one of credentials_file or credentials_env"))
	}
	if err := isReadableFile(c.Sheets.CredentialsFile); err != nil {
		errs = errs.Append("sheets.credentials_file", err)
	}
	if err := envIsSet(c.Sheets.CredentialsEnv); err != nil {
		errs = errs.Append("sheets.credentials_env", err)
	}
	return errs.ToError()
}

func (c *Config) validateUsers() error {
	var errs criterio.FieldErrorsBuilder
	for i, u := range c.Users {
		prefix := fmt.Sprintf("users[%d]", i)
		if u.PasswordHash != "" {
			if _, err := bcrypt.Cost([]byte(u.PasswordHash)); err != nil {
				errs = errs.Append(prefix+".password_hash", fmt.Errorf("not a bcrypt hash: %w", err))
			}
		}
		if err := envIsSet(u.PasswordEnv); err != nil {
			errs = errs.Append(prefix+".password_env", err)
		}
	}
	return errs.ToError()
}
