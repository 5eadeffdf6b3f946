package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/hay-kot/criterio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/colonyops/taskflow/internal/core/auth"
)

// validConfig returns a Config with all required fields set for testing.
func validConfig(t *testing.T) *Config {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("secret"), bcrypt.MinCost)
	require.NoError(t, err)

	cfg := DefaultConfig()
	cfg.DataDir = t.TempDir()
	cfg.Users = []UserConfig{{Name: "Manager", Role: auth.RoleManager, PasswordHash: string(hash)}}
	return &cfg
}

func TestValidateDeep_ValidConfig(t *testing.T) {
	cfg := validConfig(t)
	assert.NoError(t, cfg.ValidateDeep(""))
}

func TestValidateDeep_StructuralErrorFirst(t *testing.T) {
	cfg := validConfig(t)
	cfg.Backend = "excel"
	cfg.Users[0].PasswordHash = "plaintext"

	err := cfg.ValidateDeep("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "backend")
}

func TestValidateDeep_BadPasswordHash(t *testing.T) {
	cfg := validConfig(t)
	cfg.Users[0].PasswordHash = "plaintext"

	err := cfg.ValidateDeep("")

	var fieldErrs criterio.FieldErrors
	require.ErrorAs(t, err, &fieldErrs)
	require.Len(t, fieldErrs, 1)
	assert.Equal(t, "users[0].password_hash", fieldErrs[0].Field)
	assert.Contains(t, fieldErrs[0].Err.Error(), "bcrypt")
}

func TestValidateDeep_MissingPasswordEnv(t *testing.T) {
	cfg := validConfig(t)
	cfg.Users = append(cfg.Users, UserConfig{Name: "Luke", Role: auth.RoleMember, PasswordEnv: "TASKFLOW_TEST_UNSET_VAR"})

	err := cfg.ValidateDeep("")

	var fieldErrs criterio.FieldErrors
	require.ErrorAs(t, err, &fieldErrs)
	require.Len(t, fieldErrs, 1)
	assert.Equal(t, "users[1].password_env", fieldErrs[0].Field)
}

func TestValidateDeep_SheetsCredentials(t *testing.T) {
	cfg := validConfig(t)
	cfg.Backend = BackendSheets
	cfg.Sheets.SpreadsheetID = "abc"
	cfg.Sheets.CredentialsFile = filepath.Join(t.TempDir(), "missing.json")

	err := cfg.ValidateDeep("")

	var fieldErrs criterio.FieldErrors
	require.ErrorAs(t, err, &fieldErrs)
	require.Len(t, fieldErrs, 1)
	assert.Equal(t, "sheets.credentials_file", fieldErrs[0].Field)
}

func TestValidateDeep_DataDirIsFile(t *testing.T) {
	cfg := validConfig(t)
	file := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(file, nil, 0o644))
	cfg.DataDir = file

	err := cfg.ValidateDeep("")

	var fieldErrs criterio.FieldErrors
	require.ErrorAs(t, err, &fieldErrs)
	assert.Equal(t, "data_dir", fieldErrs[0].Field)
}

func TestValidateDeep_ConfigFileIsDir(t *testing.T) {
	cfg := validConfig(t)
	err := cfg.ValidateDeep(t.TempDir())

	var fieldErrs criterio.FieldErrors
	require.ErrorAs(t, err, &fieldErrs)
	assert.Equal(t, "config_file", fieldErrs[0].Field)
}

func TestWarnings(t *testing.T) {
	cfg := validConfig(t)
	assert.Empty(t, cfg.Warnings())

	cfg.Assignees = []string{"manager", "Sarah"}
	warnings := cfg.Warnings()
	require.Len(t, warnings, 1)
	assert.Equal(t, "Sarah", warnings[0].Item)

	cfg.Users[0].Role = auth.RoleMember
	cfg.Assignees = nil
	warnings = cfg.Warnings()
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0].Message, "no manager")
}
