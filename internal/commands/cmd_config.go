package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/hay-kot/criterio"
	"github.com/urfave/cli/v3"

	"github.com/colonyops/taskflow/internal/core/config"
	"github.com/colonyops/taskflow/internal/core/styles"
	"github.com/colonyops/taskflow/pkg/iojson"
)

type ConfigCmd struct {
	flags  *Flags
	format string
}

// NewConfigCmd creates a new config command.
func NewConfigCmd(flags *Flags) *ConfigCmd {
	return &ConfigCmd{flags: flags}
}

// Register adds the config command to the application.
func (cmd *ConfigCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:  "config",
		Usage: "Configuration management commands",
		Commands: []*cli.Command{
			{
				Name:        "validate",
				Usage:       "Validate configuration file",
				UsageText:   "taskflow config validate [options]",
				Description: "Validates the configuration file, checking the backend settings, credentials, password hashes and file paths.",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:        "format",
						Usage:       "output format (text, json)",
						Value:       "text",
						Destination: &cmd.format,
					},
				},
				Action: cmd.runValidate,
			},
		},
	})

	return app
}

type validationError struct {
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

type validationResult struct {
	Valid    bool                       `json:"valid"`
	Errors   []validationError          `json:"errors,omitempty"`
	Warnings []config.ValidationWarning `json:"warnings,omitempty"`
}

func (cmd *ConfigCmd) runValidate(_ context.Context, c *cli.Command) error {
	cfg := cmd.flags.Config
	result := validationResult{Warnings: cfg.Warnings()}

	if err := cfg.ValidateDeep(cmd.flags.ConfigPath); err != nil {
		result.Errors = flattenErrors(err)
	}
	result.Valid = len(result.Errors) == 0

	if cmd.format == "json" {
		if err := iojson.Write(c.Root().Writer, result); err != nil {
			return err
		}
		if !result.Valid {
			return cli.Exit("", 1)
		}
		return nil
	}

	out := c.Root().Writer
	for _, w := range result.Warnings {
		line := fmt.Sprintf("warning: %s: %s", w.Category, w.Message)
		if w.Item != "" {
			line += " (" + w.Item + ")"
		}
		_, _ = fmt.Fprintln(out, styles.WarningStyle.Render(line))
	}
	for _, e := range result.Errors {
		line := "error: " + e.Message
		if e.Field != "" {
			line = fmt.Sprintf("error: %s: %s", e.Field, e.Message)
		}
		_, _ = fmt.Fprintln(out, styles.ErrorStyle.Render(line))
	}

	if result.Valid {
		_, _ = fmt.Fprintln(out, styles.SuccessStyle.Render("Configuration is valid"))
		return nil
	}

	_, _ = fmt.Fprintln(out, styles.ErrorStyle.Render(fmt.Sprintf("%d error(s) found", len(result.Errors))))
	return cli.Exit("", 1)
}

// flattenErrors splits criterio field errors into one entry per field.
func flattenErrors(err error) []validationError {
	var fieldErrs criterio.FieldErrors
	if !errors.As(err, &fieldErrs) {
		return []validationError{{Message: err.Error()}}
	}

	out := make([]validationError, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		out = append(out, validationError{Field: fe.Field, Message: fe.Err.Error()})
	}
	return out
}
