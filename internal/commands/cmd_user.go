package commands

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"
	"golang.org/x/term"

	"github.com/colonyops/taskflow/internal/core/auth"
)

// UserCmd implements the taskflow user command group.
type UserCmd struct {
	flags *Flags
}

// NewUserCmd creates a new user command.
func NewUserCmd(flags *Flags) *UserCmd {
	return &UserCmd{flags: flags}
}

// Register adds the user command to the application.
func (cmd *UserCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:  "user",
		Usage: "Manage user credentials",
		Commands: []*cli.Command{
			{
				Name:      "hash-password",
				Usage:     "Print a bcrypt hash for the password_hash setting",
				UsageText: "taskflow user hash-password",
				Description: `Prompts for a password twice on a terminal, or reads one line from stdin
when piped, and prints the bcrypt hash to paste into config.yaml:

  users:
    - name: Luke
      role: member
      password_hash: "$2a$10$..."`,
				Action: cmd.runHashPassword,
			},
			{
				Name:      "list",
				Aliases:   []string{"ls"},
				Usage:     "List configured users",
				UsageText: "taskflow user list",
				Action:    cmd.runList,
			},
		},
	})

	return app
}

func (cmd *UserCmd) runHashPassword(_ context.Context, c *cli.Command) error {
	var password string
	if f, ok := c.Root().Reader.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		first, err := promptPassword("Password: ")
		if err != nil {
			return err
		}
		second, err := promptPassword("Repeat password: ")
		if err != nil {
			return err
		}
		if first != second {
			return errors.New("passwords do not match")
		}
		password = first
	} else {
		line, err := readLine(c.Root().Reader)
		if err != nil {
			return fmt.Errorf("read password: %w", err)
		}
		password = line
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintln(c.Root().Writer, hash)
	return nil
}

func (cmd *UserCmd) runList(_ context.Context, c *cli.Command) error {
	for _, u := range cmd.flags.Config.Users {
		secret := "none"
		switch {
		case u.PasswordHash != "":
			secret = "password_hash"
		case u.PasswordEnv != "":
			secret = "$" + u.PasswordEnv
		}
		_, _ = fmt.Fprintf(c.Root().Writer, "%s\t%s\t%s\n", u.Name, u.Role, secret)
	}
	return nil
}
