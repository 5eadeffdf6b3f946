package commands

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/urfave/cli/v3"

	"github.com/colonyops/taskflow/internal/data/db"
	"github.com/colonyops/taskflow/internal/taskflow"
	"github.com/colonyops/taskflow/pkg/iojson"
)

// DBCmd implements the taskflow db command group.
type DBCmd struct {
	flags *Flags
	app   *taskflow.App

	steps      int
	jsonOutput bool
}

// NewDBCmd creates a new db command.
func NewDBCmd(flags *Flags, app *taskflow.App) *DBCmd {
	return &DBCmd{flags: flags, app: app}
}

// Register adds the db command to the application.
func (cmd *DBCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:  "db",
		Usage: "Inspect the SQLite schema",
		Commands: []*cli.Command{
			{
				Name:      "status",
				Usage:     "List schema migrations and whether they are applied",
				UsageText: "taskflow db status [--json]",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "json", Usage: "output as JSON lines", Destination: &cmd.jsonOutput},
				},
				Action: cmd.runStatus,
			},
			{
				Name:      "rollback",
				Usage:     "Revert the most recent migrations",
				UsageText: "taskflow db rollback [--steps <n>]",
				Description: `Reverts applied migrations newest first. Data in dropped tables is lost.
The next run of any other command re-applies pending migrations.`,
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "steps", Usage: "number of migrations to revert", Value: 1, Destination: &cmd.steps},
				},
				Action: cmd.runRollback,
			},
		},
	})

	return app
}

func (cmd *DBCmd) database() (*db.DB, error) {
	if cmd.app.Stores == nil || cmd.app.Stores.DB == nil {
		return nil, fmt.Errorf("the configured backend is not sqlite")
	}
	return cmd.app.Stores.DB, nil
}

type migrationInfo struct {
	Version int    `json:"version"`
	Name    string `json:"name"`
	Applied bool   `json:"applied"`
}

func (cmd *DBCmd) runStatus(ctx context.Context, c *cli.Command) error {
	database, err := cmd.database()
	if err != nil {
		return err
	}

	statuses, err := db.Migrations(ctx, database.Conn())
	if err != nil {
		return fmt.Errorf("list migrations: %w", err)
	}

	infos := make([]migrationInfo, 0, len(statuses))
	for _, s := range statuses {
		infos = append(infos, migrationInfo{Version: s.Version, Name: s.Name, Applied: s.Applied})
	}

	if cmd.jsonOutput {
		return iojson.WriteLines(c.Root().Writer, infos)
	}
	return writeMigrations(c.Root().Writer, infos)
}

func writeMigrations(w io.Writer, infos []migrationInfo) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "VERSION\tNAME\tAPPLIED")
	for _, m := range infos {
		_, _ = fmt.Fprintf(tw, "%04d\t%s\t%t\n", m.Version, m.Name, m.Applied)
	}
	return tw.Flush()
}

func (cmd *DBCmd) runRollback(ctx context.Context, c *cli.Command) error {
	database, err := cmd.database()
	if err != nil {
		return err
	}

	if err := db.MigrateDown(ctx, database.Conn(), cmd.steps); err != nil {
		return fmt.Errorf("rollback: %w", err)
	}
	cmd.app.Cache.Invalidate()

	_, _ = fmt.Fprintf(c.Root().Writer, "reverted %d migration(s)\n", cmd.steps)
	return nil
}
