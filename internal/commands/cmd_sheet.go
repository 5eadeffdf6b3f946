package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/colonyops/taskflow/internal/data/sheetstore"
	"github.com/colonyops/taskflow/internal/taskflow"
	"github.com/colonyops/taskflow/pkg/iojson"
)

var errNotSheets = errors.New("the configured backend is not sheets")

// SheetCmd implements the taskflow sheet command group.
type SheetCmd struct {
	flags *Flags
	app   *taskflow.App

	dryRun     bool
	jsonOutput bool
}

// NewSheetCmd creates a new sheet command.
func NewSheetCmd(flags *Flags, app *taskflow.App) *SheetCmd {
	return &SheetCmd{flags: flags, app: app}
}

// Register adds the sheet command to the application.
func (cmd *SheetCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:  "sheet",
		Usage: "Inspect and migrate the spreadsheet layout",
		Description: `Older spreadsheets use a shorter column layout. They can be read but not
written until migrated. Migration rewrites the tasks tab in the current
layout and is safe to run more than once.`,
		Commands: []*cli.Command{
			{
				Name:      "check",
				Usage:     "Report the layout of the tasks tab",
				UsageText: "taskflow sheet check [--json]",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "json", Usage: "output as JSON", Destination: &cmd.jsonOutput},
				},
				Action: cmd.runCheck,
			},
			{
				Name:      "migrate",
				Usage:     "Rewrite the tasks tab in the current layout",
				UsageText: "taskflow sheet migrate [--dry-run]",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "dry-run", Usage: "report what would change without writing", Destination: &cmd.dryRun},
				},
				Action: cmd.runMigrate,
			},
		},
	})

	return app
}

func (cmd *SheetCmd) grid() (sheetstore.Grid, string, error) {
	st := cmd.app.Stores
	if st == nil || st.Grid == nil {
		return nil, "", errNotSheets
	}
	return st.Grid, st.Tabs.Tasks, nil
}

func (cmd *SheetCmd) runCheck(ctx context.Context, c *cli.Command) error {
	grid, tab, err := cmd.grid()
	if err != nil {
		return err
	}

	rep, err := sheetstore.CheckLayout(ctx, grid, tab)
	if err != nil {
		return err
	}

	if cmd.jsonOutput {
		return iojson.Write(c.Root().Writer, rep)
	}

	state := "current"
	if !rep.Current {
		state = "needs migration (run `taskflow sheet migrate`)"
	}
	_, _ = fmt.Fprintf(c.Root().Writer, "%s: layout %s, %d rows, %s\n", rep.Tab, rep.Layout, rep.Rows, state)
	return nil
}

func (cmd *SheetCmd) runMigrate(ctx context.Context, c *cli.Command) error {
	grid, tab, err := cmd.grid()
	if err != nil {
		return err
	}

	rep, migrated, err := sheetstore.Migrate(ctx, grid, tab, cmd.dryRun)
	if err != nil {
		return err
	}

	out := c.Root().Writer
	switch {
	case rep.Current:
		_, _ = fmt.Fprintf(out, "%s is already current\n", rep.Tab)
	case cmd.dryRun:
		_, _ = fmt.Fprintf(out, "would migrate %d rows of %s from layout %s\n", rep.Rows, rep.Tab, rep.Layout)
	case migrated:
		cmd.app.Cache.Invalidate()
		_, _ = fmt.Fprintf(out, "migrated %d rows of %s from layout %s\n", rep.Rows, rep.Tab, rep.Layout)
	}
	return nil
}
