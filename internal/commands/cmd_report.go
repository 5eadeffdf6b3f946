package commands

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/colonyops/taskflow/internal/core/report"
	"github.com/colonyops/taskflow/internal/taskflow"
	"github.com/colonyops/taskflow/pkg/iojson"
)

// ReportCmd implements the taskflow report command.
type ReportCmd struct {
	flags *Flags
	app   *taskflow.App
	now   func() time.Time

	from       string
	to         string
	assignee   string
	out        string
	jsonOutput bool
}

// NewReportCmd creates a new report command.
func NewReportCmd(flags *Flags, app *taskflow.App) *ReportCmd {
	return &ReportCmd{flags: flags, app: app, now: time.Now}
}

// Register adds the report command to the application.
func (cmd *ReportCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "report",
		Usage:     "Export a task report as HTML",
		UsageText: "taskflow report [--from YYYY-MM-DD] [--to YYYY-MM-DD] [--assignee <name>] [--out report.html]",
		Description: `Computes completion, overdue and hours metrics over tasks due in the range
and writes a standalone HTML document. The range defaults to the current
month. Members can only report on their own tasks.

Examples:
  taskflow report --out march.html --from 2024-03-01 --to 2024-03-31
  taskflow report --assignee Luke --json`,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "from", Usage: "first due date included (YYYY-MM-DD)", Destination: &cmd.from},
			&cli.StringFlag{Name: "to", Usage: "last due date included (YYYY-MM-DD)", Destination: &cmd.to},
			&cli.StringFlag{Name: "assignee", Aliases: []string{"a"}, Usage: "only tasks assigned to this user", Destination: &cmd.assignee},
			&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "write HTML to this file instead of stdout", Destination: &cmd.out},
			&cli.BoolFlag{Name: "json", Usage: "output the metrics as JSON", Destination: &cmd.jsonOutput},
		},
		Action: cmd.run,
	})

	return app
}

func (cmd *ReportCmd) run(ctx context.Context, c *cli.Command) error {
	rng := report.DefaultRange(cmd.now())
	from, err := parseDay("from", cmd.from)
	if err != nil {
		return err
	}
	if from != nil {
		rng.From = *from
	}
	to, err := parseDay("to", cmd.to)
	if err != nil {
		return err
	}
	if to != nil {
		rng.To = *to
	}
	if rng.To.Before(rng.From) {
		return fmt.Errorf("--to %s is before --from %s", rng.To.Format("2006-01-02"), rng.From.Format("2006-01-02"))
	}

	rc, err := login(cmd.flags, cmd.app)
	if err != nil {
		return err
	}

	rep, err := rc.Report(ctx, rng, cmd.assignee)
	if err != nil {
		return err
	}

	if cmd.jsonOutput {
		return iojson.Write(c.Root().Writer, rep)
	}

	if cmd.out == "" || cmd.out == "-" {
		return report.Render(c.Root().Writer, rep)
	}

	f, err := os.Create(cmd.out)
	if err != nil {
		return fmt.Errorf("create report file: %w", err)
	}
	if err := report.Render(f, rep); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close report file: %w", err)
	}

	_, _ = fmt.Fprintf(c.Root().Writer, "wrote %s (%d tasks)\n", cmd.out, rep.Total)
	return nil
}
