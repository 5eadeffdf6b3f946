package commands

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/colonyops/taskflow/internal/taskflow"
	"github.com/colonyops/taskflow/pkg/iojson"
)

// TimerCmd implements the taskflow timer command group.
type TimerCmd struct {
	flags *Flags
	app   *taskflow.App

	jsonOutput bool
}

// NewTimerCmd creates a new timer command.
func NewTimerCmd(flags *Flags, app *taskflow.App) *TimerCmd {
	return &TimerCmd{flags: flags, app: app}
}

// Register adds the timer command to the application.
func (cmd *TimerCmd) Register(app *cli.Command) *cli.Command {
	jsonFlag := &cli.BoolFlag{Name: "json", Usage: "output as JSON", Destination: &cmd.jsonOutput}

	app.Commands = append(app.Commands, &cli.Command{
		Name:  "timer",
		Usage: "Track time spent on a task",
		Description: `Starting and stopping a timer appends to the time log. Stopping recomputes
the task's hours from the whole log.

Examples:
  taskflow timer start 1709283600000
  taskflow timer stop 1709283600000`,
		Commands: []*cli.Command{
			{
				Name:      "start",
				Usage:     "Start the timer",
				UsageText: "taskflow timer start <id>",
				Flags:     []cli.Flag{jsonFlag},
				Action:    cmd.runStart,
			},
			{
				Name:      "stop",
				Usage:     "Stop the timer and record the hours",
				UsageText: "taskflow timer stop <id>",
				Flags:     []cli.Flag{jsonFlag},
				Action:    cmd.runStop,
			},
			{
				Name:      "status",
				Usage:     "Show whether the timer is running",
				UsageText: "taskflow timer status <id>",
				Flags:     []cli.Flag{jsonFlag},
				Action:    cmd.runStatus,
			},
		},
	})

	return app
}

func (cmd *TimerCmd) selected(c *cli.Command, usage string) (*taskflow.RequestContext, error) {
	id, err := argID(c, usage)
	if err != nil {
		return nil, err
	}
	rc, err := login(cmd.flags, cmd.app)
	if err != nil {
		return nil, err
	}
	rc.Select(id)
	return rc, nil
}

func (cmd *TimerCmd) runStart(ctx context.Context, c *cli.Command) error {
	rc, err := cmd.selected(c, "taskflow timer start <id>")
	if err != nil {
		return err
	}

	st, err := rc.StartTimer(ctx)
	if err != nil {
		return err
	}

	if cmd.jsonOutput {
		return iojson.Write(c.Root().Writer, st)
	}
	_, _ = fmt.Fprintf(c.Root().Writer, "timer started at %s\n", st.StartedAt.Local().Format("15:04"))
	return nil
}

func (cmd *TimerCmd) runStop(ctx context.Context, c *cli.Command) error {
	rc, err := cmd.selected(c, "taskflow timer stop <id>")
	if err != nil {
		return err
	}

	t, err := rc.StopTimer(ctx)
	if err != nil {
		return err
	}

	if cmd.jsonOutput {
		return iojson.Write(c.Root().Writer, t)
	}
	_, _ = fmt.Fprintf(c.Root().Writer, "timer stopped, %.2f hours total\n", t.HoursSpent)
	return nil
}

func (cmd *TimerCmd) runStatus(ctx context.Context, c *cli.Command) error {
	rc, err := cmd.selected(c, "taskflow timer status <id>")
	if err != nil {
		return err
	}

	st, err := rc.Tasks.Timer(ctx, rc.SelectedID)
	if err != nil {
		return err
	}

	if cmd.jsonOutput {
		return iojson.Write(c.Root().Writer, st)
	}
	if st.Running {
		_, _ = fmt.Fprintf(c.Root().Writer, "running since %s, %.2f hours logged\n", st.StartedAt.Local().Format("2006-01-02 15:04"), st.Hours)
		return nil
	}
	_, _ = fmt.Fprintf(c.Root().Writer, "stopped, %.2f hours logged\n", st.Hours)
	return nil
}
