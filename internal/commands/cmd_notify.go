package commands

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/colonyops/taskflow/internal/core/audit"
	"github.com/colonyops/taskflow/internal/taskflow"
	"github.com/colonyops/taskflow/pkg/iojson"
)

// NotifyCmd implements the taskflow notify command group.
type NotifyCmd struct {
	flags *Flags
	app   *taskflow.App

	unreadOnly bool
	limit      int
	jsonOutput bool
}

// NewNotifyCmd creates a new notify command.
func NewNotifyCmd(flags *Flags, app *taskflow.App) *NotifyCmd {
	return &NotifyCmd{flags: flags, app: app}
}

// Register adds the notify command to the application.
func (cmd *NotifyCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:    "notify",
		Aliases: []string{"inbox"},
		Usage:   "Read task activity notifications",
		Description: `Every change to a task is recorded in the activity log. Managers see all
activity; members see activity on the tasks assigned to them.`,
		Commands: []*cli.Command{
			{
				Name:      "list",
				Aliases:   []string{"ls"},
				Usage:     "List notifications, newest first",
				UsageText: "taskflow notify list [--unread] [--limit <n>] [--json]",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "unread", Aliases: []string{"u"}, Usage: "only unread notifications", Destination: &cmd.unreadOnly},
					&cli.IntFlag{Name: "limit", Aliases: []string{"n"}, Usage: "maximum number to show (0 for all)", Value: 20, Destination: &cmd.limit},
					&cli.BoolFlag{Name: "json", Usage: "output as JSON lines", Destination: &cmd.jsonOutput},
				},
				Action: cmd.runList,
			},
			{
				Name:      "read",
				Usage:     "Mark one notification as read",
				UsageText: "taskflow notify read <id>",
				Action:    cmd.runRead,
			},
			{
				Name:      "read-all",
				Usage:     "Mark every visible notification as read",
				UsageText: "taskflow notify read-all",
				Action:    cmd.runReadAll,
			},
		},
	})

	return app
}

func (cmd *NotifyCmd) runList(ctx context.Context, c *cli.Command) error {
	rc, err := login(cmd.flags, cmd.app)
	if err != nil {
		return err
	}

	entries, err := rc.Inbox(ctx, cmd.unreadOnly, cmd.limit)
	if err != nil {
		return fmt.Errorf("list notifications: %w", err)
	}

	out := c.Root().Writer
	if cmd.jsonOutput {
		return iojson.WriteLines(out, entries)
	}
	if len(entries) == 0 {
		_, _ = fmt.Fprintln(c.Root().ErrWriter, "No notifications")
		return nil
	}
	return writeEntries(out, entries)
}

func (cmd *NotifyCmd) runRead(ctx context.Context, c *cli.Command) error {
	id, err := argID(c, "taskflow notify read <id>")
	if err != nil {
		return err
	}
	rc, err := login(cmd.flags, cmd.app)
	if err != nil {
		return err
	}

	if err := rc.Notifications.MarkRead(ctx, id); err != nil {
		return err
	}
	_, _ = fmt.Fprintln(c.Root().Writer, "marked read")
	return nil
}

func (cmd *NotifyCmd) runReadAll(ctx context.Context, c *cli.Command) error {
	rc, err := login(cmd.flags, cmd.app)
	if err != nil {
		return err
	}

	var n int
	if rc.User.IsManager() {
		n, err = rc.Notifications.MarkAllRead(ctx, audit.ListFilter{})
		if err != nil {
			return err
		}
	} else {
		unread, err := rc.Inbox(ctx, true, 0)
		if err != nil {
			return err
		}
		for _, e := range unread {
			if err := rc.Notifications.MarkRead(ctx, e.ID); err != nil {
				return err
			}
			n++
		}
	}

	_, _ = fmt.Fprintf(c.Root().Writer, "marked %d read\n", n)
	return nil
}
