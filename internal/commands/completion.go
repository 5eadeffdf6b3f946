package commands

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/colonyops/taskflow/internal/core/task"
	"github.com/colonyops/taskflow/internal/taskflow"
)

// TaskIDCompleter returns a ShellCompleteFunc that suggests the IDs of open
// tasks as positional completions. Set this as the ShellComplete field on any
// cli.Command that accepts a task ID as its first argument.
//
// When the user's last typed argument starts with "-", it falls back to the
// default flag completion behavior.
func TaskIDCompleter(app *taskflow.App) cli.ShellCompleteFunc {
	return func(ctx context.Context, cmd *cli.Command) {
		if args := cmd.Args(); args.Present() {
			last := args.Slice()[args.Len()-1]
			if len(last) > 0 && last[0] == '-' {
				cli.DefaultCompleteWithFlags(ctx, cmd)
				return
			}
		}

		if app.Tasks == nil {
			return
		}
		tasks, err := app.Tasks.List(ctx, task.ListFilter{})
		if err != nil {
			return
		}

		w := cmd.Root().Writer
		for _, t := range tasks {
			if !t.IsOpen() {
				continue
			}
			_, _ = fmt.Fprintf(w, "%d:%s\n", t.ID, t.Title)
		}
	}
}
