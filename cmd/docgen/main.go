// Command docgen generates CLI reference documentation from the taskflow
// command definitions. Output is written to docs/cli-reference.md.
package main

import (
	"fmt"
	"os"

	docs "github.com/urfave/cli-docs/v3"
	"github.com/urfave/cli/v3"

	"github.com/colonyops/taskflow/internal/commands"
	"github.com/colonyops/taskflow/internal/taskflow"
)

func main() {
	flags := &commands.Flags{}
	app := &taskflow.App{}

	root := &cli.Command{
		Name:      "taskflow",
		Usage:     "Assign, track and report on team tasks",
		UsageText: "taskflow [global options] command [command options]",
		Description: `TaskFlow keeps a team's tasks in a shared Google Sheet or a local SQLite
database. Managers assign work; members update status, log time and comment.

Run 'taskflow serve' to expose the same operations as a JSON API.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "log level (debug, info, warn, error, fatal, panic)",
				Sources: cli.EnvVars("TASKFLOW_LOG_LEVEL"),
				Value:   "info",
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to config file",
				Sources: cli.EnvVars("TASKFLOW_CONFIG"),
				Value:   commands.DefaultConfigPath(),
			},
			&cli.StringFlag{
				Name:    "data-dir",
				Usage:   "path to data directory",
				Sources: cli.EnvVars("TASKFLOW_DATA_DIR"),
				Value:   commands.DefaultDataDir(),
			},
			&cli.StringFlag{
				Name:    "user",
				Aliases: []string{"u"},
				Usage:   "user to act as",
				Sources: cli.EnvVars("TASKFLOW_USER"),
			},
		},
	}

	root = commands.NewTaskCmd(flags, app).Register(root)
	root = commands.NewTimerCmd(flags, app).Register(root)
	root = commands.NewNotifyCmd(flags, app).Register(root)
	root = commands.NewReportCmd(flags, app).Register(root)
	root = commands.NewServeCmd(flags, app).Register(root)
	root = commands.NewSheetCmd(flags, app).Register(root)
	root = commands.NewDBCmd(flags, app).Register(root)
	root = commands.NewUserCmd(flags).Register(root)
	root = commands.NewConfigCmd(flags).Register(root)

	md, err := docs.ToMarkdown(root)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error generating docs: %v\n", err)
		os.Exit(1)
	}

	outPath := "docs/cli-reference.md"
	if len(os.Args) > 1 {
		outPath = os.Args[1]
	}

	if err := os.WriteFile(outPath, []byte(md), 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "error writing %s: %v\n", outPath, err)
		os.Exit(1)
	}

	fmt.Printf("Generated %s\n", outPath)
}
