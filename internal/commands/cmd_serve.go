package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/colonyops/taskflow/internal/core/logging"
	"github.com/colonyops/taskflow/internal/taskflow"
	"github.com/colonyops/taskflow/internal/web"
)

// ServeCmd implements the taskflow serve command.
type ServeCmd struct {
	flags *Flags
	app   *taskflow.App

	addr string
}

// NewServeCmd creates a new serve command.
func NewServeCmd(flags *Flags, app *taskflow.App) *ServeCmd {
	return &ServeCmd{flags: flags, app: app}
}

// Register adds the serve command to the application.
func (cmd *ServeCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "serve",
		Usage:     "Serve the task API over HTTP",
		UsageText: "taskflow serve [--addr host:port]",
		Description: `Starts the JSON API. Requests authenticate with HTTP Basic credentials
from the users section of the config. Stops gracefully on SIGINT or SIGTERM.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "addr",
				Usage:       "listen address (defaults to server.addr from the config)",
				Sources:     cli.EnvVars("TASKFLOW_ADDR"),
				Destination: &cmd.addr,
			},
		},
		Action: cmd.run,
	})

	return app
}

func (cmd *ServeCmd) run(ctx context.Context, _ *cli.Command) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := cmd.app.Config.Server
	opts := web.Options{
		Addr:            cfg.Addr,
		ReadTimeout:     cfg.ReadTimeout,
		WriteTimeout:    cfg.WriteTimeout,
		ShutdownTimeout: cfg.ShutdownTimeout,
	}
	if cmd.addr != "" {
		opts.Addr = cmd.addr
	}

	return web.New(cmd.app, logging.Component("web")).ListenAndServe(ctx, opts)
}
