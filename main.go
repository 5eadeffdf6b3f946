package main

import (
	"context"
	"fmt"
	"os"
	"runtime/debug"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"github.com/colonyops/taskflow/internal/commands"
	"github.com/colonyops/taskflow/internal/core/auth"
	"github.com/colonyops/taskflow/internal/core/config"
	"github.com/colonyops/taskflow/internal/core/logging"
	"github.com/colonyops/taskflow/internal/taskflow"
	"github.com/colonyops/taskflow/internal/taskflow/sweep"
	"github.com/colonyops/taskflow/pkg/logutils"
)

var (
	// Build information. Populated at build-time via -ldflags flag.
	// When installed via `go install module@version`, init() populates
	// these from runtime/debug.BuildInfo instead.
	version = "dev"
	commit  = "HEAD"
	date    = "now"
)

func build() string {
	v, c, d := version, commit, date

	if v == "dev" {
		if info, ok := debug.ReadBuildInfo(); ok {
			if mv := info.Main.Version; mv != "" && mv != "(devel)" {
				v = mv
			}
			for _, s := range info.Settings {
				switch s.Key {
				case "vcs.revision":
					c = s.Value
				case "vcs.time":
					d = s.Value
				}
			}
		}
	}

	short := c
	if len(c) > 7 {
		short = c[:7]
	}

	return fmt.Sprintf("%s (%s) %s", v, short, d)
}

func main() {
	ctx := context.Background()

	var (
		logCloser   func()
		taskApp     = &taskflow.App{}
		sweepCancel context.CancelFunc
		logConsole  bool
	)

	flags := &commands.Flags{}

	app := &cli.Command{
		Name:      "taskflow",
		Usage:     "Assign, track and report on team tasks",
		UsageText: "taskflow [global options] command [command options]",
		Description: `TaskFlow keeps a team's tasks in a shared Google Sheet or a local SQLite
database. Managers assign work; members update status, log time and comment.

Run 'taskflow serve' to expose the same operations as a JSON API.`,
		Version: build(),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "log-level",
				Usage:       "log level (debug, info, warn, error, fatal, panic)",
				Sources:     cli.EnvVars("TASKFLOW_LOG_LEVEL"),
				Value:       "info",
				Destination: &flags.LogLevel,
			},
			&cli.StringFlag{
				Name:        "log-file",
				Usage:       "path to log file (defaults to stderr)",
				Sources:     cli.EnvVars("TASKFLOW_LOG_FILE"),
				Destination: &flags.LogFile,
			},
			&cli.BoolFlag{
				Name:        "log-console",
				Usage:       "human readable logs instead of JSON",
				Sources:     cli.EnvVars("TASKFLOW_LOG_CONSOLE"),
				Destination: &logConsole,
			},
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "path to config file",
				Sources:     cli.EnvVars("TASKFLOW_CONFIG"),
				Value:       commands.DefaultConfigPath(),
				Destination: &flags.ConfigPath,
			},
			&cli.StringFlag{
				Name:        "data-dir",
				Usage:       "path to data directory",
				Sources:     cli.EnvVars("TASKFLOW_DATA_DIR"),
				Value:       commands.DefaultDataDir(),
				Destination: &flags.DataDir,
			},
			&cli.StringFlag{
				Name:        "user",
				Aliases:     []string{"u"},
				Usage:       "user to act as",
				Sources:     cli.EnvVars("TASKFLOW_USER"),
				Destination: &flags.User,
			},
			&cli.StringFlag{
				Name:        "password",
				Usage:       "password for --user (prompted when omitted on a terminal)",
				Sources:     cli.EnvVars("TASKFLOW_PASSWORD"),
				Destination: &flags.Password,
			},
		},
		Before: func(ctx context.Context, c *cli.Command) (context.Context, error) {
			logger, closer, err := logutils.New(logutils.Options{
				Level:   flags.LogLevel,
				File:    flags.LogFile,
				Console: logConsole,
				Hooks:   []zerolog.Hook{logging.ContextHook{}},
			})
			if err != nil {
				return ctx, fmt.Errorf("setup logger: %w", err)
			}
			log.Logger = logger
			logCloser = closer

			cfg, err := config.Load(flags.ConfigPath, flags.DataDir)
			if err != nil {
				return ctx, fmt.Errorf("load config: %w", err)
			}
			flags.Config = cfg

			if !commands.NeedsStores(c.Args().First()) {
				return ctx, nil
			}

			users, err := auth.NewDirectory(cfg.Credentials())
			if err != nil {
				return ctx, fmt.Errorf("load users: %w", err)
			}

			stores, err := taskflow.OpenStores(ctx, cfg, logging.Component("backend"))
			if err != nil {
				return ctx, fmt.Errorf("open %s backend: %w", cfg.Backend, err)
			}

			// Populate the pre-allocated App struct (commands already hold a pointer to it)
			*taskApp = *taskflow.NewApp(cfg, stores, users, logging.Component("taskflow"))

			sweepCtx, cancel := context.WithCancel(context.Background())
			sweepCancel = cancel
			go sweep.Start(sweepCtx, taskApp.Cache, cfg.Cache.SweepInterval)

			return ctx, nil
		},
		After: func(ctx context.Context, c *cli.Command) error {
			if sweepCancel != nil {
				sweepCancel()
			}

			if err := taskApp.Close(); err != nil {
				log.Error().Err(err).Msg("failed to close backend")
				return err
			}

			if logCloser != nil {
				logCloser()
			}
			return nil
		},
	}

	app = commands.NewTaskCmd(flags, taskApp).Register(app)
	app = commands.NewTimerCmd(flags, taskApp).Register(app)
	app = commands.NewNotifyCmd(flags, taskApp).Register(app)
	app = commands.NewReportCmd(flags, taskApp).Register(app)
	app = commands.NewServeCmd(flags, taskApp).Register(app)
	app = commands.NewSheetCmd(flags, taskApp).Register(app)
	app = commands.NewDBCmd(flags, taskApp).Register(app)
	app = commands.NewUserCmd(flags).Register(app)
	app = commands.NewConfigCmd(flags).Register(app)

	exitCode := 0
	runErr := app.Run(ctx, os.Args)
	if runErr != nil {
		fmt.Fprintln(os.Stderr, runErr.Error())
		exitCode = 1
	}

	os.Exit(exitCode)
}
