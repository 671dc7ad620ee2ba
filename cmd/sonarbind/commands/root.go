package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/florianilch/sonarbind/internal/app"
	"github.com/florianilch/sonarbind/internal/observability"
)

// Execute runs the root command with the given context and arguments.
func Execute(ctx context.Context, args []string) error {
	return newRootCommand(app.Options{}).Run(ctx, args)
}

// newRootCommand builds the command tree. opts is passed through to app.New for every
// command that touches the stores.
func newRootCommand(opts app.Options) *cli.Command {
	return &cli.Command{
		Name:  "sonarbind",
		Usage: "manage server connections and workspace bindings",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to config file",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "log level (debug|info|warn|error)",
				Value: slog.LevelInfo.String(),
			},
			&cli.StringFlag{
				Name:  "log-format",
				Usage: "log format (text|json)",
				Value: string(app.DefaultConfigLogFormat),
			},
			&cli.StringFlag{
				Name:  "log-file",
				Usage: "write logs to a rotating file instead of stderr",
			},
			&cli.StringFlag{
				Name:  "log-exporter",
				Usage: "log exporter (none|stdout|otlp-http|otlp-grpc)",
				Value: string(app.DefaultConfigLogExporter),
			},
			&cli.StringFlag{
				Name:  "storage--root",
				Usage: "directory holding connections, bindings and the credentials file",
			},
			&cli.StringFlag{
				Name:  "credentials--store",
				Usage: "preferred credential store (keyring|file)",
				Value: string(app.DefaultConfigCredentialsStore),
			},
		},
		Commands: []*cli.Command{
			connectionsCommand(opts),
			bindingsCommand(opts),
		},
	}
}

// appAction is a command action that needs the wired stores.
type appAction func(ctx context.Context, cmd *cli.Command, application *app.App) error

// withApp loads configuration, sets up logging and builds the App before running action.
func withApp(opts app.Options, action appAction) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		cfg, err := loadConfig(cmd.String("config"), cmd, os.Environ)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		// Set up observability before creating app
		shutdown, err := observability.Instrument(ctx, observability.Options{
			Level:    cfg.LogLevel,
			Format:   cfg.LogFormat,
			File:     cfg.LogFile,
			Exporter: cfg.LogExporter,
		})
		if err != nil {
			return fmt.Errorf("failed to set up observability layer: %w", err)
		}
		defer func() {
			if err := shutdown(context.WithoutCancel(ctx)); err != nil {
				fmt.Fprintln(cmd.Root().ErrWriter, "failed to flush logs:", err)
			}
		}()

		application, err := app.New(cfg, opts)
		if err != nil {
			return fmt.Errorf("failed to create app: %w", err)
		}

		return action(ctx, cmd, application)
	}
}

// requireArg returns the single positional argument or a usage error.
func requireArg(cmd *cli.Command, name string) (string, error) {
	if cmd.NArg() != 1 {
		return "", fmt.Errorf("expected exactly one argument: <%s>", name)
	}
	return cmd.Args().First(), nil
}
