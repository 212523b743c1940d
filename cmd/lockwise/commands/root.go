package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/florianilch/lockwise/internal/app"
	"github.com/florianilch/lockwise/internal/observability"
)

// Execute runs the root command with the given context and arguments.
func Execute(ctx context.Context, args []string) error {
	return rootCommand().Run(ctx, args)
}

func rootCommand() *cli.Command {
	return &cli.Command{
		Name:    "lockwise",
		Usage:   "Account state store backed by the system keychain",
		Version: app.Version,
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
				Usage: "log format (text|json|otel|otlp|otlp-grpc)",
				Value: string(app.DefaultConfigLogFormat),
			},
			&cli.StringFlag{
				Name:  "keychain--storage",
				Usage: "secret storage (file|env|keyring|memory)",
				Value: string(app.DefaultConfigKeychainStorage),
			},
			&cli.StringFlag{
				Name:  "keychain--file",
				Usage: "secrets file for file storage",
			},
			&cli.StringFlag{
				Name:  "keychain--env-prefix",
				Usage: "variable prefix for env storage",
				Value: app.DefaultConfigKeychainEnvPrefix,
			},
			&cli.StringFlag{
				Name:  "keychain--service",
				Usage: "service name for keyring storage",
				Value: app.DefaultConfigKeychainService,
			},
		},
		Commands: []*cli.Command{
			serveCommand(),
			stateCommand(),
			dispatchCommand(),
		},
	}
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "serve account state over HTTP",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "server--host",
				Usage: "server host",
				Value: app.DefaultConfigServerHost,
			},
			&cli.IntFlag{
				Name:  "server--port",
				Usage: "server port",
				Value: int(app.DefaultConfigServerPort),
			},
			&cli.BoolFlag{
				Name:  "oauth--enabled",
				Usage: "refresh access tokens in the background",
			},
			&cli.StringFlag{
				Name:  "oauth--client-id",
				Usage: "OAuth client identifier used for refresh",
			},
			&cli.StringFlag{
				Name:  "oauth--token-url",
				Usage: "OAuth token endpoint",
				Value: app.DefaultConfigOAuthTokenURL,
			},
			&cli.DurationFlag{
				Name:  "oauth--refresh-interval",
				Usage: "interval between token refreshes",
				Value: app.DefaultConfigOAuthRefreshInterval,
			},
			&cli.DurationFlag{
				Name:  "oauth--access-token-ttl",
				Usage: "requested access token lifetime (0 for server default)",
			},
		},
		Action: serveAction,
	}
}

func serveAction(ctx context.Context, cmd *cli.Command) error {
	cfg, shutdown, err := setup(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = shutdown(context.Background()) }()

	application, err := app.New(cfg)
	if err != nil {
		return fmt.Errorf("failed to create app: %w", err)
	}

	slog.InfoContext(ctx, "starting")

	if err := application.Start(ctx); err != nil {
		return fmt.Errorf("app failed to start: %w", err)
	}

	slog.InfoContext(ctx, "stopped gracefully")
	return nil
}

// setup loads configuration and installs logging. The returned function
// flushes buffered log records.
func setup(cmd *cli.Command) (*app.Config, func(context.Context) error, error) {
	cfg, err := loadConfig(cmd.String("config"), cmd, os.Environ)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	// Set up observability before creating app
	shutdown, err := observability.Instrument(cfg.LogLevel, string(cfg.LogFormat))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to set up observability layer: %w", err)
	}

	return cfg, shutdown, nil
}
