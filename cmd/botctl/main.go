package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/solab-labs/botctl/internal/app"
	"github.com/solab-labs/botctl/internal/config"
	"github.com/solab-labs/botctl/internal/notify"
	"github.com/solab-labs/botctl/internal/runlog"
	"github.com/solab-labs/botctl/internal/service"
)

func main() {
	cliApp := &cli.App{
		Name:  "botctl",
		Usage: "operate the SoLab telegram bot service",
		CommandNotFound: func(c *cli.Context, cmd string) {
			fmt.Fprintf(os.Stderr, "unknown command %q\n\n", cmd)
			_ = cli.ShowAppHelp(c)
			os.Exit(1)
		},
		Action: func(c *cli.Context) error {
			// no subcommand given
			_ = cli.ShowAppHelp(c)
			return cli.Exit("", 1)
		},
		Commands: []*cli.Command{
			{
				Name:  "init",
				Usage: "write a starter config file",
				Flags: configFlags(),
				Action: func(c *cli.Context) error {
					return writeStarterConfig(c.String("config"))
				},
			},
			{
				Name:  "install",
				Usage: "install and enable the systemd unit",
				Flags: configFlags(),
				Action: withService(func(ctx context.Context, cfg *config.Config, mgr *service.Systemd) error {
					return app.RunInstall(ctx, cfg, mgr)
				}),
			},
			{
				Name:  "uninstall",
				Usage: "stop, disable, and remove the systemd unit",
				Flags: configFlags(),
				Action: withService(func(ctx context.Context, _ *config.Config, mgr *service.Systemd) error {
					return mgr.Uninstall(ctx)
				}),
			},
			{
				Name:  "start",
				Usage: "start the bot service",
				Flags: configFlags(),
				Action: withService(func(ctx context.Context, _ *config.Config, mgr *service.Systemd) error {
					return mgr.Start(ctx)
				}),
			},
			{
				Name:  "stop",
				Usage: "stop the bot service",
				Flags: configFlags(),
				Action: withService(func(ctx context.Context, _ *config.Config, mgr *service.Systemd) error {
					return mgr.Stop(ctx)
				}),
			},
			{
				Name:  "restart",
				Usage: "stop, clean up snapshots, start, and verify the bot service",
				Flags: configFlags(),
				Action: withService(func(ctx context.Context, cfg *config.Config, mgr *service.Systemd) error {
					archiver, dispatcher, err := buildCollaborators(ctx, cfg)
					if err != nil {
						return err
					}
					res, err := app.RunRestart(ctx, cfg, mgr, archiver, dispatcher)
					if err != nil {
						return err
					}
					fmt.Printf("restart OK in %s: pruned=%d swept=%d errors=%d\n",
						res.Duration.Round(time.Millisecond),
						res.Cleanup.Pruned.Deleted, res.Cleanup.Swept.Deleted, res.Cleanup.ErrorCount())
					return nil
				}),
			},
			{
				Name:  "status",
				Usage: "print the bot service status",
				Flags: configFlags(),
				Action: withService(func(ctx context.Context, _ *config.Config, mgr *service.Systemd) error {
					status, err := mgr.Status(ctx)
					if err != nil {
						return err
					}
					fmt.Println(status)
					return nil
				}),
			},
			{
				Name:  "logs",
				Usage: "tail the bot service journal",
				Flags: append(configFlags(),
					&cli.IntFlag{
						Name:  "lines",
						Value: 100,
						Usage: "number of journal lines to show",
					},
					&cli.BoolFlag{
						Name:    "follow",
						Aliases: []string{"f"},
						Usage:   "keep streaming new journal entries",
					},
				),
				Action: func(c *cli.Context) error {
					cfg, closeLog, err := setup(c)
					if err != nil {
						return err
					}
					defer closeLog.Close()

					ctx := c.Context
					if c.Bool("follow") {
						var stop context.CancelFunc
						ctx, stop = signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
						defer stop()
					}

					return service.New(cfg.Service.Name).TailLogs(ctx, os.Stdout, c.Int("lines"), c.Bool("follow"))
				},
			},
			{
				Name:  "enable",
				Usage: "enable the bot service at boot",
				Flags: configFlags(),
				Action: withService(func(ctx context.Context, _ *config.Config, mgr *service.Systemd) error {
					return mgr.Enable(ctx)
				}),
			},
			{
				Name:  "disable",
				Usage: "disable the bot service at boot",
				Flags: configFlags(),
				Action: withService(func(ctx context.Context, _ *config.Config, mgr *service.Systemd) error {
					return mgr.Disable(ctx)
				}),
			},
			{
				Name:  "cleanup",
				Usage: "prune snapshots and sweep temp files without touching the service",
				Flags: configFlags(),
				Action: func(c *cli.Context) error {
					cfg, closeLog, err := setup(c)
					if err != nil {
						return err
					}
					defer closeLog.Close()

					archiver, err := app.NewArchiver(c.Context, cfg)
					if err != nil {
						return err
					}

					res, err := app.RunCleanup(c.Context, cfg, archiver)
					if err != nil {
						return err
					}
					fmt.Printf("cleanup OK: pruned=%d swept=%d archived=%d errors=%d\n",
						res.Pruned.Deleted, res.Swept.Deleted, res.Archived, res.ErrorCount())
					return nil
				},
			},
			{
				Name:  "retrieve",
				Usage: "download an archived snapshot back into the storage directory",
				Flags: append(configFlags(),
					&cli.StringFlag{
						Name:     "key",
						Required: true,
						Usage:    "archived object key, e.g. toptraded_trending.yaml.gz.enc",
					},
					&cli.StringFlag{
						Name:  "out",
						Usage: "output path (defaults to the storage directory)",
					},
				),
				Action: func(c *cli.Context) error {
					cfg, closeLog, err := setup(c)
					if err != nil {
						return err
					}
					defer closeLog.Close()

					return app.RunRetrieve(c.Context, cfg, c.String("key"), c.String("out"))
				},
			},
			{
				Name:  "daemon",
				Usage: "run scheduled cleanup restarts until interrupted",
				Flags: append(configFlags(),
					&cli.DurationFlag{
						Name:  "run-timeout",
						Value: 10 * time.Minute,
						Usage: "per-run timeout for a scheduled restart",
					},
				),
				Action: func(c *cli.Context) error {
					cfg, closeLog, err := setup(c)
					if err != nil {
						return err
					}
					defer closeLog.Close()

					ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
					defer stop()

					archiver, dispatcher, err := buildCollaborators(ctx, cfg)
					if err != nil {
						return err
					}

					return app.RunDaemon(ctx, cfg, service.New(cfg.Service.Name), archiver, dispatcher, c.Duration("run-timeout"))
				},
			},
		},
	}

	if err := cliApp.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func configFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:     "config",
			Aliases:  []string{"c"},
			Required: true,
			Usage:    "path to config yaml",
		},
	}
}

// setup loads and validates the config, then routes the run log before any
// command logic executes.
func setup(c *cli.Context) (*config.Config, io.Closer, error) {
	cfg, err := loadValidatedConfig(c.String("config"))
	if err != nil {
		return nil, nil, err
	}

	closeLog, err := runlog.Setup(cfg.RunLog.Path, cfg.RunLog.Level)
	if err != nil {
		return nil, nil, err
	}
	return cfg, closeLog, nil
}

func loadValidatedConfig(cfgPath string) (*config.Config, error) {
	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func withService(fn func(ctx context.Context, cfg *config.Config, mgr *service.Systemd) error) cli.ActionFunc {
	return func(c *cli.Context) error {
		cfg, closeLog, err := setup(c)
		if err != nil {
			return err
		}
		defer closeLog.Close()

		return fn(c.Context, cfg, service.New(cfg.Service.Name))
	}
}

func buildCollaborators(ctx context.Context, cfg *config.Config) (app.SnapshotArchiver, *notify.Dispatcher, error) {
	archiver, err := app.NewArchiver(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	dispatcher, err := notify.NewDispatcher(cfg.Notifications, cfg.Telegram)
	if err != nil {
		return nil, nil, err
	}
	return archiver, dispatcher, nil
}

const starterConfig = `version: 1

telegram:
  bot_token: ${TELEGRAM_BOT_TOKEN}
  chat_id: ""
  # thread_id: ""

service:
  name: solab-bot
  exec_start: /usr/bin/python3 /opt/solab/main.py
  working_dir: /opt/solab
  user: solab
  grace_period: 5s

storage:
  dir: /opt/solab/data

cleanup:
  snapshot_pattern: "toptraded_*"
  keep: 2
  temp_patterns: ["*.tmp", "*.bak"]
  schedule: "0 */6 * * *"

runlog:
  path: /var/log/solab-bot/botctl.log
  level: INFO

# archive:
#   s3:
#     bucket: solab-snapshots
#     region: eu-central-1
#     access_key: ${AWS_ACCESS_KEY_ID}
#     secret_key: ${AWS_SECRET_ACCESS_KEY}
#   compression: true
#   encryption:
#     enabled: true
#     password: ${ARCHIVE_PASSWORD}

notifications:
  - type: telegram
    on: [failure]
`

func writeStarterConfig(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists, refusing to overwrite", path)
	}
	if err := os.WriteFile(path, []byte(starterConfig), 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	fmt.Printf("wrote starter config to %s\n", path)
	return nil
}
