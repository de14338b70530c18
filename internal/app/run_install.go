package app

import (
	"context"

	"github.com/solab-labs/botctl/internal/config"
	"github.com/solab-labs/botctl/internal/service"
)

// UnitConfFromConfig maps the service section onto a unit file. The bot
// token is injected into the unit environment unless the operator already
// set it explicitly.
func UnitConfFromConfig(cfg *config.Config) service.UnitConf {
	env := make(map[string]string, len(cfg.Service.Environment)+1)
	for k, v := range cfg.Service.Environment {
		env[k] = v
	}
	if _, ok := env["TELEGRAM_BOT_TOKEN"]; !ok && cfg.Telegram.BotToken != "" {
		env["TELEGRAM_BOT_TOKEN"] = cfg.Telegram.BotToken
	}

	return service.UnitConf{
		Description: cfg.Service.Name + " telegram bot",
		ExecStart:   cfg.Service.ExecStart,
		WorkingDir:  cfg.Service.WorkingDir,
		User:        cfg.Service.User,
		Environment: env,
	}
}

func RunInstall(ctx context.Context, cfg *config.Config, mgr *service.Systemd) error {
	return mgr.Install(ctx, UnitConfFromConfig(cfg))
}
