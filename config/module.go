package config

import (
	"context"
	"log/slog"
	"os"

	"github.com/spf13/viper"
	"go.uber.org/fx"
)

// Module provides the resolved Config (and the viper instance backing it) to
// the fx graph, loading them from os.Args at startup, and registers the
// fsnotify watcher on the config file.
var Module = fx.Module("config",
	fx.Provide(func() (*Config, *viper.Viper, error) {
		return Load(os.Args[1:])
	}),
	fx.Invoke(registerWatch),
)

// registerWatch starts the config-file watcher for the lifetime of the app.
// On a change it logs the reloaded TTLs and heartbeat interval; the running
// components keep the values they were built with, so no setting takes
// effect until a restart.
func registerWatch(lc fx.Lifecycle, logger *slog.Logger, v *viper.Viper) {
	if v.ConfigFileUsed() == "" {
		// no --config file was given: env vars and flags are the only
		// source, so there is nothing on disk for fsnotify to watch.
		return
	}
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			Watch(v, func(cfg *Config) {
				logger.Info("config reloaded",
					"mailbox_ttl", cfg.MailboxTTL,
					"rendezvous_ttl", cfg.RendezvousTTL,
					"session_ttl", cfg.SessionTTL,
					"heartbeat_interval", cfg.HeartbeatInterval,
				)
			})
			return nil
		},
	})
}
