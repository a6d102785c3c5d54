package session

import (
	"go.uber.org/fx"

	"github.com/dsk1ra/rendezvous-signal/config"
)

var Module = fx.Module("session",
	fx.Provide(func(cfg *config.Config) *Registry {
		return New(cfg.SessionTTL, cfg.HeartbeatInterval)
	}),
)
