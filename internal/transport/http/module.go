package httptransport

import (
	"context"
	"log/slog"
	"net/http"

	"go.uber.org/fx"

	"github.com/dsk1ra/rendezvous-signal/config"
	"github.com/dsk1ra/rendezvous-signal/internal/rendezvous/coordinator"
	"github.com/dsk1ra/rendezvous-signal/internal/rendezvous/idgen"
	"github.com/dsk1ra/rendezvous-signal/internal/rendezvous/pushhub"
	"github.com/dsk1ra/rendezvous-signal/internal/session"
)

var Module = fx.Module("httptransport",
	fx.Provide(NewFromConfig),
	fx.Invoke(registerServer),
)

func NewFromConfig(logger *slog.Logger, c *coordinator.Coordinator, s *session.Registry, push pushhub.Hub, g *idgen.Generator, cfg *config.Config) *Handler {
	return New(logger, c, s, push, g, cfg.PublicURL, cfg.HeartbeatInterval)
}

func registerServer(lc fx.Lifecycle, logger *slog.Logger, cfg *config.Config, h *Handler) {
	srv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: h.Router(),
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			logger.Info("starting signaling server", "address", cfg.ListenAddr)
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					logger.Error("http server stopped", "error", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return srv.Shutdown(ctx)
		},
	})
}
