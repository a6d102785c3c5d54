package coordinator

import (
	"go.uber.org/fx"

	"github.com/dsk1ra/rendezvous-signal/config"
	"github.com/dsk1ra/rendezvous-signal/internal/rendezvous/idgen"
	"github.com/dsk1ra/rendezvous-signal/internal/rendezvous/store"
)

var Module = fx.Module("coordinator",
	fx.Provide(
		idgen.New,
		NewFromConfig,
	),
)

func NewFromConfig(s store.Store, g *idgen.Generator, cfg *config.Config) *Coordinator {
	return New(s, g,
		WithMailboxTTL(cfg.MailboxTTL),
		WithRendezvousTTL(cfg.RendezvousTTL),
	)
}
