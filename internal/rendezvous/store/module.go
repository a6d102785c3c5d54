package store

import (
	"go.uber.org/fx"

	"github.com/dsk1ra/rendezvous-signal/config"
	"github.com/dsk1ra/rendezvous-signal/internal/rendezvous/store/memstore"
)

// Module provides the Mailbox Store. Today the only backend grounded in the
// example pack is the in-process memstore (see SPEC_FULL.md §D); selecting
// by cfg.StoreURL is left as the seam a networked backend would hook into.
var Module = fx.Module("store",
	fx.Provide(
		fx.Annotate(
			NewFromConfig,
			fx.As(new(Store)),
		),
	),
)

// NewFromConfig builds the configured Store, wrapped with caching and
// circuit-breaking.
func NewFromConfig(cfg *config.Config) Store {
	backend := memstore.New(memstore.WithKeyPrefix(cfg.StoreKeyPrefix))
	return NewResilient(backend)
}
