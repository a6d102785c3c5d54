package cmd

import (
	"log/slog"
	"os"

	"go.uber.org/fx"

	"github.com/dsk1ra/rendezvous-signal/config"
	"github.com/dsk1ra/rendezvous-signal/internal/rendezvous/coordinator"
	"github.com/dsk1ra/rendezvous-signal/internal/rendezvous/pushhub"
	"github.com/dsk1ra/rendezvous-signal/internal/rendezvous/store"
	"github.com/dsk1ra/rendezvous-signal/internal/session"
	httptransport "github.com/dsk1ra/rendezvous-signal/internal/transport/http"
)

// ProvideLogger builds the process-wide structured logger. Ciphertext,
// tokens, and session tokens are never passed to it (see SPEC_FULL.md §A.2).
func ProvideLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, nil))
}

// NewApp wires the full fx graph for the signaling server.
func NewApp() *fx.App {
	return fx.New(
		fx.Provide(ProvideLogger),
		config.Module,
		store.Module,
		coordinator.Module,
		pushhub.Module,
		session.Module,
		httptransport.Module,
	)
}
