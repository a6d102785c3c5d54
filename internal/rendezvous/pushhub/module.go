package pushhub

import (
	"context"
	"fmt"

	"go.uber.org/fx"

	"github.com/dsk1ra/rendezvous-signal/config"
)

var Module = fx.Module("pushhub",
	fx.Provide(NewFromConfig),
)

func NewFromConfig(lc fx.Lifecycle, cfg *config.Config) (Hub, error) {
	var (
		h   Hub
		err error
	)
	switch cfg.PushBackend {
	case config.PushBackendAMQP:
		h, err = NewAMQP(cfg.AMQPURL)
	case config.PushBackendLocal:
		h, err = NewLocal()
	default:
		return nil, fmt.Errorf("pushhub: unknown backend %q", cfg.PushBackend)
	}
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return h.Close()
		},
	})
	return h, nil
}
