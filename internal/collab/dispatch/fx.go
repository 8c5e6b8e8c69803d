package dispatch

import (
	"context"

	"github.com/smallbiznis/eventcrew/internal/collab/issuer"
	"github.com/smallbiznis/eventcrew/internal/outbox"
	"go.uber.org/fx"
)

var Module = fx.Module("collab.dispatch",
	fx.Provide(ConfigFrom),
	fx.Provide(func(s *outbox.Store) Queue { return s }),
	fx.Provide(func(i *issuer.Issuer) Issuer { return i }),
	fx.Provide(New),
	fx.Invoke(RunDispatcher),
)

func RunDispatcher(lc fx.Lifecycle, cfg Config, d *Dispatcher) {
	if !cfg.Enabled {
		return
	}

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			ctx, cancel := context.WithCancel(context.Background())
			done := make(chan struct{})

			go func() {
				defer close(done)
				d.RunForever(ctx)
			}()

			lc.Append(fx.Hook{
				OnStop: func(context.Context) error {
					cancel()
					<-done
					return nil
				},
			})
			return nil
		},
	})
}
