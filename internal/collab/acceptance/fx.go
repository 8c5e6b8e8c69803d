package acceptance

import (
	"context"

	"github.com/smallbiznis/eventcrew/internal/identity"
	"go.uber.org/fx"
)

var Module = fx.Module("collab.acceptance",
	fx.Provide(ConfigFrom),
	fx.Provide(func(h *identity.Hub) Sessions { return h }),
	fx.Provide(NewHandoff),
	fx.Provide(NewRegistry),
	fx.Invoke(registerLifecycle),
)

func registerLifecycle(lc fx.Lifecycle, r *Registry) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			r.Start()
			return nil
		},
		OnStop: func(context.Context) error {
			r.Stop()
			return nil
		},
	})
}
