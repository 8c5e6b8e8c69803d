package collab

import (
	"github.com/smallbiznis/eventcrew/internal/collab/repository"
	"github.com/smallbiznis/eventcrew/internal/collab/service"
	"go.uber.org/fx"
)

var Module = fx.Module("collab.service",
	fx.Provide(repository.NewRepository),
	fx.Provide(service.NewService),
)
