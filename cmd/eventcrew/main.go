package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/eventcrew/internal/clock"
	"github.com/smallbiznis/eventcrew/internal/collab"
	"github.com/smallbiznis/eventcrew/internal/collab/acceptance"
	"github.com/smallbiznis/eventcrew/internal/collab/dispatch"
	"github.com/smallbiznis/eventcrew/internal/collab/issuer"
	"github.com/smallbiznis/eventcrew/internal/config"
	"github.com/smallbiznis/eventcrew/internal/identity"
	"github.com/smallbiznis/eventcrew/internal/lock"
	"github.com/smallbiznis/eventcrew/internal/migration"
	"github.com/smallbiznis/eventcrew/internal/observability"
	"github.com/smallbiznis/eventcrew/internal/outbox"
	"github.com/smallbiznis/eventcrew/internal/providers"
	"github.com/smallbiznis/eventcrew/internal/server"
	"github.com/smallbiznis/eventcrew/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

func main() {
	app := fx.New(
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log.Named("fx")}
		}),

		// Core Infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		migration.Module,
		clock.Module,
		lock.Module,
		outbox.Module,
		identity.Module,
		providers.Module,

		// Collaboration invites
		collab.Module,
		issuer.Module,
		acceptance.Module,
		dispatch.Module,

		server.Module,
	)
	app.Run()
}

func RegisterSnowflake(cfg config.Config) (*snowflake.Node, error) {
	return snowflake.NewNode(cfg.NodeID)
}
