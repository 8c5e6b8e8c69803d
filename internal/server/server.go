package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/eventcrew/internal/collab/acceptance"
	"github.com/smallbiznis/eventcrew/internal/collab/domain"
	"github.com/smallbiznis/eventcrew/internal/collab/issuer"
	"github.com/smallbiznis/eventcrew/internal/config"
	"github.com/smallbiznis/eventcrew/internal/identity"
	"github.com/smallbiznis/eventcrew/internal/observability"
	obsmiddleware "github.com/smallbiznis/eventcrew/internal/observability/logger"
	obstracing "github.com/smallbiznis/eventcrew/internal/observability/tracing"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	fx.Provide(NewClientManager),
	fx.Provide(func(i *issuer.Issuer) InviteIssuer { return i }),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

// InviteIssuer sends the invite email for a stored invite.
type InviteIssuer interface {
	Issue(ctx context.Context, inviteID string) error
}

func NewEngine(obsCfg observability.Config) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(cfg config.Config, obsCfg observability.Config) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	return NewEngine(obsCfg)
}

func run(lc fx.Lifecycle, cfg config.Config, log *zap.Logger, r *gin.Engine) {
	addr := cfg.HTTPAddr
	if addr == "" {
		addr = ":8080"
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			log.Info("http server listening", zap.String("addr", addr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine    *gin.Engine
	cfg       config.Config
	log       *zap.Logger
	collabSvc domain.Service
	issuer    InviteIssuer
	pages     *acceptance.Registry
	identity  *identity.Hub
	clients   *ClientManager

	heartbeat time.Duration
}

type ServerParams struct {
	fx.In

	Gin      *gin.Engine
	Cfg      config.Config
	Log      *zap.Logger
	Collab   domain.Service
	Issuer   InviteIssuer
	Pages    *acceptance.Registry
	Identity *identity.Hub
	Clients  *ClientManager
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:    p.Gin,
		cfg:       p.Cfg,
		log:       p.Log.Named("http"),
		collabSvc: p.Collab,
		issuer:    p.Issuer,
		pages:     p.Pages,
		identity:  p.Identity,
		clients:   p.Clients,
		heartbeat: defaultHeartbeat,
	}

	if p.Cfg.InternalAPIToken == "" || p.Cfg.SessionRelayToken == "" {
		svc.log.Warn("service tokens not configured, protected routes reject all requests")
	}

	svc.registerAPIRoutes()
	svc.registerInternalRoutes()
	svc.registerAcceptRoutes()
	svc.registerAuthRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api", s.InternalTokenRequired())

	api.POST("/events/:event_id/collaborators", s.CreateCollaborator)
}

func (s *Server) registerInternalRoutes() {
	internal := s.engine.Group("/internal", s.InternalTokenRequired())

	internal.POST("/collab/invites/:id/send", s.SendInvite)
}

func (s *Server) registerAcceptRoutes() {
	accept := s.engine.Group("/collab/accept", s.ClientContext())
	{
		accept.POST("/:token", s.OpenAcceptPage)
		accept.GET("/:token/events", s.StreamAcceptPage)
		accept.POST("/:token/decline", s.DeclineInvite)
		accept.POST("/:token/accept", s.AcceptInvite)
		accept.DELETE("/:token", s.CloseAcceptPage)
	}
}

func (s *Server) registerAuthRoutes() {
	auth := s.engine.Group("/auth", s.SessionRelayTokenRequired())

	auth.POST("/session-events", s.RelaySessionEvent)
}
