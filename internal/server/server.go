package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/orgchart/internal/authorization"
	"github.com/smallbiznis/orgchart/internal/clock"
	"github.com/smallbiznis/orgchart/internal/config"
	"github.com/smallbiznis/orgchart/internal/events"
	"github.com/smallbiznis/orgchart/internal/lock"
	"github.com/smallbiznis/orgchart/internal/member"
	memberdomain "github.com/smallbiznis/orgchart/internal/member/domain"
	"github.com/smallbiznis/orgchart/internal/observability"
	obslogger "github.com/smallbiznis/orgchart/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/orgchart/internal/observability/metrics"
	obstracing "github.com/smallbiznis/orgchart/internal/observability/tracing"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	lock.Module,
	events.Module,
	authorization.Module,
	member.Module,
	fx.Provide(NewEngine),
	fx.Provide(NewServer),
	fx.Invoke(func(*Server) {}),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	if !obsCfg.Debug() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obslogger.GinMiddleware(obslogger.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func run(lc fx.Lifecycle, r *gin.Engine, cfg config.Config, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				log.Info("http server listening", zap.String("addr", srv.Addr))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
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
	log       *zap.Logger
	clock     clock.Clock
	memberSvc memberdomain.Service
	authzSvc  authorization.Service
}

type ServerParams struct {
	fx.In

	Gin       *gin.Engine
	Log       *zap.Logger
	Clock     clock.Clock
	MemberSvc memberdomain.Service
	AuthzSvc  authorization.Service `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	c := p.Clock
	if c == nil {
		c = clock.SystemClock{}
	}
	svc := &Server{
		engine:    p.Gin,
		log:       p.Log.Named("http.server"),
		clock:     c,
		memberSvc: p.MemberSvc,
		authzSvc:  p.AuthzSvc,
	}

	svc.registerAPIRoutes()
	svc.registerFallback()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api", s.ActorRequired())

	// -------- Members --------
	api.GET("/members", s.authorize(authorization.ObjectMember, authorization.ActionMemberView), s.ListMembers)
	api.POST("/members", s.authorize(authorization.ObjectMember, authorization.ActionMemberCreate), s.CreateMember)
	api.GET("/members/:id", s.authorize(authorization.ObjectMember, authorization.ActionMemberView), s.GetMemberByID)
	api.PATCH("/members/:id/active", s.authorize(authorization.ObjectMember, authorization.ActionMemberUpdate), s.SetMemberActive)

	// -------- Reparent --------
	api.POST("/members/:id/reparent/validate", s.authorize(authorization.ObjectMember, authorization.ActionMemberReparent), s.ValidateReparent)
	api.POST("/members/:id/reparent", s.authorize(authorization.ObjectMember, authorization.ActionMemberReparent), s.ReparentMember)

	// -------- Org tree --------
	api.GET("/org-tree", s.authorize(authorization.ObjectOrgTree, authorization.ActionOrgTreeView), s.GetOrgTree)
	api.GET("/org-tree/export", s.authorize(authorization.ObjectOrgTree, authorization.ActionOrgTreeExport), s.ExportOrgTree)
}

func (s *Server) registerFallback() {
	s.engine.NoRoute(func(c *gin.Context) {
		AbortWithError(c, ErrNotFound)
	})
}
