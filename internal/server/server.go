package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	aggdomain "github.com/smallbiznis/commission/internal/aggregation/domain"
	"github.com/smallbiznis/commission/internal/config"
	"github.com/smallbiznis/commission/internal/observability"
	obsmiddleware "github.com/smallbiznis/commission/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/commission/internal/observability/metrics"
	"github.com/smallbiznis/commission/internal/observability/tracing"
	"github.com/smallbiznis/commission/internal/recalc"
	turndomain "github.com/smallbiznis/commission/internal/turn/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, log *zap.Logger, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	if !obsCfg.Debug() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(log, obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(tracing.GinMiddleware())
	r.Use(httpMetrics.GinMiddleware())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, log *zap.Logger, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	return NewEngine(obsCfg, log, httpMetrics)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
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
			log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
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
	engine      *gin.Engine
	log         *zap.Logger
	trigger     *recalc.Trigger
	turnSvc     turndomain.Service
	aggregation aggdomain.Service
}

type ServerParams struct {
	fx.In

	Gin         *gin.Engine
	Log         *zap.Logger
	Trigger     *recalc.Trigger
	TurnSvc     turndomain.Service
	Aggregation aggdomain.Service
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:      p.Gin,
		log:         p.Log.Named("http.server"),
		trigger:     p.Trigger,
		turnSvc:     p.TurnSvc,
		aggregation: p.Aggregation,
	}

	svc.registerAPIRoutes()
	svc.registerFallback()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/v1")

	// -------- Budgets --------
	budgets := api.Group("/budgets/:id")
	budgets.POST("/recompute", s.RecomputeBudget)
	budgets.GET("/totals", s.ListUserTotals)

	budgets.POST("/users/:user_id/recompute", s.RecomputeUser)
	budgets.GET("/users/:user_id/categories", s.ListCategoryTotals)
	budgets.GET("/users/:user_id/allocation", s.GetAllocation)

	// -------- Turns --------
	budgets.PUT("/turns/:user_id", s.AssignTurns)
	budgets.GET("/turns/remaining", s.GetRemainingTurns)

	// -------- Ledger --------
	api.POST("/ledger/events", s.IngestLedgerEvent)
}

func (s *Server) registerFallback() {
	s.engine.NoRoute(func(c *gin.Context) {
		AbortWithError(c, ErrNotFound)
	})
}
