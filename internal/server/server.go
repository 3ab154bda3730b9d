package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/salesledger/internal/observability"
	processingdomain "github.com/smallbiznis/salesledger/internal/processing/domain"
	"github.com/smallbiznis/salesledger/internal/scheduler"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("http.server",
	fx.Provide(NewEngine),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

type EngineParams struct {
	fx.In

	ObsCfg   observability.Config
	Log      *zap.Logger
	Gatherer prometheus.Gatherer `optional:"true"`
}

// NewEngine builds the ops engine serving health and prometheus metrics.
func NewEngine(p EngineParams) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	gatherer := p.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLogger(p.Log, p.ObsCfg.Debug()))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	return r
}

type ServerParams struct {
	fx.In

	Engine     *gin.Engine
	Processing processingdomain.Service
	Runner     *scheduler.Scheduler
	DB         *gorm.DB `optional:"true"`
}

type Server struct {
	engine     *gin.Engine
	processing processingdomain.Service
	runner     *scheduler.Scheduler
	db         *gorm.DB
}

func NewServer(p ServerParams) *Server {
	s := &Server{
		engine:     p.Engine,
		processing: p.Processing,
		runner:     p.Runner,
		db:         p.DB,
	}
	s.RegisterRoutes()
	return s
}

func (s *Server) RegisterRoutes() {
	s.engine.GET("/ready", s.Ready)

	v1 := s.engine.Group("/v1")
	v1.GET("/preview", s.Preview)
	v1.POST("/runs", s.Run)
}

func run(lc fx.Lifecycle, r *gin.Engine, obsCfg observability.Config, log *zap.Logger) {
	if obsCfg.MetricsAddr == "" {
		return
	}
	srv := &http.Server{
		Addr:              obsCfg.MetricsAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error("ops server stopped", zap.Error(err))
				}
			}()
			log.Info("ops server listening", zap.String("addr", obsCfg.MetricsAddr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}
