package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/johnanishgitc/salesdashboard/internal/card"
	"github.com/johnanishgitc/salesdashboard/internal/cardconfig"
	"github.com/johnanishgitc/salesdashboard/internal/config"
	"github.com/johnanishgitc/salesdashboard/internal/dashboard"
	"github.com/johnanishgitc/salesdashboard/internal/syncer"
	"github.com/johnanishgitc/salesdashboard/internal/syncer/events"
)

var Module = fx.Module("http.server",
	fx.Provide(NewEngine),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(log *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger(log.Named("http")))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func requestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}

type Server struct {
	engine     *gin.Engine
	cfg        config.Config
	log        *zap.Logger
	syncer     *syncer.Service
	dashboards *dashboard.Service
	cards      *card.Service
	cardConfig *cardconfig.Client
	hub        *events.Hub
}

type ServerParams struct {
	fx.In

	Gin        *gin.Engine
	Cfg        config.Config
	Log        *zap.Logger
	Syncer     *syncer.Service
	Dashboards *dashboard.Service
	Cards      *card.Service
	CardConfig *cardconfig.Client
	Hub        *events.Hub
}

func NewServer(p ServerParams) *Server {
	s := &Server{
		engine:     p.Gin,
		cfg:        p.Cfg,
		log:        p.Log.Named("server"),
		syncer:     p.Syncer,
		dashboards: p.Dashboards,
		cards:      p.Cards,
		cardConfig: p.CardConfig,
		hub:        p.Hub,
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	api := s.engine.Group("/api/v1")

	api.POST("/sync/download", s.handleDownload)
	api.POST("/sync/update", s.handleUpdate)
	api.GET("/sync/status", s.handleSyncStatus)
	api.GET("/sync/events", s.handleSyncEvents)

	api.POST("/cache/clear", s.handleClear)
	api.GET("/cache/stats", s.handleStats)
	api.GET("/cache/raw", s.handleRaw)

	api.GET("/dashboard", s.handleDashboard)
	api.GET("/dashboard/extended", s.handleExtendedDashboard)
	api.POST("/cards/compute", s.handleComputeCards)
}

func run(lc fx.Lifecycle, r *gin.Engine, cfg config.Config, log *zap.Logger) {
	srv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("http server listening", zap.String("addr", cfg.ListenAddr))
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
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
