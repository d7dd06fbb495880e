package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/anishghanwat/storemybottle/internal/config"
	"github.com/anishghanwat/storemybottle/internal/observability/logger"
	"github.com/anishghanwat/storemybottle/internal/observability/metrics"
	purchasedomain "github.com/anishghanwat/storemybottle/internal/purchase/domain"
	querydomain "github.com/anishghanwat/storemybottle/internal/query/domain"
	redemptiondomain "github.com/anishghanwat/storemybottle/internal/redemption/domain"
	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("server",
	fx.Provide(NewServer),
	fx.Provide(NewEngine),
	fx.Invoke(RunHTTP),
)

// Server wires the HTTP surface to the domain services.
type Server struct {
	cfg           config.Config
	log           *zap.Logger
	db            *gorm.DB
	purchaseSvc   purchasedomain.Service
	redemptionSvc redemptiondomain.Service
	querySvc      querydomain.Service
}

type Params struct {
	fx.In

	Cfg           config.Config
	Log           *zap.Logger
	DB            *gorm.DB
	PurchaseSvc   purchasedomain.Service
	RedemptionSvc redemptiondomain.Service
	QuerySvc      querydomain.Service
}

func NewServer(p Params) *Server {
	return &Server{
		cfg:           p.Cfg,
		log:           p.Log.Named("server"),
		db:            p.DB,
		purchaseSvc:   p.PurchaseSvc,
		redemptionSvc: p.RedemptionSvc,
		querySvc:      p.QuerySvc,
	}
}

// NewEngine builds the gin engine with the shared middleware chain and all
// API routes registered.
func NewEngine(s *Server, httpMetrics *metrics.HTTPMetrics) *gin.Engine {
	if s.cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(logger.GinMiddleware(logger.MiddlewareConfig{
		SkipPaths: []string{"/healthz"},
	}))
	engine.Use(metrics.GinMiddleware(httpMetrics))

	s.RegisterRoutes(engine)
	return engine
}

// RegisterRoutes mounts the health check and the versioned API groups.
func (s *Server) RegisterRoutes(engine *gin.Engine) {
	engine.GET("/healthz", s.healthz)

	api := engine.Group("/api")

	customer := api.Group("", s.CustomerRequired())
	{
		customer.POST("/purchases", s.createPurchase)
		customer.GET("/purchases/:id", s.getPurchase)
		customer.GET("/purchases/my-bottles", s.myBottles)
		customer.GET("/purchases/history", s.purchaseHistory)

		customer.POST("/redemptions", s.issueToken)
		customer.POST("/redemptions/:id/cancel", s.cancelToken)
		customer.GET("/redemptions/:id", s.tokenStatus)
		customer.GET("/redemptions/history", s.redemptionHistory)
	}

	bartender := api.Group("", s.BartenderRequired())
	{
		bartender.POST("/purchases/:id/process", s.processPurchase)
		bartender.GET("/purchases/venue/pending", s.pendingPurchases)

		bartender.POST("/redemptions/validate", s.validateToken)
		bartender.GET("/redemptions/venue/recent", s.recentRedemptions)
	}
}

// RunHTTP starts the HTTP listener on the fx lifecycle and drains it on stop.
func RunHTTP(lc fx.Lifecycle, engine *gin.Engine, s *Server) {
	srv := &http.Server{
		Addr:    s.cfg.HTTP.Addr,
		Handler: engine,
	}

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				s.log.Info("http server listening", zap.String("addr", srv.Addr))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					s.log.Error("http server stopped", zap.Error(err))
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
