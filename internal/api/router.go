package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/greyfinance/ach-engine/internal/api/handler"
	"github.com/greyfinance/ach-engine/internal/api/middleware"
	"github.com/greyfinance/ach-engine/internal/config"
	"github.com/greyfinance/ach-engine/internal/idempotency"
	"github.com/greyfinance/ach-engine/internal/service"
)

type Router struct {
	cfg      *config.Config
	logger   *zap.Logger
	db       *pgxpool.Pool
	redis    redis.Cmdable
	engine   *service.Engine
	delivery *service.DeliveryService
	recon    *service.ReconciliationService
	idem     *idempotency.Store
}

func NewRouter(
	cfg *config.Config,
	logger *zap.Logger,
	db *pgxpool.Pool,
	redisClient redis.Cmdable,
	engine *service.Engine,
	delivery *service.DeliveryService,
	recon *service.ReconciliationService,
	idem *idempotency.Store,
) *Router {
	return &Router{
		cfg:      cfg,
		logger:   logger,
		db:       db,
		redis:    redisClient,
		engine:   engine,
		delivery: delivery,
		recon:    recon,
		idem:     idem,
	}
}

func (api *Router) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.TraceMiddleware)
	r.Use(middleware.LoggingMiddleware(api.logger))
	r.Use(middleware.RecoverMiddleware(api.logger))
	r.Use(middleware.MetricsMiddleware)

	healthHandler := handler.NewHealthHandler(api.db, api.redis)
	batchHandler := handler.NewBatchHandler(api.engine, api.delivery)
	returnsHandler := handler.NewReturnsHandler(api.recon)

	// Public routes
	r.Group(func(r chi.Router) {
		r.Use(middleware.PublicRateLimiter(api.cfg.PublicRateLimitRPS))
		r.Get("/healthz", healthHandler.Live)
		r.Get("/readyz", healthHandler.Ready)
	})
	r.Handle("/metrics", promhttp.Handler())

	// Operator routes
	r.Group(func(r chi.Router) {
		r.Use(middleware.AuthMiddleware)
		r.Use(middleware.AuthRateLimiter(api.cfg.AuthRateLimitRPS))

		r.Get("/v1/batches/{id}", batchHandler.Get)
		r.Get("/v1/batches/{id}/items", batchHandler.Items)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireRole("operator"))
			if api.idem != nil {
				r.With(middleware.IdempotencyMiddleware(api.idem, api.logger)).Post("/v1/batches", batchHandler.Run)
			} else {
				r.Post("/v1/batches", batchHandler.Run)
			}
			r.Post("/v1/batches/{id}/deliver", batchHandler.Deliver)
			r.Post("/v1/returns/poll", returnsHandler.Poll)
		})
	})

	return r
}
