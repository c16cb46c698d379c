package api

import (
	"github.com/ayo6706/clubledger/internal/api/handler"
	"github.com/ayo6706/clubledger/internal/api/middleware"
	"github.com/ayo6706/clubledger/internal/api/spec"
	"github.com/ayo6706/clubledger/internal/config"
	"github.com/ayo6706/clubledger/internal/idempotency"
	"github.com/ayo6706/clubledger/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Services are the application services the HTTP layer exposes.
type Services struct {
	Accounts       *service.AccountService
	Ledger         *service.LedgerService
	Settlements    *service.SettlementService
	TopUps         *service.AutoTopUpService
	Webhooks       *service.WebhookService
	PendingCharges *service.PendingChargeService
}

type Router struct {
	cfg       *config.Config
	logger    *zap.Logger
	db        handler.Pinger
	redis     redis.Cmdable
	idemStore *idempotency.Store
	svc       Services
}

// NewRouter wires handlers to services. db and redis may be nil; they only
// feed the readiness probe.
func NewRouter(cfg *config.Config, logger *zap.Logger, db handler.Pinger, redis redis.Cmdable, idemStore *idempotency.Store, svc Services) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{cfg: cfg, logger: logger, db: db, redis: redis, idemStore: idemStore, svc: svc}
}

func (api *Router) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.TraceMiddleware)
	r.Use(middleware.RecoverMiddleware(api.logger))
	r.Use(middleware.LoggingMiddleware(api.logger))
	r.Use(middleware.MetricsMiddleware)

	middleware.SetJWTSecret(api.cfg.JWTSecret)
	middleware.SetJWTValidation(api.cfg.JWTIssuer, api.cfg.JWTAudience)

	// Handlers
	healthHandler := handler.NewHealthHandler(api.db, api.redis)
	authHandler := handler.NewAuthHandler(api.svc.Accounts)
	accountHandler := handler.NewAccountHandler(api.svc.Accounts, api.svc.Ledger, api.cfg.Currency)
	settlementHandler := handler.NewSettlementHandler(api.svc.Settlements)
	topUpHandler := handler.NewAutoTopUpHandler(api.svc.TopUps)
	pendingHandler := handler.NewPendingChargeHandler(api.svc.PendingCharges)
	webhookHandler := handler.NewWebhookHandler(api.svc.Webhooks)

	r.Get("/healthz", healthHandler.Live)
	r.Get("/readyz", healthHandler.Ready)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/openapi.yaml", spec.OpenAPIHandler())
	r.Get("/docs/*", spec.DocsHandler())

	// Public Routes
	r.Group(func(r chi.Router) {
		r.Use(middleware.PublicRateLimiter(api.cfg.PublicRateLimitRPS))
		r.Post("/v1/auth/login", authHandler.Login)
		r.Post("/v1/members", accountHandler.CreateMember)
	})
	r.With(middleware.WebhookRateLimiter(api.cfg.WebhookRateLimitRPS)).
		Post("/v1/webhooks/gateway", webhookHandler.HandleGatewayWebhook)

	// Protected Routes
	r.Group(func(r chi.Router) {
		r.Use(middleware.AuthMiddleware)
		r.Use(middleware.AuthRateLimiter(api.cfg.AuthRateLimitRPS))

		// Members
		r.Get("/v1/members/{id}", accountHandler.GetMember)
		r.Get("/v1/members/{id}/balance", accountHandler.GetMemberBalance)
		r.Get("/v1/members/{id}/transactions", accountHandler.GetMemberStatement)
		r.Post("/v1/members/{id}/transactions/{txID}/void", accountHandler.VoidMemberTransaction)

		// Auto top-up
		r.Post("/v1/members/{id}/auto-topup", topUpHandler.Enroll)
		r.Put("/v1/members/{id}/auto-topup", topUpHandler.Configure)
		r.Delete("/v1/members/{id}/auto-topup", topUpHandler.Disable)

		// Settlements
		r.Group(func(r chi.Router) {
			r.Use(middleware.IdempotencyMiddleware(api.idemStore, api.logger))
			r.Post("/v1/settlements", settlementHandler.Settle)
			r.Post("/v1/settlements/batch", settlementHandler.SettleBatch)
		})
		r.Get("/v1/pending-charges/{id}", pendingHandler.Get)

		// Organisations
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireRole(middleware.RoleAdmin))
			r.Post("/v1/organisations", accountHandler.CreateOrganisation)
			r.Get("/v1/organisations/{id}/balance", accountHandler.GetOrganisationBalance)
			r.Get("/v1/organisations/{id}/transactions", accountHandler.GetOrganisationStatement)
		})
	})

	return r
}
