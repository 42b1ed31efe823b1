package api

import (
	"context"
	"fmt"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hearthline/leadflow/internal/api/handlers"
	mw "github.com/hearthline/leadflow/internal/api/middleware"
	"github.com/hearthline/leadflow/internal/config"
	"github.com/hearthline/leadflow/internal/domain"
	"github.com/hearthline/leadflow/internal/service"
	"github.com/hearthline/leadflow/internal/store"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Dependencies are the outbound integrations chosen by main. Each has a
// local fallback so the server runs without RabbitMQ or Redis.
type Dependencies struct {
	Events  domain.EventPublisher
	Guard   domain.DeliveryGuard
	Fetcher domain.LeadFormFetcher
	// Checks are reported by /health without failing it.
	Checks map[string]handlers.HealthCheck
}

// App holds the router and background services for lifecycle management.
type App struct {
	Router       *chi.Mux
	SLA          *service.SLAService
	FacebookSync *service.FacebookSyncService
}

func NewApp(db *pgxpool.Pool, deps Dependencies, logger *zap.Logger) (*App, error) {
	// Stores
	tenantStore := store.NewTenantStore(db)
	leadStore := store.NewLeadStore(db)
	activityStore := store.NewActivityStore(db)
	apiKeyStore := store.NewAPIKeyStore(db)
	userStore := store.NewUserStore(db)
	facebookStore := store.NewFacebookLeadStore(db)

	encKey, err := config.APIKeyEncryptionKey()
	if err != nil {
		return nil, err
	}

	// Services
	tenantSvc := service.NewTenantService(tenantStore)
	intakeSvc := service.NewIntakeService(leadStore, activityStore, deps.Events, logger)
	leadSvc := service.NewLeadService(leadStore, activityStore, deps.Events, logger)
	apiKeySvc, err := service.NewAPIKeyService(apiKeyStore, config.APIKeyPepper(), encKey, logger)
	if err != nil {
		return nil, fmt.Errorf("api key service: %w", err)
	}
	authSvc := service.NewAuthService(userStore, config.JWTSecret())
	userSvc := service.NewUserService(userStore, tenantStore)
	slaSvc := service.NewSLAService(tenantStore, leadStore, deps.Events, logger)
	slaSvc.SetInterval(config.SLAScanInterval())
	fbSvc := service.NewFacebookSyncService(facebookStore, tenantStore, deps.Fetcher, intakeSvc, logger)
	fbSvc.SetInterval(config.FacebookSyncInterval())

	// Handlers
	authHandler := handlers.NewAuthHandler(authSvc, tenantSvc)
	tenantHandler := handlers.NewTenantHandler(tenantSvc)
	leadHandler := handlers.NewLeadHandler(leadSvc, intakeSvc, tenantSvc, logger)
	intakeHandler := handlers.NewIntakeHandler(intakeSvc, tenantSvc)
	webhookHandler := handlers.NewWebhookHandler(intakeSvc, apiKeySvc, tenantSvc, fbSvc, deps.Guard, handlers.WebhookConfig{
		FacebookVerifyToken: config.FacebookVerifyToken(),
		FacebookAppSecret:   config.FacebookAppSecret(),
	}, logger)
	apiKeyHandler := handlers.NewAPIKeyHandler(apiKeySvc)
	userHandler := handlers.NewUserHandler(userSvc)
	reportHandler := handlers.NewReportHandler(leadSvc, slaSvc, tenantSvc)
	cronHandler := handlers.NewCronHandler(slaSvc, fbSvc)
	healthHandler := handlers.NewHealthHandler(func(ctx context.Context) error { return db.Ping(ctx) }, deps.Checks)

	r := chi.NewRouter()
	app := &App{Router: r, SLA: slaSvc, FacebookSync: fbSvc}

	// Global middleware (order matters)
	r.Use(mw.RequestID)
	r.Use(middleware.RealIP)
	r.Use(mw.Metrics)
	r.Use(mw.Logging(logger))
	r.Use(middleware.Recoverer)
	r.Use(mw.CORS(config.AllowedOrigins(), tenantSvc, logger))

	limited := mw.RateLimit(config.RateLimitRPS(), config.RateLimitBurst())

	// Health and metrics (no auth)
	r.Method("GET", "/health", healthHandler)
	r.Method("GET", "/metrics", promhttp.Handler())

	// Ad platform webhooks authenticate from the payload
	r.Route("/webhooks", func(r chi.Router) {
		r.Use(limited)
		r.Post("/google", webhookHandler.Google)
		r.Get("/facebook", webhookHandler.FacebookVerify)
		r.Post("/facebook", webhookHandler.Facebook)
	})

	r.Route("/internal/cron", func(r chi.Router) {
		r.Use(mw.CronSecret(config.CronSecret()))
		r.Post("/sla-check", cronHandler.SLACheck)
		r.Post("/facebook-sync", cronHandler.FacebookSync)
	})

	r.Route("/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(limited)
			r.Post("/auth/login", authHandler.Login)
			r.Post("/auth/refresh", authHandler.Refresh)
		})

		r.Group(func(r chi.Router) {
			r.Use(mw.Authenticate(authSvc, apiKeySvc))

			// Website forms
			r.With(limited, mw.RequireAPIKey).Post("/intake/leads", intakeHandler.Submit)

			r.Get("/me", authHandler.Me)

			// Dashboard
			r.Group(func(r chi.Router) {
				r.Use(mw.RequireRole(domain.RoleAgencyUser))

				r.Route("/leads", func(r chi.Router) {
					r.Get("/", leadHandler.List)
					r.Post("/", leadHandler.Create)
					r.Get("/export.csv", leadHandler.Export)
					r.Route("/{id}", func(r chi.Router) {
						r.Get("/", leadHandler.Get)
						r.Patch("/", leadHandler.Update)
						r.With(mw.RequireRole(domain.RoleAgencyAdmin)).Delete("/", leadHandler.Delete)
						r.Get("/activities", leadHandler.ListActivities)
						r.Post("/activities", leadHandler.AddActivity)
					})
				})

				r.Route("/reports", func(r chi.Router) {
					r.Get("/summary", reportHandler.Summary)
					r.Get("/sla", reportHandler.SLA)
				})

				r.Get("/tenants/{id}", tenantHandler.Get)
				r.Get("/users", userHandler.List)
			})

			// Agency administration
			r.Group(func(r chi.Router) {
				r.Use(mw.RequireRole(domain.RoleAgencyAdmin))

				r.Route("/api-keys", func(r chi.Router) {
					r.Get("/", apiKeyHandler.List)
					r.Post("/", apiKeyHandler.Create)
					r.Delete("/{id}", apiKeyHandler.Revoke)
					r.Post("/{id}/reveal", apiKeyHandler.Reveal)
				})

				r.Post("/users", userHandler.Create)
				r.Patch("/users/{id}", userHandler.SetActive)
			})

			// Platform administration
			r.Group(func(r chi.Router) {
				r.Use(mw.RequireRole(domain.RoleSuperAdmin))

				r.Get("/tenants", tenantHandler.List)
				r.Post("/tenants", tenantHandler.Create)
				r.Put("/tenants/{id}", tenantHandler.Update)
				r.Delete("/tenants/{id}", tenantHandler.Delete)
			})
		})
	})

	return app, nil
}

// Ensure stores satisfy interfaces at compile time.
var (
	_ domain.TenantStore       = (*store.TenantStore)(nil)
	_ domain.LeadStore         = (*store.LeadStore)(nil)
	_ domain.ActivityStore     = (*store.ActivityStore)(nil)
	_ domain.APIKeyStore       = (*store.APIKeyStore)(nil)
	_ domain.UserStore         = (*store.UserStore)(nil)
	_ domain.FacebookLeadStore = (*store.FacebookLeadStore)(nil)
)
