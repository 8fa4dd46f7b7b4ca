// internal/router/router.go
package router

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/licensehub/license-server/internal/config"
	"github.com/licensehub/license-server/internal/handlers"
	"github.com/licensehub/license-server/internal/i18n"
	"github.com/licensehub/license-server/internal/metrics"
	"github.com/licensehub/license-server/internal/middleware"
	"github.com/licensehub/license-server/internal/services"
	"github.com/licensehub/license-server/internal/utils"
)

// Initialize wires services, handlers and routes. Collectors are registered
// with reg and served from /metrics. Background work such as rate limiter
// cleanup stops when ctx is done.
func Initialize(ctx context.Context, db *gorm.DB, cfg *config.Config, reg *prometheus.Registry) *gin.Engine {
	m := metrics.NewLicenseMetrics(reg)
	audit := services.MultiAuditSink{
		services.NewLogrusAuditSink(logrus.StandardLogger()),
		services.NewDBAuditSink(db),
		m,
	}

	// Initialize services
	registry := services.NewLicenseRegistry(db)
	ledger := services.NewDomainLedger(db)

	activationService := services.NewActivationService(registry, ledger, audit)
	adminService := services.NewAdminService(registry, ledger, audit)
	authService := services.NewAuthService(db, cfg, audit)
	webhookService := services.NewWebhookService(registry, cfg, audit)

	// Initialize handlers
	licenseHandler := handlers.NewLicenseHandler(activationService)
	adminHandler := handlers.NewAdminHandler(adminService)
	authHandler := handlers.NewAuthHandler(authService, cfg.IsProduction())
	webhookHandler := handlers.NewWebhookHandler(webhookService)
	healthHandler := handlers.NewHealthHandler(db)

	// Set JWT secret
	utils.SetJWTSecret(cfg.JWT.SecretKey)

	// Rate limiters
	activateLimiter := middleware.PerMinute(cfg.RateLimit.ActivatePerMinute).Flat()
	checkLimiter := middleware.PerMinute(cfg.RateLimit.CheckPerMinute).Flat()
	webhookLimiter := middleware.PerMinute(cfg.RateLimit.WebhookPerMinute).Flat()
	adminLimiter := middleware.PerMinute(cfg.RateLimit.AdminPerMinute)
	for _, limiter := range []*middleware.RateLimiter{activateLimiter, checkLimiter, webhookLimiter, adminLimiter} {
		go limiter.Cleanup(ctx)
	}

	r := gin.New()
	// Without trusted proxies ClientIP is the peer address, so X-Forwarded-For
	// cannot be used to dodge the per-IP limits.
	if err := r.SetTrustedProxies(cfg.Server.TrustedProxies); err != nil {
		logrus.WithError(err).Warn("Ignoring invalid trusted proxies")
		_ = r.SetTrustedProxies(nil)
	}

	// Global middleware
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(logrus.StandardLogger(), m))
	r.Use(middleware.CORS(cfg.CORS.AllowedOrigins))
	r.Use(middleware.I18nMiddleware(cfg.I18n.DefaultLocale))

	r.GET("/health", healthHandler.Health)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	// Public activation API
	api := r.Group("/api")
	{
		api.POST("/activate", activateLimiter.Middleware(), licenseHandler.Activate)
		api.POST("/check", checkLimiter.Middleware(), licenseHandler.Check)
	}

	// Storefront and payment webhooks
	webhook := r.Group("/webhook")
	webhook.Use(webhookLimiter.Middleware())
	{
		webhook.POST("/create-license", middleware.WebhookSecretRequired(cfg.Webhook.Secret, audit), webhookHandler.CreateLicense)
		if webhookService.StripeEnabled() {
			webhook.POST("/stripe", webhookHandler.Stripe)
		}
	}

	// Admin API
	admin := r.Group("/admin")
	admin.Use(adminLimiter.Middleware())
	{
		admin.POST("/login", authHandler.Login)
		admin.POST("/logout", authHandler.Logout)

		protected := admin.Group("")
		protected.Use(middleware.AdminRequired())
		protected.Use(middleware.AdminAuditMiddleware(audit))
		{
			protected.GET("/dashboard", adminHandler.GetDashboard)

			licenses := protected.Group("/licenses")
			{
				licenses.GET("", adminHandler.GetLicenses)
				licenses.POST("", adminHandler.CreateLicense)
				licenses.GET("/new-key", adminHandler.GenerateKey)
				licenses.GET("/:id", adminHandler.GetLicense)
				licenses.PUT("/:id", adminHandler.UpdateLicense)
				licenses.DELETE("/:id", adminHandler.DeleteLicense)
				licenses.POST("/:id/suspend", adminHandler.SuspendLicense)
				licenses.POST("/:id/reactivate", adminHandler.ReactivateLicense)
				licenses.POST("/:id/extend", adminHandler.ExtendLicense)
				licenses.DELETE("/:id/domains/:domainId", adminHandler.UnbindDomain)
			}
		}
	}

	r.NoRoute(func(c *gin.Context) {
		utils.ErrorResponse(c, http.StatusNotFound, "NOT_FOUND", i18n.T(utils.GetLangFromContext(c), i18n.KeyRouteNotFound), nil)
	})

	return r
}
