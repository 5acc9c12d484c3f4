package app

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"fleet/internal/handler"
	"fleet/internal/middleware"
)

// RouterDeps contains all dependencies needed for the router.
type RouterDeps struct {
	WebhookHandler *handler.WebhookHandler
	DriverHandler  *handler.DriverHandler
	AdminHandler   *handler.AdminHandler
	TokenVerifier  middleware.TokenVerifier
	RedisClient    *redis.Client
	NewRelicApp    *newrelic.Application
	Gatherer       prometheus.Gatherer
	Logger         *slog.Logger

	WebhookSecretHeader string
	WebhookSecret       string
	IdentityHookSecret  string
}

// NewRouter creates a new Gin router with all routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	router := gin.New()

	// Global middleware.
	router.Use(middleware.Recovery(deps.Logger))
	router.Use(middleware.RequestLogger(deps.Logger))

	// Add New Relic middleware if enabled.
	if deps.NewRelicApp != nil {
		router.Use(nrgin.Middleware(deps.NewRelicApp))
		router.Use(middleware.NewRelicAttributes())
	}

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	if deps.Gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}

	// API v1 routes.
	v1 := router.Group("/v1")
	{
		// Dispatch provider webhooks.
		webhooks := v1.Group("/webhooks/dispatch")
		webhooks.Use(middleware.SharedSecret(deps.WebhookSecretHeader, deps.WebhookSecret))
		{
			webhooks.POST("", deps.WebhookHandler.Delivery)
			webhooks.POST("/orders", deps.WebhookHandler.NewOrder)
		}

		// Identity provider hook.
		register := v1.Group("/drivers")
		if deps.IdentityHookSecret != "" {
			register.Use(middleware.SharedSecret("X-Identity-Hook-Secret", deps.IdentityHookSecret))
		}
		register.POST("/register", deps.DriverHandler.Register)

		authed := v1.Group("")
		authed.Use(middleware.Authenticate(deps.TokenVerifier))

		// Driver self-service.
		me := authed.Group("/me")
		{
			me.POST("/application", deps.DriverHandler.SubmitApplication)
			me.GET("/wallet", deps.DriverHandler.Wallet)
		}

		// Admin console.
		admin := authed.Group("/admin")
		if deps.RedisClient != nil {
			admin.Use(middleware.IdempotencyMiddleware(deps.RedisClient, deps.Logger))
		}
		{
			drivers := admin.Group("/drivers")
			drivers.GET("", deps.AdminHandler.ListDrivers)
			drivers.GET("/:key", deps.AdminHandler.GetDriver)
			drivers.GET("/:key/transactions", deps.AdminHandler.GetTransactions)
			drivers.POST("/:key/approve", deps.AdminHandler.Approve)
			drivers.POST("/:key/reject", deps.AdminHandler.Reject)
			drivers.POST("/:key/suspend", deps.AdminHandler.Suspend)
			drivers.POST("/:key/restrict", deps.AdminHandler.Restrict)
			drivers.POST("/:key/reactivate", deps.AdminHandler.Reactivate)
			drivers.POST("/:key/payouts", deps.AdminHandler.RecordPayout)
			drivers.POST("/:key/adjustments", deps.AdminHandler.RecordAdjustment)
			drivers.POST("/:key/incentives", deps.AdminHandler.GrantIncentive)

			admin.GET("/settings", deps.AdminHandler.GetSettings)
			admin.PATCH("/settings", deps.AdminHandler.UpdateSettings)

			admin.POST("/dispatch/sync", deps.AdminHandler.SyncDispatchDrivers)
			admin.POST("/dispatch/orders/:id/unassign", deps.AdminHandler.UnassignOrder)
		}
	}

	return router
}
