package routes

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/senorian3/lumio-backend-sub001/internal/infra/config"
	"github.com/senorian3/lumio-backend-sub001/internal/transport/http/handlers"
	"github.com/senorian3/lumio-backend-sub001/internal/transport/http/middleware"
	"github.com/senorian3/lumio-backend-sub001/internal/usecase"
)

// ServiceSet groups the services the HTTP layer depends on.
type ServiceSet struct {
	Auth     *usecase.AuthService
	Sessions *usecase.SessionService
	OAuth    *usecase.OAuthService
	Posts    *usecase.PostService
	Payments *usecase.PaymentService
}

// DatabaseChecker exposes readiness behaviour for database connections.
type DatabaseChecker interface {
	Ping(ctx context.Context) error
}

// HealthChecker exposes readiness behaviour for cache and broker backends.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Dependencies encapsulates the objects required to register routes.
type Dependencies struct {
	Config   *config.AppConfig
	Logger   *zap.Logger
	Metrics  *middleware.HTTPMetrics
	Services ServiceSet
	Database DatabaseChecker
	Cache    HealthChecker
	Broker   HealthChecker
}

// Register configures the Gin engine with routes and middleware.
func Register(deps Dependencies) *gin.Engine {
	if deps.Config.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(deps.Logger))
	r.Use(deps.Metrics.Handler())

	healthOptions := make([]handlers.HealthOption, 0, 3)
	if deps.Database != nil {
		healthOptions = append(healthOptions, handlers.WithReadinessCheck("database", deps.Database.Ping))
	}
	if deps.Cache != nil {
		healthOptions = append(healthOptions, handlers.WithReadinessCheck("redis", deps.Cache.HealthCheck))
	}
	if deps.Broker != nil {
		healthOptions = append(healthOptions, handlers.WithReadinessCheck("rabbitmq", deps.Broker.HealthCheck))
	}

	healthHandler := handlers.NewHealthHandler(healthOptions...)
	r.GET("/healthz", healthHandler.Status)
	r.GET("/readyz", healthHandler.Readiness)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	secureCookies := deps.Config.App.Env == "production"
	authMiddleware := middleware.RequireAuth(deps.Services.Auth)

	api := r.Group("/api/v1")
	{
		authGroup := api.Group("/auth")
		authHandler := handlers.NewAuthHandler(deps.Services.Auth, deps.Services.Sessions, secureCookies)
		authHandler.RegisterRoutes(authGroup)

		oauthGroup := api.Group("/auth/oauth")
		oauthGroup.Use(middleware.RequireInternalKey(deps.Config.Internal.APIKey))
		oauthHandler := handlers.NewOAuthHandler(deps.Services.OAuth, secureCookies)
		oauthHandler.RegisterRoutes(oauthGroup)

		sessionGroup := api.Group("/sessions")
		sessionGroup.Use(authMiddleware)
		sessionHandler := handlers.NewSessionHandler(deps.Services.Sessions)
		sessionHandler.RegisterRoutes(sessionGroup)

		postGroup := api.Group("/posts")
		postGroup.Use(authMiddleware)
		postHandler := handlers.NewPostHandler(deps.Services.Posts)
		postHandler.RegisterRoutes(postGroup)

		paymentHandler := handlers.NewPaymentHandler(deps.Services.Payments, deps.Logger)
		guardedPayments := api.Group("/payments")
		guardedPayments.Use(authMiddleware)
		paymentHandler.RegisterRoutes(guardedPayments)

		// The provider signs the raw body; the webhook stays outside the guard.
		webhookGroup := api.Group("/payments")
		paymentHandler.RegisterWebhook(webhookGroup)
	}

	return r
}
