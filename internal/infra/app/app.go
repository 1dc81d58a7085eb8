package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/senorian3/lumio-backend-sub001/internal/core/domain"
	"github.com/senorian3/lumio-backend-sub001/internal/infra/billing"
	"github.com/senorian3/lumio-backend-sub001/internal/infra/config"
	"github.com/senorian3/lumio-backend-sub001/internal/infra/database"
	"github.com/senorian3/lumio-backend-sub001/internal/infra/logger"
	"github.com/senorian3/lumio-backend-sub001/internal/infra/rabbitmq"
	redisinfra "github.com/senorian3/lumio-backend-sub001/internal/infra/redis"
	"github.com/senorian3/lumio-backend-sub001/internal/infra/security"
	postgresrepo "github.com/senorian3/lumio-backend-sub001/internal/repository/postgres"
	redisrepo "github.com/senorian3/lumio-backend-sub001/internal/repository/redis"
	"github.com/senorian3/lumio-backend-sub001/internal/transport/http/middleware"
	"github.com/senorian3/lumio-backend-sub001/internal/transport/http/routes"
	"github.com/senorian3/lumio-backend-sub001/internal/usecase"
)

// fileEventsQueue is this service's private binding onto file.exchange.
const fileEventsQueue = "lumio_api_file_events"

// Application owns every long-lived resource of the process.
type Application struct {
	cfg      *config.AppConfig
	engine   *gin.Engine
	logger   *zap.Logger
	pool     *pgxpool.Pool
	redis    *redisinfra.Client
	rabbit   *rabbitmq.Client
	consumer *rabbitmq.Consumer
}

// New wires configuration into a runnable application.
func New(ctx context.Context, cfg *config.AppConfig) (*Application, error) {
	log, err := logger.New(cfg.App.Env)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	pool, err := database.NewPostgresPool(ctx, cfg.Postgres, log)
	if err != nil {
		return nil, fmt.Errorf("init postgres: %w", err)
	}

	redisClient, err := redisinfra.NewClient(cfg.Redis, log)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("init redis: %w", err)
	}

	rabbitClient, err := rabbitmq.NewClient(cfg.Rabbit.URL, log)
	if err != nil {
		pool.Close()
		_ = redisClient.Close()
		return nil, fmt.Errorf("init rabbitmq: %w", err)
	}

	cleanup := func() {
		_ = rabbitClient.Close()
		_ = redisClient.Close()
		pool.Close()
	}

	if err := rabbitClient.DeclareTopology(); err != nil {
		cleanup()
		return nil, fmt.Errorf("declare topology: %w", err)
	}
	if err := rabbitClient.BindQueue(fileEventsQueue, rabbitmq.FileExchange,
		domain.EventFileUploaded, domain.EventFileDeleted, domain.EventAvatarUpdated); err != nil {
		cleanup()
		return nil, fmt.Errorf("bind file events queue: %w", err)
	}

	rpcClient, err := rabbitmq.NewRPCClient(rabbitClient, rabbitmq.FilesExchange, log)
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("init rpc client: %w", err)
	}
	publisher := rabbitmq.NewPublisher(rabbitClient, log)

	issuer, err := security.NewTokenIssuer(
		cfg.JWT.AccessSecret,
		cfg.JWT.RefreshSecret,
		cfg.App.Name,
		cfg.JWT.AccessTokenTTL,
		cfg.JWT.RefreshTokenTTL,
	)
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("init token issuer: %w", err)
	}

	repos := postgresrepo.NewRepositories(pool)
	versionCache := redisrepo.NewTokenVersionRepository(redisClient.Client(), cfg.Redis.TokenVersionPrefix)
	cacheTTL := cfg.Redis.TokenVersionTTL
	if cacheTTL <= 0 {
		cacheTTL = 10 * time.Minute
	}

	stripeProvider := billing.NewStripeProvider(billing.Config{
		APIKey:        cfg.Stripe.APIKey,
		WebhookSecret: cfg.Stripe.WebhookSecret,
		SuccessURL:    cfg.Stripe.SuccessURL,
		CancelURL:     cfg.Stripe.CancelURL,
	}, log)

	authService := usecase.NewAuthService(repos.Users, repos.Sessions, versionCache, issuer, publisher, cacheTTL, log)
	sessionService := usecase.NewSessionService(repos.Sessions, versionCache, log)
	oauthService := usecase.NewOAuthService(repos.Users, repos.Identities, publisher, authService, log)
	paymentService := usecase.NewPaymentService(repos.Payments, stripeProvider, log)
	postService := usecase.NewPostService(repos.Posts, rpcClient, publisher, cfg.Rabbit.RPCTimeout, log)
	fileEvents := usecase.NewFileEventService(repos.Posts, repos.Users, publisher, log)

	consumer := rabbitmq.NewConsumer(rabbitClient, fileEventsQueue, log)
	consumer.Handle(domain.EventFileUploaded, fileEvents.HandleFileUploaded)
	consumer.Handle(domain.EventFileDeleted, fileEvents.HandleFileDeleted)
	consumer.Handle(domain.EventAvatarUpdated, fileEvents.HandleAvatarUpdated)

	metrics, err := middleware.NewHTTPMetrics(middleware.HTTPMetricsOptions{})
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("init metrics: %w", err)
	}

	engine := routes.Register(routes.Dependencies{
		Config:   cfg,
		Logger:   log,
		Metrics:  metrics,
		Database: pool,
		Cache:    redisClient,
		Broker:   rabbitClient,
		Services: routes.ServiceSet{
			Auth:     authService,
			Sessions: sessionService,
			OAuth:    oauthService,
			Posts:    postService,
			Payments: paymentService,
		},
	})

	return &Application{
		cfg:      cfg,
		engine:   engine,
		logger:   log,
		pool:     pool,
		redis:    redisClient,
		rabbit:   rabbitClient,
		consumer: consumer,
	}, nil
}

// Run serves HTTP and the broker consumer until ctx is cancelled.
func (a *Application) Run(ctx context.Context) error {
	defer func() {
		_ = a.logger.Sync()
	}()
	defer a.pool.Close()
	defer func() {
		_ = a.redis.Close()
	}()
	defer func() {
		_ = a.rabbit.Close()
	}()

	consumerCtx, stopConsumer := context.WithCancel(ctx)
	defer stopConsumer()

	consumerErrCh := make(chan error, 1)
	go func() {
		if err := a.consumer.Run(consumerCtx); err != nil && !errors.Is(err, context.Canceled) {
			consumerErrCh <- fmt.Errorf("run consumer: %w", err)
		}
	}()

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", a.cfg.App.Host, a.cfg.App.Port),
		Handler:           a.engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	a.logger.Info("starting lumio API",
		zap.String("env", a.cfg.App.Env),
		zap.String("address", srv.Addr),
	)

	serverErrCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrCh <- fmt.Errorf("run server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		stopConsumer()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown server: %w", err)
		}
		return nil
	case err := <-serverErrCh:
		return err
	case err := <-consumerErrCh:
		return err
	}
}
