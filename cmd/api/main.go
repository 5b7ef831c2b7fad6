package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	httptransport "github.com/picktime/picktime-api/internal/api/http"
	"github.com/picktime/picktime-api/internal/api/http/handlers"
	"github.com/picktime/picktime-api/internal/auth"
	"github.com/picktime/picktime-api/internal/config"
	"github.com/picktime/picktime-api/internal/events"
	"github.com/picktime/picktime-api/internal/observability"
	"github.com/picktime/picktime-api/internal/persistence"
	"github.com/picktime/picktime-api/internal/repository"
	"github.com/picktime/picktime-api/internal/service"
	"github.com/picktime/picktime-api/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tokens, err := auth.NewTokenCodec(cfg.Auth.JWTSecret)
	if err != nil {
		logger.Fatal("failed to load signing key", zap.Error(err))
	}

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	dependencies := map[string]handlers.Pinger{"redis": redis}
	var userRepo repository.UserRepository
	if pool := pg.PoolHandle(); pool != nil {
		if cfg.Postgres.RunMigrations {
			if err := persistence.RunMigrations(ctx, pool, logger); err != nil {
				logger.Fatal("failed to run migrations", zap.Error(err))
			}
		}
		userRepo = repository.NewUserRepository(pool)
		dependencies["postgres"] = pg
	} else {
		logger.Warn("using in-memory user store")
		userRepo = repository.NewMemoryUserRepository()
	}
	verificationRepo := repository.NewVerificationRepository(redis.Client)

	var metrics *observability.Metrics
	if cfg.Metrics.Enabled {
		metrics = observability.NewMetrics()
	}

	dispatcher := events.NewInMemoryDispatcher()
	worker.StartNotificationWorker(service.NewNotificationService(dispatcher, logger, cfg.Notification))

	authService, err := service.NewAuthService(cfg.Auth, service.AuthDependencies{
		UserRepo:   userRepo,
		Tokens:     tokens,
		Dispatcher: dispatcher,
		Metrics:    metrics,
		Logger:     logger,
	})
	if err != nil {
		logger.Fatal("failed to init auth service", zap.Error(err))
	}
	verificationService := service.NewVerificationService(userRepo, verificationRepo, dispatcher, logger, cfg.Verification.CodeTTL())

	basePath := cfg.App.BasePath
	authMiddleware := auth.NewAuthMiddleware(tokens, logger, metrics, httptransport.PublicRoutes(basePath)...)

	app := httptransport.NewApp(cfg.App.Name, logger, metrics, cfg.App.RequestTimeout())

	routes := httptransport.RouteConfig{
		BasePath: basePath,
		Health:   handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, dependencies),
		Auth: handlers.NewAuthHandler(authService, handlers.CookieConfig{
			Name:   cfg.Auth.RefreshCookieName,
			Path:   basePath,
			MaxAge: cfg.Auth.RefreshCookieMaxAgeSecond,
			Secure: cfg.Auth.RefreshCookieSecure,
		}),
		Users:          handlers.NewUsersHandler(authService),
		Verification:   handlers.NewVerificationHandler(verificationService),
		AuthMiddleware: authMiddleware,
	}
	if metrics != nil {
		routes.Metrics = metrics.Handler()
		routes.MetricsPath = cfg.Metrics.Path
	}
	httptransport.RegisterRoutes(app, routes)

	go func() {
		logger.Info("listening", zap.String("addr", cfg.App.Addr()), zap.String("base_path", basePath))
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
