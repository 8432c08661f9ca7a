package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/link-access-service/internal/api/http"
	"github.com/spec-kit/link-access-service/internal/api/http/handlers"
	"github.com/spec-kit/link-access-service/internal/auth"
	"github.com/spec-kit/link-access-service/internal/config"
	"github.com/spec-kit/link-access-service/internal/events"
	"github.com/spec-kit/link-access-service/internal/identity"
	"github.com/spec-kit/link-access-service/internal/observability"
	"github.com/spec-kit/link-access-service/internal/persistence"
	"github.com/spec-kit/link-access-service/internal/repository"
	"github.com/spec-kit/link-access-service/internal/service"
	"github.com/spec-kit/link-access-service/internal/worker"
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

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	pool := pg.PoolHandle()
	if pool == nil {
		logger.Fatal("POSTGRES_DSN is required: identities and assignments live in postgres")
	}

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pool, logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	readiness := map[string]handlers.Pinger{"postgres": pg}

	var tokenRepo repository.AccessTokenRepository
	switch cfg.Links.TokenStoreBackend {
	case config.TokenStoreRedis:
		redis := persistence.NewRedis(cfg.Redis, logger)
		defer redis.Close()
		readiness["redis"] = redis
		tokenRepo = repository.NewRedisAccessTokenRepository(redis.Client, cfg.Redis.KeyPrefix)
	case config.TokenStoreMemory:
		memory := repository.NewMemoryAccessTokenRepository()
		defer memory.Close()
		tokenRepo = memory
	default:
		tokenRepo = repository.NewAccessTokenRepository(pool)
	}
	logger.Info("token store selected", zap.String("backend", cfg.Links.TokenStoreBackend))

	identityRepo := repository.NewIdentityRepository(pool)
	assignmentRepo := repository.NewAssignmentRepository(pool)

	metrics := observability.NewMetrics("link_access")
	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes, cfg.Auth.RefreshTokenTTLMinutes)
	provider := identity.NewLocalProvider(identityRepo, tokens, cfg.Auth.BcryptCost, uuid.NewString)

	dispatcher := events.NewInMemoryDispatcher()
	notifications := service.NewNotificationService(dispatcher, service.NewLogMailer(logger), logger, cfg.Notification)
	worker.StartNotificationWorker(notifications, logger)

	linkService := service.NewLinkService(*cfg, service.LinkDependencies{
		TokenRepo:    tokenRepo,
		Binder:       service.NewResourceBinder(assignmentRepo),
		Bootstrapper: service.NewIdentityBootstrapper(provider, logger),
		Sessions:     service.NewSessionMinter(provider),
		Dispatcher:   dispatcher,
		Metrics:      metrics,
		Logger:       logger,
	})

	eviction := worker.NewEvictionWorker(tokenRepo, cfg.Links.EvictionInterval(), metrics, logger)
	go eviction.Run(ctx)

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, readiness),
		Links:          handlers.NewLinksHandler(linkService),
		AuthMiddleware: auth.NewAuthMiddleware(tokens, identityRepo),
		Metrics:        metrics,
		IssuerAPIKey:   cfg.Auth.IssuerAPIKey,
		RedeemPath:     cfg.Links.RedeemPath,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	cancel()
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Warn("shutdown", zap.Error(err))
	}
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
