package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	httptransport "github.com/spec-kit/storefront/internal/api/http"
	"github.com/spec-kit/storefront/internal/api/http/handlers"
	"github.com/spec-kit/storefront/internal/api/rpc"
	"github.com/spec-kit/storefront/internal/auth"
	"github.com/spec-kit/storefront/internal/config"
	"github.com/spec-kit/storefront/internal/messaging"
	"github.com/spec-kit/storefront/internal/observability"
	"github.com/spec-kit/storefront/internal/persistence"
	"github.com/spec-kit/storefront/internal/repository"
	"github.com/spec-kit/storefront/internal/service"
)

const rpcPrefetch = 32

func main() {
	cfg, err := config.Load(config.Defaults{Name: "auth-service", Port: "3001", MigrationsDir: "migrations/auth"})
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.App.Name, cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	if err := cfg.Auth.Validate(); err != nil {
		logger.Fatal("invalid auth config", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := pg.Migrate(ctx, cfg.Postgres.MigrationsDir, logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	broker, err := messaging.Dial(cfg.Broker.URL)
	if err != nil {
		logger.Fatal("failed to connect rabbitmq", zap.Error(err))
	}
	defer broker.Close() //nolint:errcheck
	if err := broker.Prefetch(rpcPrefetch); err != nil {
		logger.Fatal("failed to set prefetch", zap.Error(err))
	}

	metrics := observability.NewMetrics(cfg.App.Name)

	bus, err := messaging.NewEventBus(broker, cfg.Broker.EventsQueue, logger, metrics)
	if err != nil {
		logger.Fatal("failed to declare events queue", zap.Error(err))
	}
	rpcServer, err := messaging.NewRPCServer(broker, cfg.Broker.RPCQueue, cfg.Broker.RPCTimeout(), logger)
	if err != nil {
		logger.Fatal("failed to declare rpc queue", zap.Error(err))
	}

	var users repository.UserStore
	if pg.Enabled() {
		users = repository.NewUserRepository(pg.PoolHandle())
	} else {
		users = repository.NewInMemoryUserStore()
	}

	issuer := auth.NewTokenIssuer(auth.TokenConfig{
		AccessSecret:  cfg.Auth.AccessSecret,
		RefreshSecret: cfg.Auth.RefreshSecret,
		AccessTTL:     cfg.Auth.AccessTTL(),
		RefreshTTL:    cfg.Auth.RefreshTTL(),
	}, auth.NewRoleTagger(cfg.Auth.RoleTagSecret))

	authService := service.NewAuthService(cfg.Auth, service.AuthDependencies{
		Users:      users,
		Issuer:     issuer,
		Hasher:     auth.NewHasher(cfg.Auth.BcryptCost, cfg.Auth.HashWorkers),
		Dispatcher: bus,
		Logger:     logger,
		Metrics:    metrics,
	})
	rpc.RegisterAuthHandlers(rpcServer, authService)

	app := fiber.New(fiber.Config{AppName: cfg.App.Name, DisableStartupMessage: true})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())
	httptransport.RegisterAuthRoutes(app, httptransport.AuthRouteConfig{
		Health:  handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, dependencies(pg, redis, broker)),
		Users:   handlers.NewUsersHandler(authService),
		Access:  auth.NewAuthMiddleware(authService),
		Refresh: auth.NewAuthMiddleware(authService.RefreshVerifier()),
		Metrics: metrics,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("http listening", zap.String("addr", cfg.App.Addr()))
		return app.Listen(cfg.App.Addr())
	})
	g.Go(func() error {
		return rpcServer.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		return app.ShutdownWithTimeout(10 * time.Second)
	})

	if err := g.Wait(); err != nil {
		logger.Error("service stopped", zap.Error(err))
		os.Exit(1)
	}
}

func dependencies(pg *persistence.Postgres, redis *persistence.Redis, broker *messaging.Client) map[string]handlers.Pinger {
	deps := map[string]handlers.Pinger{
		"rabbitmq": handlers.PingerFunc(func(context.Context) error { return broker.Ping() }),
	}
	if pg.Enabled() {
		deps["postgres"] = pg
	}
	if redis.Enabled() {
		deps["redis"] = redis
	}
	return deps
}
