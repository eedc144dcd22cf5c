package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	httptransport "github.com/spec-kit/storefront/internal/api/http"
	"github.com/spec-kit/storefront/internal/api/http/handlers"
	"github.com/spec-kit/storefront/internal/auth"
	"github.com/spec-kit/storefront/internal/config"
	"github.com/spec-kit/storefront/internal/messaging"
	"github.com/spec-kit/storefront/internal/observability"
	"github.com/spec-kit/storefront/internal/persistence"
	"github.com/spec-kit/storefront/internal/repository"
	"github.com/spec-kit/storefront/internal/service"
	"github.com/spec-kit/storefront/internal/worker"
)

const eventPrefetch = 16

func main() {
	cfg, err := config.Load(config.Defaults{Name: "catalog-service", Port: "3002", MigrationsDir: "migrations/catalog"})
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.App.Name, cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

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
	if err := broker.Prefetch(eventPrefetch); err != nil {
		logger.Fatal("failed to set prefetch", zap.Error(err))
	}

	metrics := observability.NewMetrics(cfg.App.Name)

	bus, err := messaging.NewEventBus(broker, cfg.Broker.EventsQueue, logger, metrics)
	if err != nil {
		logger.Fatal("failed to declare events queue", zap.Error(err))
	}
	if err := broker.DeclareQueue(cfg.Broker.RPCQueue); err != nil {
		logger.Fatal("failed to declare rpc queue", zap.Error(err))
	}
	rpcClient, err := messaging.NewRPCClient(ctx, broker, cfg.Broker.RPCQueue, cfg.Broker.RPCTimeout(), logger, metrics)
	if err != nil {
		logger.Fatal("failed to start rpc client", zap.Error(err))
	}

	var cache *goredis.Client
	if redis.Enabled() && cfg.Catalog.ValidationCacheTTL() > 0 {
		cache = redis.Client
	}
	validator := service.NewRemoteTokenValidator(rpcClient, cache, cfg.Catalog.ValidationCacheTTL(), logger)

	var products repository.ProductRepository
	if pg.Enabled() {
		products = repository.NewProductRepository(pg.PoolHandle())
	} else {
		products = repository.NewInMemoryProductStore()
	}
	catalog := service.NewCatalogService(products, logger)
	userEvents := service.NewUserEventsService(bus, catalog, logger)

	app := fiber.New(fiber.Config{AppName: cfg.App.Name, DisableStartupMessage: true})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())
	httptransport.RegisterCatalogRoutes(app, httptransport.CatalogRouteConfig{
		Health:  handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, dependencies(pg, redis, broker)),
		Catalog: handlers.NewCatalogHandler(catalog),
		Access:  auth.NewAuthMiddleware(validator),
		Metrics: metrics,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("http listening", zap.String("addr", cfg.App.Addr()))
		return app.Listen(cfg.App.Addr())
	})
	g.Go(func() error {
		return worker.StartUserEventsWorker(gctx, userEvents, bus, logger)
	})
	g.Go(func() error {
		return rpcClient.Wait(gctx)
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
