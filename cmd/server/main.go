// Package main provides the entry point for the model router server
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/model-router/router/internal/auth"
	"github.com/model-router/router/internal/character"
	"github.com/model-router/router/internal/config"
	"github.com/model-router/router/internal/dispatcher"
	"github.com/model-router/router/internal/health"
	"github.com/model-router/router/internal/providers"
	"github.com/model-router/router/internal/ratelimit"
	"github.com/model-router/router/internal/registry"
	"github.com/model-router/router/internal/selector"
	"github.com/model-router/router/internal/server"
	"github.com/model-router/router/internal/storage"
	"github.com/model-router/router/pkg/types"
	"github.com/model-router/router/pkg/utils"
)

func main() {
	// .env is optional, real deployments use the environment directly
	_ = godotenv.Load()

	manager := config.NewManager()
	if err := manager.Load(); err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := manager.Validate(); err != nil {
		log.Fatalf("Configuration validation failed: %v", err)
	}
	cfg := manager.Get()

	logger := utils.NewLogger(&cfg.Logging)

	if err := manager.Watch(logger, func(*types.Config) {
		logger.Info("Configuration reloaded")
	}); err != nil {
		logger.WithError(err).Warn("Config watching unavailable")
	}

	db, err := storage.NewDatabase(&cfg.Database, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to database")
	}
	if err := db.AutoMigrate(); err != nil {
		logger.WithError(err).Fatal("Failed to migrate database")
	}

	redisClient, err := storage.NewRedisClient(&cfg.Redis, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to Redis")
	}
	defer redisClient.Close()

	reg, adapters := buildProviders(cfg, logger)

	monitor := health.NewMonitor(adapters, cfg.Health.Timeout, logger)
	monitor.Start(cfg.Health.Interval)
	defer monitor.Stop()

	var limiter ratelimit.Limiter
	if cfg.RateLimit.Enabled {
		switch cfg.RateLimit.Backend {
		case "redis":
			limiter = ratelimit.NewRedisLimiter(redisClient.Client(), cfg.RateLimit.Window, cfg.RateLimit.Limit)
		default:
			memLimiter := ratelimit.NewFixedWindow(cfg.RateLimit.Window, cfg.RateLimit.Limit)
			memLimiter.StartSweep(cfg.RateLimit.Window)
			defer memLimiter.StopSweep()
			limiter = memLimiter
		}
	}

	sel := selector.New(reg, &cfg.Selector, logger)
	requestLog := db.RequestLogRepo()
	disp := dispatcher.New(sel, adapters, monitor, requestLog, &cfg.Dispatch, logger)

	characters := character.NewService(db.CharacterRepo(), storage.NewCharacterCache(redisClient), logger)
	apiKeys := auth.NewAPIKeyService(db.APIKeyRepo(), storage.NewAPIKeyCache(redisClient), logger)
	jwtService := auth.NewJWTService(&cfg.Auth)

	srv := server.New(server.Options{
		Config:     cfg,
		Logger:     logger,
		Registry:   reg,
		Dispatcher: disp,
		Monitor:    monitor,
		Limiter:    limiter,
		Characters: characters,
		APIKeys:    apiKeys,
		JWTService: jwtService,
		RequestLog: requestLog,
	})

	go func() {
		if err := srv.Start(); err != nil {
			logger.WithError(err).Fatal("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Stop(ctx); err != nil {
		logger.WithError(err).Fatal("Server forced to shutdown")
	}

	logger.Info("Server exited")
}

// buildProviders registers every configured provider and constructs its
// adapter. Any malformed or duplicate entry is fatal; a router that
// silently drops providers would route around operator mistakes.
func buildProviders(cfg *types.Config, logger *utils.Logger) (*registry.Registry, []providers.Adapter) {
	reg := registry.New(logger)
	httpClient := &http.Client{}

	adapters := make([]providers.Adapter, 0, len(cfg.Providers))
	for i := range cfg.Providers {
		pc := &cfg.Providers[i]

		desc := &types.ProviderDescriptor{
			Name:           pc.Name,
			Kind:           pc.Kind,
			Endpoint:       pc.Endpoint,
			HealthEndpoint: pc.HealthEndpoint,
			Capabilities:   pc.Capabilities,
			MaxTokens:      pc.MaxTokens,
			Temperature:    pc.Temperature,
			TopP:           pc.TopP,
			Priority:       pc.Priority,
			Fallback:       pc.Fallback,
		}

		if err := reg.Register(desc); err != nil {
			logger.WithError(err).WithField("provider", pc.Name).Fatal("Failed to register provider")
		}

		adapter, err := providers.New(pc, desc, httpClient, logger)
		if err != nil {
			logger.WithError(err).WithField("provider", pc.Name).Fatal("Failed to build provider adapter")
		}
		adapters = append(adapters, adapter)
	}

	logger.WithField("count", len(adapters)).Info("Providers registered")
	return reg, adapters
}
