package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tc.com/token-radar/pkg/config"
	"tc.com/token-radar/pkg/logging"
	"tc.com/token-radar/pkg/metrics"
	"tc.com/token-radar/pkg/server/api"
	"tc.com/token-radar/pkg/server/cache"
	"tc.com/token-radar/pkg/server/reconcile"
	"tc.com/token-radar/pkg/server/replenish"
	"tc.com/token-radar/pkg/server/service"
	"tc.com/token-radar/pkg/server/snapshot"
	"tc.com/token-radar/pkg/server/sources"
)

const version = "0.1.0-dev"

var (
	configFile = flag.String("config", "config/config.yaml", "Path to configuration file")
	showVer    = flag.Bool("version", false, "Show version and exit")
)

func main() {
	flag.Parse()

	if *showVer {
		fmt.Printf("token-radar version %s\n", version)
		os.Exit(0)
	}

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	logger.Info("Starting token-radar", "version", version)

	if cfg.Metrics.Enabled {
		metrics.Init()
		go func() {
			logger.Info("Starting metrics server", "addr", cfg.Metrics.Addr)
			if err := metrics.ServeHTTP(cfg.Metrics.Addr); err != nil {
				logger.Error("Metrics server failed", "error", err)
			}
		}()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		errChan <- run(ctx, cfg, logger)
	}()

	select {
	case sig := <-sigChan:
		logger.Info("Received shutdown signal", "signal", sig.String())
		cancel()
	case err := <-errChan:
		if err != nil {
			logger.Error("Server failed", "error", err)
			cancel()
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	logger.Info("Shutting down gracefully...")
	<-shutdownCtx.Done()
	logger.Info("Shutdown complete")
}

func run(ctx context.Context, cfg *config.Config, logger *logging.Logger) error {
	store, err := buildCache(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	var allSources []sources.Source
	for _, sourceCfg := range cfg.EnabledSources() {
		logger.Info("Initializing source", "type", sourceCfg.Type, "name", sourceCfg.Name)

		// Pass the logger in so sources don't create their own
		if sourceCfg.Config == nil {
			sourceCfg.Config = make(map[string]interface{})
		}
		sourceCfg.Config["logger"] = logger

		source, err := sources.Create(sourceCfg.Type, sourceCfg.Config)
		if err != nil {
			logger.Warn("Failed to create source",
				"type", sourceCfg.Type, "name", sourceCfg.Name,
				"available", sources.List(), "error", err)
			continue
		}

		allSources = append(allSources, source)
		logger.Info("Source ready", "source", source.Name())
	}

	if len(allSources) == 0 {
		return fmt.Errorf("no sources available")
	}

	merger := reconcile.NewVWAPMerger(logger)
	snapStore := snapshot.NewStore(store)
	tokenSvc := service.NewTokenService(snapStore, store, logger)

	var wsServer *api.WebSocketServer
	var broadcaster replenish.Broadcaster
	if cfg.Server.WebSocket.Enabled {
		wsServer = api.NewWebSocketServer(cfg.Server.WebSocket.Addr, tokenSvc, logger)
		broadcaster = wsServer

		go func() {
			if err := wsServer.Start(ctx); err != nil {
				logger.Error("WebSocket server error", "error", err)
			}
		}()
	}

	loop := replenish.New(allSources, merger, snapStore, broadcaster, cfg.Replenish.Interval.ToDuration(), logger)
	go loop.Run(ctx)

	server := api.NewServer(cfg.Server.HTTP.Addr, tokenSvc, allSources, store, logger)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		_ = server.Stop(shutdownCtx)
		if wsServer != nil {
			wsServer.Stop()
		}
	}()

	return server.Start()
}

// buildCache connects to Redis when enabled, falling back to an in-process
// cache only when Redis is disabled outright. A configured but unreachable
// Redis is a startup error, not a silent downgrade.
func buildCache(ctx context.Context, cfg *config.Config, logger *logging.Logger) (cache.Cache, error) {
	if !cfg.Redis.Enabled {
		logger.Warn("Redis disabled, using in-process cache")
		return cache.NewMemoryCache(nil), nil
	}

	store, err := cache.NewRedisCache(ctx, cache.RedisConfig{
		Host:     cfg.Redis.Host,
		Port:     cfg.Redis.Port,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	logger.Info("Connected to Redis", "host", cfg.Redis.Host, "port", cfg.Redis.Port)
	return store, nil
}
