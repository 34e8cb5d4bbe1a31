package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/pagelens/pagelens/internal/analytics"
	"github.com/pagelens/pagelens/internal/cache"
	"github.com/pagelens/pagelens/internal/config"
	"github.com/pagelens/pagelens/internal/server"
	"github.com/pagelens/pagelens/internal/source"
)

func main() {
	// Setup logging
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	// Load config
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/analytics-api.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", configPath).Msg("Failed to load config")
	}

	log.Info().
		Int("http_port", cfg.Server.HTTPPort).
		Str("clickhouse_addr", cfg.ClickHouse.Addr).
		Str("redis_addr", cfg.Redis.Addr).
		Str("demo_project", cfg.Demo.ProjectID).
		Msg("Configuration loaded")

	// Project config store
	pg, err := pgxpool.New(context.Background(), cfg.Postgres.DSN)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Postgres")
	}
	defer pg.Close()

	// Event store
	persisted, err := source.NewPersistedSource(cfg.ClickHouse, pg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to ClickHouse")
	}
	defer persisted.Close()
	log.Info().Msg("Connected to ClickHouse")

	fixture := source.NewFixtureSource(cfg.Demo.ProjectID, time.Now())
	resolver := source.NewResolver(cfg.Demo.ProjectID, fixture, persisted)

	// Report cache + invalidation
	var reportCache *cache.ReportCache
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Cache.Enabled && cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		reportCache = cache.NewReportCache(rdb, cfg.Cache.TTLDuration())
		log.Info().Dur("ttl", cfg.Cache.TTLDuration()).Msg("Report cache enabled")

		if len(cfg.Kafka.Brokers) > 0 {
			invalidator := cache.NewInvalidator(cfg.Kafka, reportCache)
			defer invalidator.Close()
			go invalidator.Start(ctx)
		}
	}

	srv := server.New(resolver, analytics.NewBuilder(), reportCache)
	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler: srv.Router(),
	}

	go func() {
		log.Info().Int("port", cfg.Server.HTTPPort).Msg("Starting HTTP server")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to serve HTTP")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down...")
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP shutdown failed")
	}
	log.Info().Msg("Shutdown complete")
}
