// Package main is the entry point for the nmschooldata API server.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/nmped/nmschooldata/internal/cache"
	"github.com/nmped/nmschooldata/internal/config"
	"github.com/nmped/nmschooldata/internal/database"
	"github.com/nmped/nmschooldata/internal/fetcher"
	"github.com/nmped/nmschooldata/internal/handlers"
	"github.com/nmped/nmschooldata/internal/metrics"
	"github.com/nmped/nmschooldata/internal/refresh"
	"github.com/nmped/nmschooldata/internal/repository"
	"github.com/nmped/nmschooldata/internal/server"
	"github.com/nmped/nmschooldata/internal/services"
	"github.com/nmped/nmschooldata/internal/source"
	"github.com/nmped/nmschooldata/pkg/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log := logger.New(os.Stdout, cfg.App.LogLevel)
	log.Info("starting nmschooldata", "env", cfg.App.Env)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := server.New(cfg, log)

	// Database is optional; without it the service runs in fetch-through mode.
	var repo repository.EnrollmentRepository
	if cfg.DatabaseEnabled() {
		pool, err := database.NewPool(ctx, &cfg.Database)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer pool.Close()

		migrator, err := database.NewMigrator(pool)
		if err != nil {
			return fmt.Errorf("failed to create migrator: %w", err)
		}
		applied, err := migrator.Up(ctx)
		if err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		if applied > 0 {
			log.Info("applied migrations", "count", applied)
		}

		repo = repository.NewPostgresEnrollmentRepository(pool)
		srv.HealthHandler().AddCheck("database", func() bool {
			return pool.HealthCheck(context.Background()) == nil
		})
		log.Info("database connected", "host", cfg.Database.Host, "database", cfg.Database.DBName)
	} else {
		log.Warn("database not configured, running in fetch-through mode")
	}

	// Redis is optional; with both database and redis configured reads
	// go through the cache first.
	if cfg.RedisEnabled() && repo != nil {
		redisCache, err := cache.NewRedisCache(ctx, &cfg.Redis)
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		defer redisCache.Close()

		enrCache := cache.NewEnrollmentCache(redisCache, cfg.Cache.KeyPrefix, cfg.Cache.TTL)
		repo = repository.NewCachedEnrollmentRepository(repo, enrCache)
		srv.HealthHandler().AddCheck("redis", func() bool {
			return enrCache.Ping(context.Background()) == nil
		})
		log.Info("redis cache connected", "host", cfg.Redis.Host, "ttl", cfg.Cache.TTL.String())
	}

	catalog, err := source.NewCatalog(source.Options{
		BaseURL: cfg.Source.BaseURL,
	})
	if err != nil {
		return fmt.Errorf("failed to build source catalog: %w", err)
	}

	dl := fetcher.New(fetcher.Config{
		Timeout:        cfg.Source.Timeout,
		MaxRetries:     cfg.Source.MaxRetries,
		InitialBackoff: cfg.Source.InitialBackoff,
		MaxBackoff:     cfg.Source.MaxBackoff,
		MaxBodyBytes:   cfg.Source.MaxBodyBytes,
	}, log.Named("fetcher"))
	dl.SetRetryHook(metrics.RecordRetry)

	svc := services.NewEnrollmentService(catalog, dl, repo, log.Named("service"))
	srv.SetEnrollmentHandler(handlers.NewEnrollmentHandler(svc))

	if cfg.Refresh.Enabled {
		refresher := refresh.New(refresh.Config{
			Interval: cfg.Refresh.Interval,
		}, svc, catalog, log.Named("refresh"))
		refresher.Start()
		defer refresher.Stop()
		log.Info("background refresh enabled", "interval", cfg.Refresh.Interval.String())
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	return srv.Shutdown(shutdownCtx)
}
