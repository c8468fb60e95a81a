package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/angelmondragon/storeconsole/api/controllers"
	"github.com/angelmondragon/storeconsole/api/routes"
	"github.com/angelmondragon/storeconsole/internal/analytics"
	"github.com/angelmondragon/storeconsole/internal/events"
	"github.com/angelmondragon/storeconsole/internal/events/warehouse"
	"github.com/angelmondragon/storeconsole/internal/stores"
	"github.com/angelmondragon/storeconsole/pkg/auth/session"
	"github.com/angelmondragon/storeconsole/pkg/bigquery"
	"github.com/angelmondragon/storeconsole/pkg/config"
	"github.com/angelmondragon/storeconsole/pkg/db"
	"github.com/angelmondragon/storeconsole/pkg/instance"
	"github.com/angelmondragon/storeconsole/pkg/logger"
	"github.com/angelmondragon/storeconsole/pkg/metrics"
	"github.com/angelmondragon/storeconsole/pkg/migrate"
	"github.com/angelmondragon/storeconsole/pkg/redis"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	if err := run(cfg, logg); err != nil {
		logg.Error(context.Background(), "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logg *logger.Logger) error {
	ctx := context.Background()

	dbClient, err := db.New(ctx, cfg.DB, cfg.FeatureFlags.UseSQLite, logg)
	if err != nil {
		return fmt.Errorf("bootstrap database: %w", err)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(ctx, "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		return fmt.Errorf("run dev migrations: %w", err)
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return fmt.Errorf("bootstrap redis: %w", err)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(ctx, "error closing redis", err)
		}
	}()

	sessionManager, err := session.NewManager(redisClient)
	if err != nil {
		return fmt.Errorf("create session manager: %w", err)
	}

	dependencies := []controllers.Dependency{
		{Name: "database", Pinger: dbClient},
		{Name: "redis", Pinger: redisClient},
	}

	var source events.Source = events.NewRepository(dbClient.DB())
	if cfg.EventSource.UsesBigQuery() {
		bqClient, err := bigquery.NewClient(ctx, cfg.GCP, cfg.BigQuery, logg)
		if err != nil {
			return fmt.Errorf("bootstrap bigquery: %w", err)
		}
		defer func() {
			if err := bqClient.Close(); err != nil {
				logg.Error(ctx, "error closing bigquery", err)
			}
		}()
		warehouseSource, err := warehouse.NewSource(bqClient, bqClient.TableRef())
		if err != nil {
			return fmt.Errorf("create warehouse source: %w", err)
		}
		source = warehouseSource
		dependencies = append(dependencies, controllers.Dependency{Name: "bigquery", Pinger: bqClient})
	}

	storeService, err := stores.NewService(stores.NewRepository(dbClient.DB()))
	if err != nil {
		return fmt.Errorf("create store service: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	analyticsService, err := analytics.NewService(source, storeService, cfg.Metrics, metrics.NewSnapshotMetrics(registry), logg)
	if err != nil {
		return fmt.Errorf("create analytics service: %w", err)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	logCtx := logg.WithFields(ctx, map[string]any{
		"env":          cfg.App.Env,
		"addr":         addr,
		"instance":     instance.GetID(),
		"event_source": cfg.EventSource.Driver,
	})

	server := &http.Server{
		Addr:              addr,
		Handler:           routes.NewRouter(cfg, logg, redisClient, sessionManager, storeService, analyticsService, registry, dependencies...),
		ReadHeaderTimeout: 10 * time.Second,
	}

	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logg.Info(logCtx, "starting api server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-sigCtx.Done():
	}

	logg.Info(logCtx, "shutting down api server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
