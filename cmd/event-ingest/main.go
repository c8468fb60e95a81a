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
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/storeconsole/internal/events"
	"github.com/angelmondragon/storeconsole/internal/events/warehouse"
	"github.com/angelmondragon/storeconsole/internal/ingest"
	"github.com/angelmondragon/storeconsole/internal/stores"
	"github.com/angelmondragon/storeconsole/pkg/bigquery"
	"github.com/angelmondragon/storeconsole/pkg/config"
	"github.com/angelmondragon/storeconsole/pkg/db"
	"github.com/angelmondragon/storeconsole/pkg/idempotency"
	"github.com/angelmondragon/storeconsole/pkg/instance"
	"github.com/angelmondragon/storeconsole/pkg/logger"
	"github.com/angelmondragon/storeconsole/pkg/metrics"
	"github.com/angelmondragon/storeconsole/pkg/migrate"
	"github.com/angelmondragon/storeconsole/pkg/pubsub"
	"github.com/angelmondragon/storeconsole/pkg/redis"
)

const serviceName = "event-ingest"

func main() {
	ctx := context.Background()
	logg := logger.New(logger.Options{ServiceName: serviceName})

	_ = godotenv.Load()

	cfg, err := config.Load()
	requireResource(ctx, logg, "config", err)

	logg = logger.New(logger.Options{
		ServiceName: serviceName,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(ctx, cfg.DB, cfg.FeatureFlags.UseSQLite, logg)
	requireResource(ctx, logg, "database", err)
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(ctx, "failed to close database", err)
		}
	}()

	requireResource(ctx, logg, "dev migrations", migrate.MaybeRunDev(ctx, cfg, logg, dbClient))

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	requireResource(ctx, logg, "redis", err)
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(ctx, "failed to close redis client", err)
		}
	}()

	pubsubClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
	requireResource(ctx, logg, "pubsub", err)
	defer func() {
		if err := pubsubClient.Close(); err != nil {
			logg.Error(ctx, "failed to close pubsub client", err)
		}
	}()

	var mirror events.Appender
	if cfg.BigQuery.MirrorEvents {
		bqClient, err := bigquery.NewClient(ctx, cfg.GCP, cfg.BigQuery, logg)
		requireResource(ctx, logg, "bigquery client", err)
		defer func() {
			if err := bqClient.Close(); err != nil {
				logg.Error(ctx, "failed to close bigquery client", err)
			}
		}()
		m, err := warehouse.NewMirror(bqClient)
		requireResource(ctx, logg, "warehouse mirror", err)
		mirror = m
	}

	storeService, err := stores.NewService(stores.NewRepository(dbClient.DB()))
	requireResource(ctx, logg, "store service", err)

	guard, err := idempotency.NewGuard(redisClient, serviceName, cfg.Eventing.IdempotencyTTL)
	requireResource(ctx, logg, "idempotency guard", err)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	service, err := ingest.NewService(ingest.Params{
		Receiver: pubsubClient.EventsSubscription(),
		Store:    events.NewRepository(dbClient.DB()),
		Mirror:   mirror,
		Stores:   storeService,
		Guard:    guard,
		Metrics:  metrics.NewIngestMetrics(registry),
		Logger:   logg,
	})
	requireResource(ctx, logg, "ingest service", err)

	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	runCtx = logg.WithFields(runCtx, map[string]any{
		"env":          cfg.App.Env,
		"instance":     instance.GetID(),
		"subscription": cfg.PubSub.EventsSubscription,
		"mirror":       mirror != nil,
	})

	metricsServer := &http.Server{
		Addr:              ":" + cfg.App.Port,
		Handler:           promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(runCtx, "metrics server stopped unexpectedly", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	logg.Info(runCtx, "event ingest worker ready")

	if err := service.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(runCtx, "event ingest worker failed", err)
		os.Exit(1)
	}
	logg.Info(runCtx, "event ingest worker stopped")
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}
