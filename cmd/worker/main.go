// Package main provides the entrypoint for the weather ingestion worker.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/courierfee/courierfee/internal/api/handler"
	"github.com/courierfee/courierfee/internal/api/middleware"
	"github.com/courierfee/courierfee/internal/api/response"
	"github.com/courierfee/courierfee/internal/cache"
	"github.com/courierfee/courierfee/internal/provider/resilience"
	"github.com/courierfee/courierfee/internal/storage"
	"github.com/courierfee/courierfee/internal/telemetry"
	"github.com/courierfee/courierfee/internal/weather/ilmateenistus"
	"github.com/courierfee/courierfee/internal/worker"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "courierfee-worker"

	_ = godotenv.Load()

	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	log.Info().
		Str("build_time", BuildTime).
		Msg("starting weather ingestion worker")

	// Worker also exposes health endpoints for Cloud Run
	port := os.Getenv("APP_PORT")
	if port == "" {
		port = "8080"
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tp, err := telemetry.Init(ctx, telemetry.ConfigFromEnv(serviceName, Version))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	store, closeStore, err := storage.Open(ctx, storage.BackendFromEnv(), log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open storage")
	}
	defer closeStore()

	cacheCfg := cache.ConfigFromEnv()
	if cacheCfg.Backend != cache.BackendRedis {
		log.Warn().Msg("worker cache is not shared; API forecast entries expire by TTL only")
	}
	fees, closeCache, err := cache.Open(ctx, cacheCfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open cache")
	}
	defer func() {
		if closeErr := closeCache(); closeErr != nil {
			log.Error().Err(closeErr).Msg("failed to close cache")
		}
	}()

	registry := resilience.NewRegistry(nil)
	weatherClient := ilmateenistus.NewClient(ilmateenistus.ClientConfig{
		URL:    os.Getenv("WEATHER_API_URL"),
		Logger: log,
	})
	registry.Register(weatherClient.Name(), weatherClient.HTTPClient())

	ingestCfg := worker.ConfigFromEnv()
	job := worker.NewIngestJob(worker.IngestJobConfig{
		Provider: weatherClient,
		Stations: store,
		Cache:    fees,
		Registry: registry,
		Config:   ingestCfg,
		Logger:   log,
	})

	ops := handler.NewOpsHandler(handler.OpsConfig{
		Version:   Version,
		BuildTime: BuildTime,
		Dependencies: []handler.Dependency{
			{Name: "storage", Pinger: store},
			{Name: "cache", Pinger: fees},
		},
		Registry: registry,
	})

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(log))
	r.Use(middleware.Recovery(log))
	r.Get("/health", ops.HealthCheck)
	r.Get("/ready", ops.ReadinessCheck)
	r.Get("/status", ops.SystemStatus)
	r.Get("/metrics/ingest", func(w http.ResponseWriter, r *http.Request) {
		response.JSON(w, r, http.StatusOK, job.MetricsSnapshot())
	})

	server := &http.Server{
		Addr:         ":" + port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info().Str("addr", server.Addr).Msg("health server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		return worker.NewScheduler(job, ingestCfg, nil, log).Start(gctx)
	})

	if pubsubCfg, enabled := worker.PubSubConfigFromEnv(); enabled {
		pubsubCfg.Job = job
		pubsubCfg.Logger = log
		subscriber, err := worker.NewPubSubHandler(ctx, pubsubCfg)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create pubsub handler")
		}
		defer func() {
			if closeErr := subscriber.Close(); closeErr != nil {
				log.Error().Err(closeErr).Msg("failed to close pubsub client")
			}
		}()
		g.Go(func() error {
			return subscriber.Start(gctx)
		})
	} else {
		log.Info().Msg("PUBSUB_PROJECT_ID or PUBSUB_SUBSCRIPTION not set, pubsub trigger disabled")
	}

	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down worker")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("worker stopped with error")
		return
	}

	log.Info().Msg("worker stopped")
}
