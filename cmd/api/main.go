// Package main provides the entrypoint for the delivery fee API server.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"
	_ "time/tzdata" // DELIVERY_TIMEZONE on images without zoneinfo

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/courierfee/courierfee/internal/api"
	"github.com/courierfee/courierfee/internal/api/handler"
	"github.com/courierfee/courierfee/internal/api/middleware"
	"github.com/courierfee/courierfee/internal/auth"
	"github.com/courierfee/courierfee/internal/cache"
	"github.com/courierfee/courierfee/internal/delivery"
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
	const serviceName = "courierfee-api"

	envErr := godotenv.Load()

	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	if envErr != nil {
		log.Debug().Msg("no .env file found, using process environment")
	}
	log.Info().
		Str("build_time", BuildTime).
		Msg("starting delivery fee API")

	port := os.Getenv("APP_PORT")
	if port == "" {
		port = "8080"
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	telemetryCfg := telemetry.ConfigFromEnv(serviceName, Version)
	tp, err := telemetry.Init(ctx, telemetryCfg)
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
	if telemetryCfg.Enabled {
		log.Info().
			Str("otlp_endpoint", telemetryCfg.OTLPEndpoint).
			Msg("OpenTelemetry initialized")
	}

	metrics, err := middleware.NewMetrics()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize metrics")
	}

	store, closeStore, err := storage.Open(ctx, storage.BackendFromEnv(), log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open storage")
	}
	defer closeStore()

	cacheCfg := cache.ConfigFromEnv()
	fees, closeCache, err := cache.Open(ctx, cacheCfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open cache")
	}
	defer func() {
		if closeErr := closeCache(); closeErr != nil {
			log.Error().Err(closeErr).Msg("failed to close cache")
		}
	}()
	log.Info().
		Str("backend", cacheCfg.Backend).
		Dur("ttl", cacheCfg.TTL).
		Msg("cache initialized")

	location := time.UTC
	if tz := os.Getenv("DELIVERY_TIMEZONE"); tz != "" {
		location, err = time.LoadLocation(tz)
		if err != nil {
			log.Fatal().Err(err).Str("timezone", tz).Msg("invalid DELIVERY_TIMEZONE")
		}
	}

	deliveryService := delivery.NewService(store, fees, delivery.Config{
		Logger:   log,
		CacheTTL: cacheCfg.TTL,
		Location: location,
	})

	routerCfg := api.RouterConfig{
		Version:     Version,
		BuildTime:   BuildTime,
		Logger:      log,
		ServiceName: serviceName,
		Metrics:     metrics,
		RequireTLS:  os.Getenv("REQUIRE_TLS") == "true",
		Delivery:    deliveryService,
		Dependencies: []handler.Dependency{
			{Name: "storage", Pinger: store},
			{Name: "cache", Pinger: fees},
		},
		Registry: resilience.NewRegistry(nil),
	}

	jwtService, err := auth.NewJWTService(auth.JWTConfigFromEnv())
	switch {
	case errors.Is(err, auth.ErrMissingSigningKey):
		log.Warn().Msg("JWT_SIGNING_KEY not set, admin endpoints are disabled")
	case err != nil:
		log.Fatal().Err(err).Msg("failed to initialize JWT service")
	default:
		routerCfg.Tokens = jwtService
	}

	if inProcess, _ := strconv.ParseBool(os.Getenv("INGEST_IN_PROCESS")); inProcess {
		weatherClient := ilmateenistus.NewClient(ilmateenistus.ClientConfig{
			URL:    os.Getenv("WEATHER_API_URL"),
			Logger: log,
		})
		routerCfg.Registry.Register(weatherClient.Name(), weatherClient.HTTPClient())

		ingestCfg := worker.ConfigFromEnv()
		job := worker.NewIngestJob(worker.IngestJobConfig{
			Provider: weatherClient,
			Stations: store,
			Cache:    fees,
			Registry: routerCfg.Registry,
			Config:   ingestCfg,
			Logger:   log,
		})
		routerCfg.Ingest = job

		scheduler := worker.NewScheduler(job, ingestCfg, nil, log)
		go func() {
			if schedErr := scheduler.Start(ctx); schedErr != nil && !errors.Is(schedErr, context.Canceled) {
				log.Error().Err(schedErr).Msg("ingestion scheduler stopped")
			}
		}()
		log.Info().
			Int("minute", ingestCfg.Minute).
			Msg("in-process weather ingestion enabled")
	}

	server := &http.Server{
		Addr:         ":" + port,
		Handler:      api.NewRouter(routerCfg),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().
			Str("addr", server.Addr).
			Msg("server listening")

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
		return
	}

	log.Info().Msg("server stopped")
}
