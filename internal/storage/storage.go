// Package storage opens the delivery data store selected by configuration.
package storage

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/courierfee/courierfee/internal/database"
	"github.com/courierfee/courierfee/internal/delivery"
)

// Backends accepted in STORAGE_BACKEND.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
)

// Store serves fee quotes and weather ingestion.
type Store interface {
	delivery.Repository
	delivery.StationRepository
	Ping(ctx context.Context) error
}

// BackendFromEnv reads STORAGE_BACKEND, defaulting to memory.
func BackendFromEnv() string {
	if v := os.Getenv("STORAGE_BACKEND"); v != "" {
		return v
	}
	return BackendMemory
}

// Open returns the store for backend and a function releasing it. The memory
// backend starts with the seeded reference data and no forecasts.
func Open(ctx context.Context, backend string, logger zerolog.Logger) (Store, func(), error) {
	switch backend {
	case "", BackendMemory:
		logger.Warn().Msg("using in-memory storage; forecasts are lost on restart")
		return delivery.NewSeededRepository(), func() {}, nil
	case BackendPostgres:
		cfg := database.ConfigFromEnv()
		pool, err := database.Connect(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		logger.Info().
			Str("host", cfg.Host).
			Int("port", cfg.Port).
			Str("database", cfg.Database).
			Bool("migrated", cfg.Migrate).
			Msg("database connected")
		return delivery.NewPostgresRepository(pool), pool.Close, nil
	default:
		return nil, nil, fmt.Errorf("storage: unknown backend %q", backend)
	}
}
