// Package worker ingests weather observations into the forecast store.
package worker

import (
	"os"
	"strconv"
	"time"
)

// IngestConfig holds configuration for the weather ingestion job.
type IngestConfig struct {
	// Minute past every hour at which the scheduler runs the job.
	// Default: 15
	Minute int

	// Timeout for one run, fetch included.
	// Default: 2 minutes
	Timeout time.Duration

	// RunOnStart runs the job once when the scheduler starts.
	RunOnStart bool
}

// DefaultIngestConfig returns the default ingestion configuration.
func DefaultIngestConfig() IngestConfig {
	return IngestConfig{
		Minute:     15,
		Timeout:    2 * time.Minute,
		RunOnStart: true,
	}
}

// ConfigFromEnv reads INGEST_MINUTE, INGEST_TIMEOUT and INGEST_RUN_ON_START.
// Invalid values keep their defaults.
func ConfigFromEnv() IngestConfig {
	cfg := DefaultIngestConfig()

	if v := os.Getenv("INGEST_MINUTE"); v != "" {
		if m, err := strconv.Atoi(v); err == nil && m >= 0 && m < 60 {
			cfg.Minute = m
		}
	}
	if v := os.Getenv("INGEST_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.Timeout = d
		}
	}
	if v := os.Getenv("INGEST_RUN_ON_START"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.RunOnStart = b
		}
	}

	return cfg
}
