package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/courierfee/courierfee/internal/delivery"
	"github.com/courierfee/courierfee/internal/provider/resilience"
	"github.com/courierfee/courierfee/internal/weather"
)

// TagInvalidator evicts cache entries by tag.
type TagInvalidator interface {
	InvalidateByTag(ctx context.Context, tag string) (int, error)
}

// IngestJob fetches the weather feed, stores a forecast for every known
// station and evicts cached forecasts.
type IngestJob struct {
	provider weather.Provider
	stations delivery.StationRepository
	cache    TagInvalidator
	registry *resilience.Registry
	clock    clockwork.Clock
	timeout  time.Duration
	logger   zerolog.Logger

	mu      sync.RWMutex
	metrics IngestMetrics
}

// IngestJobConfig holds dependencies for creating an IngestJob.
type IngestJobConfig struct {
	Provider weather.Provider
	Stations delivery.StationRepository
	Cache    TagInvalidator

	// Registry receives the outcome of each fetch (optional).
	Registry *resilience.Registry

	Config IngestConfig
	Clock  clockwork.Clock
	Logger zerolog.Logger
}

// IngestMetrics tracks ingestion statistics.
type IngestMetrics struct {
	TotalRuns        int64
	FailedRuns       int64
	ForecastsSaved   int64
	UnmatchedReports int64
	EntriesEvicted   int64

	LastRunAt       time.Time
	LastRunDuration time.Duration
	LastObservedAt  time.Time
	LastError       string
}

// IngestResult is the outcome of one run.
type IngestResult struct {
	StartTime  time.Time
	Duration   time.Duration
	ObservedAt time.Time

	// Matched is the number of known stations present in the feed.
	Matched int

	// Saved is the number of new forecasts; repeats of a snapshot save none.
	Saved int

	// Missing lists known stations absent from the feed.
	Missing []string

	Evicted int
}

// NewIngestJob creates an ingestion job.
func NewIngestJob(cfg IngestJobConfig) *IngestJob {
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	timeout := cfg.Config.Timeout
	if timeout == 0 {
		timeout = DefaultIngestConfig().Timeout
	}

	return &IngestJob{
		provider: cfg.Provider,
		stations: cfg.Stations,
		cache:    cfg.Cache,
		registry: cfg.Registry,
		clock:    cfg.Clock,
		timeout:  timeout,
		logger:   cfg.Logger.With().Str("job", "weather_ingest").Logger(),
	}
}

// Run executes one ingestion.
func (j *IngestJob) Run(ctx context.Context) (*IngestResult, error) {
	ctx, cancel := context.WithTimeout(ctx, j.timeout)
	defer cancel()

	start := j.clock.Now()
	result, err := j.run(ctx)
	if result == nil {
		result = &IngestResult{}
	}
	result.StartTime = start
	result.Duration = j.clock.Since(start)

	j.record(result, err)

	if err != nil {
		j.logger.Error().Err(err).Dur("duration", result.Duration).Msg("weather ingestion failed")
		return result, err
	}

	j.logger.Info().
		Time("observed_at", result.ObservedAt).
		Int("matched", result.Matched).
		Int("saved", result.Saved).
		Strs("missing", result.Missing).
		Int("evicted", result.Evicted).
		Dur("duration", result.Duration).
		Msg("weather ingestion completed")
	return result, nil
}

func (j *IngestJob) run(ctx context.Context) (*IngestResult, error) {
	stations, err := j.stations.Stations(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing stations: %w", err)
	}

	snapshot, err := j.fetch(ctx)
	if err != nil {
		return nil, err
	}

	result := &IngestResult{ObservedAt: snapshot.ObservedAt}
	byStation := snapshot.ByStation()

	forecasts := make([]delivery.Forecast, 0, len(stations))
	for _, s := range stations {
		obs, ok := byStation[weather.NormalizeStationName(s.Name)]
		if !ok {
			result.Missing = append(result.Missing, s.Name)
			continue
		}
		forecasts = append(forecasts, delivery.Forecast{
			StationID:      s.ID,
			AirTemperature: obs.AirTemperature,
			WindSpeed:      obs.WindSpeed,
			Phenomenon:     obs.Phenomenon,
			ObservedAt:     snapshot.ObservedAt,
		})
	}
	result.Matched = len(forecasts)

	result.Saved, err = j.stations.SaveForecasts(ctx, forecasts)
	if err != nil {
		return result, fmt.Errorf("saving forecasts: %w", err)
	}

	if j.cache != nil {
		result.Evicted, err = j.cache.InvalidateByTag(ctx, delivery.TagForecast)
		if err != nil {
			return result, fmt.Errorf("evicting cached forecasts: %w", err)
		}
	}

	return result, nil
}

func (j *IngestJob) fetch(ctx context.Context) (*weather.Snapshot, error) {
	snapshot, err := j.provider.FetchObservations(ctx)
	if j.registry != nil {
		if err != nil {
			j.registry.RecordFailure(j.provider.Name(), err)
		} else {
			j.registry.RecordSuccess(j.provider.Name())
		}
	}
	if err != nil {
		return nil, fmt.Errorf("fetching observations from %s: %w", j.provider.Name(), err)
	}
	return snapshot, nil
}

// CheckProvider fetches the feed without storing anything.
func (j *IngestJob) CheckProvider(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, j.timeout)
	defer cancel()

	snapshot, err := j.fetch(ctx)
	if err != nil {
		return err
	}
	if len(snapshot.Observations) == 0 {
		return fmt.Errorf("%s returned no observations", j.provider.Name())
	}
	return nil
}

func (j *IngestJob) record(result *IngestResult, err error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.metrics.TotalRuns++
	j.metrics.LastRunAt = result.StartTime
	j.metrics.LastRunDuration = result.Duration
	j.metrics.ForecastsSaved += int64(result.Saved)
	j.metrics.UnmatchedReports += int64(len(result.Missing))
	j.metrics.EntriesEvicted += int64(result.Evicted)

	if err != nil {
		j.metrics.FailedRuns++
		j.metrics.LastError = err.Error()
		return
	}
	j.metrics.LastError = ""
	if result.ObservedAt.After(j.metrics.LastObservedAt) {
		j.metrics.LastObservedAt = result.ObservedAt
	}
}

// GetMetrics returns a copy of the current metrics.
func (j *IngestJob) GetMetrics() IngestMetrics {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.metrics
}

// MetricsSnapshot returns the current metrics as a map.
func (j *IngestJob) MetricsSnapshot() map[string]interface{} {
	m := j.GetMetrics()
	return map[string]interface{}{
		"total_runs":        m.TotalRuns,
		"failed_runs":       m.FailedRuns,
		"forecasts_saved":   m.ForecastsSaved,
		"unmatched_reports": m.UnmatchedReports,
		"entries_evicted":   m.EntriesEvicted,
		"last_run_at":       m.LastRunAt,
		"last_run_duration": m.LastRunDuration.String(),
		"last_observed_at":  m.LastObservedAt,
		"last_error":        m.LastError,
	}
}
