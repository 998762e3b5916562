package worker_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/courierfee/courierfee/internal/cache"
	"github.com/courierfee/courierfee/internal/delivery"
	"github.com/courierfee/courierfee/internal/provider/resilience"
	"github.com/courierfee/courierfee/internal/weather"
	"github.com/courierfee/courierfee/internal/worker"
)

var observedAt = time.Date(2024, 3, 14, 11, 15, 0, 0, time.UTC)

type fakeProvider struct {
	snapshot *weather.Snapshot
	err      error
	calls    atomic.Int32
}

func (p *fakeProvider) FetchObservations(context.Context) (*weather.Snapshot, error) {
	p.calls.Add(1)
	if p.err != nil {
		return nil, p.err
	}
	return p.snapshot, nil
}

func (p *fakeProvider) Name() string { return "fake" }

func snapshot() *weather.Snapshot {
	return &weather.Snapshot{
		ObservedAt: observedAt,
		Observations: []weather.Observation{
			{StationName: "Tallinn-Harku", WMOCode: 26038, AirTemperature: -2.1, WindSpeed: 4.7, Phenomenon: "light snow shower"},
			{StationName: "Pärnu", WMOCode: 41803, AirTemperature: 0.4},
			{StationName: "Kuusiku", WMOCode: 26046, AirTemperature: 1.2},
		},
	}
}

type ingestFixture struct {
	repo     *delivery.InMemoryRepository
	store    *cache.MemoryStore
	provider *fakeProvider
	registry *resilience.Registry
	job      *worker.IngestJob
}

func newIngestFixture(t *testing.T) *ingestFixture {
	t.Helper()

	clock := clockwork.NewFakeClockAt(observedAt.Add(time.Minute))
	f := &ingestFixture{
		repo:     delivery.NewSeededRepository(),
		store:    cache.NewMemoryStore(clock),
		provider: &fakeProvider{snapshot: snapshot()},
		registry: resilience.NewRegistry(clock),
	}
	f.registry.Register("fake", resilience.NewClient(resilience.DefaultClientConfig("fake")))

	f.job = worker.NewIngestJob(worker.IngestJobConfig{
		Provider: f.provider,
		Stations: f.repo,
		Cache:    f.store,
		Registry: f.registry,
		Config:   worker.DefaultIngestConfig(),
		Clock:    clock,
		Logger:   zerolog.Nop(),
	})
	return f
}

func TestIngestJob_Run(t *testing.T) {
	ctx := context.Background()
	f := newIngestFixture(t)

	require.NoError(t, f.store.Set(ctx, "delivery:forecast:x", []byte("{}"), time.Hour, delivery.TagForecast))
	require.NoError(t, f.store.Set(ctx, "delivery:vocabulary", []byte("{}"), time.Hour, delivery.TagVocabulary))

	result, err := f.job.Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, observedAt, result.ObservedAt)
	assert.Equal(t, 2, result.Matched)
	assert.Equal(t, 2, result.Saved)
	assert.Equal(t, []string{"tartu-tõravere"}, result.Missing)
	assert.Equal(t, 1, result.Evicted)
	assert.Equal(t, 1, f.store.Len())

	stored, err := f.repo.ForecastsBetween(ctx, delivery.TallinnStationID, observedAt, observedAt.Add(time.Second))
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, -2.1, stored[0].AirTemperature)
	assert.Equal(t, 4.7, stored[0].WindSpeed)
	assert.Equal(t, "light snow shower", stored[0].Phenomenon)
	assert.NotEqual(t, uuid.Nil, stored[0].ID)

	health, ok := f.registry.Health("fake")
	require.True(t, ok)
	assert.NotNil(t, health.LastSuccessAt)
	assert.Nil(t, health.LastFailureAt)
}

func TestIngestJob_RunTwiceSavesOnce(t *testing.T) {
	ctx := context.Background()
	f := newIngestFixture(t)

	_, err := f.job.Run(ctx)
	require.NoError(t, err)

	result, err := f.job.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Matched)
	assert.Zero(t, result.Saved)

	m := f.job.GetMetrics()
	assert.Equal(t, int64(2), m.TotalRuns)
	assert.Zero(t, m.FailedRuns)
	assert.Equal(t, int64(2), m.ForecastsSaved)
	assert.Equal(t, int64(2), m.UnmatchedReports)
	assert.Equal(t, observedAt, m.LastObservedAt)
	assert.Empty(t, m.LastError)
}

func TestIngestJob_ProviderFailure(t *testing.T) {
	ctx := context.Background()
	f := newIngestFixture(t)
	f.provider.err = weather.ErrProviderUnavailable

	require.NoError(t, f.store.Set(ctx, "delivery:forecast:x", []byte("{}"), time.Hour, delivery.TagForecast))

	_, err := f.job.Run(ctx)
	assert.ErrorIs(t, err, weather.ErrProviderUnavailable)

	// Nothing stored and cached forecasts survive a failed run.
	stored, err := f.repo.ForecastsBetween(ctx, delivery.TallinnStationID, observedAt, observedAt.Add(time.Second))
	require.NoError(t, err)
	assert.Empty(t, stored)
	assert.Equal(t, 1, f.store.Len())

	m := f.job.GetMetrics()
	assert.Equal(t, int64(1), m.FailedRuns)
	assert.Contains(t, m.LastError, "weather provider unavailable")

	health, ok := f.registry.Health("fake")
	require.True(t, ok)
	assert.NotNil(t, health.LastFailureAt)
	assert.Contains(t, health.LastError, "unavailable")
}

func TestIngestJob_CheckProvider(t *testing.T) {
	ctx := context.Background()
	f := newIngestFixture(t)

	require.NoError(t, f.job.CheckProvider(ctx))

	stations, err := f.repo.ForecastsBetween(ctx, delivery.TallinnStationID, observedAt, observedAt.Add(time.Second))
	require.NoError(t, err)
	assert.Empty(t, stations)

	f.provider.snapshot = &weather.Snapshot{ObservedAt: observedAt}
	assert.Error(t, f.job.CheckProvider(ctx))

	f.provider.err = errors.New("boom")
	assert.ErrorContains(t, f.job.CheckProvider(ctx), "boom")
}

func TestIngestJob_MetricsSnapshot(t *testing.T) {
	f := newIngestFixture(t)

	_, err := f.job.Run(context.Background())
	require.NoError(t, err)

	snap := f.job.MetricsSnapshot()
	assert.Equal(t, int64(1), snap["total_runs"])
	assert.Equal(t, int64(2), snap["forecasts_saved"])
	assert.Equal(t, "", snap["last_error"])
}
