package delivery

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/courierfee/courierfee/internal/cache"
)

// DefaultCacheTTL is how long resolved reference data and forecasts are cached.
const DefaultCacheTTL = 5 * time.Minute

// errIncomplete marks a base tuple with a missing identifier. Such tuples are
// returned to the caller but not cached.
var errIncomplete = errors.New("incomplete base tuple")

// baseTuple is the cached part of a context for a (city, vehicle) pair.
type baseTuple struct {
	StationID ID              `json:"stationId"`
	VehicleID ID              `json:"vehicleId"`
	FeeTypeID ID              `json:"feeTypeId"`
	BaseFee   decimal.Decimal `json:"baseFee"`
}

type cachedForecast struct {
	Forecast *Forecast `json:"forecast"`
}

// Resolver builds FeeContexts from the repository through the cache.
type Resolver struct {
	repo     Repository
	cache    cache.Store
	selector *ForecastSelector
	clock    clockwork.Clock
	location *time.Location
	ttl      time.Duration
}

// ResolverConfig holds resolver configuration.
type ResolverConfig struct {
	// TTL for every cached entry. Defaults to DefaultCacheTTL.
	TTL time.Duration

	// Location defines calendar days for forecast selection. Defaults to UTC.
	Location *time.Location

	Clock clockwork.Clock
}

// NewResolver creates a resolver.
func NewResolver(repo Repository, store cache.Store, cfg ResolverConfig) *Resolver {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultCacheTTL
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}

	return &Resolver{
		repo:     repo,
		cache:    store,
		selector: NewForecastSelector(repo, cfg.Clock, cfg.Location),
		clock:    cfg.Clock,
		location: cfg.Location,
		ttl:      cfg.TTL,
	}
}

// Resolve assembles the context for a normalized request. Missing reference
// data is reported structurally through Missing ids and a nil Observation; an
// error is returned only for storage faults or cancellation.
func (r *Resolver) Resolve(ctx context.Context, req Request) (FeeContext, error) {
	base, err := cache.GetOrCompute(ctx, r.cache, cache.Entry{
		Key: fmt.Sprintf("delivery:base:%s:%s", req.City, req.VehicleType),
		TTL: r.ttl,
	}, func(ctx context.Context) (baseTuple, error) {
		return r.resolveBase(ctx, req)
	})
	if err != nil && !errors.Is(err, errIncomplete) {
		return FeeContext{}, err
	}

	fc := FeeContext{
		StationID: base.StationID,
		VehicleID: base.VehicleID,
		FeeTypeID: base.FeeTypeID,
		BaseFee:   base.BaseFee,
	}

	stationID, ok := base.StationID.Get()
	if !ok {
		return fc, nil
	}

	obs, err := r.forecast(ctx, stationID, req.RequestTime)
	if err != nil {
		return fc, err
	}
	if obs == nil {
		return fc, nil
	}

	grade, err := r.grade(ctx, obs.Phenomenon)
	if err != nil {
		return fc, err
	}

	fc.Observation = obs
	fc.Grade = grade
	return fc, nil
}

// resolveBase runs the three identifier lookups concurrently and fetches the
// base fee once all of them resolved.
func (r *Resolver) resolveBase(ctx context.Context, req Request) (baseTuple, error) {
	var t baseTuple

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		t.StationID, err = r.repo.StationIDByCity(gctx, req.City)
		return err
	})
	g.Go(func() (err error) {
		t.VehicleID, err = r.repo.VehicleIDByName(gctx, req.VehicleType)
		return err
	})
	g.Go(func() (err error) {
		t.FeeTypeID, err = r.repo.FeeTypeIDByCode(gctx, BaseFeeCode)
		return err
	})
	if err := g.Wait(); err != nil {
		return baseTuple{}, fmt.Errorf("resolve identifiers: %w", err)
	}

	stationID, okStation := t.StationID.Get()
	vehicleID, okVehicle := t.VehicleID.Get()
	feeTypeID, okFeeType := t.FeeTypeID.Get()
	if !okStation || !okVehicle || !okFeeType {
		return t, errIncomplete
	}

	fee, err := r.repo.BaseFee(ctx, stationID, vehicleID, feeTypeID)
	if err != nil {
		return baseTuple{}, fmt.Errorf("get base fee: %w", err)
	}
	t.BaseFee = fee
	return t, nil
}

func (r *Resolver) forecast(ctx context.Context, stationID uuid.UUID, at *time.Time) (*Forecast, error) {
	cached, err := cache.GetOrCompute(ctx, r.cache, cache.Entry{
		Key:  fmt.Sprintf("delivery:forecast:%s:%s", stationID, r.timeBucket(at)),
		TTL:  r.ttl,
		Tags: []string{TagForecast},
	}, func(ctx context.Context) (cachedForecast, error) {
		f, err := r.selector.Select(ctx, stationID, at)
		if err != nil {
			return cachedForecast{}, fmt.Errorf("select forecast: %w", err)
		}
		return cachedForecast{Forecast: f}, nil
	})
	if err != nil {
		return nil, err
	}
	return cached.Forecast, nil
}

// timeBucket is the request time in unix seconds, or "current-<date>" for
// the latest reading of today.
func (r *Resolver) timeBucket(at *time.Time) string {
	if at != nil {
		return fmt.Sprintf("%d", at.Unix())
	}
	return "current-" + r.clock.Now().In(r.location).Format(time.DateOnly)
}

func (r *Resolver) grade(ctx context.Context, phenomenon string) (Grade, error) {
	text := strings.ToLower(strings.TrimSpace(phenomenon))
	if text == "" {
		return GradeNone, nil
	}

	return cache.GetOrCompute(ctx, r.cache, cache.Entry{
		Key:  "delivery:grade:" + text,
		TTL:  r.ttl,
		Tags: []string{TagVocabulary},
	}, func(ctx context.Context) (Grade, error) {
		vocabulary, err := r.vocabulary(ctx)
		if err != nil {
			return GradeNone, err
		}
		return Classify(text, vocabulary), nil
	})
}

func (r *Resolver) vocabulary(ctx context.Context) (Vocabulary, error) {
	return cache.GetOrCompute(ctx, r.cache, cache.Entry{
		Key:  "delivery:vocabulary",
		TTL:  r.ttl,
		Tags: []string{TagVocabulary},
	}, func(ctx context.Context) (Vocabulary, error) {
		v, err := r.repo.ConditionVocabulary(ctx)
		if err != nil {
			return nil, fmt.Errorf("get condition vocabulary: %w", err)
		}
		return v, nil
	})
}
