package delivery

import (
	"context"
	"errors"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/courierfee/courierfee/internal/cache"
)

const tracerName = "github.com/courierfee/courierfee/internal/delivery"

// Config holds delivery service configuration.
type Config struct {
	Logger zerolog.Logger
	Clock  clockwork.Clock

	// CacheTTL for resolved data. Defaults to DefaultCacheTTL.
	CacheTTL time.Duration

	// Location defines calendar days for forecast selection. Defaults to UTC.
	Location *time.Location
}

// Service quotes delivery fees.
type Service struct {
	resolver *Resolver
	cache    cache.Store
	clock    clockwork.Clock
	logger   zerolog.Logger
	tracer   trace.Tracer
}

// NewService creates a delivery fee service.
func NewService(repo Repository, store cache.Store, cfg Config) *Service {
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}

	return &Service{
		resolver: NewResolver(repo, store, ResolverConfig{
			TTL:      cfg.CacheTTL,
			Location: cfg.Location,
			Clock:    cfg.Clock,
		}),
		cache:  store,
		clock:  cfg.Clock,
		logger: cfg.Logger,
		tracer: otel.Tracer(tracerName),
	}
}

// GetDeliveryFee returns the fee for delivering in city with vehicleType at the
// requested time. Failures the caller can act on are *FeeError values matching
// ErrBadRequest, ErrNotFound or ErrForbidden; any other error is internal.
func (s *Service) GetDeliveryFee(ctx context.Context, req Request) (decimal.Decimal, error) {
	req = req.Normalize()

	ctx, span := s.tracer.Start(ctx, "delivery.GetDeliveryFee",
		trace.WithAttributes(
			attribute.String("delivery.city", req.City),
			attribute.String("delivery.vehicle_type", req.VehicleType),
			attribute.Bool("delivery.historical", req.RequestTime != nil),
		),
	)
	defer span.End()

	fee, err := s.quote(ctx, req)
	if err != nil {
		var feeErr *FeeError
		if errors.As(err, &feeErr) {
			span.SetAttributes(attribute.String("delivery.outcome", feeErr.Kind.Error()))
		} else {
			span.RecordError(err)
			span.SetStatus(codes.Error, "fee quote failed")
			s.logger.Error().Err(err).
				Str("city", req.City).
				Str("vehicle_type", req.VehicleType).
				Msg("delivery fee quote failed")
		}
		return decimal.Zero, err
	}

	span.SetAttributes(attribute.String("delivery.fee", fee.String()))
	return fee, nil
}

func (s *Service) quote(ctx context.Context, req Request) (decimal.Decimal, error) {
	if err := ValidateRequest(req, s.clock.Now()); err != nil {
		return decimal.Zero, err
	}

	fc, err := s.resolver.Resolve(ctx, req)
	if err != nil {
		return decimal.Zero, err
	}

	if err := ValidateContext(fc, req); err != nil {
		return decimal.Zero, err
	}

	return Calculate(fc, Vehicle(req.VehicleType))
}

// InvalidateForecasts evicts cached forecasts. It is called after ingestion.
func (s *Service) InvalidateForecasts(ctx context.Context) (int, error) {
	return s.cache.InvalidateByTag(ctx, TagForecast)
}

// InvalidateCaches evicts cached forecasts and condition grades. Base tuples
// expire by TTL only.
func (s *Service) InvalidateCaches(ctx context.Context) (int, error) {
	total := 0
	for _, tag := range []string{TagForecast, TagVocabulary} {
		n, err := s.cache.InvalidateByTag(ctx, tag)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}
