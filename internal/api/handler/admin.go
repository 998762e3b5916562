package handler

import (
	"context"
	"net/http"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/courierfee/courierfee/internal/api/middleware"
	"github.com/courierfee/courierfee/internal/api/models"
	"github.com/courierfee/courierfee/internal/api/response"
	"github.com/courierfee/courierfee/internal/delivery"
	"github.com/courierfee/courierfee/internal/worker"
)

// CacheInvalidator evicts the caches behind fee quotes.
type CacheInvalidator interface {
	InvalidateForecasts(ctx context.Context) (int, error)
	InvalidateCaches(ctx context.Context) (int, error)
}

// AdminHandler handles operator endpoints.
type AdminHandler struct {
	caches CacheInvalidator
	ingest worker.Runner
	clock  clockwork.Clock
	logger zerolog.Logger
}

// NewAdminHandler creates a new AdminHandler. ingest may be nil when the
// API does not run ingestion itself.
func NewAdminHandler(caches CacheInvalidator, ingest worker.Runner, clock clockwork.Clock, logger zerolog.Logger) *AdminHandler {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &AdminHandler{caches: caches, ingest: ingest, clock: clock, logger: logger}
}

// InvalidateCache handles POST /v1/admin/cache/invalidate. With
// ?scope=forecast only cached forecasts are evicted.
func (h *AdminHandler) InvalidateCache(w http.ResponseWriter, r *http.Request) {
	var (
		evicted int
		err     error
		tags    []string
	)

	switch scope := r.URL.Query().Get("scope"); scope {
	case "", "all":
		tags = []string{delivery.TagForecast, delivery.TagVocabulary}
		evicted, err = h.caches.InvalidateCaches(r.Context())
	case delivery.TagForecast:
		tags = []string{delivery.TagForecast}
		evicted, err = h.caches.InvalidateForecasts(r.Context())
	default:
		response.BadRequest(w, r, "scope must be one of all, forecast", []models.FieldError{
			{Field: "scope", Message: "unknown scope " + scope, Code: "INVALID_VALUE"},
		})
		return
	}

	if err != nil {
		h.logger.Error().Err(err).Str("request_id", middleware.GetRequestID(r.Context())).Msg("cache invalidation failed")
		response.ServiceUnavailable(w, r, "cache invalidation failed")
		return
	}

	h.logger.Info().
		Str("subject", middleware.GetSubject(r.Context())).
		Strs("tags", tags).
		Int("evicted", evicted).
		Msg("caches invalidated")

	response.JSON(w, r, http.StatusOK, models.CacheInvalidation{
		Evicted: evicted,
		Tags:    tags,
		Time:    models.Timestamp(h.clock.Now()),
	})
}

// TriggerIngest handles POST /v1/admin/ingest. It runs one ingestion
// synchronously and returns its result.
func (h *AdminHandler) TriggerIngest(w http.ResponseWriter, r *http.Request) {
	if h.ingest == nil {
		response.ServiceUnavailable(w, r, "ingestion is not enabled on this instance")
		return
	}

	result, err := h.ingest.Run(r.Context())
	if err != nil {
		response.ServiceUnavailable(w, r, "weather ingestion failed")
		return
	}

	response.JSON(w, r, http.StatusOK, models.IngestRun{
		ObservedAt: models.Timestamp(result.ObservedAt),
		Matched:    result.Matched,
		Saved:      result.Saved,
		Missing:    result.Missing,
		Evicted:    result.Evicted,
		Duration:   result.Duration.String(),
	})
}
