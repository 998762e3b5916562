package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sony/gobreaker/v2"

	"github.com/courierfee/courierfee/internal/api/models"
	"github.com/courierfee/courierfee/internal/api/response"
	"github.com/courierfee/courierfee/internal/provider/resilience"
)

const readinessTimeout = 2 * time.Second

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Dependency is a named subsystem checked by readiness and status.
type Dependency struct {
	Name   string
	Pinger Pinger
}

// OpsHandler handles operational endpoints.
type OpsHandler struct {
	version      string
	buildTime    string
	dependencies []Dependency
	registry     *resilience.Registry
	clock        clockwork.Clock
}

// OpsConfig holds dependencies for the ops endpoints. Registry is optional.
type OpsConfig struct {
	Version      string
	BuildTime    string
	Dependencies []Dependency
	Registry     *resilience.Registry
	Clock        clockwork.Clock
}

// NewOpsHandler creates a new OpsHandler.
func NewOpsHandler(cfg OpsConfig) *OpsHandler {
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	return &OpsHandler{
		version:      cfg.Version,
		buildTime:    cfg.BuildTime,
		dependencies: cfg.Dependencies,
		registry:     cfg.Registry,
		clock:        cfg.Clock,
	}
}

// HealthCheck handles GET /v1/ops/health - liveness check.
func (h *OpsHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, r, http.StatusOK, models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(h.clock.Now()),
		Details: map[string]interface{}{
			"version":   h.version,
			"buildTime": h.buildTime,
		},
	})
}

// ReadinessCheck handles GET /v1/ops/ready. It answers 503 while any
// dependency fails its ping.
func (h *OpsHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	subsystems := h.checkDependencies(r.Context())

	health := models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(h.clock.Now()),
	}
	status := http.StatusOK
	failed := map[string]interface{}{}
	for _, s := range subsystems {
		if s.Status != models.HealthStatusOK {
			failed[s.Name] = *s.Detail
		}
	}
	if len(failed) > 0 {
		health.Status = models.HealthStatusFail
		health.Details = failed
		status = http.StatusServiceUnavailable
	}
	response.JSON(w, r, status, health)
}

// SystemStatus handles GET /v1/ops/status - subsystem and weather feed status.
func (h *OpsHandler) SystemStatus(w http.ResponseWriter, r *http.Request) {
	status := models.SystemStatus{
		Status:     models.HealthStatusOK,
		Time:       models.Timestamp(h.clock.Now()),
		Subsystems: h.checkDependencies(r.Context()),
		Providers:  []models.ProviderStatus{},
	}

	if h.registry != nil {
		for _, p := range h.registry.All() {
			ps := models.ProviderStatus{
				Provider:            p.Name,
				Status:              providerStatus(p),
				CircuitState:        p.CircuitState.String(),
				ConsecutiveFailures: p.Counts.ConsecutiveFailures,
				LastSuccessAt:       models.TimestampPtr(p.LastSuccessAt),
				LastFailureAt:       models.TimestampPtr(p.LastFailureAt),
			}
			if p.LastError != "" {
				msg := p.LastError
				ps.Message = &msg
			}
			status.Providers = append(status.Providers, ps)
		}
	}

	for _, s := range status.Subsystems {
		if s.Status == models.HealthStatusFail {
			status.Status = models.HealthStatusFail
		}
	}
	if status.Status == models.HealthStatusOK {
		for _, p := range status.Providers {
			if p.Status != models.HealthStatusOK {
				status.Status = models.HealthStatusDegraded
			}
		}
	}

	response.JSON(w, r, http.StatusOK, status)
}

func (h *OpsHandler) checkDependencies(ctx context.Context) []models.SubsystemStatus {
	ctx, cancel := context.WithTimeout(ctx, readinessTimeout)
	defer cancel()

	out := make([]models.SubsystemStatus, 0, len(h.dependencies))
	for _, d := range h.dependencies {
		s := models.SubsystemStatus{Name: d.Name, Status: models.HealthStatusOK}
		start := h.clock.Now()
		err := d.Pinger.Ping(ctx)
		s.LatencyMs = h.clock.Since(start).Milliseconds()
		if err != nil {
			detail := err.Error()
			s.Status = models.HealthStatusFail
			s.Detail = &detail
		}
		out = append(out, s)
	}
	return out
}

func providerStatus(p resilience.ProviderHealth) models.HealthStatus {
	switch p.CircuitState {
	case gobreaker.StateClosed:
		return models.HealthStatusOK
	case gobreaker.StateHalfOpen:
		return models.HealthStatusDegraded
	default:
		return models.HealthStatusFail
	}
}
