package delivery

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

// ForecastStore returns the observations a station reported in [from, to).
type ForecastStore interface {
	ForecastsBetween(ctx context.Context, stationID uuid.UUID, from, to time.Time) ([]Forecast, error)
}

// ForecastSelector picks the observation that applies to a request.
type ForecastSelector struct {
	store    ForecastStore
	clock    clockwork.Clock
	location *time.Location
}

// NewForecastSelector creates a selector. Calendar days are computed in loc;
// a nil loc means UTC.
func NewForecastSelector(store ForecastStore, clock clockwork.Clock, loc *time.Location) *ForecastSelector {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &ForecastSelector{store: store, clock: clock, location: loc}
}

// Select returns the latest observation of today when target is nil, otherwise
// the observation on target's calendar day closest to target. It returns nil
// when the station has no observation that day.
func (s *ForecastSelector) Select(ctx context.Context, stationID uuid.UUID, target *time.Time) (*Forecast, error) {
	day := s.clock.Now()
	if target != nil {
		day = *target
	}
	from, to := s.dayBounds(day)

	observations, err := s.store.ForecastsBetween(ctx, stationID, from, to)
	if err != nil {
		return nil, err
	}

	if target == nil {
		return Latest(observations), nil
	}
	return Nearest(observations, *target), nil
}

func (s *ForecastSelector) dayBounds(t time.Time) (time.Time, time.Time) {
	local := t.In(s.location)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, s.location)
	return start, start.AddDate(0, 0, 1)
}

// Latest returns the most recent observation, or nil if there are none.
// Equal timestamps are broken by the lower id.
func Latest(observations []Forecast) *Forecast {
	var best *Forecast
	for i := range observations {
		o := &observations[i]
		if best == nil || o.ObservedAt.After(best.ObservedAt) ||
			(o.ObservedAt.Equal(best.ObservedAt) && lessID(o.ID, best.ID)) {
			best = o
		}
	}
	return copyForecast(best)
}

// Nearest returns the observation closest in time to target, or nil if there
// are none. When two are equally close the earlier one wins, then the lower id.
func Nearest(observations []Forecast, target time.Time) *Forecast {
	var best *Forecast
	var bestDist time.Duration
	for i := range observations {
		o := &observations[i]
		dist := absDuration(o.ObservedAt.Sub(target))
		switch {
		case best == nil, dist < bestDist:
		case dist == bestDist && o.ObservedAt.Before(best.ObservedAt):
		case dist == bestDist && o.ObservedAt.Equal(best.ObservedAt) && lessID(o.ID, best.ID):
		default:
			continue
		}
		best, bestDist = o, dist
	}
	return copyForecast(best)
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}

func lessID(a, b uuid.UUID) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

func copyForecast(f *Forecast) *Forecast {
	if f == nil {
		return nil
	}
	c := *f
	return &c
}
