// Package weather defines raw station observations as reported by an
// upstream weather feed.
package weather

import (
	"context"
	"errors"
	"strings"
	"time"
)

// Weather errors.
var (
	ErrProviderUnavailable = errors.New("weather provider unavailable")
	ErrMalformedFeed       = errors.New("malformed weather feed")
)

// Provider fetches the current observations of every station in a feed.
type Provider interface {
	// FetchObservations returns the latest snapshot published by the feed.
	FetchObservations(ctx context.Context) (*Snapshot, error)

	// Name returns the provider name for logging.
	Name() string
}

// Snapshot is one publication of a feed. All observations share its timestamp.
type Snapshot struct {
	ObservedAt   time.Time
	Observations []Observation
}

// Observation is a single station reading. Values the station did not report
// are zero.
type Observation struct {
	StationName    string
	WMOCode        int
	Phenomenon     string
	AirTemperature float64 // Celsius
	WindSpeed      float64 // m/s
}

// Key returns the normalized station name used for matching.
func (o Observation) Key() string {
	return NormalizeStationName(o.StationName)
}

// NormalizeStationName lower-cases and trims a station name.
func NormalizeStationName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// ByStation indexes the snapshot by normalized station name. When a name
// appears twice the first reading wins.
func (s *Snapshot) ByStation() map[string]Observation {
	out := make(map[string]Observation, len(s.Observations))
	for _, o := range s.Observations {
		if _, ok := out[o.Key()]; !ok {
			out[o.Key()] = o
		}
	}
	return out
}
