// Package ilmateenistus reads the station observations feed published by the
// Estonian Environment Agency.
package ilmateenistus

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/courierfee/courierfee/internal/provider/resilience"
	"github.com/courierfee/courierfee/internal/weather"
)

const (
	// ProviderName identifies this weather provider.
	ProviderName = "ilmateenistus"

	// DefaultURL is the observations feed.
	DefaultURL = "https://www.ilmateenistus.ee/ilma_andmed/xml/observations.php"
)

// ClientConfig holds configuration for the feed client.
type ClientConfig struct {
	// URL of the observations document (optional, defaults to DefaultURL).
	URL string

	// HTTPClient is the resilient client to fetch with (optional).
	HTTPClient *resilience.Client

	Logger zerolog.Logger
}

// Client fetches and decodes the observations feed.
type Client struct {
	url        string
	httpClient *resilience.Client
	logger     zerolog.Logger
}

// NewClient creates a feed client.
func NewClient(cfg ClientConfig) *Client {
	url := cfg.URL
	if url == "" {
		url = DefaultURL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		rc := resilience.DefaultClientConfig(ProviderName)
		rc.Logger = cfg.Logger
		httpClient = resilience.NewClient(rc)
	}

	return &Client{
		url:        url,
		httpClient: httpClient,
		logger:     cfg.Logger.With().Str("provider", ProviderName).Logger(),
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return ProviderName
}

// HTTPClient returns the underlying resilient client, for health reporting.
func (c *Client) HTTPClient() *resilience.Client {
	return c.httpClient
}

// FetchObservations implements weather.Provider.
func (c *Client) FetchObservations(ctx context.Context) (*weather.Snapshot, error) {
	body, err := c.httpClient.Fetch(ctx, c.url, "application/xml, text/xml")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", weather.ErrProviderUnavailable, err)
	}

	snapshot, skipped, err := Parse(body)
	if err != nil {
		return nil, err
	}
	for _, s := range skipped {
		c.logger.Warn().Str("station", s.Name).Err(s.Err).Msg("skipping station with unreadable values")
	}
	return snapshot, nil
}

type observationsDoc struct {
	XMLName   xml.Name     `xml:"observations"`
	Timestamp string       `xml:"timestamp,attr"`
	Stations  []stationDoc `xml:"station"`
}

type stationDoc struct {
	Name           string `xml:"name"`
	WMOCode        string `xml:"wmocode"`
	Phenomenon     string `xml:"phenomenon"`
	AirTemperature string `xml:"airtemperature"`
	WindSpeed      string `xml:"windspeed"`
}

// SkippedStation is a station left out of a snapshot.
type SkippedStation struct {
	Name string
	Err  error
}

// Parse decodes an observations document. Stations with unreadable numeric
// values are left out and reported in skipped.
func Parse(data []byte) (*weather.Snapshot, []SkippedStation, error) {
	var doc observationsDoc
	if err := xml.NewDecoder(bytes.NewReader(data)).Decode(&doc); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", weather.ErrMalformedFeed, err)
	}

	ts, err := strconv.ParseInt(strings.TrimSpace(doc.Timestamp), 10, 64)
	if err != nil || ts <= 0 {
		return nil, nil, fmt.Errorf("%w: invalid timestamp %q", weather.ErrMalformedFeed, doc.Timestamp)
	}

	snapshot := &weather.Snapshot{
		ObservedAt:   time.Unix(ts, 0).UTC(),
		Observations: make([]weather.Observation, 0, len(doc.Stations)),
	}

	var skipped []SkippedStation
	for _, s := range doc.Stations {
		obs, err := s.toObservation()
		if err != nil {
			skipped = append(skipped, SkippedStation{Name: s.Name, Err: err})
			continue
		}
		snapshot.Observations = append(snapshot.Observations, obs)
	}

	return snapshot, skipped, nil
}

func (s stationDoc) toObservation() (weather.Observation, error) {
	temp, err := parseFloat(s.AirTemperature)
	if err != nil {
		return weather.Observation{}, fmt.Errorf("airtemperature: %w", err)
	}
	wind, err := parseFloat(s.WindSpeed)
	if err != nil {
		return weather.Observation{}, fmt.Errorf("windspeed: %w", err)
	}
	wmo, _ := strconv.Atoi(strings.TrimSpace(s.WMOCode))

	return weather.Observation{
		StationName:    strings.TrimSpace(s.Name),
		WMOCode:        wmo,
		Phenomenon:     strings.ToLower(strings.TrimSpace(s.Phenomenon)),
		AirTemperature: temp,
		WindSpeed:      wind,
	}, nil
}

// parseFloat reads a feed number. Missing or empty values are zero.
func parseFloat(v string) (float64, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0, nil
	}
	return strconv.ParseFloat(strings.ReplaceAll(v, ",", "."), 64)
}
