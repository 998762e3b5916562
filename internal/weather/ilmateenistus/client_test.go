package ilmateenistus_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/courierfee/courierfee/internal/provider/resilience"
	"github.com/courierfee/courierfee/internal/weather"
	"github.com/courierfee/courierfee/internal/weather/ilmateenistus"
)

const feed = `<?xml version="1.0" encoding="UTF-8"?>
<observations timestamp="1710418500">
  <station>
    <name>Tallinn-Harku</name>
    <wmocode>26038</wmocode>
    <longitude>24.602891666624284</longitude>
    <latitude>59.398122222355134</latitude>
    <phenomenon>Light snow shower</phenomenon>
    <visibility>35.0</visibility>
    <airtemperature>-2.1</airtemperature>
    <windspeed>4.7</windspeed>
  </station>
  <station>
    <name>Tartu-Tõravere</name>
    <wmocode>26242</wmocode>
    <phenomenon></phenomenon>
    <airtemperature>-4.3</airtemperature>
    <windspeed>2.1</windspeed>
  </station>
  <station>
    <name>Pärnu</name>
    <wmocode>41803</wmocode>
    <airtemperature>0.4</airtemperature>
  </station>
  <station>
    <name>Kuusiku</name>
    <wmocode></wmocode>
    <airtemperature>n/a</airtemperature>
  </station>
</observations>`

func TestParse(t *testing.T) {
	snapshot, skipped, err := ilmateenistus.Parse([]byte(feed))
	require.NoError(t, err)

	assert.Equal(t, time.Unix(1710418500, 0).UTC(), snapshot.ObservedAt)
	require.Len(t, snapshot.Observations, 3)

	harku := snapshot.Observations[0]
	assert.Equal(t, "Tallinn-Harku", harku.StationName)
	assert.Equal(t, "tallinn-harku", harku.Key())
	assert.Equal(t, 26038, harku.WMOCode)
	assert.Equal(t, "light snow shower", harku.Phenomenon)
	assert.InDelta(t, -2.1, harku.AirTemperature, 0.0001)
	assert.InDelta(t, 4.7, harku.WindSpeed, 0.0001)

	tartu := snapshot.Observations[1]
	assert.Equal(t, "tartu-tõravere", tartu.Key())
	assert.Empty(t, tartu.Phenomenon)

	parnu := snapshot.Observations[2]
	assert.Equal(t, "pärnu", parnu.Key())
	assert.Zero(t, parnu.WindSpeed)
	assert.Empty(t, parnu.Phenomenon)

	require.Len(t, skipped, 1)
	assert.Equal(t, "Kuusiku", skipped[0].Name)
	assert.ErrorContains(t, skipped[0].Err, "airtemperature")
}

func TestParse_Malformed(t *testing.T) {
	tests := map[string]string{
		"not xml":           `{"observations": []}`,
		"missing timestamp": `<observations><station><name>x</name></station></observations>`,
		"bad timestamp":     `<observations timestamp="yesterday"></observations>`,
		"wrong root":        `<forecasts timestamp="1710418500"></forecasts>`,
	}

	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, _, err := ilmateenistus.Parse([]byte(doc))
			assert.ErrorIs(t, err, weather.ErrMalformedFeed)
		})
	}
}

func TestClient_FetchObservations(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/observations.php", r.URL.Path)
		w.Header().Set("Content-Type", "text/xml; charset=UTF-8")
		_, _ = w.Write([]byte(feed))
	}))
	defer server.Close()

	client := ilmateenistus.NewClient(ilmateenistus.ClientConfig{
		URL:    server.URL + "/observations.php",
		Logger: zerolog.Nop(),
	})

	snapshot, err := client.FetchObservations(context.Background())
	require.NoError(t, err)
	assert.Len(t, snapshot.Observations, 3)
	assert.Equal(t, ilmateenistus.ProviderName, client.Name())

	byStation := snapshot.ByStation()
	assert.Contains(t, byStation, "pärnu")
}

func TestClient_FetchObservations_Unavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	rc := resilience.DefaultClientConfig(ilmateenistus.ProviderName)
	rc.MaxRetries = 1
	rc.InitialInterval = time.Millisecond
	rc.MaxInterval = time.Millisecond
	rc.Logger = zerolog.Nop()

	client := ilmateenistus.NewClient(ilmateenistus.ClientConfig{
		URL:        server.URL,
		HTTPClient: resilience.NewClient(rc),
		Logger:     zerolog.Nop(),
	})

	_, err := client.FetchObservations(context.Background())
	assert.ErrorIs(t, err, weather.ErrProviderUnavailable)
}
