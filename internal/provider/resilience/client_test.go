package resilience_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/courierfee/courierfee/internal/provider/resilience"
)

func fastConfig(name string) resilience.ClientConfig {
	cfg := resilience.DefaultClientConfig(name)
	cfg.InitialInterval = 5 * time.Millisecond
	cfg.MaxInterval = 20 * time.Millisecond
	cfg.Timeout = 2 * time.Second
	cfg.Logger = zerolog.Nop()
	return cfg
}

func TestClient_Fetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/xml", r.Header.Get("Accept"))
		assert.Equal(t, "courierfee/1.0", r.Header.Get("User-Agent"))
		_, _ = w.Write([]byte(`<observations/>`))
	}))
	defer server.Close()

	client := resilience.NewClient(fastConfig("test"))

	body, err := client.Fetch(context.Background(), server.URL, "application/xml")
	require.NoError(t, err)
	assert.Equal(t, `<observations/>`, string(body))
	assert.Equal(t, "test", client.Name())
}

func TestClient_RetriesOn5xx(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if attempts.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer server.Close()

	cfg := fastConfig("retry")
	cfg.Breaker.ConsecutiveFailures = 10
	client := resilience.NewClient(cfg)

	body, err := client.Fetch(context.Background(), server.URL, "")
	require.NoError(t, err)
	assert.Equal(t, "ok", string(body))
	assert.Equal(t, int32(3), attempts.Load())
}

func TestClient_NoRetryOn4xx(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := resilience.NewClient(fastConfig("not-found"))

	_, err := client.Fetch(context.Background(), server.URL, "")
	require.Error(t, err)

	var statusErr *resilience.StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusNotFound, statusErr.StatusCode)
	assert.Equal(t, int32(1), attempts.Load())
}

func TestClient_GivesUpAfterMaxRetries(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	cfg := fastConfig("exhausted")
	cfg.MaxRetries = 2
	cfg.Breaker.ConsecutiveFailures = 10
	client := resilience.NewClient(cfg)

	_, err := client.Fetch(context.Background(), server.URL, "")
	require.Error(t, err)
	assert.Equal(t, int32(3), attempts.Load())
	assert.Contains(t, err.Error(), "exhausted")
}

func TestClient_CircuitBreakerTrips(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	cfg := fastConfig("tripping")
	cfg.MaxRetries = 5
	cfg.Breaker.ConsecutiveFailures = 2
	client := resilience.NewClient(cfg)

	_, err := client.Fetch(context.Background(), server.URL, "")
	assert.ErrorIs(t, err, resilience.ErrCircuitOpen)
	assert.Equal(t, int32(2), attempts.Load())
	assert.Equal(t, gobreaker.StateOpen, client.State())

	_, err = client.Fetch(context.Background(), server.URL, "")
	assert.ErrorIs(t, err, resilience.ErrCircuitOpen)
	assert.Equal(t, int32(2), attempts.Load(), "open circuit must not reach the server")
}

func TestClient_BodyLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(make([]byte, 2048))
	}))
	defer server.Close()

	cfg := fastConfig("limited")
	cfg.MaxBodyBytes = 1024
	client := resilience.NewClient(cfg)

	_, err := client.Fetch(context.Background(), server.URL, "")
	assert.ErrorContains(t, err, "exceeds 1024 bytes")
}

func TestClient_ContextCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := resilience.NewClient(fastConfig("cancelled"))
	_, err := client.Fetch(ctx, server.URL, "")
	assert.Error(t, err)
}

func TestStatusError_Temporary(t *testing.T) {
	assert.True(t, (&resilience.StatusError{StatusCode: 503}).Temporary())
	assert.True(t, (&resilience.StatusError{StatusCode: 429}).Temporary())
	assert.False(t, (&resilience.StatusError{StatusCode: 404}).Temporary())
}
