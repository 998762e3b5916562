package resilience

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
)

// ErrCircuitOpen is returned when the circuit breaker rejects a call.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// StatusError is a non-2xx upstream response. 5xx responses are retried and
// count against the breaker; 4xx responses are returned immediately.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d %s", e.StatusCode, http.StatusText(e.StatusCode))
}

// Temporary reports whether the status is worth retrying.
func (e *StatusError) Temporary() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

// ClientConfig holds configuration for a feed client.
type ClientConfig struct {
	// Name identifies the upstream in logs and the registry.
	Name string

	// Timeout per attempt. Default: 15 seconds
	Timeout time.Duration

	// MaxRetries after the first attempt. Default: 3
	MaxRetries uint64

	// InitialInterval between retries. Default: 500ms
	InitialInterval time.Duration

	// MaxInterval between retries. Default: 10 seconds
	MaxInterval time.Duration

	// MaxBodyBytes caps the response size. Default: 4 MiB
	MaxBodyBytes int64

	// UserAgent sent with every request.
	UserAgent string

	Breaker BreakerConfig
	Logger  zerolog.Logger
}

// DefaultClientConfig returns defaults for the named upstream.
func DefaultClientConfig(name string) ClientConfig {
	return ClientConfig{
		Name:            name,
		Timeout:         15 * time.Second,
		MaxRetries:      3,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     10 * time.Second,
		MaxBodyBytes:    4 << 20,
		UserAgent:       "courierfee/1.0",
		Breaker:         DefaultBreakerConfig(),
	}
}

// Client fetches documents from an upstream feed through a circuit breaker
// with exponential backoff.
type Client struct {
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[[]byte]
	config     ClientConfig
	logger     zerolog.Logger
}

// NewClient creates a feed client.
func NewClient(cfg ClientConfig) *Client {
	def := DefaultClientConfig(cfg.Name)
	if cfg.Timeout == 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = def.MaxRetries
	}
	if cfg.InitialInterval == 0 {
		cfg.InitialInterval = def.InitialInterval
	}
	if cfg.MaxInterval == 0 {
		cfg.MaxInterval = def.MaxInterval
	}
	if cfg.MaxBodyBytes == 0 {
		cfg.MaxBodyBytes = def.MaxBodyBytes
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = def.UserAgent
	}

	logger := cfg.Logger.With().Str("provider", cfg.Name).Logger()

	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		breaker:    newBreaker[[]byte](cfg.Name, cfg.Breaker, logger),
		config:     cfg,
		logger:     logger,
	}
}

// Name returns the upstream name.
func (c *Client) Name() string {
	return c.config.Name
}

// Fetch GETs url and returns the response body. Transport errors and
// temporary status codes are retried until MaxRetries or ctx is done.
func (c *Client) Fetch(ctx context.Context, url string, accept string) ([]byte, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.config.InitialInterval
	bo.MaxInterval = c.config.MaxInterval
	bo.MaxElapsedTime = 0

	policy := backoff.WithContext(backoff.WithMaxRetries(bo, c.config.MaxRetries), ctx)

	var body []byte
	attempt := 0

	operation := func() error {
		attempt++
		b, err := c.breaker.Execute(func() ([]byte, error) {
			return c.get(ctx, url, accept)
		})
		if err == nil {
			body = b
			return nil
		}

		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return backoff.Permanent(ErrCircuitOpen)
		}
		var statusErr *StatusError
		if errors.As(err, &statusErr) && !statusErr.Temporary() {
			return backoff.Permanent(err)
		}

		c.logger.Debug().Err(err).Int("attempt", attempt).Msg("feed request failed")
		return err
	}

	if err := backoff.Retry(operation, policy); err != nil {
		return nil, fmt.Errorf("%s: %w", c.config.Name, err)
	}
	return body, nil
}

func (c *Client) get(ctx context.Context, url, accept string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("creating request: %w", err))
	}
	req.Header.Set("User-Agent", c.config.UserAgent)
	if accept != "" {
		req.Header.Set("Accept", accept)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return nil, &StatusError{StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.config.MaxBodyBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading body: %w", err)
	}
	if int64(len(body)) > c.config.MaxBodyBytes {
		return nil, backoff.Permanent(fmt.Errorf("response exceeds %d bytes", c.config.MaxBodyBytes))
	}
	return body, nil
}

// State returns the circuit breaker state.
func (c *Client) State() gobreaker.State {
	return c.breaker.State()
}

// Counts returns the circuit breaker counters.
func (c *Client) Counts() gobreaker.Counts {
	return c.breaker.Counts()
}
