// Package client provides the SOCS calendar HTTP client: one request per date
// range, response decoding, and the full range-splitting fetch.
package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/Sternrassler/socs-calendar-client/pkg/calendar"
	"github.com/Sternrassler/socs-calendar-client/pkg/decoder"
	"github.com/Sternrassler/socs-calendar-client/pkg/logging"
	"github.com/Sternrassler/socs-calendar-client/pkg/pagination"
	"github.com/Sternrassler/socs-calendar-client/pkg/ratelimit"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for SOCS client operations.
var (
	socsRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "socs_requests_total",
		Help: "Total SOCS requests by status",
	}, []string{"status"})

	socsRequestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "socs_request_duration_seconds",
		Help:    "SOCS request duration in seconds",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
	})

	socsErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "socs_errors_total",
		Help: "Total SOCS errors by class",
	}, []string{"class"})
)

// Client is the SOCS calendar client. It is safe for concurrent use.
type Client struct {
	httpClient *http.Client
	limiter    *ratelimit.Limiter
	fetcher    *pagination.RangeFetcher
	config     Config
	logger     zerolog.Logger
}

// Config holds the client configuration.
type Config struct {
	// Endpoint is the SOCS calendar URL issued with the API key, e.g.
	// "https://www.socscms.com/socs/xml/SOCScalendar.ashx?ID=123&key=abc".
	Endpoint string

	// User-Agent header sent with every request.
	UserAgent string

	// Flags are sent with every request.
	Flags InclusionFlags

	// RequestTimeout bounds a single HTTP request.
	RequestTimeout time.Duration

	// Rate Limiting
	RateLimit float64 // Requests per second, 0 = unlimited

	// Range splitting
	TruncationCap  int                   // Event count at which a response is treated as truncated
	MaxConcurrency int                   // Max parallel sub-range requests
	DedupePolicy   calendar.DedupePolicy // Which copy of a duplicated event wins

	// Retry
	Retry RetryConfig
}

// DefaultConfig returns a safe default configuration for endpoint.
func DefaultConfig(endpoint string) Config {
	return Config{
		Endpoint:       endpoint,
		UserAgent:      "socs-calendar-client/0.1.0",
		Flags:          DefaultInclusionFlags(),
		RequestTimeout: 30 * time.Second,
		RateLimit:      5,
		TruncationCap:  pagination.DefaultTruncationCap,
		MaxConcurrency: pagination.DefaultMaxConcurrency,
		DedupePolicy:   calendar.KeepFirst,
		Retry:          DefaultRetryConfig(),
	}
}

// New creates a new SOCS client.
func New(cfg Config) (*Client, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("endpoint is required")
	}

	u, err := url.Parse(cfg.Endpoint)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("endpoint must be an absolute http(s) URL")
	}

	if cfg.UserAgent == "" {
		return nil, fmt.Errorf("user-agent is required")
	}

	if cfg.TruncationCap < 1 {
		return nil, fmt.Errorf("truncation_cap must be >= 1 (got %d)", cfg.TruncationCap)
	}

	if cfg.MaxConcurrency < 1 {
		return nil, fmt.Errorf("max_concurrency must be >= 1 (got %d)", cfg.MaxConcurrency)
	}

	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}

	logger := logging.NewLogger("socs-client").With().
		Str("endpoint", logging.RedactURL(cfg.Endpoint)).
		Logger()

	c := &Client{
		httpClient: &http.Client{
			Timeout: cfg.RequestTimeout,
		},
		limiter: ratelimit.NewLimiter(cfg.RateLimit, 1, logger),
		config:  cfg,
		logger:  logger,
	}

	c.fetcher = pagination.NewRangeFetcher(c, pagination.Config{
		TruncationCap:  cfg.TruncationCap,
		MaxConcurrency: cfg.MaxConcurrency,
		DedupePolicy:   cfg.DedupePolicy,
	})

	return c, nil
}

// FetchRaw performs one SOCS request for rng and returns the response body.
// Any failure is reported as a *TransportError.
func (c *Client) FetchRaw(ctx context.Context, rng calendar.DateRange) ([]byte, error) {
	reqURL, err := BuildURL(c.config.Endpoint, rng, c.config.Flags)
	if err != nil {
		return nil, &TransportError{Range: rng, ErrorClass: ErrorClassClient, Message: "invalid endpoint", Err: err}
	}

	var body []byte
	err = retryWithBackoff(ctx, c.config.Retry, c.logger, func() error {
		var reqErr error
		body, reqErr = c.do(ctx, rng, reqURL)
		return reqErr
	})
	if err != nil {
		return nil, err
	}
	return body, nil
}

// do executes a single GET against reqURL.
func (c *Client) do(ctx context.Context, rng calendar.DateRange, reqURL string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, &TransportError{Range: rng, ErrorClass: ErrorClassNetwork, Message: "rate limiter", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, &TransportError{Range: rng, ErrorClass: ErrorClassClient, Message: "create request", Err: err}
	}
	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set("Accept", "application/xml, text/xml")

	c.logger.Debug().
		Stringer("range", rng).
		Msg("Executing SOCS request")

	startTime := time.Now()
	defer func() {
		socsRequestDuration.Observe(time.Since(startTime).Seconds())
	}()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// *url.Error embeds the request URL, API key included.
		var uerr *url.Error
		if errors.As(err, &uerr) {
			uerr.URL = logging.RedactURL(uerr.URL)
		}
		c.logger.Error().Err(err).Stringer("range", rng).Msg("HTTP request failed")
		socsErrorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		socsRequestsTotal.WithLabelValues("network_error").Inc()
		return nil, &TransportError{Range: rng, ErrorClass: ErrorClassNetwork, Message: "request failed", Err: err}
	}
	defer resp.Body.Close()

	status := strconv.Itoa(resp.StatusCode)
	if errClass := classifyStatus(resp.StatusCode); errClass != "" {
		socsErrorsTotal.WithLabelValues(string(errClass)).Inc()
		socsRequestsTotal.WithLabelValues(status).Inc()

		c.logger.Warn().
			Stringer("range", rng).
			Int("status", resp.StatusCode).
			Str("error_class", string(errClass)).
			Msg("SOCS request error")

		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &TransportError{
			Range:      rng,
			StatusCode: resp.StatusCode,
			ErrorClass: errClass,
			Message:    resp.Status,
		}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		socsErrorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		socsRequestsTotal.WithLabelValues("read_error").Inc()
		return nil, &TransportError{
			Range:      rng,
			StatusCode: resp.StatusCode,
			ErrorClass: ErrorClassNetwork,
			Message:    "read response body",
			Err:        err,
		}
	}

	socsRequestsTotal.WithLabelValues(status).Inc()
	c.logger.Debug().
		Stringer("range", rng).
		Int("status", resp.StatusCode).
		Int("bytes", len(body)).
		Dur("duration", time.Since(startTime)).
		Msg("SOCS request complete")

	return body, nil
}

// classifyStatus returns the error class for an HTTP status, or "" for success.
func classifyStatus(statusCode int) ErrorClass {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return ""
	case statusCode >= 500:
		return ErrorClassServer
	default:
		return ErrorClassClient
	}
}

// FetchRange fetches and decodes a single range without splitting.
// It satisfies pagination.Source.
func (c *Client) FetchRange(ctx context.Context, rng calendar.DateRange) ([]calendar.Event, error) {
	raw, err := c.FetchRaw(ctx, rng)
	if err != nil {
		return nil, err
	}

	events, err := decoder.Decode(raw)
	if err != nil {
		var perr *decoder.ParseError
		if errors.As(err, &perr) {
			c.logger.Error().
				Err(err).
				Stringer("range", rng).
				Str("event_id", perr.EventID).
				Msg("SOCS response did not match schema")
		}
		return nil, err
	}
	return events, nil
}

// FetchEvents returns every event in rng, splitting the range as needed to
// work around the server's per-response cap. The result is deduplicated by
// event ID and sorted by start time.
func (c *Client) FetchEvents(ctx context.Context, rng calendar.DateRange) ([]calendar.Event, error) {
	return c.fetcher.FetchAll(ctx, rng)
}

// Config returns the client configuration.
func (c *Client) Config() Config {
	return c.config
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

// FetchEvents is a one-shot helper: it fetches every event between start and
// end (inclusive) from endpoint using DefaultConfig.
func FetchEvents(ctx context.Context, endpoint string, start, end calendar.Date) ([]calendar.Event, error) {
	c, rng, err := oneShot(endpoint, start, end)
	if err != nil {
		return nil, err
	}
	defer c.Close()
	return c.FetchEvents(ctx, rng)
}

// FetchRaw is a one-shot helper returning the raw document for a single
// request, for callers that manage splitting themselves.
func FetchRaw(ctx context.Context, endpoint string, start, end calendar.Date) ([]byte, error) {
	c, rng, err := oneShot(endpoint, start, end)
	if err != nil {
		return nil, err
	}
	defer c.Close()
	return c.FetchRaw(ctx, rng)
}

// Decode parses a raw SOCS document. See decoder.Decode.
func Decode(raw []byte) ([]calendar.Event, error) {
	return decoder.Decode(raw)
}

func oneShot(endpoint string, start, end calendar.Date) (*Client, calendar.DateRange, error) {
	rng, err := calendar.NewDateRange(start, end)
	if err != nil {
		return nil, calendar.DateRange{}, err
	}
	c, err := New(DefaultConfig(endpoint))
	if err != nil {
		return nil, calendar.DateRange{}, err
	}
	return c, rng, nil
}
