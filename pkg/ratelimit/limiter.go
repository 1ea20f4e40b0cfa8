// Package ratelimit paces outgoing SOCS requests.
//
// SOCS publishes no rate limit headers, but a deep range split can issue
// dozens of requests against a single school's endpoint in a burst. The
// Limiter spaces them out client-side so concurrent branches share one budget.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Prometheus metrics for request pacing.
var (
	socsRateLimitWaitSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "socs_rate_limit_wait_seconds",
		Help:    "Time requests spent waiting for the client-side rate limiter",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5},
	})

	socsRateLimitThrottlesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "socs_rate_limit_throttles_total",
		Help: "Total number of requests delayed by the client-side rate limiter",
	})
)

// Requests delayed longer than this are logged at warn level.
const slowWaitThreshold = time.Second

// Limiter gates requests to a fixed rate. A nil *Limiter allows everything.
type Limiter struct {
	limiter *rate.Limiter
	logger  zerolog.Logger
}

// NewLimiter returns a limiter allowing requestsPerSecond with bursts of burst.
// It returns nil, meaning unlimited, when requestsPerSecond <= 0.
func NewLimiter(requestsPerSecond float64, burst int, logger zerolog.Logger) *Limiter {
	if requestsPerSecond <= 0 {
		return nil
	}
	if burst < 1 {
		burst = 1
	}
	return &Limiter{
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), burst),
		logger:  logger,
	}
}

// Wait blocks until a request may proceed or ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	if l == nil {
		return nil
	}

	start := time.Now()
	if err := l.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	waited := time.Since(start)
	socsRateLimitWaitSeconds.Observe(waited.Seconds())

	// Anything beyond a millisecond means the token bucket was empty.
	if waited > time.Millisecond {
		socsRateLimitThrottlesTotal.Inc()
		event := l.logger.Debug()
		if waited > slowWaitThreshold {
			event = l.logger.Warn()
		}
		event.Dur("waited", waited).Msg("Request throttled by rate limiter")
	}
	return nil
}

// Limit returns the configured requests per second, or 0 for unlimited.
func (l *Limiter) Limit() float64 {
	if l == nil {
		return 0
	}
	return float64(l.limiter.Limit())
}
