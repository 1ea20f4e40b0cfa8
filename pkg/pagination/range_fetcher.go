package pagination

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/Sternrassler/socs-calendar-client/pkg/calendar"
	"github.com/Sternrassler/socs-calendar-client/pkg/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

const (
	// DefaultTruncationCap is the response size treated as truncated. SOCS does
	// not document its limit; 100 keeps a safety margin below the largest
	// responses observed for a single school.
	DefaultTruncationCap = 100

	// DefaultMaxConcurrency bounds in-flight sub-range requests.
	DefaultMaxConcurrency = 4
)

// Outcomes recorded per sub-range fetch.
const (
	outcomeComplete  = "complete"
	outcomeTruncated = "truncated"
	outcomeForced    = "forced"
)

// Prometheus metrics for range splitting.
var (
	socsRangeFetchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "socs_range_fetches_total",
		Help: "Sub-range fetches by outcome (complete, truncated, forced)",
	}, []string{"outcome"})

	socsRangeSplitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "socs_range_splits_total",
		Help: "Total number of date ranges bisected after a suspected truncation",
	})

	socsFetchDepth = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "socs_fetch_depth",
		Help:    "Deepest recursion level reached per top-level fetch",
		Buckets: []float64{0, 1, 2, 3, 4, 6, 8, 10},
	})

	socsEventsMergedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "socs_events_merged_total",
		Help: "Total number of unique events returned by top-level fetches",
	})

	socsDuplicatesDroppedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "socs_duplicates_dropped_total",
		Help: "Total number of duplicate events dropped while merging sub-ranges",
	})
)

// Source fetches and decodes a single date range without splitting it.
type Source interface {
	FetchRange(ctx context.Context, rng calendar.DateRange) ([]calendar.Event, error)
}

// Config holds range fetcher configuration.
type Config struct {
	// TruncationCap is the event count at which a response is assumed truncated.
	TruncationCap int

	// MaxConcurrency is the maximum number of Source calls in flight.
	// 1 fetches sub-ranges sequentially.
	MaxConcurrency int

	// DedupePolicy decides which copy of a duplicated event is kept.
	DedupePolicy calendar.DedupePolicy
}

// DefaultConfig returns the default range fetcher configuration.
func DefaultConfig() Config {
	return Config{
		TruncationCap:  DefaultTruncationCap,
		MaxConcurrency: DefaultMaxConcurrency,
		DedupePolicy:   calendar.KeepFirst,
	}
}

// RangeFetcher retrieves complete result sets from a capped Source.
type RangeFetcher struct {
	source Source
	config Config
	sem    *semaphore.Weighted
	logger zerolog.Logger
}

// NewRangeFetcher creates a range fetcher over source.
func NewRangeFetcher(source Source, config Config) *RangeFetcher {
	if config.TruncationCap <= 0 {
		config.TruncationCap = DefaultTruncationCap
	}
	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = DefaultMaxConcurrency
	}
	if config.DedupePolicy == "" {
		config.DedupePolicy = calendar.KeepFirst
	}

	return &RangeFetcher{
		source: source,
		config: config,
		sem:    semaphore.NewWeighted(int64(config.MaxConcurrency)),
		logger: logging.NewLogger("range-fetcher"),
	}
}

// fetchStats is shared by the branches of one top-level call.
type fetchStats struct {
	requests atomic.Int64
	splits   atomic.Int64
	maxDepth atomic.Int64
}

func (s *fetchStats) observeDepth(depth int) {
	for {
		cur := s.maxDepth.Load()
		if int64(depth) <= cur || s.maxDepth.CompareAndSwap(cur, int64(depth)) {
			return
		}
	}
}

// FetchAll returns every event in rng, deduplicated by ID and sorted by start.
// The first error from any sub-range aborts the call and is returned as is.
func (f *RangeFetcher) FetchAll(ctx context.Context, rng calendar.DateRange) ([]calendar.Event, error) {
	if _, err := calendar.NewDateRange(rng.Start, rng.End); err != nil {
		return nil, err
	}

	start := time.Now()
	stats := &fetchStats{}

	leaves, err := f.fetchRange(ctx, rng, 0, stats)
	if err != nil {
		f.logger.Error().
			Err(err).
			Stringer("range", rng).
			Int64("requests", stats.requests.Load()).
			Msg("Range fetch failed")
		return nil, err
	}

	events := calendar.Merge(f.config.DedupePolicy, leaves)

	socsFetchDepth.Observe(float64(stats.maxDepth.Load()))
	socsEventsMergedTotal.Add(float64(len(events)))
	socsDuplicatesDroppedTotal.Add(float64(len(leaves) - len(events)))

	f.logger.Info().
		Stringer("range", rng).
		Int("events", len(events)).
		Int("duplicates", len(leaves)-len(events)).
		Int64("requests", stats.requests.Load()).
		Int64("splits", stats.splits.Load()).
		Int64("max_depth", stats.maxDepth.Load()).
		Dur("duration", time.Since(start)).
		Msg("Range fetch complete")

	return events, nil
}

// fetchRange returns the concatenated leaf results for rng, left half first.
func (f *RangeFetcher) fetchRange(ctx context.Context, rng calendar.DateRange, depth int, stats *fetchStats) ([]calendar.Event, error) {
	stats.observeDepth(depth)

	events, err := f.fetchOne(ctx, rng, stats)
	if err != nil {
		return nil, err
	}

	if len(events) < f.config.TruncationCap {
		socsRangeFetchesTotal.WithLabelValues(outcomeComplete).Inc()
		f.logger.Debug().
			Stringer("range", rng).
			Int("depth", depth).
			Int("events", len(events)).
			Msg("Sub-range complete")
		return events, nil
	}

	left, right, ok := rng.Split()
	if !ok {
		socsRangeFetchesTotal.WithLabelValues(outcomeForced).Inc()
		f.logger.Warn().
			Stringer("range", rng).
			Int("events", len(events)).
			Int("cap", f.config.TruncationCap).
			Msg("Single-day range reached the truncation cap; accepting response as complete")
		return events, nil
	}

	socsRangeFetchesTotal.WithLabelValues(outcomeTruncated).Inc()
	socsRangeSplitsTotal.Inc()
	stats.splits.Add(1)

	f.logger.Debug().
		Stringer("range", rng).
		Int("depth", depth).
		Int("events", len(events)).
		Stringer("left", left).
		Stringer("right", right).
		Msg("Response reached truncation cap; splitting range")

	leftEvents, rightEvents, err := f.fetchHalves(ctx, left, right, depth+1, stats)
	if err != nil {
		return nil, err
	}
	return append(leftEvents, rightEvents...), nil
}

// fetchHalves fetches both halves, concurrently unless MaxConcurrency is 1.
// Each branch owns its result slice; nothing is shared between them.
func (f *RangeFetcher) fetchHalves(ctx context.Context, left, right calendar.DateRange, depth int, stats *fetchStats) ([]calendar.Event, []calendar.Event, error) {
	if f.config.MaxConcurrency == 1 {
		leftEvents, err := f.fetchRange(ctx, left, depth, stats)
		if err != nil {
			return nil, nil, err
		}
		rightEvents, err := f.fetchRange(ctx, right, depth, stats)
		if err != nil {
			return nil, nil, err
		}
		return leftEvents, rightEvents, nil
	}

	var leftEvents, rightEvents []calendar.Event
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		leftEvents, err = f.fetchRange(gctx, left, depth, stats)
		return err
	})
	g.Go(func() error {
		var err error
		rightEvents, err = f.fetchRange(gctx, right, depth, stats)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return leftEvents, rightEvents, nil
}

// fetchOne calls the source while holding a concurrency slot. The slot is
// released before any recursion so parents never block their children.
func (f *RangeFetcher) fetchOne(ctx context.Context, rng calendar.DateRange, stats *fetchStats) ([]calendar.Event, error) {
	if err := f.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer f.sem.Release(1)

	stats.requests.Add(1)
	return f.source.FetchRange(ctx, rng)
}
