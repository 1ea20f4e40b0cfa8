package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/Sternrassler/socs-calendar-client/internal/config"
	"github.com/Sternrassler/socs-calendar-client/pkg/calendar"
	"github.com/Sternrassler/socs-calendar-client/pkg/client"
	"github.com/Sternrassler/socs-calendar-client/pkg/logging"
	"github.com/Sternrassler/socs-calendar-client/pkg/metrics"
	"github.com/Sternrassler/socs-calendar-client/pkg/store"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(root *rootOptions) *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve SOCS events over HTTP",
		Long: `Start an HTTP server exposing:

  GET /events?start=YYYY-MM-DD&end=YYYY-MM-DD  merged events as JSON
  GET /health                                  liveness
  GET /ready                                   readiness (pings Redis when configured)
  GET /metrics                                 Prometheus metrics

With redis_url set, results are kept in Redis for cache_ttl. With refresh set,
the horizon is re-fetched on that cron schedule.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.loadConfig()
			if err != nil {
				return err
			}
			if listen != "" {
				cfg.Listen = listen
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cfg)
		},
	}

	cmd.Flags().StringVar(&listen, "listen", "", "HTTP listen address (overrides config)")
	return cmd
}

// server serves fetched calendars. store may be nil.
type server struct {
	client   *client.Client
	store    *store.Manager
	endpoint string
	flags    string
	ttl      time.Duration
	horizon  int
	logger   zerolog.Logger
}

func newServer(cfg *config.Config, socsClient *client.Client, resultStore *store.Manager) *server {
	return &server{
		client:   socsClient,
		store:    resultStore,
		endpoint: cfg.Endpoint,
		flags:    socsClient.Config().Flags.String(),
		ttl:      cfg.CacheTTL,
		horizon:  cfg.HorizonDays,
		logger:   logging.NewLogger("socs-proxy"),
	}
}

func runServe(ctx context.Context, cfg *config.Config) error {
	logger := logging.NewLogger("socs-proxy")

	clientCfg, err := cfg.ClientConfig()
	if err != nil {
		return err
	}
	socsClient, err := client.New(clientCfg)
	if err != nil {
		return fmt.Errorf("create SOCS client: %w", err)
	}
	defer socsClient.Close()

	var resultStore *store.Manager
	redisOpts, err := cfg.RedisOptions()
	if err != nil {
		return err
	}
	if redisOpts != nil {
		redisClient := redis.NewClient(redisOpts)
		defer redisClient.Close()

		if err := redisClient.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("connect to Redis at %s: %w", redisOpts.Addr, err)
		}
		logger.Info().Str("addr", redisOpts.Addr).Msg("Connected to Redis")
		resultStore = store.NewManager(redisClient)
	}

	s := newServer(cfg, socsClient, resultStore)

	if cfg.Refresh != "" {
		if resultStore == nil {
			logger.Warn().Msg("refresh schedule ignored: no redis_url configured")
		} else {
			scheduler := cron.New()
			if _, err := scheduler.AddFunc(cfg.Refresh, func() { s.refresh(ctx) }); err != nil {
				return fmt.Errorf("schedule refresh: %w", err)
			}
			scheduler.Start()
			defer func() { <-scheduler.Stop().Done() }()
			logger.Info().Str("schedule", cfg.Refresh).Int("horizon_days", cfg.HorizonDays).Msg("Scheduled refresh enabled")
		}
	}

	httpServer := &http.Server{
		Addr:              cfg.Listen,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().
			Str("addr", cfg.Listen).
			Str("endpoint", logging.RedactURL(cfg.Endpoint)).
			Str("user_agent", cfg.UserAgent).
			Msg("Starting SOCS calendar server")
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	logger.Info().Msg("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

func (s *server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", healthHandler)
	mux.HandleFunc("GET /ready", s.readyHandler)
	mux.Handle("GET /metrics", metrics.Handler())
	mux.HandleFunc("GET /events", s.eventsHandler)
	return mux
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "OK")
}

func (s *server) readyHandler(w http.ResponseWriter, r *http.Request) {
	if s.store != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.store.Ping(ctx); err != nil {
			http.Error(w, "redis unavailable", http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "READY")
}

// eventsResponse is the /events payload.
type eventsResponse struct {
	Range     calendar.DateRange `json:"range"`
	Events    []calendar.Event   `json:"events"`
	FetchedAt time.Time          `json:"fetched_at"`
	Cached    bool               `json:"cached"`
}

func (s *server) eventsHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	rng, err := parseRange(q.Get("start"), q.Get("end"), s.horizon)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	key := s.key(rng)
	if s.store != nil {
		entry, err := s.store.Get(r.Context(), key)
		switch {
		case err == nil:
			writeJSON(w, eventsResponse{Range: rng, Events: entry.Events, FetchedAt: entry.FetchedAt, Cached: true})
			return
		case !errors.Is(err, store.ErrMiss):
			s.logger.Warn().Err(err).Stringer("range", rng).Msg("Result store read failed; fetching live")
		}
	}

	entry, err := s.fetchAndStore(r.Context(), rng)
	if err != nil {
		http.Error(w, fmt.Sprintf("SOCS fetch failed: %v", err), http.StatusBadGateway)
		return
	}
	writeJSON(w, eventsResponse{Range: rng, Events: entry.Events, FetchedAt: entry.FetchedAt})
}

// fetchAndStore fetches rng and, when a store is configured, saves the result.
// Store failures are logged and do not fail the fetch.
func (s *server) fetchAndStore(ctx context.Context, rng calendar.DateRange) (*store.Entry, error) {
	events, err := s.client.FetchEvents(ctx, rng)
	if err != nil {
		return nil, err
	}
	if events == nil {
		events = []calendar.Event{}
	}

	entry := store.NewEntry(rng, events, s.ttl)
	if s.store != nil {
		if err := s.store.Set(ctx, s.key(rng), entry); err != nil {
			s.logger.Warn().Err(err).Stringer("range", rng).Msg("Result store write failed")
		}
	}
	return entry, nil
}

// refresh re-fetches the configured horizon into the store.
func (s *server) refresh(ctx context.Context) {
	rng := horizon(s.horizon)
	start := time.Now()

	entry, err := s.fetchAndStore(ctx, rng)
	if err != nil {
		s.logger.Error().Err(err).Stringer("range", rng).Msg("Scheduled refresh failed")
		return
	}
	s.logger.Info().
		Stringer("range", rng).
		Int("events", len(entry.Events)).
		Dur("duration", time.Since(start)).
		Msg("Scheduled refresh complete")
}

func (s *server) key(rng calendar.DateRange) store.Key {
	return store.Key{Endpoint: s.endpoint, Range: rng, Flags: s.flags}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
