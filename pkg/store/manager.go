package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Sternrassler/socs-calendar-client/pkg/logging"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

var (
	// ErrMiss indicates the requested key was not found or has expired.
	ErrMiss = errors.New("store miss")

	// ErrInvalidEntry indicates the stored entry is invalid or corrupted.
	ErrInvalidEntry = errors.New("invalid store entry")
)

// Manager handles result storage with a Redis backend.
type Manager struct {
	redis  *redis.Client
	logger zerolog.Logger
}

// NewManager creates a new store manager with Redis backend.
func NewManager(redisClient *redis.Client) *Manager {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	return &Manager{
		redis:  redisClient,
		logger: logging.NewLogger("result-store"),
	}
}

// Get retrieves an entry by key.
// Returns ErrMiss if the key doesn't exist or the entry is expired.
func (m *Manager) Get(ctx context.Context, key Key) (*Entry, error) {
	storeKey := key.String()

	data, err := m.redis.Get(ctx, storeKey).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			StoreMisses.Inc()
			m.logger.Debug().Stringer("range", key.Range).Msg("Store miss")
			return nil, ErrMiss
		}
		StoreErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		StoreErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}

	if entry.IsExpired() {
		_ = m.Delete(ctx, key)
		StoreMisses.Inc()
		return nil, ErrMiss
	}

	StoreHits.Inc()
	m.logger.Debug().
		Stringer("range", key.Range).
		Int("events", len(entry.Events)).
		Dur("age", entry.Age()).
		Msg("Store hit")

	return &entry, nil
}

// Set stores an entry with a TTL based on its Expires field.
// Already expired entries are not stored.
func (m *Manager) Set(ctx context.Context, key Key, entry *Entry) error {
	if entry == nil {
		return fmt.Errorf("store entry cannot be nil")
	}

	ttl := entry.TTL()
	if ttl <= 0 {
		return nil
	}

	data, err := json.Marshal(entry)
	if err != nil {
		StoreErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("marshal store entry: %w", err)
	}

	if err := m.redis.Set(ctx, key.String(), data, ttl).Err(); err != nil {
		StoreErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("redis set: %w", err)
	}

	StoreEntryBytes.Observe(float64(len(data)))
	return nil
}

// Delete removes an entry.
func (m *Manager) Delete(ctx context.Context, key Key) error {
	if err := m.redis.Del(ctx, key.String()).Err(); err != nil {
		StoreErrors.WithLabelValues("delete").Inc()
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// Ping checks the Redis connection.
func (m *Manager) Ping(ctx context.Context) error {
	return m.redis.Ping(ctx).Err()
}
