//go:build integration

package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupRedis starts a Redis container and returns a client
func setupRedis(t *testing.T) (*redis.Client, func()) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}

	redisContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}

	endpoint, err := redisContainer.Endpoint(ctx, "")
	if err != nil {
		t.Fatalf("Failed to get Redis endpoint: %v", err)
	}

	client := redis.NewClient(&redis.Options{
		Addr: endpoint,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		t.Fatalf("Failed to connect to Redis: %v", err)
	}

	cleanup := func() {
		client.Close()
		redisContainer.Terminate(ctx)
	}

	return client, cleanup
}

func TestManager_Integration_RoundTrip(t *testing.T) {
	client, cleanup := setupRedis(t)
	defer cleanup()

	manager := NewManager(client)
	ctx := context.Background()
	key := Key{Endpoint: testEndpoint, Range: janRange, Flags: "f"}

	if err := manager.Ping(ctx); err != nil {
		t.Fatalf("Ping() failed: %v", err)
	}
	if err := manager.Set(ctx, key, NewEntry(janRange, sampleEvents(), time.Minute)); err != nil {
		t.Fatalf("Set() failed: %v", err)
	}

	got, err := manager.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if len(got.Events) != 2 {
		t.Errorf("Expected 2 events, got %d", len(got.Events))
	}

	ttl := client.TTL(ctx, key.String()).Val()
	if ttl <= 0 || ttl > time.Minute {
		t.Errorf("Redis TTL = %v, want (0, 1m]", ttl)
	}
}

func TestManager_Integration_Expiry(t *testing.T) {
	client, cleanup := setupRedis(t)
	defer cleanup()

	manager := NewManager(client)
	ctx := context.Background()
	key := Key{Endpoint: testEndpoint, Range: janRange}

	if err := manager.Set(ctx, key, NewEntry(janRange, sampleEvents(), 1500*time.Millisecond)); err != nil {
		t.Fatalf("Set() failed: %v", err)
	}

	time.Sleep(2 * time.Second)

	if _, err := manager.Get(ctx, key); !errors.Is(err, ErrMiss) {
		t.Errorf("Expected ErrMiss after expiry, got %v", err)
	}
}
