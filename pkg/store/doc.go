// Package store keeps finished SOCS fetch results in Redis.
//
// The store holds only complete, merged results of a top-level fetch. The
// range fetcher never reads from it: every sub-range request during a fetch
// goes to SOCS, so a cached answer can never be mixed into a fresh split.
//
// # Basic Usage
//
//	redisClient := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
//	manager := store.NewManager(redisClient)
//
//	key := store.Key{Endpoint: endpoint, Range: rng, Flags: flags.String()}
//
//	entry, err := manager.Get(ctx, key)
//	if errors.Is(err, store.ErrMiss) {
//		events, err := socsClient.FetchEvents(ctx, rng)
//		// ...
//		_ = manager.Set(ctx, key, store.NewEntry(rng, events, 15*time.Minute))
//	}
//
// # Keys
//
// Endpoints carry the school's API key, so keys embed a truncated SHA-256 of
// the endpoint instead of the endpoint itself:
//
//	socs:events:<sha256(endpoint)[:16]>:<start>:<end>:<flags>
//
// # Metrics
//
//   - socs_store_hits_total - Store hits
//   - socs_store_misses_total - Store misses (absent or expired)
//   - socs_store_errors_total{operation} - Redis or codec errors
//   - socs_store_entry_bytes - Size of stored entries
package store
