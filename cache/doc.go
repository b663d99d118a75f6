// Package cache provides a bounded, TTL based in-memory store and the key
// helpers used to address it.
//
// # Overview
//
// The package exports:
//
//   - Store: a capacity-bounded key/value store with per-entry TTL
//   - CacheService: the read-through interface shared with other backends
//   - KeySerializer and GenerateKey: stable key construction from arguments and filters
//
// # Basic Usage
//
//	store, err := cache.NewStore(cache.Config{Name: "package", MaxSize: 1000, DefaultTTL: 2 * time.Minute})
//	if err != nil {
//		return err
//	}
//
//	key := cache.GenerateKey("packages:list", filter)
//	page, err := cache.GetOrCompute(ctx, store, key, 0, func(ctx context.Context) (Page, error) {
//		return optimizer.SearchPackages(ctx, filter)
//	})
//
// # Expiry and Eviction
//
// An entry is stale once more than its TTL has elapsed since it was stored.
// Stale entries are removed lazily when read and in bulk by CleanupExpired,
// which is meant to run on a timer independent of traffic. Stats never
// removes anything so monitoring does not alter the store.
//
// When a new key is written to a full store the entry with the oldest store
// time is evicted first. Ties are broken by insertion order.
//
// # Compute Failures
//
// GetOrCompute never caches an error. The error returned by the compute
// function reaches the caller unchanged and the key keeps whatever value it
// held before the call.
//
// By default concurrent misses on the same key each run their own compute
// function. Setting Config.SingleFlight shares one in-flight call between
// them instead.
//
// # Key Serialization
//
// GenerateKey writes maps with sorted keys and struct fields in name order
// and skips unset options, so
//
//	cache.GenerateKey("p", map[string]any{"a": 1, "b": 2}) == cache.GenerateKey("p", map[string]any{"b": 2, "a": 1})
//
// Function arguments are rendered by pointer and are only stable within a
// single process.
package cache
