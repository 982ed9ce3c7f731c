// Package cache provides the persistent response cache used by the catalog fetcher.
//
// The cache is a pure memoization of GET responses keyed by the exact request
// URL. Entries are never evicted by this package; their lifecycle belongs to
// the backing store.
//
// # Backends
//
//   - MemoryStore: process-local map, used by tests and short-lived tools
//   - RedisStore: shared cache across processes (go-redis)
//   - SQLiteStore: file-backed cache for the CLI (modernc.org/sqlite)
//
// Any backend can be wrapped in Compressed to store zstd-encoded bodies.
//
// # Basic Usage
//
//	redisClient := redis.NewClient(&redis.Options{
//		Addr: "localhost:6379",
//	})
//
//	store := cache.NewCompressed(cache.NewRedisStore(redisClient))
//
//	body, err := store.Get(ctx, url)
//	if errors.Is(err, cache.ErrCacheMiss) {
//		// fetch from the API, then
//		_ = store.Set(ctx, url, body)
//	}
//
// # Metrics
//
//   - catalog_cache_hits_total{backend} - Cache hits
//   - catalog_cache_misses_total{backend} - Cache misses
//   - catalog_cache_stored_bytes_total{backend} - Bytes written
//   - catalog_cache_errors_total{backend, operation} - Cache operation errors
package cache
