// Package cache provides a generic, thread-safe TTL cache with built-in
// statistics and optional Prometheus metrics.
//
// # Overview
//
// The package exposes one real implementation and one stand-in:
//
//   - TTL: entries expire after a time-to-live; a background goroutine
//     sweeps expired entries on a cleanup interval
//   - Noop: always misses; returned when caching is disabled by config
//
// The middleware's fusion coordinator uses a TTL cache as its dedupe
// window: after a pose/mask pair combines, the correlation key is cached
// so late duplicates are answered locally instead of round-tripping to
// the slot store. Entries lapse on their own. A cache miss is never an
// error; it only means the next arrival takes the slow path.
//
// # Quick Start
//
//	cache, err := cache.NewTTL[struct{}](ctx, 30*time.Second, 5*time.Second)
//	if err != nil {
//		return err
//	}
//	defer cache.Close()
//
//	cache.Set("cam-1.42.person-7", struct{}{})
//	_, seen := cache.Get("cam-1.42.person-7")
//
// From configuration, with disabled falling back to Noop:
//
//	cache, err := cache.NewFromConfig[struct{}](ctx, cfg.Dedupe,
//		cache.WithMetrics[struct{}](registry, "dedupe"),
//	)
//
// # Observability
//
// Statistics are always collected with atomic counters and are available
// via Stats(); they carry computed values (hit ratio, requests/sec) that
// raw Prometheus counters do not. Prometheus export is opt-in through
// WithMetrics(), which registers hit/miss/set/delete/eviction counters
// and a size gauge under the visionmw_cache_* names with a component
// label.
//
// Both track independently: statistics stay available in tests and
// minimal deployments with no Prometheus wiring, and they are an order
// of magnitude cheaper to read back than gathering a registry.
//
// # Thread Safety
//
// All operations are safe for concurrent use. Reads take an RWMutex read
// lock, writes serialize on the mutex, statistics are lock-free, and
// eviction callbacks run outside locks to prevent deadlocks.
//
// # Context and Cleanup
//
// The TTL cache runs one background cleanup goroutine. Pass a context
// that is canceled when the cache should stop, or call Close(), which
// waits for the goroutine to exit.
package cache
