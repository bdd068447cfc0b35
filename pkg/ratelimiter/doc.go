// Package ratelimiter provides token bucket rate limiting with a pluggable
// Store. The relay uses it to throttle Send packets per connection.
//
//	store := ratelimiter.NewMemoryStore()
//	limiter, err := ratelimiter.NewBucket(store, ratelimiter.Config{
//		Capacity:       20,
//		RefillRate:     10,
//		RefillInterval: time.Second,
//	})
//
//	res, err := limiter.Allow(ctx, connID)
//	if err == nil && !res.Allowed() {
//		wait := res.RetryAfter()
//	}
//
// MemoryStore removes buckets that were not touched for a while; run its
// cleanup with Start or, under errgroup, Run.
package ratelimiter
