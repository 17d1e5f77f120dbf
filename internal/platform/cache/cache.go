// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package cache defines the byte-level key/value store behind the cache-aside layer.

Two implementations are provided:

  - [RedisStore]: the shared cache tier, dispatched through its own worker pool.
  - [MemoryStore]: an in-process TTL cache for single-node deployments and tests.

A Store is never authoritative. Every failure other than a plain miss is
reported as CACHE_UNAVAILABLE so callers can fall back to the database.

# Generations

Every key carries an invalidation generation. [Store.Invalidate] removes the
entry and advances the generation; [Store.Fill] writes only if the generation
still matches the one read before the value was loaded. A fill racing a
concurrent write therefore loses instead of caching the pre-write value.
*/
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrMiss is returned by Get when the key is absent or expired.
var ErrMiss = errors.New("cache: miss")

// GenerationTTL bounds how long an idle generation counter is kept. It must
// outlive any single load, otherwise a reset counter can admit a stale fill.
const GenerationTTL = 10 * time.Minute

// Store is a key/value cache with per-entry expiry and guarded fills.
type Store interface {
	// Get returns the stored bytes or [ErrMiss].
	Get(ctx context.Context, key string) ([]byte, error)

	// Generation returns the current invalidation generation of key. A key
	// that was never invalidated is at generation 0.
	Generation(ctx context.Context, key string) (int64, error)

	// Fill stores value under key for ttl only while key is still at
	// generation. It reports whether the value was stored.
	Fill(ctx context.Context, key string, value []byte, ttl time.Duration, generation int64) (bool, error)

	// Invalidate removes every given key and advances its generation.
	// Absent keys are not an error.
	Invalidate(ctx context.Context, keys ...string) error
}

// generationKey names the counter that guards key.
func generationKey(key string) string {
	return key + ":gen"
}
