// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/taibuivan/yomira-identity/internal/platform/apperr"
	"github.com/taibuivan/yomira-identity/internal/platform/workerpool"
)

// DefaultCallTimeout caps a single Redis round trip when none is configured.
const DefaultCallTimeout = 250 * time.Millisecond

// fillScript sets KEYS[1] only while the generation counter KEYS[2] equals ARGV[2].
var fillScript = redis.NewScript(`
local current = redis.call('GET', KEYS[2])
if (current or '0') ~= ARGV[2] then
	return 0
end
redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[3])
return 1
`)

// RedisStore is a [Store] backed by Redis.
type RedisStore struct {
	client      *redis.Client
	pool        *workerpool.Pool
	callTimeout time.Duration
}

// NewRedisStore wraps a Redis client. Every call is dispatched through pool,
// which must not be shared with the database, and is cut off after callTimeout.
func NewRedisStore(client *redis.Client, pool *workerpool.Pool, callTimeout time.Duration) *RedisStore {
	if callTimeout <= 0 {
		callTimeout = DefaultCallTimeout
	}
	return &RedisStore{client: client, pool: pool, callTimeout: callTimeout}
}

// Get implements [Store].
func (store *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	value, err := call(ctx, store, func(ctx context.Context) ([]byte, error) {
		return store.client.Get(ctx, key).Bytes()
	})
	if errors.Is(err, redis.Nil) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, unavailable(ctx, err)
	}

	return value, nil
}

// Generation implements [Store].
func (store *RedisStore) Generation(ctx context.Context, key string) (int64, error) {
	generation, err := call(ctx, store, func(ctx context.Context) (int64, error) {
		return store.client.Get(ctx, generationKey(key)).Int64()
	})
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, unavailable(ctx, err)
	}

	return generation, nil
}

// Fill implements [Store].
func (store *RedisStore) Fill(ctx context.Context, key string, value []byte, ttl time.Duration, generation int64) (bool, error) {
	stored, err := call(ctx, store, func(ctx context.Context) (int64, error) {
		return fillScript.Run(ctx, store.client,
			[]string{key, generationKey(key)},
			value, generation, ttl.Milliseconds(),
		).Int64()
	})
	if err != nil {
		return false, unavailable(ctx, err)
	}

	return stored == 1, nil
}

// Invalidate implements [Store].
func (store *RedisStore) Invalidate(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}

	_, err := call(ctx, store, func(ctx context.Context) ([]redis.Cmder, error) {
		return store.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, keys...)
			for _, key := range keys {
				pipe.Incr(ctx, generationKey(key))
				pipe.PExpire(ctx, generationKey(key), GenerationTTL)
			}
			return nil
		})
	})
	return unavailable(ctx, err)
}

// call runs fn on the store's pool under the per-call timeout.
func call[T any](ctx context.Context, store *RedisStore, fn func(ctx context.Context) (T, error)) (T, error) {
	callCtx, cancel := context.WithTimeout(ctx, store.callTimeout)
	defer cancel()

	return workerpool.Submit(callCtx, store.pool, fn)
}

// unavailable classifies a Redis failure. Cancellation by the caller passes
// through untouched; anything else, the call timeout included, is CACHE_UNAVAILABLE.
func unavailable(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
		return err
	}
	return apperr.CacheUnavailable(err)
}
