// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package cache

import (
	"context"
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// MemoryStore is a process-local [Store]. Entries are not shared between replicas.
type MemoryStore struct {
	// mu orders fills against invalidations; plain reads do not take it.
	mu          sync.Mutex
	entries     *ttlcache.Cache[string, []byte]
	generations *ttlcache.Cache[string, int64]
}

// NewMemoryStore starts an in-process cache. capacity <= 0 means unbounded.
func NewMemoryStore(capacity uint64) *MemoryStore {
	options := []ttlcache.Option[string, []byte]{
		// Hits must not extend an entry's life past its TTL.
		ttlcache.WithDisableTouchOnHit[string, []byte](),
	}
	if capacity > 0 {
		options = append(options, ttlcache.WithCapacity[string, []byte](capacity))
	}

	entries := ttlcache.New[string, []byte](options...)
	generations := ttlcache.New[string, int64](
		ttlcache.WithTTL[string, int64](GenerationTTL),
		ttlcache.WithDisableTouchOnHit[string, int64](),
	)
	go entries.Start()
	go generations.Start()

	return &MemoryStore{entries: entries, generations: generations}
}

// Get implements [Store].
func (store *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	item := store.entries.Get(key)
	if item == nil || item.IsExpired() {
		return nil, ErrMiss
	}

	return append([]byte(nil), item.Value()...), nil
}

// Generation implements [Store].
func (store *MemoryStore) Generation(_ context.Context, key string) (int64, error) {
	store.mu.Lock()
	defer store.mu.Unlock()

	return store.generation(key), nil
}

// Fill implements [Store].
func (store *MemoryStore) Fill(_ context.Context, key string, value []byte, ttl time.Duration, generation int64) (bool, error) {
	store.mu.Lock()
	defer store.mu.Unlock()

	if store.generation(key) != generation {
		return false, nil
	}

	store.entries.Set(key, append([]byte(nil), value...), ttl)
	return true, nil
}

// Invalidate implements [Store].
func (store *MemoryStore) Invalidate(_ context.Context, keys ...string) error {
	store.mu.Lock()
	defer store.mu.Unlock()

	for _, key := range keys {
		store.entries.Delete(key)
		store.generations.Set(key, store.generation(key)+1, ttlcache.DefaultTTL)
	}
	return nil
}

// Close stops the expiry loops.
func (store *MemoryStore) Close() {
	store.entries.Stop()
	store.generations.Stop()
}

// generation reads the counter for key. Callers hold mu.
func (store *MemoryStore) generation(key string) int64 {
	item := store.generations.Get(key)
	if item == nil || item.IsExpired() {
		return 0
	}
	return item.Value()
}
