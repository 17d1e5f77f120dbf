// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package workerpool bounds the number of blocking store and cache calls in flight.

Request goroutines never talk to PostgreSQL or Redis directly; they hand the call
to a [Pool] and wait for its result (or for their own context to end).

Core Responsibilities:

  - Bounding: At most Size calls run at once across the whole process.
  - Checkout: Waiting for a free slot is capped by a timeout; running out of
    slots is a retriable RESOURCE_EXHAUSTED error, never a crash.
  - Cancellation: A caller whose context ends stops waiting immediately. The
    call itself keeps its slot until it returns, so a committed write is never
    half-undone by cancellation.
*/
package workerpool

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/taibuivan/yomira-identity/internal/platform/apperr"
)

// Defaults used when the configuration supplies non-positive values.
const (
	DefaultSize            = 32
	DefaultCheckoutTimeout = 2 * time.Second
)

// Pool is a bounded executor for blocking calls.
type Pool struct {
	slots           *semaphore.Weighted
	size            int64
	checkoutTimeout time.Duration
	inFlight        atomic.Int64
}

// New creates a Pool with the given number of slots and checkout timeout.
func New(size int, checkoutTimeout time.Duration) *Pool {
	if size <= 0 {
		size = DefaultSize
	}
	if checkoutTimeout <= 0 {
		checkoutTimeout = DefaultCheckoutTimeout
	}

	return &Pool{
		slots:           semaphore.NewWeighted(int64(size)),
		size:            int64(size),
		checkoutTimeout: checkoutTimeout,
	}
}

// Size returns the number of slots.
func (pool *Pool) Size() int { return int(pool.size) }

// InFlight returns the number of calls currently holding a slot.
func (pool *Pool) InFlight() int { return int(pool.inFlight.Load()) }

// Do runs fn on a pooled slot and waits for it.
func (pool *Pool) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	_, err := Submit(ctx, pool, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// result carries a finished call back to its waiter.
type result[T any] struct {
	value T
	err   error
}

// Submit runs fn on a pooled slot and returns its value.
//
// # Errors
//   - RESOURCE_EXHAUSTED if no slot frees up within the checkout timeout.
//   - ctx.Err() if the caller's context ends first (while waiting or running).
//   - Otherwise whatever fn returned.
func Submit[T any](ctx context.Context, pool *Pool, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	if err := pool.checkout(ctx); err != nil {
		return zero, err
	}

	done := make(chan result[T], 1)
	pool.inFlight.Add(1)

	go func() {
		defer func() {
			pool.inFlight.Add(-1)
			pool.slots.Release(1)
		}()

		value, err := fn(ctx)
		done <- result[T]{value: value, err: err}
	}()

	select {
	case outcome := <-done:
		return outcome.value, outcome.err
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// checkout acquires a slot, distinguishing pool exhaustion from caller cancellation.
func (pool *Pool) checkout(ctx context.Context) error {
	checkoutCtx, cancel := context.WithTimeout(ctx, pool.checkoutTimeout)
	defer cancel()

	if err := pool.slots.Acquire(checkoutCtx, 1); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return apperr.ResourceExhausted(fmt.Errorf("workerpool: no free slot after %s: %w", pool.checkoutTimeout, err))
		}
		return fmt.Errorf("workerpool: checkout failed: %w", err)
	}

	return nil
}
