// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package workerpool_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/yomira-identity/internal/platform/apperr"
	"github.com/taibuivan/yomira-identity/internal/platform/workerpool"
)

/*
TestSubmit_ReturnsValue verifies values and errors flow back to the caller.
*/
func TestSubmit_ReturnsValue(t *testing.T) {
	pool := workerpool.New(2, time.Second)

	value, err := workerpool.Submit(context.Background(), pool, func(ctx context.Context) (string, error) {
		return "done", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "done", value)

	boom := errors.New("boom")
	err = pool.Do(context.Background(), func(ctx context.Context) error { return boom })
	assert.ErrorIs(t, err, boom)
}

/*
TestSubmit_BoundsConcurrency verifies no more than Size calls run at once.
*/
func TestSubmit_BoundsConcurrency(t *testing.T) {
	const size = 3
	pool := workerpool.New(size, 5*time.Second)

	var running, peak atomic.Int64
	var wg sync.WaitGroup

	for i := 0; i < 12; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = pool.Do(context.Background(), func(ctx context.Context) error {
				current := running.Add(1)
				for {
					observed := peak.Load()
					if current <= observed || peak.CompareAndSwap(observed, current) {
						break
					}
				}
				time.Sleep(10 * time.Millisecond)
				running.Add(-1)
				return nil
			})
		}()
	}

	wg.Wait()
	assert.LessOrEqual(t, peak.Load(), int64(size))
	assert.Equal(t, 0, pool.InFlight())
}

/*
TestSubmit_CheckoutTimeout verifies pool exhaustion is RESOURCE_EXHAUSTED.
*/
func TestSubmit_CheckoutTimeout(t *testing.T) {
	pool := workerpool.New(1, 20*time.Millisecond)

	release := make(chan struct{})
	started := make(chan struct{})
	go func() {
		_ = pool.Do(context.Background(), func(ctx context.Context) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	err := pool.Do(context.Background(), func(ctx context.Context) error { return nil })
	assert.ErrorIs(t, err, apperr.ErrResourceExhausted)

	close(release)
}

/*
TestSubmit_CallerCancellation verifies the waiter returns on cancellation while the call finishes.
*/
func TestSubmit_CallerCancellation(t *testing.T) {
	pool := workerpool.New(1, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	finished := make(chan struct{})

	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	err := pool.Do(ctx, func(ctx context.Context) error {
		time.Sleep(50 * time.Millisecond)
		close(finished)
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)

	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("pooled call did not run to completion")
	}

	// The slot is eventually released.
	require.Eventually(t, func() bool { return pool.InFlight() == 0 }, time.Second, 5*time.Millisecond)
}
