// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package redis provides a managed client for the shared cache tier.

Core Responsibilities:

  - Pooling: Bounds connections and how long a caller may wait for one.
  - Speed: Short read/write deadlines so a sick Redis degrades quickly
    instead of stalling identity lookups.
  - Startup: Validates connectivity before the server starts accepting traffic.
*/
package redis

import (
	stdctx "context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// Opiniated default timeouts for Redis operations.
const (
	dialTimeout  = 3 * time.Second
	readTimeout  = 500 * time.Millisecond
	writeTimeout = 500 * time.Millisecond
	poolTimeout  = time.Second
	pingTimeout  = 2 * time.Second
)

// Options controls the connection pool.
type Options struct {
	URL      string
	PoolSize int
}

// NewClient parses a Redis URL and returns a ready-to-use client.
//
// # Parameters
//   - context: Context for the initial ping.
//   - opts: Connection URL and pool size.
//   - logger: Structured logger for connection events.
func NewClient(context stdctx.Context, opts Options, logger *slog.Logger) (*redis.Client, error) {
	client, err := Open(opts)
	if err != nil {
		return nil, err
	}

	// Validate connectivity immediately at startup.
	if err := Ping(context, client); err != nil {
		_ = client.Close()
		return nil, err
	}

	logger.Info("redis client connected",
		slog.String("addr", client.Options().Addr),
		slog.Int("pool_size", client.Options().PoolSize),
	)

	return client, nil
}

// Open builds a client without contacting the server.
func Open(opts Options) (*redis.Client, error) {
	options, err := redis.ParseURL(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("redis: invalid URL: %w", err)
	}

	// Pool configuration Tuning
	options.PoolSize = opts.PoolSize
	if options.PoolSize <= 0 {
		options.PoolSize = 10
	}
	options.MinIdleConns = 2
	options.MaxIdleConns = max(options.PoolSize/2, options.MinIdleConns)
	options.PoolTimeout = poolTimeout

	options.DialTimeout = dialTimeout
	options.ReadTimeout = readTimeout
	options.WriteTimeout = writeTimeout

	// Honor the per-call deadline set by the cache store.
	options.ContextTimeoutEnabled = true

	// A failing cache is bypassed by callers, retrying here only adds latency.
	options.MaxRetries = -1

	return redis.NewClient(options), nil
}

// Ping verifies that the Redis client is healthy.
func Ping(context stdctx.Context, client *redis.Client) error {
	pingCtx, cancel := stdctx.WithTimeout(context, pingTimeout)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		return fmt.Errorf("redis: ping failed: %w", err)
	}

	return nil
}
