// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package dberr provides a bridge between low-level database errors and
// higher-level application errors.
package dberr

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/taibuivan/yomira-identity/internal/platform/apperr"
)

// uniqueViolation is the PostgreSQL SQLSTATE for a unique constraint failure.
const uniqueViolation = "23505"

// Wrap inspects a database error and classifies it into an [apperr.AppError].
// It hides internal database details from the client while keeping the cause
// for server-side logging.
//
//   - pgx.ErrNoRows                 -> NOT_FOUND (resource named by the caller)
//   - SQLSTATE 23505                -> CONFLICT
//   - connect / network failures    -> STORE_UNAVAILABLE
//   - anything else                 -> INTERNAL_ERROR
//
// Caller cancellation and caller deadlines are returned unchanged. Pool
// exhaustion is classified by the worker pool before it reaches Wrap.
func Wrap(err error, resource string) error {
	if err == nil {
		return nil
	}

	// Already classified (e.g. by the worker pool).
	if apperr.IsAppError(err) {
		return err
	}

	// The caller's context ended; that is not a storage failure. This must
	// precede the net.Error check, which a deadline also satisfies.
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.NotFound(resource)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		conflict := apperr.Conflict(fmt.Sprintf("%s already exists", resource))
		conflict.Cause = err
		return conflict
	}

	var connectErr *pgconn.ConnectError
	var netErr net.Error
	if errors.As(err, &connectErr) || errors.As(err, &netErr) || pgconn.SafeToRetry(err) {
		return apperr.StoreUnavailable(err)
	}

	return apperr.Internal(err)
}

// ConstraintName returns the violated constraint for a unique-violation error,
// or an empty string for any other error.
func ConstraintName(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return pgErr.ConstraintName
	}
	return ""
}
