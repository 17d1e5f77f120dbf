// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package dberr_test

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/yomira-identity/internal/platform/apperr"
	"github.com/taibuivan/yomira-identity/internal/platform/dberr"
)

/*
TestWrap_Classification verifies each storage failure maps to its error kind.
*/
func TestWrap_Classification(t *testing.T) {
	uniqueErr := &pgconn.PgError{Code: "23505", ConstraintName: "users_email_active_key"}

	tests := []struct {
		name string
		err  error
		want *apperr.AppError
	}{
		{"no_rows", pgx.ErrNoRows, apperr.ErrNotFound},
		{"wrapped_no_rows", fmt.Errorf("scan: %w", pgx.ErrNoRows), apperr.ErrNotFound},
		{"unique_violation", uniqueErr, apperr.ErrConflict},
		{"network_error", &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}, apperr.ErrStoreUnavailable},
		{"unknown", errors.New("syntax error"), &apperr.AppError{Code: apperr.CodeInternal}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := dberr.Wrap(tt.err, "User")
			require.Error(t, got)
			assert.ErrorIs(t, got, tt.want)
		})
	}
}

/*
TestWrap_PassThrough verifies nil, an ended caller context and pre-classified errors are kept.
*/
func TestWrap_PassThrough(t *testing.T) {
	assert.NoError(t, dberr.Wrap(nil, "User"))
	assert.ErrorIs(t, dberr.Wrap(context.Canceled, "User"), context.Canceled)

	// A caller deadline is neither pool exhaustion nor an unreachable store.
	deadline := dberr.Wrap(fmt.Errorf("query: %w", context.DeadlineExceeded), "User")
	assert.ErrorIs(t, deadline, context.DeadlineExceeded)
	assert.False(t, apperr.IsAppError(deadline))

	exhausted := apperr.ResourceExhausted(errors.New("pool"))
	assert.Same(t, exhausted, dberr.Wrap(exhausted, "User"))
}

/*
TestConstraintName extracts the constraint only from unique violations.
*/
func TestConstraintName(t *testing.T) {
	err := fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505", ConstraintName: "identities_provider_key"})
	assert.Equal(t, "identities_provider_key", dberr.ConstraintName(err))
	assert.Empty(t, dberr.ConstraintName(errors.New("boom")))
}
