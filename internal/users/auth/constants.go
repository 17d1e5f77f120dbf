// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

// # Reconciliation Constraints

const (
	// reconcileAttempts bounds the resolution loop: the first attempt plus one
	// retry after a uniqueness conflict from a concurrent login.
	reconcileAttempts = 2

	// TokenType is reported alongside issued tokens.
	TokenType = "Bearer"
)

// DefaultTrustedProviders are the providers whose email_verified flag is honored.
var DefaultTrustedProviders = []string{"google", "facebook"}

// # Log Events

const (
	eventAuthenticationFailed = "authentication_failed"
	eventReconcileConflict    = "reconcile_conflict"
	eventCacheDegraded        = "cache_degraded"
	eventCacheFillSkipped     = "cache_fill_skipped"
)

// # Authentication Failure Reasons

// Internal-only reasons; callers always see the single AUTHENTICATION_FAILED error.
const (
	reasonUnknownUser   = "unknown_user"
	reasonNoPassword    = "no_password"
	reasonMismatch      = "mismatch"
	reasonMalformedHash = "malformed_hash"
)
