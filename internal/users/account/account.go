// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package account handles profile management for local accounts.

Users view and edit their own profile, and administrators list and deactivate
accounts. Every read and write goes through the cached user repository of the
auth package, so profile edits invalidate the same cache entries that login
and reconciliation read.

# Architecture

  - Entities: the auth package's User; this package adds no tables.
  - Domain: Email changes reset verification; a provider must vouch again.
*/
package account

import (
	"context"

	"github.com/taibuivan/yomira-identity/internal/users/auth"
)

// # Repository Contracts

// AccountRepository is the subset of [auth.UserRepository] profile management needs.
type AccountRepository interface {
	/*
		FindByID retrieves an active user record.

		Parameters:
		  - context: context.Context
		  - id: string (UUID)

		Returns:
		  - *auth.User: Loaded account entity
		  - error: apperr.NotFound or storage failures
	*/
	FindByID(context context.Context, id string) (*auth.User, error)

	/*
		Update modifies the mutable profile fields of an existing user.

		Parameters:
		  - context: context.Context
		  - user: *auth.User (Hydrated entity with changes)

		Returns:
		  - error: apperr.Conflict when the new email is taken, or storage failures
	*/
	Update(context context.Context, user *auth.User) error

	// SoftDelete flags an account as deactivated.
	SoftDelete(context context.Context, id string) error

	// List returns one page of active accounts and the total count.
	List(context context.Context, offset, limit int) ([]*auth.User, int, error)
}

var _ AccountRepository = (auth.UserRepository)(nil)

// # Inputs

// UpdateProfileInput defines the mutable subset of user profile fields.
// Nil fields are left unchanged.
type UpdateProfileInput struct {
	DisplayName *string
	Email       *string
}
