// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"
)

// # User Data Access

// UserRepository defines the data access contract for user accounts.
//
// Every write is a single-row statement. Failures are *apperr.AppError values
// with codes NOT_FOUND, CONFLICT, RESOURCE_EXHAUSTED, STORE_UNAVAILABLE or
// INTERNAL_ERROR.
type UserRepository interface {

	/*
		FindByID returns the active account with the given ID.

		Parameters:
		  - context: context.Context
		  - id: string

		Returns:
		  - *User: Hydrated entity
		  - error: NOT_FOUND or storage failures
	*/
	FindByID(context context.Context, id string) (*User, error)

	/*
		FindByEmail returns the active account with the given normalized email.

		Parameters:
		  - context: context.Context
		  - email: string

		Returns:
		  - *User: Hydrated entity
		  - error: NOT_FOUND or storage failures
	*/
	FindByEmail(context context.Context, email string) (*User, error)

	/*
		Create persists a brand-new user account to the storage.

		Parameters:
		  - context: context.Context
		  - user: *User

		Returns:
		  - error: CONFLICT when the email is already held by an active account
	*/
	Create(context context.Context, user *User) error

	/*
		Update persists changes to the email and display name. The stored
		email_verified flag is kept when the email is unchanged and cleared
		when it changes; the caller's value is ignored and overwritten.

		Parameters:
		  - context: context.Context
		  - user: *User

		Returns:
		  - error: NOT_FOUND, CONFLICT or storage failures
	*/
	Update(context context.Context, user *User) error

	/*
		UpdatePassword replaces only the user's password hash.

		Parameters:
		  - context: context.Context
		  - userID: string
		  - newHash: string

		Returns:
		  - error: NOT_FOUND or storage failures
	*/
	UpdatePassword(context context.Context, userID, newHash string) error

	/*
		MarkEmailVerified sets email_verified to true. It never sets it back to false.

		Parameters:
		  - context: context.Context
		  - userID: string

		Returns:
		  - error: NOT_FOUND or storage failures
	*/
	MarkEmailVerified(context context.Context, userID string) error

	/*
		SoftDelete marks the account as deleted without removing the row.

		Parameters:
		  - context: context.Context
		  - id: string

		Returns:
		  - error: NOT_FOUND or storage failures
	*/
	SoftDelete(context context.Context, id string) error

	/*
		List returns a page of active accounts, newest first.

		Parameters:
		  - context: context.Context
		  - offset: int
		  - limit: int

		Returns:
		  - []*User: Page of entities
		  - int: Total active accounts
		  - error: Storage failures
	*/
	List(context context.Context, offset, limit int) ([]*User, int, error)
}

// # Identity Data Access

// IdentityRepository defines the data access contract for linked provider identities.
type IdentityRepository interface {

	/*
		FindByProvider returns the identity for a provider subject.

		Parameters:
		  - context: context.Context
		  - provider: string
		  - providerUserID: string

		Returns:
		  - *Identity: Hydrated entity
		  - error: NOT_FOUND or storage failures
	*/
	FindByProvider(context context.Context, provider, providerUserID string) (*Identity, error)

	/*
		ListByUser returns every identity linked to the user.

		Parameters:
		  - context: context.Context
		  - userID: string

		Returns:
		  - []*Identity: Linked identities, oldest first
		  - error: Storage failures
	*/
	ListByUser(context context.Context, userID string) ([]*Identity, error)

	/*
		Create links a new identity.

		Parameters:
		  - context: context.Context
		  - identity: *Identity

		Returns:
		  - error: CONFLICT when the provider subject is already linked, or the
		    user already has an identity at that provider
	*/
	Create(context context.Context, identity *Identity) error

	/*
		Update refreshes the provider-reported email and verification flag.

		Parameters:
		  - context: context.Context
		  - identity: *Identity

		Returns:
		  - error: NOT_FOUND or storage failures
	*/
	Update(context context.Context, identity *Identity) error

	/*
		Delete unlinks an identity.

		Parameters:
		  - context: context.Context
		  - provider: string
		  - providerUserID: string

		Returns:
		  - error: NOT_FOUND or storage failures
	*/
	Delete(context context.Context, provider, providerUserID string) error
}
