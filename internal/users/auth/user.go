// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package auth implements the Credential & Identity Core.

It owns password credentials, externally linked identities, and the signed
session tokens other services trust.

# Architecture

  - Entities: [User], [Identity] and the [ExternalLogin] tuple handed over by
    an upstream provider.
  - Repositories: Postgres implementations wrapped by a cache-aside layer.
  - Service: Password login, identity reconciliation and token verification.
*/
package auth

import (
	"strings"
	"time"

	"github.com/taibuivan/yomira-identity/internal/platform/sec"
)

// # Domain Entities

// User represents a local account.
type User struct {
	ID            string       `json:"id"`
	Email         string       `json:"email"`
	PasswordHash  string       `json:"-"` // Explicitly omitted from JSON for security. Empty for identity-only accounts.
	DisplayName   string       `json:"display_name"`
	Role          sec.UserRole `json:"role"`
	EmailVerified bool         `json:"email_verified"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

// HasPassword reports whether the account can log in with a password.
func (user *User) HasPassword() bool {
	return user.PasswordHash != ""
}

// Grant returns the token claims derived from the account.
func (user *User) Grant() sec.Grant {
	return sec.Grant{
		Email:         user.Email,
		Role:          string(user.Role),
		EmailVerified: user.EmailVerified,
	}
}

// Identity links a [User] to an account at an external provider.
type Identity struct {
	ID             string    `json:"id"`
	UserID         string    `json:"user_id"`
	Provider       string    `json:"provider"`
	ProviderUserID string    `json:"provider_user_id"`
	Email          string    `json:"email"`
	EmailVerified  bool      `json:"email_verified"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// ExternalLogin is an identity already authenticated by an upstream provider.
type ExternalLogin struct {
	Provider       string
	ProviderUserID string
	Email          string
	EmailVerified  bool
}

// Normalize lower-cases the provider and email and trims whitespace.
func (login ExternalLogin) Normalize() ExternalLogin {
	login.Provider = NormalizeProvider(login.Provider)
	login.ProviderUserID = strings.TrimSpace(login.ProviderUserID)
	login.Email = NormalizeEmail(login.Email)
	return login
}

// # Reconciliation Outcome

// ReconcileStatus tells how an external login was resolved.
type ReconcileStatus string

const (
	// The identity was already linked.
	StatusExisting ReconcileStatus = "existing"

	// A new identity was attached to an account found by email.
	StatusLinked ReconcileStatus = "linked"

	// A new password-less account was created with the identity.
	StatusCreated ReconcileStatus = "created"
)

// ReconcileResult is returned by a successful external login.
type ReconcileResult struct {
	Token  string
	User   *User
	Status ReconcileStatus
}

// LoginResult is returned by a successful password login.
type LoginResult struct {
	Token string
	User  *User
}

// # Normalization

// NormalizeEmail returns the canonical stored form of an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NormalizeProvider returns the canonical stored form of a provider name.
func NormalizeProvider(provider string) string {
	return strings.ToLower(strings.TrimSpace(provider))
}

// # Field Identifiers

// Global field names for validation and identity mapping in the authentication domain.
const (
	FieldEmail           = "email"
	FieldPassword        = "password"
	FieldDisplayName     = "display_name"
	FieldToken           = "token"
	FieldCurrentPassword = "current_password"
	FieldNewPassword     = "new_password"
	FieldAccessToken     = "access_token"
	FieldTokenType       = "token_type"
	FieldExpiresIn       = "expires_in"
	FieldProvider        = "provider"
	FieldProviderUserID  = "provider_user_id"
	FieldEmailVerified   = "email_verified"
	FieldStatus          = "status"
	FieldUser            = "user"
	FieldClaims          = "claims"
	FieldMessage         = "message"
)
