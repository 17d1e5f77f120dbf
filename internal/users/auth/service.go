// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/taibuivan/yomira-identity/internal/platform/apperr"
	"github.com/taibuivan/yomira-identity/internal/platform/constants"
	"github.com/taibuivan/yomira-identity/internal/platform/ctxutil"
	"github.com/taibuivan/yomira-identity/internal/platform/metrics"
	"github.com/taibuivan/yomira-identity/internal/platform/sec"
	"github.com/taibuivan/yomira-identity/pkg/uuid"
)

// ErrAuthenticationFailed is the only error a failed password login returns,
// whatever the internal reason.
var ErrAuthenticationFailed = apperr.AuthenticationFailed()

// # Contracts & Types

// TokenProvider defines the contract for issuing and verifying security tokens.
type TokenProvider interface {
	// Issue creates a signed token for the given user.
	Issue(userID string, grant sec.Grant, timeToLive time.Duration) (string, error)

	// VerifyToken checks signature then expiry and returns the embedded claims.
	VerifyToken(token string) (*sec.AuthClaims, error)
}

// PasswordHasher defines the contract for one-way password credentials.
type PasswordHasher interface {
	Hash(plaintext string) (string, error)
	Verify(plaintext, digest string) error
	Burn(plaintext string)
}

// Options holds the startup-time values the service consumes.
type Options struct {
	// TokenTTL is the lifetime of every issued token.
	TokenTTL time.Duration

	// TrustedProviders lists providers whose email_verified flag is honored.
	TrustedProviders []string
}

// Service implements the credential and identity use cases.
//
// # Review Process
//
// This service is critical for security. Any changes to hashing, login or
// reconciliation logic must be reviewed by the security team.
type Service struct {
	userRepository     UserRepository
	identityRepository IdentityRepository
	hasher             PasswordHasher
	tokenProvider      TokenProvider
	tokenTTL           time.Duration
	trustedProviders   map[string]struct{}
}

// NewService constructs a new [Service] with necessary dependencies.
func NewService(
	userRepo UserRepository,
	identityRepo IdentityRepository,
	hasher PasswordHasher,
	tokenProv TokenProvider,
	options Options,
) *Service {
	if options.TokenTTL <= 0 {
		options.TokenTTL = constants.DefaultTokenTTL
	}
	if options.TrustedProviders == nil {
		options.TrustedProviders = DefaultTrustedProviders
	}

	trusted := make(map[string]struct{}, len(options.TrustedProviders))
	for _, provider := range options.TrustedProviders {
		trusted[NormalizeProvider(provider)] = struct{}{}
	}

	return &Service{
		userRepository:     userRepo,
		identityRepository: identityRepo,
		hasher:             hasher,
		tokenProvider:      tokenProv,
		tokenTTL:           options.TokenTTL,
		trustedProviders:   trusted,
	}
}

// TokenTTL returns the lifetime of issued tokens.
func (service *Service) TokenTTL() time.Duration {
	return service.tokenTTL
}

// IsTrusted reports whether a provider's verification assertion is honored.
func (service *Service) IsTrusted(provider string) bool {
	_, ok := service.trustedProviders[NormalizeProvider(provider)]
	return ok
}

// issueToken signs a token for the current state of user.
func (service *Service) issueToken(user *User) (string, error) {
	token, err := service.tokenProvider.Issue(user.ID, user.Grant(), service.tokenTTL)
	if err != nil {
		return "", fmt.Errorf("auth_service_token_generation_failed: %w", err)
	}
	return token, nil
}

// # Authentication Flow

/*
Login validates a password credential and issues a token.

Description: Unknown email, password-less account, wrong password and corrupt
stored digest all return [ErrAuthenticationFailed]. Every one of them pays for
exactly one bcrypt comparison so response time does not reveal which case occurred.

Parameters:
  - context: context.Context
  - email: string
  - password: string

Returns:
  - *LoginResult: Token and account
  - err: ErrAuthenticationFailed, or storage failures
*/
func (service *Service) Login(context context.Context, email, password string) (*LoginResult, error) {
	email = NormalizeEmail(email)

	user, err := service.userRepository.FindByEmail(context, email)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			service.hasher.Burn(password)
			return nil, service.authenticationFailed(context, email, reasonUnknownUser, nil)
		}
		return nil, err
	}

	if !user.HasPassword() {
		service.hasher.Burn(password)
		return nil, service.authenticationFailed(context, email, reasonNoPassword, nil)
	}

	// Constant-time comparison happens inside bcrypt.
	if err := service.hasher.Verify(password, user.PasswordHash); err != nil {
		if errors.Is(err, sec.ErrMalformedHash) {
			// The parse fails fast; spend the cost of a real comparison anyway.
			service.hasher.Burn(password)
			return nil, service.authenticationFailed(context, email, reasonMalformedHash, err)
		}
		return nil, service.authenticationFailed(context, email, reasonMismatch, nil)
	}

	token, err := service.issueToken(user)
	if err != nil {
		return nil, err
	}

	return &LoginResult{Token: token, User: user}, nil
}

// authenticationFailed records a rejected login and returns the uniform error.
func (service *Service) authenticationFailed(context context.Context, email, reason string, cause error) error {
	metrics.AuthFailuresTotal.WithLabelValues(reason).Inc()

	logger := ctxutil.GetLogger(context)
	attrs := []any{slog.String("email", email), slog.String("reason", reason)}

	if reason == reasonMalformedHash {
		// A stored digest that cannot be parsed is corrupt data, not a bad guess.
		logger.Error(eventAuthenticationFailed, append(attrs, slog.Any("error", cause))...)
	} else {
		logger.Warn(eventAuthenticationFailed, attrs...)
	}

	return ErrAuthenticationFailed
}

/*
VerifyToken validates a bearer token and returns its claims.

Parameters:
  - token: string

Returns:
  - *sec.AuthClaims: Embedded claims
  - err: TOKEN_EXPIRED or TOKEN_INVALID
*/
func (service *Service) VerifyToken(token string) (*sec.AuthClaims, error) {
	return service.tokenProvider.VerifyToken(strings.TrimSpace(token))
}

/*
RenewToken issues a fresh token from the current account state.

Description: Role and verification changes since the previous token are
picked up. A deactivated account cannot renew.

Parameters:
  - context: context.Context
  - userID: string

Returns:
  - *LoginResult: New token and account
  - err: NOT_FOUND or storage failures
*/
func (service *Service) RenewToken(context context.Context, userID string) (*LoginResult, error) {
	user, err := service.userRepository.FindByID(context, userID)
	if err != nil {
		return nil, err
	}

	token, err := service.issueToken(user)
	if err != nil {
		return nil, err
	}

	return &LoginResult{Token: token, User: user}, nil
}

// # Registration Flow

// RegisterInput holds the data required to enroll a new member.
type RegisterInput struct {
	Email       string
	Password    string
	DisplayName string
}

/*
Register hashes the password and persists a brand new account.

Description: Uniqueness is enforced by the store; a concurrent registration
for the same email surfaces as CONFLICT.

Parameters:
  - context: context.Context
  - input: RegisterInput

Returns:
  - *User: Created entity
  - err: CONFLICT or storage errors
*/
func (service *Service) Register(context context.Context, input RegisterInput) (*User, error) {
	email := NormalizeEmail(input.Email)

	// Fast path: a client-safe message before paying for a hash.
	if _, err := service.userRepository.FindByEmail(context, email); err == nil {
		return nil, apperr.Conflict("Email is already registered")
	} else if !errors.Is(err, apperr.ErrNotFound) {
		return nil, err
	}

	hashedPassword, err := service.hasher.Hash(input.Password)
	if err != nil {
		return nil, fmt.Errorf("auth_service_hash_failed: %w", err)
	}

	// Time-sortable ID to prevent PG index fragmentation.
	user := &User{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: hashedPassword,
		DisplayName:  strings.TrimSpace(input.DisplayName),
		Role:         sec.RoleMember,
	}

	if err := service.userRepository.Create(context, user); err != nil {
		return nil, err
	}

	return user, nil
}

// # Credential Management

/*
ChangePassword replaces the account's password.

Description: The current password must verify. An identity-only account has
no current password and may set its first one by passing an empty current.

Parameters:
  - context: context.Context
  - userID: string
  - currentPassword: string
  - newPassword: string

Returns:
  - err: AUTHENTICATION_FAILED, NOT_FOUND or storage failures
*/
func (service *Service) ChangePassword(context context.Context, userID, currentPassword, newPassword string) error {
	user, err := service.userRepository.FindByID(context, userID)
	if err != nil {
		return err
	}

	if user.HasPassword() {
		if err := service.hasher.Verify(currentPassword, user.PasswordHash); err != nil {
			reason := reasonMismatch
			if errors.Is(err, sec.ErrMalformedHash) {
				reason = reasonMalformedHash
			}
			return service.authenticationFailed(context, user.Email, reason, err)
		}
	} else if currentPassword != "" {
		return apperr.Unprocessable("Account has no password; leave the current password empty")
	}

	hashedPassword, err := service.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("auth_service_change_password_hash_failed: %w", err)
	}

	return service.userRepository.UpdatePassword(context, userID, hashedPassword)
}

/*
Identities lists the provider identities linked to an account.

Parameters:
  - context: context.Context
  - userID: string

Returns:
  - []*Identity: Linked identities
  - err: Storage failures
*/
func (service *Service) Identities(context context.Context, userID string) ([]*Identity, error) {
	return service.identityRepository.ListByUser(context, userID)
}

/*
Unlink removes the account's identity at a provider.

Description: Refuses to remove the last way to sign in; a password-less
account must keep at least one identity.

Parameters:
  - context: context.Context
  - userID: string
  - provider: string

Returns:
  - err: NOT_FOUND, UNPROCESSABLE or storage failures
*/
func (service *Service) Unlink(context context.Context, userID, provider string) error {
	provider = NormalizeProvider(provider)

	user, err := service.userRepository.FindByID(context, userID)
	if err != nil {
		return err
	}

	identities, err := service.identityRepository.ListByUser(context, userID)
	if err != nil {
		return err
	}

	var target *Identity
	for _, identity := range identities {
		if identity.Provider == provider {
			target = identity
			break
		}
	}
	if target == nil {
		return apperr.NotFound(resourceIdentity)
	}

	if !user.HasPassword() && len(identities) == 1 {
		return apperr.Unprocessable("Cannot unlink the only sign-in method; set a password first")
	}

	return service.identityRepository.Delete(context, target.Provider, target.ProviderUserID)
}
