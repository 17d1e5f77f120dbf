// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package sec provides cryptographic primitives and token management.
//
// # Architecture
//
// This package isolates security-sensitive code (Hashing, JWT Signing) from
// the domain logic. It acts as an Infrastructure service injected into the
// Application layer via the [auth.TokenProvider] interface.
package sec

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/taibuivan/yomira-identity/internal/platform/apperr"
)

// MinSecretLength is the minimum HS256 signing secret size in bytes.
const MinSecretLength = 32

var (
	// ErrTokenMalformed is the cause of a TOKEN_INVALID error for unparsable tokens.
	ErrTokenMalformed = errors.New("sec: token is malformed")

	// ErrTokenBadSignature is the cause of a TOKEN_INVALID error for tampered tokens.
	ErrTokenBadSignature = errors.New("sec: token signature is invalid")
)

// AuthClaims represents the payload embedded inside a JWT Access Token.
//
// # Why custom claims?
//
// By embedding the UserID, Role and verification state directly inside the JWT,
// downstream services can trust the caller WITHOUT querying this service on
// every request. Validity is a pure function of signature and expiry.
type AuthClaims struct {
	jwt.RegisteredClaims

	// Custom application claims are abbreviated to keep the JWT payload small.
	UserID        string `json:"uid"`
	Email         string `json:"eml,omitempty"`
	Role          string `json:"rol"`
	EmailVerified bool   `json:"evf"`
}

// Grant is the caller-supplied part of a token: everything except identity and timing.
type Grant struct {
	Email         string
	Role          string
	EmailVerified bool
}

// TokenOption customizes a [TokenService].
type TokenOption func(*TokenService)

// WithClock overrides the time source used for issuing and validating tokens.
func WithClock(now func() time.Time) TokenOption {
	return func(service *TokenService) { service.now = now }
}

// TokenService handles generation and verification of JWT tokens using HS256.
//
// The secret is copied at construction and never changes for the lifetime of
// the value; there is no package-level signing state.
type TokenService struct {
	secret []byte
	issuer string
	now    func() time.Time
}

// NewTokenService creates a new TokenService from a signing secret.
func NewTokenService(secret []byte, issuer string, opts ...TokenOption) (*TokenService, error) {
	if len(secret) < MinSecretLength {
		return nil, fmt.Errorf("auth: signing secret must be at least %d bytes", MinSecretLength)
	}

	service := &TokenService{
		secret: append([]byte(nil), secret...),
		issuer: issuer,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(service)
	}

	return service, nil
}

// Issue creates a new signed access token for a user.
func (service *TokenService) Issue(userID string, grant Grant, timeToLive time.Duration) (string, error) {
	if timeToLive <= 0 {
		return "", fmt.Errorf("auth: token ttl must be positive, got %s", timeToLive)
	}

	currentTime := service.now()
	claims := AuthClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    service.issuer,
			IssuedAt:  jwt.NewNumericDate(currentTime),
			ExpiresAt: jwt.NewNumericDate(currentTime.Add(timeToLive)),
		},
		UserID:        userID,
		Email:         grant.Email,
		Role:          grant.Role,
		EmailVerified: grant.EmailVerified,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signedToken, err := token.SignedString(service.secret)
	if err != nil {
		return "", fmt.Errorf("auth: failed to sign token: %w", err)
	}

	return signedToken, nil
}

// VerifyToken checks the signature, then the expiry, of a JWT string.
//
// # Returns
//   - TOKEN_EXPIRED when the signature is valid but the token is past its expiry.
//   - TOKEN_INVALID (cause [ErrTokenBadSignature]) when the signature does not verify.
//   - TOKEN_INVALID (cause [ErrTokenMalformed]) for anything that is not a valid token.
func (service *TokenService) VerifyToken(tokenString string) (*AuthClaims, error) {
	claims := &AuthClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return service.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(service.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(service.now),
	)

	if err != nil {
		return nil, classifyTokenError(err)
	}

	if !token.Valid || claims.UserID == "" {
		return nil, apperr.TokenInvalid(ErrTokenMalformed)
	}

	return claims, nil
}

// classifyTokenError maps jwt parse failures onto the token error kinds.
// jwt/v5 verifies the signature before claims, so an expired token with a
// bad signature reports the signature failure.
func classifyTokenError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return apperr.TokenInvalid(fmt.Errorf("%w: %w", ErrTokenBadSignature, err))
	case errors.Is(err, jwt.ErrTokenExpired):
		return apperr.TokenExpired()
	default:
		return apperr.TokenInvalid(fmt.Errorf("%w: %w", ErrTokenMalformed, err))
	}
}
