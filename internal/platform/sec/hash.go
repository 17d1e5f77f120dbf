// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package sec

import (
	"errors"
	"fmt"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrPasswordMismatch is returned when a well-formed digest does not match.
	ErrPasswordMismatch = errors.New("sec: password does not match")

	// ErrMalformedHash is returned when the stored digest is not a bcrypt digest.
	// It signals corrupt data, not a wrong password.
	ErrMalformedHash = errors.New("sec: malformed password hash")
)

// decoyPassword is hashed once per hasher and verified against when the
// account being logged into does not exist.
const decoyPassword = "decoy-password-for-timing-parity"

// PasswordHasher hashes and verifies passwords with bcrypt.
//
// The digest is self-describing ($2a$<cost>$<salt><hash>) so the cost can be
// raised later without invalidating stored credentials.
type PasswordHasher struct {
	cost int

	decoyOnce sync.Once
	decoy     []byte
}

// NewPasswordHasher creates a hasher with the given bcrypt cost.
// Out-of-range costs fall back to [bcrypt.DefaultCost].
func NewPasswordHasher(cost int) *PasswordHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &PasswordHasher{cost: cost}
}

// Hash produces a salted bcrypt digest of the plain-text password.
func (hasher *PasswordHasher) Hash(plainTextPassword string) (string, error) {
	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(plainTextPassword), hasher.cost)
	if err != nil {
		return "", fmt.Errorf("auth: failed to hash password: %w", err)
	}
	return string(hashedBytes), nil
}

// Verify compares a plain-text password with a stored digest in constant time.
//
// # Returns
//   - nil on match.
//   - [ErrPasswordMismatch] when the digest is valid but the password is wrong.
//   - [ErrMalformedHash] when the digest itself cannot be parsed.
func (hasher *PasswordHasher) Verify(plainTextPassword, existingHash string) error {
	err := bcrypt.CompareHashAndPassword([]byte(existingHash), []byte(plainTextPassword))
	switch {
	case err == nil:
		return nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return ErrPasswordMismatch
	default:
		return fmt.Errorf("%w: %w", ErrMalformedHash, err)
	}
}

// Burn spends the same CPU time as a real verification and always fails.
// Login calls it for unknown accounts so response timing does not reveal
// whether an email is registered.
func (hasher *PasswordHasher) Burn(plainTextPassword string) {
	hasher.decoyOnce.Do(func() {
		hasher.decoy, _ = bcrypt.GenerateFromPassword([]byte(decoyPassword), hasher.cost)
	})
	_ = bcrypt.CompareHashAndPassword(hasher.decoy, []byte(plainTextPassword))
}
