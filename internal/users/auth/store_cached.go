// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/taibuivan/yomira-identity/internal/platform/cache"
	"github.com/taibuivan/yomira-identity/internal/platform/constants"
	"github.com/taibuivan/yomira-identity/internal/platform/ctxutil"
	"github.com/taibuivan/yomira-identity/internal/platform/metrics"
	"github.com/taibuivan/yomira-identity/internal/platform/sec"
)

// Key families reported in cache metrics.
const (
	familyUserID    = "user_id"
	familyUserEmail = "user_email"
	familyIdentity  = "identity"
)

// # Cache Keys

// UserIDKey is the cache key of a user looked up by id.
func UserIDKey(id string) string {
	return constants.CachePrefixUserByID + id
}

// UserEmailKey is the cache key of a user looked up by normalized email.
func UserEmailKey(email string) string {
	return constants.CachePrefixUserByEmail + email
}

// IdentityKey is the cache key of an identity looked up by provider subject.
func IdentityKey(provider, providerUserID string) string {
	return constants.CachePrefixIdentity + provider + ":" + providerUserID
}

// userKeys returns every key under which a user record can be cached.
func userKeys(users ...*User) []string {
	keys := make([]string, 0, 2*len(users))
	for _, user := range users {
		if user == nil {
			continue
		}
		keys = append(keys, UserIDKey(user.ID), UserEmailKey(user.Email))
	}
	return keys
}

// # Cache Records

// userRecord is the cached form of a User. It keeps the password hash, which
// the public JSON form of User omits.
type userRecord struct {
	ID            string    `json:"id"`
	Email         string    `json:"email"`
	PasswordHash  string    `json:"password_hash,omitempty"`
	DisplayName   string    `json:"display_name"`
	Role          string    `json:"role"`
	EmailVerified bool      `json:"email_verified"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func encodeUser(user *User) ([]byte, error) {
	return json.Marshal(userRecord{
		ID:            user.ID,
		Email:         user.Email,
		PasswordHash:  user.PasswordHash,
		DisplayName:   user.DisplayName,
		Role:          string(user.Role),
		EmailVerified: user.EmailVerified,
		CreatedAt:     user.CreatedAt,
		UpdatedAt:     user.UpdatedAt,
	})
}

func decodeUser(raw []byte) (*User, error) {
	var record userRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, err
	}
	if record.ID == "" {
		return nil, errors.New("cache: user record without id")
	}

	return &User{
		ID:            record.ID,
		Email:         record.Email,
		PasswordHash:  record.PasswordHash,
		DisplayName:   record.DisplayName,
		Role:          sec.UserRole(record.Role),
		EmailVerified: record.EmailVerified,
		CreatedAt:     record.CreatedAt,
		UpdatedAt:     record.UpdatedAt,
	}, nil
}

func encodeIdentity(identity *Identity) ([]byte, error) {
	return json.Marshal(identity)
}

func decodeIdentity(raw []byte) (*Identity, error) {
	identity := &Identity{}
	if err := json.Unmarshal(raw, identity); err != nil {
		return nil, err
	}
	if identity.ID == "" {
		return nil, errors.New("cache: identity record without id")
	}
	return identity, nil
}

// # Cache-Aside Core

// cacheAside holds what both cached repositories share.
type cacheAside struct {
	store cache.Store
	ttl   time.Duration
}

// degraded records a bypassed cache operation.
func (aside cacheAside) degraded(ctx context.Context, operation, key string, err error) {
	metrics.CacheDegradedTotal.WithLabelValues(operation).Inc()
	ctxutil.GetLogger(ctx).Warn(eventCacheDegraded,
		slog.String("operation", operation),
		slog.String("key", key),
		slog.Any("error", err),
	)
}

/*
readThrough serves key from the cache, or loads it from the store and fills the cache.

Description: A hit never touches the store. A miss, an unreachable cache or
an undecodable entry falls through to load. NOT_FOUND from load is returned
as-is and never cached.

The key's generation is read before load and the fill is conditional on it,
so a write that invalidates the key while load runs discards the fill.
*/
func readThrough[T any](
	ctx context.Context,
	aside cacheAside,
	family, key string,
	decode func([]byte) (T, error),
	encode func(T) ([]byte, error),
	load func(context.Context) (T, error),
) (T, error) {
	raw, err := aside.store.Get(ctx, key)
	switch {
	case err == nil:
		value, decodeErr := decode(raw)
		if decodeErr == nil {
			metrics.CacheRequestsTotal.WithLabelValues(family, metrics.CacheHit).Inc()
			return value, nil
		}
		metrics.CacheRequestsTotal.WithLabelValues(family, metrics.CacheDegraded).Inc()
		aside.degraded(ctx, "get", key, decodeErr)

	case errors.Is(err, cache.ErrMiss):
		metrics.CacheRequestsTotal.WithLabelValues(family, metrics.CacheMiss).Inc()

	default:
		if ctxErr := ctx.Err(); ctxErr != nil {
			var zero T
			return zero, ctxErr
		}
		metrics.CacheRequestsTotal.WithLabelValues(family, metrics.CacheDegraded).Inc()
		aside.degraded(ctx, "get", key, err)

		// The cache is down; do not pay for a fill that cannot land.
		return load(ctx)
	}

	generation, err := aside.store.Generation(ctx, key)
	if err != nil {
		aside.degraded(ctx, "generation", key, err)
		return load(ctx)
	}

	value, err := load(ctx)
	if err != nil {
		return value, err
	}

	encoded, err := encode(value)
	if err != nil {
		aside.degraded(ctx, "fill", key, err)
		return value, nil
	}

	stored, err := aside.store.Fill(ctx, key, encoded, aside.ttl, generation)
	switch {
	case err != nil:
		aside.degraded(ctx, "fill", key, err)
	case !stored:
		ctxutil.GetLogger(ctx).Debug(eventCacheFillSkipped, slog.String("key", key))
	}

	return value, nil
}

// invalidate drops keys and advances their generations after a write. It runs
// even when the caller has gone away, since the write may already be committed.
func (aside cacheAside) invalidate(ctx context.Context, keys ...string) {
	if len(keys) == 0 {
		return
	}

	if err := aside.store.Invalidate(context.WithoutCancel(ctx), keys...); err != nil {
		for _, key := range keys {
			aside.degraded(ctx, "invalidate", key, err)
		}
	}
}

// # Cached User Repository

// CachedUserRepository decorates a UserRepository with cache-aside reads and
// delete-on-write invalidation.
type CachedUserRepository struct {
	next  UserRepository
	aside cacheAside
}

// NewCachedUserRepository wraps next. ttl <= 0 uses the default cache TTL.
func NewCachedUserRepository(next UserRepository, store cache.Store, ttl time.Duration) *CachedUserRepository {
	if ttl <= 0 {
		ttl = constants.DefaultCacheTTL
	}
	return &CachedUserRepository{next: next, aside: cacheAside{store: store, ttl: ttl}}
}

// FindByID implements UserRepository.
func (repository *CachedUserRepository) FindByID(ctx context.Context, id string) (*User, error) {
	return readThrough(ctx, repository.aside, familyUserID, UserIDKey(id), decodeUser, encodeUser,
		func(ctx context.Context) (*User, error) { return repository.next.FindByID(ctx, id) },
	)
}

// FindByEmail implements UserRepository.
func (repository *CachedUserRepository) FindByEmail(ctx context.Context, email string) (*User, error) {
	return readThrough(ctx, repository.aside, familyUserEmail, UserEmailKey(email), decodeUser, encodeUser,
		func(ctx context.Context) (*User, error) { return repository.next.FindByEmail(ctx, email) },
	)
}

// Create implements UserRepository.
func (repository *CachedUserRepository) Create(ctx context.Context, user *User) error {
	err := repository.next.Create(ctx, user)
	repository.aside.invalidate(ctx, userKeys(user)...)
	return err
}

// Update implements UserRepository. Keys of both the old and new email are dropped.
func (repository *CachedUserRepository) Update(ctx context.Context, user *User) error {
	return repository.write(ctx, user.ID, func(ctx context.Context) error {
		return repository.next.Update(ctx, user)
	}, user)
}

// UpdatePassword implements UserRepository.
func (repository *CachedUserRepository) UpdatePassword(ctx context.Context, userID, newHash string) error {
	return repository.write(ctx, userID, func(ctx context.Context) error {
		return repository.next.UpdatePassword(ctx, userID, newHash)
	})
}

// MarkEmailVerified implements UserRepository.
func (repository *CachedUserRepository) MarkEmailVerified(ctx context.Context, userID string) error {
	return repository.write(ctx, userID, func(ctx context.Context) error {
		return repository.next.MarkEmailVerified(ctx, userID)
	})
}

// SoftDelete implements UserRepository.
func (repository *CachedUserRepository) SoftDelete(ctx context.Context, id string) error {
	return repository.write(ctx, id, func(ctx context.Context) error {
		return repository.next.SoftDelete(ctx, id)
	})
}

// List implements UserRepository. Pages are always read from the store.
func (repository *CachedUserRepository) List(ctx context.Context, offset, limit int) ([]*User, int, error) {
	return repository.next.List(ctx, offset, limit)
}

/*
write performs a single-record mutation and invalidates every key of the
record before and after it.

Description: The pre-write state is read from the store, not the cache, so a
stale cached email can never hide the key that must be dropped.
*/
func (repository *CachedUserRepository) write(ctx context.Context, userID string, mutate func(context.Context) error, after ...*User) error {
	before, err := repository.next.FindByID(ctx, userID)
	if err != nil {
		return err
	}

	err = mutate(ctx)

	keys := userKeys(append([]*User{before}, after...)...)
	repository.aside.invalidate(ctx, keys...)

	return err
}

// # Cached Identity Repository

// CachedIdentityRepository decorates an IdentityRepository with cache-aside
// lookups by provider subject.
type CachedIdentityRepository struct {
	next  IdentityRepository
	aside cacheAside
}

// NewCachedIdentityRepository wraps next. ttl <= 0 uses the default cache TTL.
func NewCachedIdentityRepository(next IdentityRepository, store cache.Store, ttl time.Duration) *CachedIdentityRepository {
	if ttl <= 0 {
		ttl = constants.DefaultCacheTTL
	}
	return &CachedIdentityRepository{next: next, aside: cacheAside{store: store, ttl: ttl}}
}

// FindByProvider implements IdentityRepository.
func (repository *CachedIdentityRepository) FindByProvider(ctx context.Context, provider, providerUserID string) (*Identity, error) {
	return readThrough(ctx, repository.aside, familyIdentity, IdentityKey(provider, providerUserID), decodeIdentity, encodeIdentity,
		func(ctx context.Context) (*Identity, error) {
			return repository.next.FindByProvider(ctx, provider, providerUserID)
		},
	)
}

// ListByUser implements IdentityRepository. Lists are always read from the store.
func (repository *CachedIdentityRepository) ListByUser(ctx context.Context, userID string) ([]*Identity, error) {
	return repository.next.ListByUser(ctx, userID)
}

// Create implements IdentityRepository.
func (repository *CachedIdentityRepository) Create(ctx context.Context, identity *Identity) error {
	err := repository.next.Create(ctx, identity)
	repository.aside.invalidate(ctx, IdentityKey(identity.Provider, identity.ProviderUserID))
	return err
}

// Update implements IdentityRepository.
func (repository *CachedIdentityRepository) Update(ctx context.Context, identity *Identity) error {
	err := repository.next.Update(ctx, identity)
	repository.aside.invalidate(ctx, IdentityKey(identity.Provider, identity.ProviderUserID))
	return err
}

// Delete implements IdentityRepository.
func (repository *CachedIdentityRepository) Delete(ctx context.Context, provider, providerUserID string) error {
	err := repository.next.Delete(ctx, provider, providerUserID)
	repository.aside.invalidate(ctx, IdentityKey(provider, providerUserID))
	return err
}
