// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/taibuivan/yomira-identity/internal/platform/cache"
	"github.com/taibuivan/yomira-identity/internal/platform/sec"
	"github.com/taibuivan/yomira-identity/internal/users/auth"
	"github.com/taibuivan/yomira-identity/internal/users/auth/authtest"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

// fixture wires a Service over in-memory repositories behind the cache layer.
type fixture struct {
	store      *authtest.Store
	cache      *cache.MemoryStore
	users      *auth.CachedUserRepository
	identities *auth.CachedIdentityRepository
	hasher     *sec.PasswordHasher
	tokens     *sec.TokenService
	service    *auth.Service
	now        time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		store:  authtest.NewStore(),
		cache:  cache.NewMemoryStore(0),
		hasher: sec.NewPasswordHasher(bcrypt.MinCost),
		now:    time.Now(),
	}
	t.Cleanup(f.cache.Close)

	tokens, err := sec.NewTokenService(testSecret, "yomira.test", sec.WithClock(func() time.Time { return f.now }))
	require.NoError(t, err)
	f.tokens = tokens

	f.users = auth.NewCachedUserRepository(f.store.Users(), f.cache, time.Minute)
	f.identities = auth.NewCachedIdentityRepository(f.store.Identities(), f.cache, time.Minute)
	f.service = auth.NewService(f.users, f.identities, f.hasher, f.tokens, auth.Options{TokenTTL: time.Hour})
	return f
}

// seedUser inserts a user directly into the store, bypassing the cache.
func (f *fixture) seedUser(t *testing.T, id, email, password string, verified bool) *auth.User {
	t.Helper()

	user := &auth.User{ID: id, Email: email, Role: sec.RoleMember, EmailVerified: verified}
	if password != "" {
		hash, err := f.hasher.Hash(password)
		require.NoError(t, err)
		user.PasswordHash = hash
	}
	require.NoError(t, f.store.Users().Create(context.Background(), user))
	return user
}

// seedIdentity links an identity directly in the store.
func (f *fixture) seedIdentity(t *testing.T, userID, provider, providerUserID, email string) {
	t.Helper()

	require.NoError(t, f.store.Identities().Create(context.Background(), &auth.Identity{
		ID:             providerUserID + "-identity",
		UserID:         userID,
		Provider:       provider,
		ProviderUserID: providerUserID,
		Email:          email,
	}))
}

// storedUser reads the authoritative record, bypassing the cache.
func (f *fixture) storedUser(t *testing.T, id string) *auth.User {
	t.Helper()

	user, err := f.store.Users().FindByID(context.Background(), id)
	require.NoError(t, err)
	return user
}
