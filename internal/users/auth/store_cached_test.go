// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth_test

import (
	"context"
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/yomira-identity/internal/platform/apperr"
	"github.com/taibuivan/yomira-identity/internal/platform/cache"
	"github.com/taibuivan/yomira-identity/internal/platform/workerpool"
	"github.com/taibuivan/yomira-identity/internal/users/auth"
	"github.com/taibuivan/yomira-identity/internal/users/auth/authtest"
)

// downStore is a cache whose every call fails like an unreachable server.
type downStore struct{}

func (downStore) Get(context.Context, string) ([]byte, error) {
	return nil, apperr.CacheUnavailable(errors.New("connection refused"))
}

func (downStore) Generation(context.Context, string) (int64, error) {
	return 0, apperr.CacheUnavailable(errors.New("connection refused"))
}

func (downStore) Fill(context.Context, string, []byte, time.Duration, int64) (bool, error) {
	return false, apperr.CacheUnavailable(errors.New("connection refused"))
}

func (downStore) Invalidate(context.Context, ...string) error {
	return apperr.CacheUnavailable(errors.New("connection refused"))
}

// stalledUsers holds the first FindByID after it has read the store, so a
// write can commit between the load and the cache fill.
type stalledUsers struct {
	auth.UserRepository
	loaded  chan struct{}
	release chan struct{}
	stalled atomic.Bool
}

func newStalledUsers(next auth.UserRepository) *stalledUsers {
	return &stalledUsers{UserRepository: next, loaded: make(chan struct{}), release: make(chan struct{})}
}

func (users *stalledUsers) FindByID(ctx context.Context, id string) (*auth.User, error) {
	user, err := users.UserRepository.FindByID(ctx, id)
	if users.stalled.CompareAndSwap(false, true) {
		close(users.loaded)
		<-users.release
	}
	return user, err
}

// silentServer accepts connections and never answers.
func silentServer(t *testing.T) string {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = listener.Close() })

	var (
		mu    sync.Mutex
		conns []net.Conn
	)
	t.Cleanup(func() {
		mu.Lock()
		defer mu.Unlock()
		for _, conn := range conns {
			_ = conn.Close()
		}
	})

	go func() {
		for {
			conn, err := listener.Accept()
			if err != nil {
				return
			}
			mu.Lock()
			conns = append(conns, conn)
			mu.Unlock()
		}
	}()

	return listener.Addr().String()
}

/*
TestCachedUser_HitSkipsStore verifies a cached read never reaches the store.
*/
func TestCachedUser_HitSkipsStore(t *testing.T) {
	f := newFixture(t)
	f.seedUser(t, "u-1", "a@x.com", "correct-horse", false)
	ctx := context.Background()

	for range 3 {
		user, err := f.users.FindByID(ctx, "u-1")
		require.NoError(t, err)
		assert.Equal(t, "a@x.com", user.Email)
	}
	assert.Equal(t, 1, f.store.Calls("user.FindByID"))

	// The cached record still carries the hash that login needs.
	user, err := f.users.FindByID(ctx, "u-1")
	require.NoError(t, err)
	assert.NotEmpty(t, user.PasswordHash)
}

func TestCachedUser_NotFoundIsNotCached(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.users.FindByEmail(ctx, "late@x.com")
	require.ErrorIs(t, err, apperr.ErrNotFound)

	f.seedUser(t, "u-1", "late@x.com", "", false)

	user, err := f.users.FindByEmail(ctx, "late@x.com")
	require.NoError(t, err)
	assert.Equal(t, "u-1", user.ID)
}

/*
TestCachedUser_WritesInvalidate verifies no read after a committed write sees the old value.
*/
func TestCachedUser_WritesInvalidate(t *testing.T) {
	ctx := context.Background()

	writes := map[string]func(f *fixture) error{
		"update": func(f *fixture) error {
			return f.users.Update(ctx, &auth.User{ID: "u-1", Email: "a@x.com", DisplayName: "Renamed"})
		},
		"update_password": func(f *fixture) error {
			return f.users.UpdatePassword(ctx, "u-1", "$2a$04$replaced")
		},
		"mark_email_verified": func(f *fixture) error {
			return f.users.MarkEmailVerified(ctx, "u-1")
		},
	}

	for name, write := range writes {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t)
			f.seedUser(t, "u-1", "a@x.com", "correct-horse", false)

			byID, err := f.users.FindByID(ctx, "u-1")
			require.NoError(t, err)
			byEmail, err := f.users.FindByEmail(ctx, "a@x.com")
			require.NoError(t, err)

			require.NoError(t, write(f))

			afterID, err := f.users.FindByID(ctx, "u-1")
			require.NoError(t, err)
			afterEmail, err := f.users.FindByEmail(ctx, "a@x.com")
			require.NoError(t, err)

			stored := f.storedUser(t, "u-1")
			assert.Equal(t, stored, afterID)
			assert.Equal(t, stored, afterEmail)
			assert.NotEqual(t, byID, afterID)
			assert.NotEqual(t, byEmail, afterEmail)
		})
	}
}

func TestCachedUser_EmailChangeDropsOldKey(t *testing.T) {
	f := newFixture(t)
	f.seedUser(t, "u-1", "old@x.com", "", true)
	ctx := context.Background()

	_, err := f.users.FindByEmail(ctx, "old@x.com")
	require.NoError(t, err)

	require.NoError(t, f.users.Update(ctx, &auth.User{ID: "u-1", Email: "new@x.com"}))

	_, err = f.users.FindByEmail(ctx, "old@x.com")
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	user, err := f.users.FindByEmail(ctx, "new@x.com")
	require.NoError(t, err)
	assert.Equal(t, "u-1", user.ID)
}

func TestCachedUser_SoftDeleteInvalidates(t *testing.T) {
	f := newFixture(t)
	f.seedUser(t, "u-1", "a@x.com", "", false)
	ctx := context.Background()

	_, err := f.users.FindByEmail(ctx, "a@x.com")
	require.NoError(t, err)

	require.NoError(t, f.users.SoftDelete(ctx, "u-1"))

	_, err = f.users.FindByEmail(ctx, "a@x.com")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	_, err = f.users.FindByID(ctx, "u-1")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestCachedIdentity_WritesInvalidate(t *testing.T) {
	f := newFixture(t)
	f.seedUser(t, "u-1", "a@x.com", "", false)
	f.seedIdentity(t, "u-1", "google", "g1", "a@x.com")
	ctx := context.Background()

	identity, err := f.identities.FindByProvider(ctx, "google", "g1")
	require.NoError(t, err)
	require.False(t, identity.EmailVerified)

	identity.EmailVerified = true
	require.NoError(t, f.identities.Update(ctx, identity))

	refreshed, err := f.identities.FindByProvider(ctx, "google", "g1")
	require.NoError(t, err)
	assert.True(t, refreshed.EmailVerified)

	require.NoError(t, f.identities.Delete(ctx, "google", "g1"))
	_, err = f.identities.FindByProvider(ctx, "google", "g1")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

/*
TestCachedRepositories_DegradeWhenCacheDown verifies an unavailable cache never fails a request.
*/
func TestCachedRepositories_DegradeWhenCacheDown(t *testing.T) {
	store := authtest.NewStore()
	users := auth.NewCachedUserRepository(store.Users(), downStore{}, time.Minute)
	identities := auth.NewCachedIdentityRepository(store.Identities(), downStore{}, time.Minute)
	ctx := context.Background()

	user := &auth.User{ID: "u-1", Email: "a@x.com", Role: "member"}
	require.NoError(t, users.Create(ctx, user))

	found, err := users.FindByEmail(ctx, "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, "u-1", found.ID)

	require.NoError(t, users.MarkEmailVerified(ctx, "u-1"))

	found, err = users.FindByID(ctx, "u-1")
	require.NoError(t, err)
	assert.True(t, found.EmailVerified)

	require.NoError(t, identities.Create(ctx, &auth.Identity{ID: "i-1", UserID: "u-1", Provider: "google", ProviderUserID: "g1"}))
	_, err = identities.FindByProvider(ctx, "google", "g1")
	assert.NoError(t, err)
}

/*
TestService_DegradesWithUnreachableRedis runs the login and reconcile paths over a dead Redis.
*/
func TestService_DegradesWithUnreachableRedis(t *testing.T) {
	client := goredis.NewClient(&goredis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = client.Close() })

	f := newFixture(t)
	redisStore := cache.NewRedisStore(client, workerpool.New(4, time.Second), 100*time.Millisecond)
	users := auth.NewCachedUserRepository(f.store.Users(), redisStore, time.Minute)
	identities := auth.NewCachedIdentityRepository(f.store.Identities(), redisStore, time.Minute)
	service := auth.NewService(users, identities, f.hasher, f.tokens, auth.Options{TokenTTL: time.Hour})

	f.seedUser(t, "u-1", "a@x.com", "correct-horse", false)

	_, err := service.Login(context.Background(), "a@x.com", "correct-horse")
	require.NoError(t, err)

	result, err := service.ReconcileExternalLogin(context.Background(), googleLogin(true))
	require.NoError(t, err)
	assert.Equal(t, auth.StatusLinked, result.Status)
	assert.True(t, f.storedUser(t, "u-1").EmailVerified)
}

func TestCachedUser_CancelledCallerIsNotMasked(t *testing.T) {
	store := authtest.NewStore()
	users := auth.NewCachedUserRepository(store.Users(), downStore{}, time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := users.FindByID(ctx, "u-1")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, store.Calls("user.FindByID"))
}

/*
TestCachedUser_FillLosesToConcurrentWrite verifies a load that read the old row
cannot cache it once a write has committed and invalidated the key.
*/
func TestCachedUser_FillLosesToConcurrentWrite(t *testing.T) {
	f := newFixture(t)
	f.seedUser(t, "u-1", "a@x.com", "", false)
	ctx := context.Background()

	stalled := newStalledUsers(f.store.Users())
	users := auth.NewCachedUserRepository(stalled, f.cache, time.Minute)

	read := make(chan *auth.User, 1)
	go func() {
		user, err := users.FindByID(ctx, "u-1")
		assert.NoError(t, err)
		read <- user
	}()

	<-stalled.loaded
	require.NoError(t, f.users.MarkEmailVerified(ctx, "u-1"))
	close(stalled.release)

	// The in-flight reader returns what it loaded, but must not cache it.
	assert.False(t, (<-read).EmailVerified)

	user, err := users.FindByID(ctx, "u-1")
	require.NoError(t, err)
	assert.True(t, user.EmailVerified)
}

/*
TestCachedUser_StaleSnapshotKeepsVerification verifies a profile update built
from an old read does not undo a verification that committed in between.
*/
func TestCachedUser_StaleSnapshotKeepsVerification(t *testing.T) {
	f := newFixture(t)
	f.seedUser(t, "u-1", "a@x.com", "", false)
	ctx := context.Background()

	snapshot, err := f.users.FindByID(ctx, "u-1")
	require.NoError(t, err)

	require.NoError(t, f.users.MarkEmailVerified(ctx, "u-1"))

	snapshot.DisplayName = "Renamed"
	require.NoError(t, f.users.Update(ctx, snapshot))

	stored := f.storedUser(t, "u-1")
	assert.Equal(t, "Renamed", stored.DisplayName)
	assert.True(t, stored.EmailVerified)

	// Changing the address always clears verification.
	snapshot.Email = "b@x.com"
	snapshot.EmailVerified = true
	require.NoError(t, f.users.Update(ctx, snapshot))
	assert.False(t, f.storedUser(t, "u-1").EmailVerified)
}

/*
TestService_LoginWithHangingRedis verifies a Redis that accepts connections but
never replies only costs the per-call timeout.
*/
func TestService_LoginWithHangingRedis(t *testing.T) {
	client := goredis.NewClient(&goredis.Options{
		Addr:                  silentServer(t),
		ReadTimeout:           10 * time.Second,
		MaxRetries:            -1,
		ContextTimeoutEnabled: true,
	})
	t.Cleanup(func() { _ = client.Close() })

	f := newFixture(t)
	redisStore := cache.NewRedisStore(client, workerpool.New(1, time.Second), 50*time.Millisecond)
	users := auth.NewCachedUserRepository(f.store.Users(), redisStore, time.Minute)
	identities := auth.NewCachedIdentityRepository(f.store.Identities(), redisStore, time.Minute)
	service := auth.NewService(users, identities, f.hasher, f.tokens, auth.Options{TokenTTL: time.Hour})

	f.seedUser(t, "u-1", "a@x.com", "correct-horse", false)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	started := time.Now()
	for range 3 {
		_, err := service.Login(ctx, "a@x.com", "correct-horse")
		require.NoError(t, err)
	}
	assert.Less(t, time.Since(started), 5*time.Second)
}
