// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package authtest provides in-memory repositories for tests.

They enforce the same uniqueness rules as the Postgres schema and report the
same error kinds, so service behavior under races and conflicts can be
exercised without a database.
*/
package authtest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/taibuivan/yomira-identity/internal/platform/apperr"
	"github.com/taibuivan/yomira-identity/internal/users/auth"
)

// Hook runs before a repository operation. A non-nil return aborts it.
type Hook func(operation string) error

// Store holds users and identities behind one lock, like a single database.
type Store struct {
	mu sync.Mutex

	users      map[string]*auth.User
	deleted    map[string]bool
	identities map[string]*auth.Identity
	calls      map[string]int
	hook       Hook
	now        func() time.Time
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		users:      make(map[string]*auth.User),
		deleted:    make(map[string]bool),
		identities: make(map[string]*auth.Identity),
		calls:      make(map[string]int),
		now:        time.Now,
	}
}

// SetHook installs a hook consulted before every operation.
func (store *Store) SetHook(hook Hook) {
	store.mu.Lock()
	defer store.mu.Unlock()
	store.hook = hook
}

// Calls reports how many times an operation reached the store, e.g. "user.FindByID".
func (store *Store) Calls(operation string) int {
	store.mu.Lock()
	defer store.mu.Unlock()
	return store.calls[operation]
}

// Users returns the repository view over users.
func (store *Store) Users() *UserRepository {
	return &UserRepository{store: store}
}

// Identities returns the repository view over identities.
func (store *Store) Identities() *IdentityRepository {
	return &IdentityRepository{store: store}
}

// CountUsers returns the number of active users.
func (store *Store) CountUsers() int {
	store.mu.Lock()
	defer store.mu.Unlock()
	return len(store.users) - len(store.deleted)
}

// CountIdentities returns the number of identities.
func (store *Store) CountIdentities() int {
	store.mu.Lock()
	defer store.mu.Unlock()
	return len(store.identities)
}

// enter records the call and runs the hook. Callers must hold mu.
func (store *Store) enter(ctx context.Context, operation string) error {
	store.calls[operation]++
	if err := ctx.Err(); err != nil {
		return err
	}
	if store.hook != nil {
		return store.hook(operation)
	}
	return nil
}

func (store *Store) activeUser(id string) (*auth.User, bool) {
	user, ok := store.users[id]
	if !ok || store.deleted[id] {
		return nil, false
	}
	return user, true
}

func (store *Store) emailTaken(email, exceptID string) bool {
	for id, user := range store.users {
		if id != exceptID && !store.deleted[id] && user.Email == email {
			return true
		}
	}
	return false
}

func identityKey(provider, providerUserID string) string {
	return provider + "\x00" + providerUserID
}

func copyUser(user *auth.User) *auth.User {
	clone := *user
	return &clone
}

func copyIdentity(identity *auth.Identity) *auth.Identity {
	clone := *identity
	return &clone
}

// # Users

// UserRepository implements [auth.UserRepository] in memory.
type UserRepository struct {
	store *Store
}

func (repository *UserRepository) FindByID(ctx context.Context, id string) (*auth.User, error) {
	store := repository.store
	store.mu.Lock()
	defer store.mu.Unlock()

	if err := store.enter(ctx, "user.FindByID"); err != nil {
		return nil, err
	}
	user, ok := store.activeUser(id)
	if !ok {
		return nil, apperr.NotFound("User")
	}
	return copyUser(user), nil
}

func (repository *UserRepository) FindByEmail(ctx context.Context, email string) (*auth.User, error) {
	store := repository.store
	store.mu.Lock()
	defer store.mu.Unlock()

	if err := store.enter(ctx, "user.FindByEmail"); err != nil {
		return nil, err
	}
	for id, user := range store.users {
		if !store.deleted[id] && user.Email == email {
			return copyUser(user), nil
		}
	}
	return nil, apperr.NotFound("User")
}

func (repository *UserRepository) Create(ctx context.Context, user *auth.User) error {
	store := repository.store
	store.mu.Lock()
	defer store.mu.Unlock()

	if err := store.enter(ctx, "user.Create"); err != nil {
		return err
	}
	if _, exists := store.users[user.ID]; exists || store.emailTaken(user.Email, "") {
		return apperr.Conflict("User already exists")
	}

	now := store.now()
	user.CreatedAt, user.UpdatedAt = now, now
	store.users[user.ID] = copyUser(user)
	return nil
}

func (repository *UserRepository) Update(ctx context.Context, user *auth.User) error {
	store := repository.store
	store.mu.Lock()
	defer store.mu.Unlock()

	if err := store.enter(ctx, "user.Update"); err != nil {
		return err
	}
	current, ok := store.activeUser(user.ID)
	if !ok {
		return apperr.NotFound("User")
	}
	if store.emailTaken(user.Email, user.ID) {
		return apperr.Conflict("User already exists")
	}

	// Verification survives only an unchanged email, judged against the stored row.
	if current.Email != user.Email {
		current.EmailVerified = false
	}
	current.Email = user.Email
	current.DisplayName = user.DisplayName
	current.UpdatedAt = store.now()
	user.EmailVerified = current.EmailVerified
	user.UpdatedAt = current.UpdatedAt
	return nil
}

func (repository *UserRepository) UpdatePassword(ctx context.Context, userID, newHash string) error {
	store := repository.store
	store.mu.Lock()
	defer store.mu.Unlock()

	if err := store.enter(ctx, "user.UpdatePassword"); err != nil {
		return err
	}
	current, ok := store.activeUser(userID)
	if !ok {
		return apperr.NotFound("User")
	}
	current.PasswordHash = newHash
	current.UpdatedAt = store.now()
	return nil
}

func (repository *UserRepository) MarkEmailVerified(ctx context.Context, userID string) error {
	store := repository.store
	store.mu.Lock()
	defer store.mu.Unlock()

	if err := store.enter(ctx, "user.MarkEmailVerified"); err != nil {
		return err
	}
	current, ok := store.activeUser(userID)
	if !ok {
		return apperr.NotFound("User")
	}
	current.EmailVerified = true
	current.UpdatedAt = store.now()
	return nil
}

func (repository *UserRepository) SoftDelete(ctx context.Context, id string) error {
	store := repository.store
	store.mu.Lock()
	defer store.mu.Unlock()

	if err := store.enter(ctx, "user.SoftDelete"); err != nil {
		return err
	}
	if _, ok := store.activeUser(id); !ok {
		return apperr.NotFound("User")
	}
	store.deleted[id] = true
	return nil
}

func (repository *UserRepository) List(ctx context.Context, offset, limit int) ([]*auth.User, int, error) {
	store := repository.store
	store.mu.Lock()
	defer store.mu.Unlock()

	if err := store.enter(ctx, "user.List"); err != nil {
		return nil, 0, err
	}

	active := make([]*auth.User, 0, len(store.users))
	for id, user := range store.users {
		if !store.deleted[id] {
			active = append(active, copyUser(user))
		}
	}
	sort.Slice(active, func(i, j int) bool {
		if !active[i].CreatedAt.Equal(active[j].CreatedAt) {
			return active[i].CreatedAt.After(active[j].CreatedAt)
		}
		return active[i].ID > active[j].ID
	})

	total := len(active)
	if offset >= total {
		return []*auth.User{}, total, nil
	}
	end := min(offset+limit, total)
	return active[offset:end], total, nil
}

// # Identities

// IdentityRepository implements [auth.IdentityRepository] in memory.
type IdentityRepository struct {
	store *Store
}

func (repository *IdentityRepository) FindByProvider(ctx context.Context, provider, providerUserID string) (*auth.Identity, error) {
	store := repository.store
	store.mu.Lock()
	defer store.mu.Unlock()

	if err := store.enter(ctx, "identity.FindByProvider"); err != nil {
		return nil, err
	}
	identity, ok := store.identities[identityKey(provider, providerUserID)]
	if !ok {
		return nil, apperr.NotFound("Identity")
	}
	return copyIdentity(identity), nil
}

func (repository *IdentityRepository) ListByUser(ctx context.Context, userID string) ([]*auth.Identity, error) {
	store := repository.store
	store.mu.Lock()
	defer store.mu.Unlock()

	if err := store.enter(ctx, "identity.ListByUser"); err != nil {
		return nil, err
	}
	var identities []*auth.Identity
	for _, identity := range store.identities {
		if identity.UserID == userID {
			identities = append(identities, copyIdentity(identity))
		}
	}
	sort.Slice(identities, func(i, j int) bool { return identities[i].Provider < identities[j].Provider })
	return identities, nil
}

func (repository *IdentityRepository) Create(ctx context.Context, identity *auth.Identity) error {
	store := repository.store
	store.mu.Lock()
	defer store.mu.Unlock()

	if err := store.enter(ctx, "identity.Create"); err != nil {
		return err
	}
	if _, ok := store.users[identity.UserID]; !ok {
		return apperr.Unprocessable("Account does not exist")
	}
	key := identityKey(identity.Provider, identity.ProviderUserID)
	if _, exists := store.identities[key]; exists {
		return apperr.Conflict("Identity already exists")
	}
	for _, existing := range store.identities {
		if existing.UserID == identity.UserID && existing.Provider == identity.Provider {
			return apperr.Conflict("Identity already exists")
		}
	}

	now := store.now()
	identity.CreatedAt, identity.UpdatedAt = now, now
	store.identities[key] = copyIdentity(identity)
	return nil
}

func (repository *IdentityRepository) Update(ctx context.Context, identity *auth.Identity) error {
	store := repository.store
	store.mu.Lock()
	defer store.mu.Unlock()

	if err := store.enter(ctx, "identity.Update"); err != nil {
		return err
	}
	current, ok := store.identities[identityKey(identity.Provider, identity.ProviderUserID)]
	if !ok {
		return apperr.NotFound("Identity")
	}
	current.Email = identity.Email
	current.EmailVerified = identity.EmailVerified
	current.UpdatedAt = store.now()
	return nil
}

func (repository *IdentityRepository) Delete(ctx context.Context, provider, providerUserID string) error {
	store := repository.store
	store.mu.Lock()
	defer store.mu.Unlock()

	if err := store.enter(ctx, "identity.Delete"); err != nil {
		return err
	}
	key := identityKey(provider, providerUserID)
	if _, ok := store.identities[key]; !ok {
		return apperr.NotFound("Identity")
	}
	delete(store.identities, key)
	return nil
}

var (
	_ auth.UserRepository     = (*UserRepository)(nil)
	_ auth.IdentityRepository = (*IdentityRepository)(nil)
)
