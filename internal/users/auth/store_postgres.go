// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taibuivan/yomira-identity/internal/platform/apperr"
	"github.com/taibuivan/yomira-identity/internal/platform/database/schema"
	"github.com/taibuivan/yomira-identity/internal/platform/dberr"
	"github.com/taibuivan/yomira-identity/internal/platform/sec"
	"github.com/taibuivan/yomira-identity/internal/platform/workerpool"
)

// Resource names used in NOT_FOUND and CONFLICT messages.
const (
	resourceUser     = "User"
	resourceIdentity = "Identity"
)

var (
	selectAccount  = fmt.Sprintf("SELECT %s FROM %s", schema.UserAccount.Select(), schema.UserAccount.Table)
	selectIdentity = fmt.Sprintf("SELECT %s FROM %s", schema.UserIdentity.Select(), schema.UserIdentity.Table)
)

// # Dispatch

// database runs statements on the pgx pool through the bounded worker pool.
type database struct {
	pool    *pgxpool.Pool
	workers *workerpool.Pool
}

func (db database) exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	return workerpool.Submit(ctx, db.workers, func(ctx context.Context) (pgconn.CommandTag, error) {
		return db.pool.Exec(ctx, query, args...)
	})
}

// queryRow runs a single-row query and scans it while still holding the worker slot.
func queryRow[T any](ctx context.Context, db database, scan func(pgx.Row) (T, error), query string, args ...any) (T, error) {
	return workerpool.Submit(ctx, db.workers, func(ctx context.Context) (T, error) {
		return scan(db.pool.QueryRow(ctx, query, args...))
	})
}

// queryRows runs a multi-row query and collects every row.
func queryRows[T any](ctx context.Context, db database, scan func(pgx.Row) (T, error), query string, args ...any) ([]T, error) {
	return workerpool.Submit(ctx, db.workers, func(ctx context.Context) ([]T, error) {
		rows, err := db.pool.Query(ctx, query, args...)
		if err != nil {
			return nil, err
		}
		return pgx.CollectRows(rows, func(row pgx.CollectableRow) (T, error) {
			return scan(row)
		})
	})
}

// requireRow maps a zero-row write to NOT_FOUND.
func requireRow(tag pgconn.CommandTag, resource string) error {
	if tag.RowsAffected() == 0 {
		return apperr.NotFound(resource)
	}
	return nil
}

// # User Repository

// PostgresUserRepository implements the UserRepository interface using pgx.
type PostgresUserRepository struct {
	db  database
	now func() time.Time
}

// NewUserRepository creates a new PostgreSQL implementation of the UserRepository.
func NewUserRepository(pool *pgxpool.Pool, workers *workerpool.Pool) *PostgresUserRepository {
	return &PostgresUserRepository{db: database{pool: pool, workers: workers}, now: time.Now}
}

func scanUser(row pgx.Row) (*User, error) {
	user := &User{}
	var passwordHash *string
	var role string

	err := row.Scan(
		&user.ID,
		&user.Email,
		&passwordHash,
		&user.DisplayName,
		&role,
		&user.EmailVerified,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if passwordHash != nil {
		user.PasswordHash = *passwordHash
	}
	user.Role = sec.UserRole(role)

	return user, nil
}

// nullableHash stores identity-only accounts as NULL rather than an empty digest.
func nullableHash(hash string) *string {
	if hash == "" {
		return nil
	}
	return &hash
}

/*
Create persists a new user record into the users.account table.

Description: Initializes timestamps, then inserts in one statement. The
partial unique index on email turns a concurrent duplicate into CONFLICT.

Parameters:
  - context: context.Context
  - user: *User (Entity to persist)

Returns:
  - error: CONFLICT, RESOURCE_EXHAUSTED, STORE_UNAVAILABLE or INTERNAL_ERROR
*/
func (repository *PostgresUserRepository) Create(context context.Context, user *User) error {
	const query = `
		INSERT INTO users.account (
			id, email, passwordhash, displayname, role, emailverified, createdat, updatedat
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	now := repository.now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now

	_, err := repository.db.exec(context, query,
		user.ID,
		user.Email,
		nullableHash(user.PasswordHash),
		user.DisplayName,
		string(user.Role),
		user.EmailVerified,
		user.CreatedAt,
		user.UpdatedAt,
	)

	if err != nil {
		return dberr.Wrap(fmt.Errorf("postgres_user_repo_create_failed: %w", err), resourceUser)
	}

	return nil
}

/*
FindByEmail retrieves a user record by their unique email address.

Description: Performs a lookup on the account table, filtering out soft-deleted users.

Parameters:
  - context: context.Context
  - email: string (normalized)

Returns:
  - *User: Hydrated account entity
  - error: apperr.NotFound or database errors
*/
func (repository *PostgresUserRepository) FindByEmail(context context.Context, email string) (*User, error) {
	query := selectAccount + " WHERE email = $1 AND deletedat IS NULL"

	user, err := queryRow(context, repository.db, scanUser, query, email)
	if err != nil {
		return nil, dberr.Wrap(fmt.Errorf("postgres_user_repo_find_by_email_failed: %w", err), resourceUser)
	}

	return user, nil
}

/*
FindByID retrieves a user record by their unique ID.

Description: Primary key resolution for user accounts. An ID that is not a
UUID cannot exist and is reported as NOT_FOUND without a round trip.

Parameters:
  - context: context.Context
  - id: string (UUIDv7)

Returns:
  - *User: Hydrated account entity
  - error: Not found or execution errors
*/
func (repository *PostgresUserRepository) FindByID(context context.Context, id string) (*User, error) {
	if uuid.Validate(id) != nil {
		return nil, apperr.NotFound(resourceUser)
	}

	query := selectAccount + " WHERE id = $1 AND deletedat IS NULL"

	user, err := queryRow(context, repository.db, scanUser, query, id)
	if err != nil {
		return nil, dberr.Wrap(fmt.Errorf("postgres_user_repo_find_by_id_failed: %w", err), resourceUser)
	}

	return user, nil
}

/*
Update persists changes to a user's mutable profile fields.

Description: Synchronizes email and display name, refreshing the updatedat
timestamp. email_verified is never taken from the caller: it survives when the
email is unchanged and is cleared when it changes, decided against the row as
it is at write time. The stored flag is copied back into user.

Parameters:
  - context: context.Context
  - user: *User

Returns:
  - error: Update failures
*/
func (repository *PostgresUserRepository) Update(context context.Context, user *User) error {
	if uuid.Validate(user.ID) != nil {
		return apperr.NotFound(resourceUser)
	}

	const query = `
		UPDATE users.account
		SET emailverified = CASE WHEN email = $2 THEN emailverified ELSE FALSE END,
		    email = $2, displayname = $3, updatedat = $4
		WHERE id = $1 AND deletedat IS NULL
		RETURNING emailverified`

	user.UpdatedAt = repository.now().UTC()
	verified, err := queryRow(context, repository.db, func(row pgx.Row) (bool, error) {
		var verified bool
		return verified, row.Scan(&verified)
	}, query,
		user.ID,
		user.Email,
		user.DisplayName,
		user.UpdatedAt,
	)

	if err != nil {
		return dberr.Wrap(fmt.Errorf("postgres_user_repo_update_failed: %w", err), resourceUser)
	}

	user.EmailVerified = verified
	return nil
}

/*
UpdatePassword updates only the password hash for a specific user.

Parameters:
  - context: context.Context
  - userID: string
  - newHash: string

Returns:
  - error: Execution errors
*/
func (repository *PostgresUserRepository) UpdatePassword(context context.Context, userID, newHash string) error {
	if uuid.Validate(userID) != nil {
		return apperr.NotFound(resourceUser)
	}

	const query = `
		UPDATE users.account
		SET passwordhash = $2, updatedat = $3
		WHERE id = $1 AND deletedat IS NULL`

	tag, err := repository.db.exec(context, query, userID, nullableHash(newHash), repository.now().UTC())
	if err != nil {
		return dberr.Wrap(fmt.Errorf("postgres_user_repo_update_password_failed: %w", err), resourceUser)
	}

	return requireRow(tag, resourceUser)
}

/*
MarkEmailVerified sets emailverified to TRUE.

Description: The statement only ever writes TRUE, so concurrent calls
converge and a verified account can never be downgraded here.

Parameters:
  - context: context.Context
  - userID: string

Returns:
  - error: Database errors
*/
func (repository *PostgresUserRepository) MarkEmailVerified(context context.Context, userID string) error {
	if uuid.Validate(userID) != nil {
		return apperr.NotFound(resourceUser)
	}

	const query = `
		UPDATE users.account
		SET emailverified = TRUE, updatedat = $2
		WHERE id = $1 AND deletedat IS NULL`

	tag, err := repository.db.exec(context, query, userID, repository.now().UTC())
	if err != nil {
		return dberr.Wrap(fmt.Errorf("postgres_user_repo_mark_verified_failed: %w", err), resourceUser)
	}

	return requireRow(tag, resourceUser)
}

/*
SoftDelete marks a user account as deleted using their ID.

Description: Retention-friendly deletion by setting deletedat.

Parameters:
  - context: context.Context
  - id: string

Returns:
  - error: Side-effect failures
*/
func (repository *PostgresUserRepository) SoftDelete(context context.Context, id string) error {
	if uuid.Validate(id) != nil {
		return apperr.NotFound(resourceUser)
	}

	const query = "UPDATE users.account SET deletedat = $2, updatedat = $2 WHERE id = $1 AND deletedat IS NULL"

	tag, err := repository.db.exec(context, query, id, repository.now().UTC())
	if err != nil {
		return dberr.Wrap(fmt.Errorf("postgres_user_repo_soft_delete_failed: %w", err), resourceUser)
	}

	return requireRow(tag, resourceUser)
}

/*
List returns a page of active accounts ordered by creation time, newest first.

Parameters:
  - context: context.Context
  - offset: int
  - limit: int

Returns:
  - []*User: Page of accounts
  - int: Total number of active accounts
  - error: Database errors
*/
func (repository *PostgresUserRepository) List(context context.Context, offset, limit int) ([]*User, int, error) {
	const countQuery = "SELECT COUNT(*) FROM users.account WHERE deletedat IS NULL"

	total, err := queryRow(context, repository.db, func(row pgx.Row) (int, error) {
		var count int
		return count, row.Scan(&count)
	}, countQuery)
	if err != nil {
		return nil, 0, dberr.Wrap(fmt.Errorf("postgres_user_repo_count_failed: %w", err), resourceUser)
	}

	query := selectAccount + " WHERE deletedat IS NULL ORDER BY createdat DESC, id DESC LIMIT $1 OFFSET $2"

	users, err := queryRows(context, repository.db, scanUser, query, limit, offset)
	if err != nil {
		return nil, 0, dberr.Wrap(fmt.Errorf("postgres_user_repo_list_failed: %w", err), resourceUser)
	}

	return users, total, nil
}

// # Identity Repository

// PostgresIdentityRepository implements the IdentityRepository interface.
type PostgresIdentityRepository struct {
	db  database
	now func() time.Time
}

// NewIdentityRepository creates a new PostgreSQL implementation of IdentityRepository.
func NewIdentityRepository(pool *pgxpool.Pool, workers *workerpool.Pool) *PostgresIdentityRepository {
	return &PostgresIdentityRepository{db: database{pool: pool, workers: workers}, now: time.Now}
}

func scanIdentity(row pgx.Row) (*Identity, error) {
	identity := &Identity{}
	err := row.Scan(
		&identity.ID,
		&identity.UserID,
		&identity.Provider,
		&identity.ProviderUserID,
		&identity.Email,
		&identity.EmailVerified,
		&identity.CreatedAt,
		&identity.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return identity, nil
}

/*
Create persists a new identity link into the users.identity table.

Description: Either unique constraint (provider subject, or one identity per
provider per account) turns a concurrent duplicate into CONFLICT.

Parameters:
  - context: context.Context
  - identity: *Identity

Returns:
  - error: CONFLICT or storage failures
*/
func (repository *PostgresIdentityRepository) Create(context context.Context, identity *Identity) error {
	const query = `
		INSERT INTO users.identity (
			id, accountid, provider, provideruserid, email, emailverified, createdat, updatedat
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	now := repository.now().UTC()
	if identity.CreatedAt.IsZero() {
		identity.CreatedAt = now
	}
	identity.UpdatedAt = now

	_, err := repository.db.exec(context, query,
		identity.ID,
		identity.UserID,
		identity.Provider,
		identity.ProviderUserID,
		identity.Email,
		identity.EmailVerified,
		identity.CreatedAt,
		identity.UpdatedAt,
	)

	if err != nil {
		return dberr.Wrap(fmt.Errorf("postgres_identity_repo_create_failed: %w", err), resourceIdentity)
	}

	return nil
}

/*
FindByProvider resolves a provider subject into its linked identity.

Parameters:
  - context: context.Context
  - provider: string
  - providerUserID: string

Returns:
  - *Identity: Hydrated identity
  - error: apperr.NotFound or execution errors
*/
func (repository *PostgresIdentityRepository) FindByProvider(context context.Context, provider, providerUserID string) (*Identity, error) {
	query := selectIdentity + " WHERE provider = $1 AND provideruserid = $2"

	identity, err := queryRow(context, repository.db, scanIdentity, query, provider, providerUserID)
	if err != nil {
		return nil, dberr.Wrap(fmt.Errorf("postgres_identity_repo_find_failed: %w", err), resourceIdentity)
	}

	return identity, nil
}

/*
ListByUser returns every identity linked to an account.

Parameters:
  - context: context.Context
  - userID: string

Returns:
  - []*Identity: Linked identities, oldest first
  - error: Execution errors
*/
func (repository *PostgresIdentityRepository) ListByUser(context context.Context, userID string) ([]*Identity, error) {
	if uuid.Validate(userID) != nil {
		return []*Identity{}, nil
	}

	query := selectIdentity + " WHERE accountid = $1 ORDER BY createdat ASC"

	identities, err := queryRows(context, repository.db, scanIdentity, query, userID)
	if err != nil {
		return nil, dberr.Wrap(fmt.Errorf("postgres_identity_repo_list_failed: %w", err), resourceIdentity)
	}

	return identities, nil
}

/*
Update refreshes the provider-reported email and verification flag.

Parameters:
  - context: context.Context
  - identity: *Identity

Returns:
  - error: Execution errors
*/
func (repository *PostgresIdentityRepository) Update(context context.Context, identity *Identity) error {
	const query = `
		UPDATE users.identity
		SET email = $3, emailverified = $4, updatedat = $5
		WHERE provider = $1 AND provideruserid = $2`

	identity.UpdatedAt = repository.now().UTC()
	tag, err := repository.db.exec(context, query,
		identity.Provider,
		identity.ProviderUserID,
		identity.Email,
		identity.EmailVerified,
		identity.UpdatedAt,
	)
	if err != nil {
		return dberr.Wrap(fmt.Errorf("postgres_identity_repo_update_failed: %w", err), resourceIdentity)
	}

	return requireRow(tag, resourceIdentity)
}

/*
Delete unlinks an identity.

Parameters:
  - context: context.Context
  - provider: string
  - providerUserID: string

Returns:
  - error: Execution errors
*/
func (repository *PostgresIdentityRepository) Delete(context context.Context, provider, providerUserID string) error {
	const query = "DELETE FROM users.identity WHERE provider = $1 AND provideruserid = $2"

	tag, err := repository.db.exec(context, query, provider, providerUserID)
	if err != nil {
		return dberr.Wrap(fmt.Errorf("postgres_identity_repo_delete_failed: %w", err), resourceIdentity)
	}

	return requireRow(tag, resourceIdentity)
}
