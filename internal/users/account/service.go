// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package account

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/taibuivan/yomira-identity/internal/platform/apperr"
	"github.com/taibuivan/yomira-identity/internal/platform/ctxutil"
	"github.com/taibuivan/yomira-identity/internal/users/auth"
	"github.com/taibuivan/yomira-identity/pkg/pagination"
)

// # Service Layer

// Service orchestrates profile reads and edits for user accounts.
type Service struct {
	accountRepository AccountRepository
}

// NewService constructs a new [Service] with its repository dependency.
func NewService(accountRepo AccountRepository) *Service {
	return &Service{accountRepository: accountRepo}
}

// # Profile Management

/*
GetProfile retrieves the full private profile of a user.

Parameters:
  - context: context.Context
  - userID: string

Returns:
  - *auth.User: The hydrated user profile
  - error: Not found or execution failures
*/
func (service *Service) GetProfile(context context.Context, userID string) (*auth.User, error) {
	user, err := service.accountRepository.FindByID(context, userID)
	if err != nil {
		return nil, fmt.Errorf("account_service_get_profile_failed: %w", err)
	}
	return user, nil
}

/*
UpdateProfile applies a partial set of changes to a user's profile.

Description: Fetches the existing user state, overrides provided fields, and
writes the result. The repository stores a changed email unverified; the
next trusted provider login for that address verifies it again.

Parameters:
  - context: context.Context
  - userID: string
  - input: UpdateProfileInput

Returns:
  - *auth.User: The updated user profile
  - error: CONFLICT when the email belongs to another account, or storage failures
*/
func (service *Service) UpdateProfile(context context.Context, userID string, input UpdateProfileInput) (*auth.User, error) {
	user, err := service.accountRepository.FindByID(context, userID)
	if err != nil {
		return nil, fmt.Errorf("account_service_update_lookup_failed: %w", err)
	}

	// Apply delta updates
	if input.DisplayName != nil {
		user.DisplayName = strings.TrimSpace(*input.DisplayName)
	}

	emailChanged := false
	if input.Email != nil {
		email := auth.NormalizeEmail(*input.Email)
		if email != user.Email {
			user.Email = email
			emailChanged = true
		}
	}

	// Persist changes
	if err := service.accountRepository.Update(context, user); err != nil {
		if apperr.HasCode(err, apperr.CodeConflict) {
			return nil, apperr.Conflict("Email is already registered")
		}
		return nil, fmt.Errorf("account_service_update_failed: %w", err)
	}

	ctxutil.GetLogger(context).Info("user_profile_updated",
		slog.String("user_id", userID),
		slog.Bool("email_changed", emailChanged),
	)

	return user, nil
}

/*
DeleteAccount deactivates the caller's own account.

Description: Issued tokens stay valid until they expire, but renewal and
every lookup fail from now on.

Parameters:
  - context: context.Context
  - userID: string

Returns:
  - error: Execution failures
*/
func (service *Service) DeleteAccount(context context.Context, userID string) error {
	if err := service.accountRepository.SoftDelete(context, userID); err != nil {
		return fmt.Errorf("account_service_delete_failed: %w", err)
	}

	ctxutil.GetLogger(context).Warn("user_account_deleted", slog.String("user_id", userID))

	return nil
}

// # Administration

/*
Deactivate soft-deletes another user's account.

Parameters:
  - context: context.Context
  - actorID: string (The administrator performing the action)
  - userID: string

Returns:
  - error: UNPROCESSABLE when an administrator targets themselves, NOT_FOUND, or storage failures
*/
func (service *Service) Deactivate(context context.Context, actorID, userID string) error {
	if actorID == userID {
		return apperr.Unprocessable("Administrators cannot deactivate their own account")
	}

	if err := service.accountRepository.SoftDelete(context, userID); err != nil {
		return fmt.Errorf("account_service_deactivate_failed: %w", err)
	}

	ctxutil.GetLogger(context).Warn("user_account_deactivated",
		slog.String("user_id", userID),
		slog.String("actor_id", actorID),
	)

	return nil
}

/*
List returns one page of active accounts, newest first.

Parameters:
  - context: context.Context
  - params: pagination.Params

Returns:
  - []*auth.User: The page
  - int: Total active accounts
  - error: Storage failures
*/
func (service *Service) List(context context.Context, params pagination.Params) ([]*auth.User, int, error) {
	users, total, err := service.accountRepository.List(context, params.Offset(), params.Limit)
	if err != nil {
		return nil, 0, fmt.Errorf("account_service_list_failed: %w", err)
	}
	return users, total, nil
}
