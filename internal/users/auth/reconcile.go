// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/taibuivan/yomira-identity/internal/platform/apperr"
	"github.com/taibuivan/yomira-identity/internal/platform/ctxutil"
	"github.com/taibuivan/yomira-identity/internal/platform/dberr"
	"github.com/taibuivan/yomira-identity/internal/platform/metrics"
	"github.com/taibuivan/yomira-identity/internal/platform/sec"
	"github.com/taibuivan/yomira-identity/pkg/uuid"
)

// # Identity Reconciliation

/*
ReconcileExternalLogin maps an upstream-authenticated identity onto a local account.

Description: Resolution order is identity, then email, then a new account.
Afterwards a trusted provider's verified email upgrades the account, and a
token is issued. No lock spans the steps; when a concurrent login wins an
insert race the whole resolution runs once more, and a second conflict is
returned to the caller.

Parameters:
  - context: context.Context
  - login: ExternalLogin

Returns:
  - *ReconcileResult: Token, account and how it was resolved
  - err: VALIDATION_ERROR, CONFLICT, FORBIDDEN or storage failures
*/
func (service *Service) ReconcileExternalLogin(context context.Context, login ExternalLogin) (*ReconcileResult, error) {
	login = login.Normalize()
	if err := validateExternalLogin(login); err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 1; attempt <= reconcileAttempts; attempt++ {
		user, status, err := service.resolve(context, login)
		if err == nil {
			return service.complete(context, login, user, status)
		}

		if !errors.Is(err, apperr.ErrConflict) {
			return nil, err
		}

		outcome := "retried"
		if attempt == reconcileAttempts {
			outcome = "surfaced"
		}
		metrics.ReconcileConflictsTotal.WithLabelValues(login.Provider, outcome).Inc()
		ctxutil.GetLogger(context).Warn(eventReconcileConflict,
			slog.String("provider", login.Provider),
			slog.String("provider_user_id", login.ProviderUserID),
			slog.Int("attempt", attempt),
			slog.String("outcome", outcome),
			slog.String("constraint", dberr.ConstraintName(err)),
			slog.Any("error", err),
		)

		lastErr = err
	}

	return nil, lastErr
}

// resolve runs the lookup and insert steps and reports which path was taken.
func (service *Service) resolve(context context.Context, login ExternalLogin) (*User, ReconcileStatus, error) {

	// 1. Already linked
	identity, err := service.identityRepository.FindByProvider(context, login.Provider, login.ProviderUserID)
	switch {
	case err == nil:
		user, err := service.owner(context, identity)
		if err != nil {
			return nil, "", err
		}
		if err := service.refreshIdentity(context, identity, login); err != nil {
			return nil, "", err
		}
		return user, StatusExisting, nil

	case !errors.Is(err, apperr.ErrNotFound):
		return nil, "", err
	}

	// 2a. Account-merge by email
	user, err := service.userRepository.FindByEmail(context, login.Email)
	switch {
	case err == nil:
		if err := service.identityRepository.Create(context, newIdentity(user.ID, login)); err != nil {
			return nil, "", err
		}
		return user, StatusLinked, nil

	case !errors.Is(err, apperr.ErrNotFound):
		return nil, "", err
	}

	// 2b. New password-less account
	user = &User{
		ID:            uuid.New(),
		Email:         login.Email,
		Role:          sec.RoleMember,
		EmailVerified: service.assertsVerified(login),
	}
	if err := service.userRepository.Create(context, user); err != nil {
		return nil, "", err
	}

	// A conflict here leaves the new account without an identity; the retry
	// resolves through whichever login won and the account stays unused.
	if err := service.identityRepository.Create(context, newIdentity(user.ID, login)); err != nil {
		return nil, "", err
	}

	return user, StatusCreated, nil
}

// owner loads the account an identity belongs to.
func (service *Service) owner(context context.Context, identity *Identity) (*User, error) {
	user, err := service.userRepository.FindByID(context, identity.UserID)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, apperr.Forbidden("The linked account is deactivated")
	}
	return user, err
}

// refreshIdentity stores the provider's latest email claims when they changed.
func (service *Service) refreshIdentity(context context.Context, identity *Identity, login ExternalLogin) error {
	if identity.Email == login.Email && identity.EmailVerified == login.EmailVerified {
		return nil
	}

	identity.Email = login.Email
	identity.EmailVerified = login.EmailVerified
	if err := service.identityRepository.Update(context, identity); err != nil {
		return fmt.Errorf("auth_service_identity_refresh_failed: %w", err)
	}
	return nil
}

// assertsVerified reports whether a login may upgrade an account with the same email.
func (service *Service) assertsVerified(login ExternalLogin) bool {
	return login.EmailVerified && service.IsTrusted(login.Provider)
}

/*
complete applies the verification rule, issues the token and records the outcome.

Description: The upgrade only ever sets email_verified to true, and only for
the address the provider vouched for.
*/
func (service *Service) complete(context context.Context, login ExternalLogin, user *User, status ReconcileStatus) (*ReconcileResult, error) {
	if service.assertsVerified(login) && !user.EmailVerified && user.Email == login.Email {
		if err := service.userRepository.MarkEmailVerified(context, user.ID); err != nil {
			return nil, fmt.Errorf("auth_service_mark_verified_failed: %w", err)
		}
		user.EmailVerified = true
	}

	token, err := service.issueToken(user)
	if err != nil {
		return nil, err
	}

	metrics.ReconcileTotal.WithLabelValues(login.Provider, string(status)).Inc()

	return &ReconcileResult{Token: token, User: user, Status: status}, nil
}

func newIdentity(userID string, login ExternalLogin) *Identity {
	return &Identity{
		ID:             uuid.New(),
		UserID:         userID,
		Provider:       login.Provider,
		ProviderUserID: login.ProviderUserID,
		Email:          login.Email,
		EmailVerified:  login.EmailVerified,
	}
}

func validateExternalLogin(login ExternalLogin) error {
	var details []apperr.FieldError

	if login.Provider == "" {
		details = append(details, apperr.FieldError{Field: FieldProvider, Message: "is required"})
	}
	if login.ProviderUserID == "" {
		details = append(details, apperr.FieldError{Field: FieldProviderUserID, Message: "is required"})
	}
	if login.Email == "" {
		details = append(details, apperr.FieldError{Field: FieldEmail, Message: "is required"})
	}

	if len(details) > 0 {
		return apperr.ValidationError("Invalid external login", details...)
	}
	return nil
}
