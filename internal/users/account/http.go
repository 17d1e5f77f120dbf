// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package account

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/taibuivan/yomira-identity/internal/platform/apperr"
	"github.com/taibuivan/yomira-identity/internal/platform/middleware"
	requestutil "github.com/taibuivan/yomira-identity/internal/platform/request"
	"github.com/taibuivan/yomira-identity/internal/platform/respond"
	"github.com/taibuivan/yomira-identity/internal/platform/sec"
	"github.com/taibuivan/yomira-identity/internal/platform/validate"
	"github.com/taibuivan/yomira-identity/internal/users/auth"
	"github.com/taibuivan/yomira-identity/pkg/pagination"
)

// Handler implements the HTTP layer for user account management.
//
// # Security
//
// Every endpoint requires authentication; the /users endpoints also require
// the admin role.
type Handler struct {
	accountService *Service
}

// NewHandler constructs a new account [Handler].
func NewHandler(service *Service) *Handler {
	return &Handler{accountService: service}
}

// Routes returns a [chi.Router] configured with the account domain's endpoints.
func (handler *Handler) Routes() chi.Router {
	router := chi.NewRouter()

	// Account Management
	router.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth)
		r.Get("/me", handler.getMe)
		r.Patch("/me", handler.updateMe)
		r.Delete("/me", handler.deleteMe)
	})

	// Administration
	router.Group(func(r chi.Router) {
		r.Use(middleware.RequireRole(sec.RoleAdmin))
		r.Get("/users", handler.listUsers)
		r.Get("/users/{id}", handler.getUser)
		r.Delete("/users/{id}", handler.deactivateUser)
	})

	return router
}

// # User Profile Endpoints

/*
GET /api/v1/account/me.

Description: Retrieves the full private profile of the authenticated user.

Response:
  - 200: User: Fully hydrated user profile
  - 401: ErrUnauthorized: Authentication required
*/
func (handler *Handler) getMe(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	user, err := handler.accountService.GetProfile(request.Context(), userID)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, user)
}

// updateMeRequest defines the expected JSON payload for profile updates.
type updateMeRequest struct {
	DisplayName *string `json:"display_name"`
	Email       *string `json:"email"`
}

/*
PATCH /api/v1/account/me.

Description: Applies partial updates to the authenticated user's profile.

Request:
  - body: updateMeRequest (Partial JSON)

Response:
  - 200: User: The updated profile
  - 400: ErrInvalidJSON/Validation: Invalid input data
  - 409: ErrConflict: Email belongs to another account
*/
func (handler *Handler) updateMe(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	var input updateMeRequest
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	v := &validate.Validator{}
	if input.DisplayName != nil {
		v.MaxLen(auth.FieldDisplayName, *input.DisplayName, 100)
	}
	if input.Email != nil {
		v.Required(auth.FieldEmail, *input.Email).Email(auth.FieldEmail, *input.Email)
	}

	if err := v.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	user, err := handler.accountService.UpdateProfile(request.Context(), userID, UpdateProfileInput{
		DisplayName: input.DisplayName,
		Email:       input.Email,
	})
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, user)
}

/*
DELETE /api/v1/account/me.

Description: Deactivates the authenticated user's account.

Response:
  - 204: No Content: Account deactivated
  - 401: ErrUnauthorized: Authentication required
*/
func (handler *Handler) deleteMe(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	if err := handler.accountService.DeleteAccount(request.Context(), userID); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.NoContent(writer)
}

// # Administration Endpoints

/*
GET /api/v1/account/users.

Description: Lists active accounts, newest first.

Request:
  - page, limit: query parameters

Response:
  - 200: Paginated users
  - 400: ErrValidation: Malformed page or limit
  - 403: ErrForbidden: Admin role required
*/
func (handler *Handler) listUsers(writer http.ResponseWriter, request *http.Request) {
	params, err := pagination.Parse(request.URL.Query())
	if err != nil {
		var paramErr *pagination.ParamError
		if errors.As(err, &paramErr) {
			err = apperr.ValidationError("Invalid pagination", apperr.FieldError{Field: paramErr.Param, Message: paramErr.Reason})
		}
		respond.Error(writer, request, err)
		return
	}

	users, total, err := handler.accountService.List(request.Context(), params)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.Paginated(writer, users, pagination.NewMeta(params, total))
}

/*
GET /api/v1/account/users/{id}.

Response:
  - 200: User
  - 404: ErrNotFound: No active account with that ID
*/
func (handler *Handler) getUser(writer http.ResponseWriter, request *http.Request) {
	user, err := handler.accountService.GetProfile(request.Context(), requestutil.Param(request, "id"))
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, user)
}

/*
DELETE /api/v1/account/users/{id}.

Response:
  - 204: Account deactivated
  - 404: ErrNotFound: No active account with that ID
  - 422: Administrators cannot target themselves
*/
func (handler *Handler) deactivateUser(writer http.ResponseWriter, request *http.Request) {
	actorID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	if err := handler.accountService.Deactivate(request.Context(), actorID, requestutil.Param(request, "id")); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.NoContent(writer)
}
