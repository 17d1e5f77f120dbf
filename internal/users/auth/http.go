// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/taibuivan/yomira-identity/internal/platform/apperr"
	"github.com/taibuivan/yomira-identity/internal/platform/middleware"
	requestutil "github.com/taibuivan/yomira-identity/internal/platform/request"
	"github.com/taibuivan/yomira-identity/internal/platform/respond"
	"github.com/taibuivan/yomira-identity/internal/platform/sec"
	"github.com/taibuivan/yomira-identity/internal/platform/validate"
)

// # Definitions & Constructors

// ExternalResolver exchanges a provider access token for the identity it belongs to.
type ExternalResolver interface {
	Resolve(context context.Context, provider, accessToken string) (ExternalLogin, error)
}

// Handler implements authentication-related HTTP endpoints.
//
// # Scope
//
// Password login, external-identity login, token verification and credential
// management for the signed-in account.
type Handler struct {
	authService *Service
	resolver    ExternalResolver
	throttle    []func(http.Handler) http.Handler
}

// NewHandler constructs a new [Handler]. resolver may be nil, which disables
// token-based external login. throttle guards the credential-checking routes.
func NewHandler(service *Service, resolver ExternalResolver, throttle ...func(http.Handler) http.Handler) *Handler {
	return &Handler{authService: service, resolver: resolver, throttle: throttle}
}

// Routes returns a [chi.Router] configured with authentication-specific routes.
//
// # Endpoints
//   - POST   /register              : Creates a password account.
//   - POST   /login                 : Authenticates with email and password.
//   - POST   /external              : Reconciles a gateway-asserted identity (admin token).
//   - POST   /external/{provider}   : Reconciles the owner of a provider access token.
//   - POST   /token/verify          : Returns the claims of a valid token.
//   - POST   /token/renew           : Issues a fresh token for the caller.
//   - POST   /change-password       : Replaces or sets the caller's password.
//   - GET    /identities            : Lists the caller's linked identities.
//   - DELETE /identities/{provider} : Unlinks one identity.
func (handler *Handler) Routes() chi.Router {
	router := chi.NewRouter()

	// Public endpoints
	router.Post("/token/verify", handler.verifyToken)

	// Credential checks are throttled per client
	router.Group(func(r chi.Router) {
		r.Use(handler.throttle...)
		r.Post("/register", handler.register)
		r.Post("/login", handler.login)
		r.Post("/external/{provider}", handler.externalToken)
	})

	// Gateway endpoints: the caller vouches for the identity it forwards
	router.Group(func(r chi.Router) {
		r.Use(middleware.RequireRole(sec.RoleAdmin))
		r.Post("/external", handler.external)
	})

	// Protected endpoints
	router.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth)
		r.Post("/token/renew", handler.renewToken)
		r.Post("/change-password", handler.changePassword)
		r.Get("/identities", handler.identities)
		r.Delete("/identities/{provider}", handler.unlink)
	})

	return router
}

// # Request Payloads

type registerRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type externalRequest struct {
	Provider       string `json:"provider"`
	ProviderUserID string `json:"provider_user_id"`
	Email          string `json:"email"`
	EmailVerified  bool   `json:"email_verified"`
}

type externalTokenRequest struct {
	AccessToken string `json:"access_token"`
}

type verifyTokenRequest struct {
	Token string `json:"token"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// # Response Payloads

func (handler *Handler) tokenResponse(token string, user *User) map[string]any {
	return map[string]any{
		FieldAccessToken: token,
		FieldTokenType:   TokenType,
		FieldExpiresIn:   int64(handler.authService.TokenTTL() / time.Second),
		FieldUser:        user,
	}
}

/*
Register handles the creation of a new password account.

POST /api/v1/auth/register

Request:
  - Body: registerRequest (Email, Password, DisplayName)

Response:
  - 201: User: Created user profile
  - 400: ErrInvalidJSON: Bad input or validation failure
  - 409: ErrConflict: Email already exists
*/
func (handler *Handler) register(writer http.ResponseWriter, request *http.Request) {
	var input registerRequest

	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	validator := &validate.Validator{}
	validator.Required(FieldEmail, input.Email).
		Email(FieldEmail, input.Email).
		MaxLen(FieldDisplayName, input.DisplayName, 100)
	validator.Password(FieldPassword, input.Password)

	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	user, err := handler.authService.Register(request.Context(), RegisterInput{
		Email:       input.Email,
		Password:    input.Password,
		DisplayName: input.DisplayName,
	})

	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.Created(writer, user)
}

/*
Login authenticates with email and password.

POST /api/v1/auth/login

Request:
  - Body: loginRequest (Email, Password)

Response:
  - 200: Token and User profile
  - 401: AUTHENTICATION_FAILED: Identical for unknown email and wrong password
*/
func (handler *Handler) login(writer http.ResponseWriter, request *http.Request) {
	var input loginRequest

	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	validator := &validate.Validator{}
	validator.Required(FieldEmail, input.Email)
	validator.Required(FieldPassword, input.Password)

	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	result, err := handler.authService.Login(request.Context(), input.Email, input.Password)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, handler.tokenResponse(result.Token, result.User))
}

/*
External reconciles an identity asserted by a trusted upstream gateway.

POST /api/v1/auth/external

Description: The gateway has already authenticated the user with the provider
and calls with its own admin token.

Request:
  - Body: externalRequest (Provider, ProviderUserID, Email, EmailVerified)

Response:
  - 200: Token, User profile and resolution status
  - 403: FORBIDDEN: Caller is not a gateway, or the linked account is deactivated
  - 409: CONFLICT: Concurrent logins collided twice
*/
func (handler *Handler) external(writer http.ResponseWriter, request *http.Request) {
	var input externalRequest

	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	validator := &validate.Validator{}
	validator.Required(FieldProvider, input.Provider).
		Required(FieldProviderUserID, input.ProviderUserID).
		Required(FieldEmail, input.Email).
		Email(FieldEmail, input.Email)

	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	handler.reconcile(writer, request, ExternalLogin{
		Provider:       input.Provider,
		ProviderUserID: input.ProviderUserID,
		Email:          input.Email,
		EmailVerified:  input.EmailVerified,
	})
}

/*
ExternalToken reconciles the owner of a provider access token.

POST /api/v1/auth/external/{provider}

Request:
  - Body: externalTokenRequest (AccessToken)

Response:
  - 200: Token, User profile and resolution status
  - 401: UNAUTHORIZED: The provider rejected the access token
  - 404: NOT_FOUND: Unknown provider
*/
func (handler *Handler) externalToken(writer http.ResponseWriter, request *http.Request) {
	if handler.resolver == nil {
		respond.Error(writer, request, apperr.ServiceUnavailable("Token login is not enabled"))
		return
	}

	var input externalTokenRequest
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	if input.AccessToken == "" {
		respond.Error(writer, request, validate.RequiredError(FieldAccessToken, "is required"))
		return
	}

	login, err := handler.resolver.Resolve(request.Context(), requestutil.Param(request, "provider"), input.AccessToken)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	handler.reconcile(writer, request, login)
}

func (handler *Handler) reconcile(writer http.ResponseWriter, request *http.Request, login ExternalLogin) {
	result, err := handler.authService.ReconcileExternalLogin(request.Context(), login)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	response := handler.tokenResponse(result.Token, result.User)
	response[FieldStatus] = result.Status
	respond.OK(writer, response)
}

/*
VerifyToken returns the claims of a token.

POST /api/v1/auth/token/verify

Request:
  - Body: verifyTokenRequest (Token)

Response:
  - 200: Claims
  - 401: TOKEN_EXPIRED (re-authenticate) or TOKEN_INVALID (reject)
*/
func (handler *Handler) verifyToken(writer http.ResponseWriter, request *http.Request) {
	var input verifyTokenRequest

	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	if input.Token == "" {
		respond.Error(writer, request, validate.RequiredError(FieldToken, "is required"))
		return
	}

	claims, err := handler.authService.VerifyToken(input.Token)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, map[string]any{FieldClaims: claims})
}

/*
RenewToken issues a fresh token for the authenticated caller.

POST /api/v1/auth/token/renew

Response:
  - 200: Token and User profile
  - 401: Authentication required
*/
func (handler *Handler) renewToken(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	result, err := handler.authService.RenewToken(request.Context(), userID)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, handler.tokenResponse(result.Token, result.User))
}

/*
ChangePassword updates the authenticated user's password.

POST /api/v1/auth/change-password

Description: The current password is required unless the account has none yet.

Request:
  - Body: changePasswordRequest (CurrentPassword, NewPassword)

Response:
  - 200: Success: Password changed
  - 401: AUTHENTICATION_FAILED: Current password is wrong
  - 400: Weak password or validation failure
*/
func (handler *Handler) changePassword(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	var input changePasswordRequest
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	validator := &validate.Validator{}
	validator.Password(FieldNewPassword, input.NewPassword)

	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	err = handler.authService.ChangePassword(request.Context(), userID, input.CurrentPassword, input.NewPassword)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, map[string]string{
		FieldMessage: "Password changed successfully",
	})
}

/*
Identities lists the caller's linked provider identities.

GET /api/v1/auth/identities
*/
func (handler *Handler) identities(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	identities, err := handler.authService.Identities(request.Context(), userID)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, identities)
}

/*
Unlink removes the caller's identity at a provider.

DELETE /api/v1/auth/identities/{provider}

Response:
  - 204: Unlinked
  - 404: No identity at that provider
  - 422: It is the account's only sign-in method
*/
func (handler *Handler) unlink(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	if err := handler.authService.Unlink(request.Context(), userID, requestutil.Param(request, "provider")); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.NoContent(writer)
}
