// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/yomira-identity/internal/platform/apperr"
	"github.com/taibuivan/yomira-identity/internal/platform/middleware"
	"github.com/taibuivan/yomira-identity/internal/platform/sec"
	"github.com/taibuivan/yomira-identity/internal/users/auth"
)

// stubResolver answers token logins from a fixed table.
type stubResolver map[string]auth.ExternalLogin

func (resolver stubResolver) Resolve(_ context.Context, provider, accessToken string) (auth.ExternalLogin, error) {
	login, ok := resolver[provider+"/"+accessToken]
	if !ok {
		return auth.ExternalLogin{}, apperr.Unauthorized("Provider rejected the access token")
	}
	return login, nil
}

type envelope struct {
	Data    map[string]any      `json:"data"`
	Code    string              `json:"code"`
	Error   string              `json:"error"`
	Details []apperr.FieldError `json:"details"`
}

func newRouter(f *fixture, resolver auth.ExternalResolver) http.Handler {
	router := chi.NewRouter()
	router.Use(middleware.Authenticate(f.service))
	router.Mount("/api/v1/auth", auth.NewHandler(f.service, resolver).Routes())
	return router
}

func call(t *testing.T, handler http.Handler, method, path, token string, body any) (int, envelope) {
	t.Helper()

	var payload bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&payload).Encode(body))
	}

	request := httptest.NewRequest(method, path, &payload)
	request.Header.Set("Content-Type", "application/json")
	if token != "" {
		request.Header.Set("Authorization", "Bearer "+token)
	}

	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, request)

	var decoded envelope
	if recorder.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &decoded))
	}
	return recorder.Code, decoded
}

func TestHTTP_RegisterAndLogin(t *testing.T) {
	f := newFixture(t)
	router := newRouter(f, nil)

	status, body := call(t, router, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"email": "new@x.com", "password": "correct-horse", "display_name": "Tai",
	})
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "new@x.com", body.Data["email"])
	assert.NotContains(t, body.Data, "password_hash")

	status, body = call(t, router, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email": "new@x.com", "password": "correct-horse",
	})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, auth.TokenType, body.Data[auth.FieldTokenType])
	assert.EqualValues(t, 3600, body.Data[auth.FieldExpiresIn])
	assert.NotEmpty(t, body.Data[auth.FieldAccessToken])
}

func TestHTTP_RegisterValidation(t *testing.T) {
	f := newFixture(t)
	router := newRouter(f, nil)

	status, body := call(t, router, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"email": "not-an-email", "password": "short",
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, apperr.CodeValidation, body.Code)
	assert.Len(t, body.Details, 2)

	status, body = call(t, router, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"email": "a@x.com", "password": "correct-horse", "nickname": "unknown field",
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, apperr.CodeValidation, body.Code)
}

func TestHTTP_LoginFailureIsUniform(t *testing.T) {
	f := newFixture(t)
	f.seedUser(t, "u-1", "a@x.com", "correct-horse", false)
	router := newRouter(f, nil)

	wrongStatus, wrong := call(t, router, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email": "a@x.com", "password": "battery-staple",
	})
	unknownStatus, unknown := call(t, router, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email": "ghost@x.com", "password": "battery-staple",
	})

	assert.Equal(t, http.StatusUnauthorized, wrongStatus)
	assert.Equal(t, wrongStatus, unknownStatus)
	assert.Equal(t, wrong, unknown)
	assert.Equal(t, apperr.CodeAuthenticationFailed, wrong.Code)
}

func TestHTTP_VerifyToken(t *testing.T) {
	f := newFixture(t)
	f.seedUser(t, "u-1", "a@x.com", "correct-horse", false)
	router := newRouter(f, nil)

	result, err := f.service.Login(context.Background(), "a@x.com", "correct-horse")
	require.NoError(t, err)

	status, body := call(t, router, http.MethodPost, "/api/v1/auth/token/verify", "", map[string]string{"token": result.Token})
	require.Equal(t, http.StatusOK, status)
	claims := body.Data[auth.FieldClaims].(map[string]any)
	assert.Equal(t, "u-1", claims["uid"])

	f.now = f.now.Add(2 * time.Hour)
	status, body = call(t, router, http.MethodPost, "/api/v1/auth/token/verify", "", map[string]string{"token": result.Token})
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, apperr.CodeTokenExpired, body.Code)

	status, body = call(t, router, http.MethodPost, "/api/v1/auth/token/verify", "", map[string]string{"token": "garbage"})
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, apperr.CodeTokenInvalid, body.Code)
}

func TestHTTP_ExternalRequiresGateway(t *testing.T) {
	f := newFixture(t)
	f.seedUser(t, "member", "member@x.com", "correct-horse", false)
	router := newRouter(f, nil)

	payload := map[string]any{"provider": "google", "provider_user_id": "g123", "email": "a@x.com", "email_verified": true}

	status, _ := call(t, router, http.MethodPost, "/api/v1/auth/external", "", payload)
	assert.Equal(t, http.StatusUnauthorized, status)

	member, err := f.service.Login(context.Background(), "member@x.com", "correct-horse")
	require.NoError(t, err)
	status, _ = call(t, router, http.MethodPost, "/api/v1/auth/external", member.Token, payload)
	assert.Equal(t, http.StatusForbidden, status)

	gateway, err := f.tokens.Issue("gateway", sec.Grant{Role: string(sec.RoleAdmin)}, time.Hour)
	require.NoError(t, err)

	status, body := call(t, router, http.MethodPost, "/api/v1/auth/external", gateway, payload)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, string(auth.StatusCreated), body.Data[auth.FieldStatus])
}

func TestHTTP_ExternalToken(t *testing.T) {
	f := newFixture(t)
	router := newRouter(f, stubResolver{
		"google/good-token": googleLogin(true),
	})

	status, body := call(t, router, http.MethodPost, "/api/v1/auth/external/google", "", map[string]string{"access_token": "good-token"})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, string(auth.StatusCreated), body.Data[auth.FieldStatus])

	status, body = call(t, router, http.MethodPost, "/api/v1/auth/external/google", "", map[string]string{"access_token": "good-token"})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, string(auth.StatusExisting), body.Data[auth.FieldStatus])

	status, _ = call(t, router, http.MethodPost, "/api/v1/auth/external/google", "", map[string]string{"access_token": "bad-token"})
	assert.Equal(t, http.StatusUnauthorized, status)

	disabled := newRouter(f, nil)
	status, _ = call(t, disabled, http.MethodPost, "/api/v1/auth/external/google", "", map[string]string{"access_token": "good-token"})
	assert.Equal(t, http.StatusServiceUnavailable, status)
}

func TestHTTP_AuthenticatedRoutes(t *testing.T) {
	f := newFixture(t)
	f.seedUser(t, "u-1", "a@x.com", "correct-horse", false)
	f.seedIdentity(t, "u-1", "google", "g1", "a@x.com")
	router := newRouter(f, nil)

	status, _ := call(t, router, http.MethodGet, "/api/v1/auth/identities", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	login, err := f.service.Login(context.Background(), "a@x.com", "correct-horse")
	require.NoError(t, err)

	status, body := call(t, router, http.MethodPost, "/api/v1/auth/token/renew", login.Token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.NotEmpty(t, body.Data[auth.FieldAccessToken])

	status, _ = call(t, router, http.MethodPost, "/api/v1/auth/change-password", login.Token, map[string]string{
		"current_password": "correct-horse", "new_password": "brand-new-pass",
	})
	assert.Equal(t, http.StatusOK, status)

	status, _ = call(t, router, http.MethodDelete, "/api/v1/auth/identities/google", login.Token, nil)
	assert.Equal(t, http.StatusNoContent, status)

	status, _ = call(t, router, http.MethodDelete, "/api/v1/auth/identities/google", login.Token, nil)
	assert.Equal(t, http.StatusNotFound, status)
}
