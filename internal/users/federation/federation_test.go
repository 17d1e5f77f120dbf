// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package federation_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/yomira-identity/internal/platform/apperr"
	"github.com/taibuivan/yomira-identity/internal/users/federation"
)

// userinfoServer answers with body when the bearer token is "good-token".
func userinfoServer(t *testing.T, body string) *httptest.Server {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer good-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestResolve_Google(t *testing.T) {
	server := userinfoServer(t, `{"sub":"1234567890","email":"Test.User@example.com","email_verified":true,"name":"Test User"}`)
	resolver := federation.NewResolver(server.Client(), federation.NewGoogleProvider(server.URL))

	login, err := resolver.Resolve(context.Background(), "Google", "good-token")
	require.NoError(t, err)
	assert.Equal(t, "google", login.Provider)
	assert.Equal(t, "1234567890", login.ProviderUserID)
	assert.Equal(t, "Test.User@example.com", login.Email)
	assert.True(t, login.EmailVerified)
}

func TestResolve_Facebook(t *testing.T) {
	server := userinfoServer(t, `{"id":"f9","email":"a@x.com"}`)
	resolver := federation.NewResolver(server.Client(), federation.NewFacebookProvider(server.URL))

	login, err := resolver.Resolve(context.Background(), "facebook", "good-token")
	require.NoError(t, err)
	assert.Equal(t, "f9", login.ProviderUserID)
	assert.True(t, login.EmailVerified)
}

func TestResolve_Failures(t *testing.T) {
	noEmail := userinfoServer(t, `{"id":"f9"}`)
	broken := userinfoServer(t, `not json`)
	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(down.Close)

	tests := []struct {
		name     string
		provider *federation.Provider
		key      string
		token    string
		check    func(t *testing.T, err error)
	}{
		{
			name: "unknown_provider", provider: federation.NewGoogleProvider(noEmail.URL), key: "github", token: "good-token",
			check: func(t *testing.T, err error) { assert.ErrorIs(t, err, apperr.ErrNotFound) },
		},
		{
			name: "rejected_token", provider: federation.NewFacebookProvider(noEmail.URL), key: "facebook", token: "bad-token",
			check: func(t *testing.T, err error) { assert.True(t, apperr.HasCode(err, apperr.CodeUnauthorized)) },
		},
		{
			name: "no_email", provider: federation.NewFacebookProvider(noEmail.URL), key: "facebook", token: "good-token",
			check: func(t *testing.T, err error) { assert.ErrorIs(t, err, apperr.ErrUnprocessable) },
		},
		{
			name: "undecodable", provider: federation.NewGoogleProvider(broken.URL), key: "google", token: "good-token",
			check: func(t *testing.T, err error) { assert.ErrorIs(t, err, federation.ErrFetchUserInfoFailed) },
		},
		{
			name: "provider_down", provider: federation.NewGoogleProvider(down.URL), key: "google", token: "good-token",
			check: func(t *testing.T, err error) {
				assert.True(t, apperr.HasCode(err, apperr.CodeServiceUnavailable))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resolver := federation.NewResolver(nil, tt.provider)
			_, err := resolver.Resolve(context.Background(), tt.key, tt.token)
			require.Error(t, err)
			tt.check(t, err)
		})
	}
}
