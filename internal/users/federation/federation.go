// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package federation turns a provider access token into an external login.

The client has already completed the provider's OAuth flow; this package only
calls the provider's userinfo endpoint with that token and reports who it
belongs to. Reconciliation then maps the result onto a local account.
*/
package federation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/oauth2"

	"github.com/taibuivan/yomira-identity/internal/platform/apperr"
	"github.com/taibuivan/yomira-identity/internal/users/auth"
)

const (
	// Default userinfo endpoints.
	GoogleUserInfoURL   = "https://openidconnect.googleapis.com/v1/userinfo"
	FacebookUserInfoURL = "https://graph.facebook.com/me?fields=id,email"

	defaultTimeout  = 5 * time.Second
	maxProfileBytes = 1 << 20
)

var (
	// ErrFetchUserInfoFailed wraps transport and decoding failures.
	ErrFetchUserInfoFailed = errors.New("federation: failed to fetch user info")
)

// Provider knows one provider's userinfo endpoint and response shape.
type Provider struct {
	name     string
	endpoint string
	parse    func(raw []byte) (auth.ExternalLogin, error)
}

// Name returns the provider key used in identities.
func (provider *Provider) Name() string { return provider.name }

// NewGoogleProvider reads the OpenID Connect userinfo document.
func NewGoogleProvider(endpoint string) *Provider {
	if endpoint == "" {
		endpoint = GoogleUserInfoURL
	}
	return &Provider{name: "google", endpoint: endpoint, parse: parseGoogle}
}

// NewFacebookProvider reads the Graph API "me" object.
func NewFacebookProvider(endpoint string) *Provider {
	if endpoint == "" {
		endpoint = FacebookUserInfoURL
	}
	return &Provider{name: "facebook", endpoint: endpoint, parse: parseFacebook}
}

func parseGoogle(raw []byte) (auth.ExternalLogin, error) {
	var info struct {
		Sub           string `json:"sub"`
		Email         string `json:"email"`
		EmailVerified bool   `json:"email_verified"`
	}
	if err := json.Unmarshal(raw, &info); err != nil {
		return auth.ExternalLogin{}, err
	}
	return auth.ExternalLogin{
		Provider:       "google",
		ProviderUserID: info.Sub,
		Email:          info.Email,
		EmailVerified:  info.EmailVerified,
	}, nil
}

// parseFacebook treats a returned email as verified: the Graph API only
// exposes confirmed addresses.
func parseFacebook(raw []byte) (auth.ExternalLogin, error) {
	var info struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	}
	if err := json.Unmarshal(raw, &info); err != nil {
		return auth.ExternalLogin{}, err
	}
	return auth.ExternalLogin{
		Provider:       "facebook",
		ProviderUserID: info.ID,
		Email:          info.Email,
		EmailVerified:  info.Email != "",
	}, nil
}

// # Resolver

// Resolver dispatches token lookups to the configured providers.
type Resolver struct {
	providers  map[string]*Provider
	httpClient *http.Client
}

// NewResolver registers providers by name. httpClient may be nil.
func NewResolver(httpClient *http.Client, providers ...*Provider) *Resolver {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}

	registry := make(map[string]*Provider, len(providers))
	for _, provider := range providers {
		registry[provider.name] = provider
	}
	return &Resolver{providers: registry, httpClient: httpClient}
}

/*
Resolve fetches the profile that accessToken belongs to.

Parameters:
  - context: context.Context
  - provider: string (e.g. "google")
  - accessToken: string

Returns:
  - auth.ExternalLogin: Identity reported by the provider
  - err: NOT_FOUND for unknown providers, UNAUTHORIZED when the provider
    rejects the token, SERVICE_UNAVAILABLE when it cannot be reached
*/
func (resolver *Resolver) Resolve(context context.Context, provider, accessToken string) (auth.ExternalLogin, error) {
	target, ok := resolver.providers[auth.NormalizeProvider(provider)]
	if !ok {
		return auth.ExternalLogin{}, apperr.NotFound("Provider")
	}

	// oauth2 attaches the bearer header and reuses our transport.
	ctx := withHTTPClient(context, resolver.httpClient)
	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"}))
	client.Timeout = resolver.httpClient.Timeout

	request, err := http.NewRequestWithContext(context, http.MethodGet, target.endpoint, nil)
	if err != nil {
		return auth.ExternalLogin{}, fmt.Errorf("%w: %w", ErrFetchUserInfoFailed, err)
	}
	request.Header.Set("Accept", "application/json")

	response, err := client.Do(request)
	if err != nil {
		if context.Err() != nil {
			return auth.ExternalLogin{}, context.Err()
		}
		return auth.ExternalLogin{}, apperr.ServiceUnavailable("Identity provider is unreachable")
	}
	defer response.Body.Close()

	switch {
	case response.StatusCode == http.StatusUnauthorized || response.StatusCode == http.StatusForbidden ||
		response.StatusCode == http.StatusBadRequest:
		return auth.ExternalLogin{}, apperr.Unauthorized("Provider rejected the access token")
	case response.StatusCode != http.StatusOK:
		return auth.ExternalLogin{}, apperr.ServiceUnavailable("Identity provider is unavailable")
	}

	raw, err := io.ReadAll(io.LimitReader(response.Body, maxProfileBytes))
	if err != nil {
		return auth.ExternalLogin{}, fmt.Errorf("%w: %w", ErrFetchUserInfoFailed, err)
	}

	login, err := target.parse(raw)
	if err != nil {
		return auth.ExternalLogin{}, fmt.Errorf("%w: %w", ErrFetchUserInfoFailed, err)
	}
	if login.ProviderUserID == "" || login.Email == "" {
		return auth.ExternalLogin{}, apperr.Unprocessable("Provider did not share an email address")
	}

	return login, nil
}

func withHTTPClient(ctx context.Context, client *http.Client) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, client)
}

var _ auth.ExternalResolver = (*Resolver)(nil)
