// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package apperr defines the centralized error taxonomy for the identity service.

It provides a rich error type that bridges the gap between low-level storage,
cache and token errors and the HTTP responses produced by the delivery layer.

Architecture:

  - AppError: A struct containing a machine-readable Code and a client-safe message.
  - Kinds: Every failure mode of the credential core has its own Code, so callers
    can branch on kind (re-authenticate, retry, reject) without string matching.
  - Mapping: Explicit mapping from AppError to standard HTTP Status Codes.

Every error that leaves the service layer should be an [AppError] (or wrap one)
to ensure consistent API responses.
*/
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// # Error Codes

const (
	CodeNotFound             = "NOT_FOUND"
	CodeConflict             = "CONFLICT"
	CodeUnauthorized         = "UNAUTHORIZED"
	CodeAuthenticationFailed = "AUTHENTICATION_FAILED"
	CodeTokenExpired         = "TOKEN_EXPIRED"
	CodeTokenInvalid         = "TOKEN_INVALID"
	CodeForbidden            = "FORBIDDEN"
	CodeValidation           = "VALIDATION_ERROR"
	CodeRateLimited          = "RATE_LIMITED"
	CodeUnprocessable        = "UNPROCESSABLE"
	CodeResourceExhausted    = "RESOURCE_EXHAUSTED"
	CodeStoreUnavailable     = "STORE_UNAVAILABLE"
	CodeCacheUnavailable     = "CACHE_UNAVAILABLE"
	CodeInternal             = "INTERNAL_ERROR"
	CodeServiceUnavailable   = "SERVICE_UNAVAILABLE"
)

// Kind sentinels for use with [errors.Is]. Matching is by Code only.
var (
	ErrNotFound             = &AppError{Code: CodeNotFound}
	ErrConflict             = &AppError{Code: CodeConflict}
	ErrAuthenticationFailed = &AppError{Code: CodeAuthenticationFailed}
	ErrTokenExpired         = &AppError{Code: CodeTokenExpired}
	ErrTokenInvalid         = &AppError{Code: CodeTokenInvalid}
	ErrForbidden            = &AppError{Code: CodeForbidden}
	ErrValidation           = &AppError{Code: CodeValidation}
	ErrUnprocessable        = &AppError{Code: CodeUnprocessable}
	ErrResourceExhausted    = &AppError{Code: CodeResourceExhausted}
	ErrStoreUnavailable     = &AppError{Code: CodeStoreUnavailable}
	ErrCacheUnavailable     = &AppError{Code: CodeCacheUnavailable}
)

// AppError is the canonical error type for the identity API.
//
// It carries an HTTP status code, a machine-readable code, a client-safe
// message, and an optional slice of field-level validation errors.
//
// # Security
//
// The Cause field is for server-side logging only and is never sent to clients
// to avoid leaking internal implementation details (e.g., SQL queries).
type AppError struct {
	// Code is a machine-readable error identifier (e.g. "NOT_FOUND", "CONFLICT").
	Code string `json:"code"`
	// Message is a human-readable description safe to return to the client.
	Message string `json:"error"`
	// HTTPStatus is the HTTP response status code.
	HTTPStatus int `json:"-"`
	// Cause is the underlying error, used for server-side logging only.
	Cause error `json:"-"`
	// Details holds per-field validation errors for VALIDATION_ERROR responses.
	Details []FieldError `json:"details,omitempty"`
}

// FieldError represents a single field-level validation failure.
type FieldError struct {
	// Field is the JSON field name that failed validation.
	Field string `json:"field"`
	// Message is the human-readable description of the failure.
	Message string `json:"message"`
}

// Error implements the error interface. It returns the client-safe message.
func (e *AppError) Error() string {
	if e.Message == "" {
		return e.Code
	}
	return e.Message
}

// Unwrap allows [errors.Is] and [errors.As] to traverse the cause chain.
func (e *AppError) Unwrap() error { return e.Cause }

// Is reports whether target is an [*AppError] of the same kind.
//
// This lets callers write errors.Is(err, apperr.ErrConflict) regardless of the
// message or cause attached at the failure site.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	return ok && t.Code == e.Code
}

// # Client Errors (4xx)

// NotFound creates a 404 [AppError] for a named resource.
//
// Example:
//
//	apperr.NotFound("User") // Returns "User not found"
func NotFound(resource string) *AppError {
	return &AppError{
		Code:       CodeNotFound,
		Message:    resource + " not found",
		HTTPStatus: http.StatusNotFound,
	}
}

// Unauthorized creates a 401 [AppError].
func Unauthorized(msg string) *AppError {
	return &AppError{
		Code:       CodeUnauthorized,
		Message:    msg,
		HTTPStatus: http.StatusUnauthorized,
	}
}

// AuthenticationFailed creates the uniform 401 returned by every failed
// credential check. The message never reveals which part was wrong.
func AuthenticationFailed() *AppError {
	return &AppError{
		Code:       CodeAuthenticationFailed,
		Message:    "Invalid login credentials",
		HTTPStatus: http.StatusUnauthorized,
	}
}

// TokenExpired creates a 401 [AppError] telling the caller to re-authenticate.
func TokenExpired() *AppError {
	return &AppError{
		Code:       CodeTokenExpired,
		Message:    "Token has expired",
		HTTPStatus: http.StatusUnauthorized,
	}
}

// TokenInvalid creates a 401 [AppError] for malformed or tampered tokens.
func TokenInvalid(cause error) *AppError {
	return &AppError{
		Code:       CodeTokenInvalid,
		Message:    "Token is invalid",
		HTTPStatus: http.StatusUnauthorized,
		Cause:      cause,
	}
}

// Forbidden creates a 403 [AppError].
func Forbidden(msg string) *AppError {
	return &AppError{
		Code:       CodeForbidden,
		Message:    msg,
		HTTPStatus: http.StatusForbidden,
	}
}

// Conflict creates a 409 [AppError] for duplicate or unique-constraint violations.
func Conflict(msg string) *AppError {
	return &AppError{
		Code:       CodeConflict,
		Message:    msg,
		HTTPStatus: http.StatusConflict,
	}
}

// ValidationError creates a 400 [AppError] with optional per-field details.
func ValidationError(msg string, details ...FieldError) *AppError {
	return &AppError{
		Code:       CodeValidation,
		Message:    msg,
		HTTPStatus: http.StatusBadRequest,
		Details:    details,
	}
}

// RateLimited creates a 429 [AppError].
func RateLimited(retryAfterSeconds int) *AppError {
	return &AppError{
		Code:       CodeRateLimited,
		Message:    fmt.Sprintf("Too many requests. Try again in %ds.", retryAfterSeconds),
		HTTPStatus: http.StatusTooManyRequests,
	}
}

// Unprocessable creates a 422 [AppError] for semantically invalid input.
func Unprocessable(msg string) *AppError {
	return &AppError{
		Code:       CodeUnprocessable,
		Message:    msg,
		HTTPStatus: http.StatusUnprocessableEntity,
	}
}

// # Server Errors (5xx)

// Internal creates a 500 [AppError] wrapping an unexpected server-side error.
// The cause is stored for logging but is never sent to the client.
func Internal(cause error) *AppError {
	return &AppError{
		Code:       CodeInternal,
		Message:    "An unexpected error occurred",
		HTTPStatus: http.StatusInternalServerError,
		Cause:      cause,
	}
}

// ResourceExhausted creates a retriable 503 [AppError] for pool checkout timeouts.
func ResourceExhausted(cause error) *AppError {
	return &AppError{
		Code:       CodeResourceExhausted,
		Message:    "Service is busy, retry later",
		HTTPStatus: http.StatusServiceUnavailable,
		Cause:      cause,
	}
}

// StoreUnavailable creates a 503 [AppError] for relational store outages.
func StoreUnavailable(cause error) *AppError {
	return &AppError{
		Code:       CodeStoreUnavailable,
		Message:    "Storage is temporarily unavailable",
		HTTPStatus: http.StatusServiceUnavailable,
		Cause:      cause,
	}
}

// CacheUnavailable creates a 503 [AppError] for cache outages.
//
// It is absorbed by the cache-aside layer and should never reach a client.
func CacheUnavailable(cause error) *AppError {
	return &AppError{
		Code:       CodeCacheUnavailable,
		Message:    "Cache is temporarily unavailable",
		HTTPStatus: http.StatusServiceUnavailable,
		Cause:      cause,
	}
}

// ServiceUnavailable creates a 503 [AppError] for maintenance mode.
func ServiceUnavailable(msg string) *AppError {
	return &AppError{
		Code:       CodeServiceUnavailable,
		Message:    msg,
		HTTPStatus: http.StatusServiceUnavailable,
	}
}

// # Helpers

// IsAppError reports whether err (or any error in its chain) is an [*AppError].
func IsAppError(err error) bool {
	var ae *AppError
	return errors.As(err, &ae)
}

// As extracts the [*AppError] from err's chain. It returns nil if not found.
func As(err error) *AppError {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae
	}
	return nil
}

// HasCode reports whether err's chain contains an [*AppError] with the given code.
func HasCode(err error, code string) bool {
	ae := As(err)
	return ae != nil && ae.Code == code
}
