// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package respond_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/yomira-identity/internal/platform/apperr"
	"github.com/taibuivan/yomira-identity/internal/platform/respond"
)

func decodeError(t *testing.T, recorder *httptest.ResponseRecorder) respond.ErrorEnvelope {
	t.Helper()

	var envelope respond.ErrorEnvelope
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &envelope))
	return envelope
}

func TestError_Mapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"app_error", apperr.NotFound("User"), http.StatusNotFound, apperr.CodeNotFound},
		{"wrapped_app_error", errors.Join(errors.New("ctx"), apperr.Conflict("taken")), http.StatusConflict, apperr.CodeConflict},
		{"cancelled", context.Canceled, http.StatusServiceUnavailable, apperr.CodeServiceUnavailable},
		{"deadline", errors.Join(errors.New("postgres_user_repo_find_by_id_failed"), context.DeadlineExceeded), http.StatusServiceUnavailable, apperr.CodeServiceUnavailable},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, apperr.CodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recorder := httptest.NewRecorder()
			request := httptest.NewRequest(http.MethodGet, "/", nil)

			respond.Error(recorder, request, tt.err)

			assert.Equal(t, tt.status, recorder.Code)
			assert.Equal(t, tt.code, decodeError(t, recorder).Code)
		})
	}
}

func TestError_HidesInternalCause(t *testing.T) {
	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodGet, "/", nil)

	respond.Error(recorder, request, errors.New("pq: password authentication failed"))

	assert.NotContains(t, recorder.Body.String(), "pq:")
}

func TestError_RetryAfterOnExhaustion(t *testing.T) {
	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodGet, "/", nil)

	respond.Error(recorder, request, apperr.ResourceExhausted(errors.New("pool")))

	assert.Equal(t, "1", recorder.Header().Get("Retry-After"))
}

func TestOK_Envelope(t *testing.T) {
	recorder := httptest.NewRecorder()
	respond.OK(recorder, map[string]string{"status": "ok"})

	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.JSONEq(t, `{"data":{"status":"ok"}}`, recorder.Body.String())
}
