package errors

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/render"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAPIErrorRendersSuccessFalse(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/api/license/XXXX", nil)

	require.NoError(t, render.Render(w, r, ErrLicenseNotFound))

	assert.Equal(t, http.StatusNotFound, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "License key not found", body["error"])
}

func TestPredefinedStatusCodes(t *testing.T) {
	tests := []struct {
		name string
		err  *APIError
		code int
	}{
		{"invalid request", ErrInvalidRequest, http.StatusBadRequest},
		{"missing key", ErrMissingKey, http.StatusBadRequest},
		{"too many keys", ErrTooManyKeys, http.StatusBadRequest},
		{"unauthorized", ErrUnauthorized, http.StatusUnauthorized},
		{"license not found", ErrLicenseNotFound, http.StatusNotFound},
		{"endpoint not found", ErrEndpointNotFound, http.StatusNotFound},
		{"rate limited", ErrRateLimitExceeded, http.StatusTooManyRequests},
		{"internal", ErrInternalServer, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, tt.err.StatusCode)
			assert.False(t, tt.err.Success)
			assert.NotEmpty(t, tt.err.Message)
		})
	}
}

func TestInternalHidesDetail(t *testing.T) {
	e := Internal(errors.New("database is on fire"))
	assert.Equal(t, "Internal server error", e.Message)
	assert.NotContains(t, e.Error(), "fire")
}

func TestAppErrorChaining(t *testing.T) {
	cause := errors.New("disk full")
	e := NewStorageError("failed to append audit entry", cause)

	assert.Equal(t, "[STORAGE] failed to append audit entry: disk full", e.Error())
	assert.True(t, errors.Is(e, cause))

	var app *AppError
	require.True(t, errors.As(error(e), &app))
	assert.Equal(t, ErrTypeStorage, app.Type)
}

func TestAppErrorWithoutCause(t *testing.T) {
	e := NewPermissionError("caller is not an administrator")
	assert.Equal(t, "[PERMISSION] caller is not an administrator", e.Error())
	assert.Nil(t, errors.Unwrap(e))
}
