package types

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestErrorCode_HTTPStatus(t *testing.T) {
	cases := []struct {
		code ErrorCode
		want int
	}{
		{ErrCodeValidationInvalidEmail, http.StatusBadRequest},
		{ErrCodeValidationMissingField, http.StatusBadRequest},
		{ErrCodeAuthRequired, http.StatusUnauthorized},
		{ErrCodeAuthInvalidCreds, http.StatusUnauthorized},
		{ErrCodeAuthSessionExpired, http.StatusUnauthorized},
		{ErrCodeLimitGenerations, http.StatusForbidden},
		{ErrCodeNotFoundUser, http.StatusNotFound},
		{ErrCodeConflictUserExists, http.StatusConflict},
		{ErrCodeCheckoutFailed, http.StatusPaymentRequired},
		{ErrCodeNetworkError, http.StatusBadGateway},
		{ErrCodeNetworkTimeout, http.StatusBadGateway},
		{ErrCodeUpstreamServer, http.StatusBadGateway},
		{ErrCodeConfigPriceMissing, http.StatusInternalServerError},
		{ErrCodeInternalDB, http.StatusInternalServerError},
		{ErrorCode("totally_unknown"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		if got := tc.code.HTTPStatus(); got != tc.want {
			t.Errorf("HTTPStatus(%s) = %d, want %d", tc.code, got, tc.want)
		}
	}
}

func TestAppError_Unwrap(t *testing.T) {
	inner := errors.New("connection refused")
	err := NewAppError(ErrCodeNetworkError, "backend unreachable", inner)

	if !errors.Is(err, inner) {
		t.Error("errors.Is should find the wrapped error")
	}

	var appErr *AppError
	wrapped := fmt.Errorf("getUsage: %w", err)
	if !errors.As(wrapped, &appErr) {
		t.Fatal("errors.As should find the AppError in the chain")
	}
	if appErr.Code != ErrCodeNetworkError {
		t.Errorf("Code = %s, want %s", appErr.Code, ErrCodeNetworkError)
	}
}

func TestAppError_WithDetails(t *testing.T) {
	base := NewAppErrorWithDetails(ErrCodeNetworkTimeout, "request timed out", nil,
		map[string]any{"timeout": true})

	enriched := base.WithDetails(map[string]any{"operation": "getUsage"})

	if enriched.Details["timeout"] != true || enriched.Details["operation"] != "getUsage" {
		t.Errorf("WithDetails did not merge: %v", enriched.Details)
	}
	if _, ok := base.Details["operation"]; ok {
		t.Error("WithDetails mutated the original error")
	}
}

func TestCodeOf(t *testing.T) {
	err := NewAppError(ErrCodeAuthRequired, "no token", nil)
	if got := CodeOf(fmt.Errorf("wrap: %w", err)); got != ErrCodeAuthRequired {
		t.Errorf("CodeOf = %s, want %s", got, ErrCodeAuthRequired)
	}
	if got := CodeOf(errors.New("plain")); got != ErrCodeInternalUnexpected {
		t.Errorf("CodeOf(plain) = %s, want %s", got, ErrCodeInternalUnexpected)
	}
}

func TestIsAuthRequired(t *testing.T) {
	if !IsAuthRequired(NewAppError(ErrCodeAuthSessionExpired, "expired", nil)) {
		t.Error("auth_session_expired should count as auth required")
	}
	if IsAuthRequired(NewAppError(ErrCodeNetworkError, "down", nil)) {
		t.Error("network_error should not count as auth required")
	}
}
