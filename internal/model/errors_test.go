package model

import (
	"errors"
	"fmt"
	"testing"
)

func TestAPIError_Error(t *testing.T) {
	err := NewSessionNotFoundError("s-1")
	want := "[SESSION_NOT_FOUND] 指定されたセッションが見つかりません: s-1"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

// TestAPIError_Categories は各コンストラクタが期待するカテゴリを持つことを検証する。
func TestAPIError_Categories(t *testing.T) {
	tests := []struct {
		err      *APIError
		category string
	}{
		{NewInvalidTimeRangeError(), CategoryValidation},
		{NewInvalidDateError("date", "x"), CategoryValidation},
		{NewInvalidDateRangeError("2025-02-01", "2025-01-01"), CategoryValidation},
		{NewRequiredFieldError("start"), CategoryValidation},
		{NewSessionAlreadyOpenError(), CategoryConflict},
		{NewSessionAlreadyClosedError("s"), CategoryConflict},
		{NewSessionNotFoundError("s"), CategoryNotFound},
		{NewUserNotFoundError(), CategoryNotFound},
		{NewSessionForbiddenError(), CategoryAuthorization},
		{NewUnauthorizedError(), CategoryAuth},
		{NewInternalError(), CategorySystem},
	}

	for _, tt := range tests {
		if tt.err.Category != tt.category {
			t.Errorf("%s: Category = %q, want %q", tt.err.Code, tt.err.Category, tt.category)
		}
		if tt.err.Action == "" {
			t.Errorf("%s: Action should not be empty", tt.err.Code)
		}
	}
}

func TestAPIError_ErrorsAs(t *testing.T) {
	wrapped := fmt.Errorf("service: %w", NewSessionAlreadyOpenError())

	var apiErr *APIError
	if !errors.As(wrapped, &apiErr) {
		t.Fatal("errors.As should find *APIError")
	}
	if apiErr.Code != ErrCodeSessionAlreadyOpen {
		t.Errorf("Code = %q, want %q", apiErr.Code, ErrCodeSessionAlreadyOpen)
	}
}
