package errors

import (
	"errors"
	"net/http"
	"testing"
)

func TestNew(t *testing.T) {
	err := New(CodeValidation, "validation failed", http.StatusUnprocessableEntity)

	if err.Code != CodeValidation {
		t.Errorf("expected code %s, got %s", CodeValidation, err.Code)
	}
	if err.Message != "validation failed" {
		t.Errorf("expected message 'validation failed', got %s", err.Message)
	}
	if err.HTTPStatus != http.StatusUnprocessableEntity {
		t.Errorf("expected status %d, got %d", http.StatusUnprocessableEntity, err.HTTPStatus)
	}
}

func TestWrap(t *testing.T) {
	originalErr := errors.New("database connection failed")
	wrapped := Wrap(originalErr, CodeInternal, "internal error", http.StatusInternalServerError)

	if wrapped.Err != originalErr {
		t.Errorf("expected wrapped error to contain original error")
	}
	if wrapped.Code != CodeInternal {
		t.Errorf("expected code %s, got %s", CodeInternal, wrapped.Code)
	}
}

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name     string
		appErr   *AppError
		expected string
	}{
		{
			name: "without underlying error",
			appErr: &AppError{
				Code:    CodeNotFound,
				Message: "resource not found",
			},
			expected: "NOT_FOUND: resource not found",
		},
		{
			name: "with underlying error",
			appErr: &AppError{
				Code:    CodeInternal,
				Message: "internal error",
				Err:     errors.New("database connection failed"),
			},
			expected: "INTERNAL_ERROR: internal error (caused by: database connection failed)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.appErr.Error()
			if got != tt.expected {
				t.Errorf("Error() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestAppError_Unwrap(t *testing.T) {
	originalErr := errors.New("original error")
	appErr := Wrap(originalErr, CodeInternal, "wrapped", http.StatusInternalServerError)

	unwrapped := errors.Unwrap(appErr)
	if unwrapped != originalErr {
		t.Errorf("Unwrap() should return original error")
	}
}

func TestAppError_WithDetails(t *testing.T) {
	err := New(CodeValidation, "validation failed", http.StatusUnprocessableEntity)
	details := map[string]any{
		"field": "guest_count",
		"error": "must be at least 1",
	}

	err = err.WithDetails(details)

	if err.Details["field"] != "guest_count" {
		t.Errorf("expected field 'guest_count', got %v", err.Details["field"])
	}
}

func TestNotFoundWithID(t *testing.T) {
	err := NotFoundWithID("Booking", "66f0a2b4c9e77a0012345678")

	if err.Code != CodeNotFound {
		t.Errorf("expected code %s, got %s", CodeNotFound, err.Code)
	}
	if err.Details["id"] != "66f0a2b4c9e77a0012345678" {
		t.Errorf("expected booking id detail, got %v", err.Details["id"])
	}
	if err.Details["resource"] != "Booking" {
		t.Errorf("expected resource 'Booking', got %v", err.Details["resource"])
	}
}

func TestSlotFull(t *testing.T) {
	err := SlotFull("a1:2026-09-01:10:00")

	if err.Code != CodeSlotFull {
		t.Errorf("expected code %s, got %s", CodeSlotFull, err.Code)
	}
	if err.HTTPStatus != http.StatusConflict {
		t.Errorf("expected status %d, got %d", http.StatusConflict, err.HTTPStatus)
	}
	if err.Details["slot_key"] != "a1:2026-09-01:10:00" {
		t.Errorf("expected slot_key detail, got %v", err.Details["slot_key"])
	}
}

func TestWindowExpired_ReportsBoundary(t *testing.T) {
	err := WindowExpired("cancellation window has expired", "2026-09-01T08:00:00Z")

	if err.Code != CodeWindowExpired {
		t.Errorf("expected code %s, got %s", CodeWindowExpired, err.Code)
	}
	if err.Details["cancellable_until"] != "2026-09-01T08:00:00Z" {
		t.Errorf("expected cancellable_until detail, got %v", err.Details["cancellable_until"])
	}
}

func TestInvalidState(t *testing.T) {
	err := InvalidState("booking cannot be checked in", "cancelled")

	if err.Code != CodeInvalidState {
		t.Errorf("expected code %s, got %s", CodeInvalidState, err.Code)
	}
	if err.Details["current_status"] != "cancelled" {
		t.Errorf("expected current_status detail, got %v", err.Details["current_status"])
	}
}

func TestAsAppError_WrapsUnknown(t *testing.T) {
	plain := errors.New("boom")
	appErr := AsAppError(plain)

	if appErr.Code != CodeInternal {
		t.Errorf("expected code %s, got %s", CodeInternal, appErr.Code)
	}
	if !errors.Is(appErr, plain) {
		t.Errorf("expected wrapped error to unwrap to original")
	}
}

func TestAsAppError_PassesThrough(t *testing.T) {
	original := Conflict("already exists")
	appErr := AsAppError(original)

	if appErr != original {
		t.Errorf("expected same AppError instance back")
	}
}
