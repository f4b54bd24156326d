package model

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
)

func TestStatusCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"client input", NewClientInputError("No GitHub code passed."), http.StatusBadRequest},
		{"wrapped client input", fmt.Errorf("callback: %w", NewClientInputError("x")), http.StatusBadRequest},
		{"provider exchange", NewProviderExchangeError("{}"), http.StatusInternalServerError},
		{"provider request", NewProviderRequestError("token", errors.New("timeout")), http.StatusInternalServerError},
		{"session consistency", NewSessionConsistencyError("u-1"), http.StatusInternalServerError},
		{"session destroy", NewSessionDestroyError(errors.New("db")), http.StatusInternalServerError},
		{"store write", NewStoreWriteError("create user", errors.New("db")), http.StatusInternalServerError},
		{"plain error", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StatusCode(tt.err); got != tt.want {
				t.Errorf("StatusCode() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestKindOf(t *testing.T) {
	err := fmt.Errorf("outer: %w", NewSessionConsistencyError("u-1"))
	if got := KindOf(err); got != KindSessionConsistency {
		t.Errorf("KindOf() = %q, want %q", got, KindSessionConsistency)
	}
	if got := KindOf(errors.New("plain")); got != "" {
		t.Errorf("KindOf(plain) = %q, want empty", got)
	}
}

func TestProviderExchangeError_EmbedsRawBody(t *testing.T) {
	err := NewProviderExchangeError(`{"error":"bad_verification_code"}`)

	want := `Bad response from GitHub. {"error":"bad_verification_code"}`
	if err.Message != want {
		t.Errorf("Message = %q, want %q", err.Message, want)
	}
}

func TestSessionConsistencyError_Message(t *testing.T) {
	err := NewSessionConsistencyError("6f1c")
	if err.Message != "Invalid Session userId: 6f1c" {
		t.Errorf("Message = %q", err.Message)
	}
}

func TestAppError_UnwrapAndError(t *testing.T) {
	cause := errors.New("connection refused")
	err := NewStoreWriteError("create user", cause)

	if !errors.Is(err, cause) {
		t.Error("errors.Is should find the cause")
	}
	if !strings.Contains(err.Error(), ErrCodeStoreWrite) || !strings.Contains(err.Error(), "connection refused") {
		t.Errorf("Error() = %q", err.Error())
	}

	noCause := NewClientInputError("No GitHub code passed.")
	if noCause.Error() != "[MISSING_CODE] No GitHub code passed." {
		t.Errorf("Error() = %q", noCause.Error())
	}
}
