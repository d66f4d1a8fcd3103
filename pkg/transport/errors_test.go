package transport

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rhuss/umleitung/pkg/api"
)

func TestHTTPStatusFromError_TypeMapping(t *testing.T) {
	tests := []struct {
		typ  api.ErrorType
		want int
	}{
		{api.ErrorTypeInvalidRequest, http.StatusBadRequest},
		{api.ErrorTypeAuthentication, http.StatusUnauthorized},
		{api.ErrorTypeNotFound, http.StatusNotFound},
		{api.ErrorTypeRateLimit, http.StatusTooManyRequests},
		{api.ErrorTypeNotImplemented, http.StatusNotImplemented},
		{api.ErrorTypeServerError, http.StatusInternalServerError},
		{"mystery", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		got := HTTPStatusFromError(&api.APIError{Type: tt.typ})
		if got != tt.want {
			t.Errorf("HTTPStatusFromError(%q) = %d, want %d", tt.typ, got, tt.want)
		}
	}
}

func TestHTTPStatusFromError_StatusHintWins(t *testing.T) {
	err := &api.APIError{Type: api.ErrorTypeServerError, Status: http.StatusServiceUnavailable}
	if got := HTTPStatusFromError(err); got != http.StatusServiceUnavailable {
		t.Errorf("expected status hint to win, got %d", got)
	}
}

func TestAsAPIError(t *testing.T) {
	orig := api.NewInvalidRequestError("bad")
	if got := AsAPIError(orig); got != orig {
		t.Error("expected APIError passed through")
	}

	wrapped := fmt.Errorf("handler: %w", orig)
	if got := AsAPIError(wrapped); got != orig {
		t.Error("expected wrapped APIError unwrapped")
	}

	opaque := AsAPIError(errors.New("pgx: connection refused"))
	if opaque.Type != api.ErrorTypeServerError {
		t.Errorf("unexpected type: %q", opaque.Type)
	}
	if opaque.Message != "internal server error" {
		t.Errorf("internal details must not leak, got %q", opaque.Message)
	}
}

func TestWriteAPIError(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteAPIError(rec, api.NewRateLimitError("slow down"))

	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("expected 429, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("unexpected content type: %q", ct)
	}

	var body api.ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Error == nil || body.Error.Type != api.ErrorTypeRateLimit {
		t.Errorf("unexpected body: %s", rec.Body.String())
	}
}
