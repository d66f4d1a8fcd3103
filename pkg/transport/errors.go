package transport

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rhuss/umleitung/pkg/api"
)

// HTTPStatusFromError maps an APIError to the HTTP status code the
// gateway reports downstream. A non-zero Status hint takes precedence;
// it carries the upstream status through unchanged so clients see the
// same class of failure the upstream signalled. Transport-level errors
// (body too large, unsupported content type, method not allowed) are
// handled separately by the HTTP adapter.
func HTTPStatusFromError(err *api.APIError) int {
	if err.Status != 0 {
		return err.Status
	}
	switch err.Type {
	case api.ErrorTypeInvalidRequest:
		return http.StatusBadRequest
	case api.ErrorTypeAuthentication:
		return http.StatusUnauthorized
	case api.ErrorTypeNotFound:
		return http.StatusNotFound
	case api.ErrorTypeRateLimit:
		return http.StatusTooManyRequests
	case api.ErrorTypeNotImplemented:
		return http.StatusNotImplemented
	case api.ErrorTypeServerError:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// AsAPIError converts any error into an APIError. Errors that already are
// (or wrap) an APIError pass through; everything else becomes an opaque
// server error so internal details never reach the client.
func AsAPIError(err error) *api.APIError {
	var apiErr *api.APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return api.NewServerError("internal server error")
}

// WriteErrorResponse writes a JSON error response using the ErrorResponse
// wrapper format from pkg/api. It sets the Content-Type header and writes
// the HTTP status code.
func WriteErrorResponse(w http.ResponseWriter, apiErr *api.APIError, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(api.ErrorResponse{Error: apiErr})
}

// WriteAPIError writes an APIError response, deriving the HTTP status code
// from the error type and status hint.
func WriteAPIError(w http.ResponseWriter, apiErr *api.APIError) {
	WriteErrorResponse(w, apiErr, HTTPStatusFromError(apiErr))
}
