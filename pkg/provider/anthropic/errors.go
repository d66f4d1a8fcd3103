package anthropic

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/rhuss/umleitung/pkg/api"
)

// mapHTTPError converts a non-2xx upstream response into an APIError. The
// upstream status code is preserved as the transport status hint, and the
// error body is parsed for a descriptive message when possible.
func mapHTTPError(resp *http.Response) *api.APIError {
	message, upstreamType := extractError(resp.Body)
	if message == "" {
		message = fmt.Sprintf("upstream error (HTTP %d)", resp.StatusCode)
	}

	kind := mapErrorType(upstreamType, resp.StatusCode)
	return api.NewError(message, kind, resp.StatusCode)
}

// mapErrorType picks the consumer error type from the upstream error type
// tag, falling back to the HTTP status class.
func mapErrorType(upstreamType string, status int) api.ErrorType {
	switch upstreamType {
	case "invalid_request_error":
		return api.ErrorTypeInvalidRequest
	case "authentication_error", "permission_error":
		return api.ErrorTypeAuthentication
	case "not_found_error":
		return api.ErrorTypeNotFound
	case "rate_limit_error":
		return api.ErrorTypeRateLimit
	case "overloaded_error", "api_error":
		return api.ErrorTypeServerError
	}

	switch {
	case status == http.StatusBadRequest:
		return api.ErrorTypeInvalidRequest
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return api.ErrorTypeAuthentication
	case status == http.StatusNotFound:
		return api.ErrorTypeNotFound
	case status == http.StatusTooManyRequests:
		return api.ErrorTypeRateLimit
	default:
		return api.ErrorTypeServerError
	}
}

// mapNetworkError converts a network-level error (connection refused,
// timeout, DNS failure) into an APIError.
func mapNetworkError(err error) *api.APIError {
	return api.NewServerError(fmt.Sprintf("upstream connection error: %s", err.Error()))
}

// extractError parses an upstream error body
// ({"type":"error","error":{"type":...,"message":...}}) and returns the
// message and upstream error type, or empty strings when unparseable.
func extractError(body io.Reader) (message, upstreamType string) {
	if body == nil {
		return "", ""
	}

	data, err := io.ReadAll(io.LimitReader(body, 4096))
	if err != nil || len(data) == 0 {
		return "", ""
	}

	var er errorResponse
	if err := json.Unmarshal(data, &er); err == nil && er.Error.Message != "" {
		return er.Error.Message, er.Error.Type
	}
	return "", ""
}
