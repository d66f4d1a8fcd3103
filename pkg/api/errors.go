package api

import (
	"encoding/json"
	"fmt"
)

// ErrorType represents the category of an API error.
type ErrorType string

const (
	ErrorTypeInvalidRequest ErrorType = "invalid_request_error"
	ErrorTypeAuthentication ErrorType = "authentication_error"
	ErrorTypeNotFound       ErrorType = "not_found_error"
	ErrorTypeRateLimit      ErrorType = "rate_limit_error"
	ErrorTypeServerError    ErrorType = "api_error"
	ErrorTypeNotImplemented ErrorType = "not_implemented"
)

// APIError is a structured API error. Status is an advisory HTTP status
// hint for the transport layer; it is not part of the wire payload.
type APIError struct {
	Type    ErrorType
	Message string
	Status  int
}

// MarshalJSON renders the fixed four-field error body. The param and code
// extension fields are always present and always null.
func (e APIError) MarshalJSON() ([]byte, error) {
	type wire struct {
		Message string    `json:"message"`
		Type    ErrorType `json:"type"`
		Param   any       `json:"param"`
		Code    any       `json:"code"`
	}
	return json.Marshal(wire{Message: e.Message, Type: e.Type})
}

// UnmarshalJSON deserializes the wire error body.
func (e *APIError) UnmarshalJSON(data []byte) error {
	var w struct {
		Message string    `json:"message"`
		Type    ErrorType `json:"type"`
	}
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	e.Message = w.Message
	e.Type = w.Type
	return nil
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// ErrorResponse wraps an APIError as the top-level error envelope.
type ErrorResponse struct {
	Error *APIError `json:"error"`
}

// NewError builds an APIError from a message, a type tag, and an advisory
// HTTP status hint (0 means "let the transport derive one from the type").
// It is total: any message/kind combination yields a valid envelope.
func NewError(message string, kind ErrorType, statusHint int) *APIError {
	if kind == "" {
		kind = ErrorTypeServerError
	}
	return &APIError{Type: kind, Message: message, Status: statusHint}
}

// NewInvalidRequestError creates an APIError for invalid request parameters.
func NewInvalidRequestError(message string) *APIError {
	return &APIError{Type: ErrorTypeInvalidRequest, Message: message}
}

// NewNotFoundError creates an APIError for resources that cannot be found.
func NewNotFoundError(message string) *APIError {
	return &APIError{Type: ErrorTypeNotFound, Message: message}
}

// NewServerError creates an APIError for internal server errors.
func NewServerError(message string) *APIError {
	return &APIError{Type: ErrorTypeServerError, Message: message}
}

// NewRateLimitError creates an APIError for rate limiting.
func NewRateLimitError(message string) *APIError {
	return &APIError{Type: ErrorTypeRateLimit, Message: message}
}

// NewAuthenticationError creates an APIError for failed authentication.
func NewAuthenticationError(message string) *APIError {
	return &APIError{Type: ErrorTypeAuthentication, Message: message}
}

// NewNotImplementedError creates the fixed rejection for endpoints the
// gateway deliberately does not emulate (embeddings, legacy completions).
func NewNotImplementedError(message string) *APIError {
	return &APIError{Type: ErrorTypeNotImplemented, Message: message}
}
