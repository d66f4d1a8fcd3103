package api

import "fmt"

// ValidationConfig holds configurable limits for request validation.
type ValidationConfig struct {
	MaxMessages int
	MaxTools    int
}

// DefaultValidationConfig returns a ValidationConfig with sensible defaults.
func DefaultValidationConfig() ValidationConfig {
	return ValidationConfig{
		MaxMessages: 1000,
		MaxTools:    128,
	}
}

// ValidateRequest checks a ChatRequest for validity. It returns an
// *APIError describing the first validation failure, or nil if the request
// is valid. Only structural requirements are enforced here; messages with
// unrecognized roles are tolerated and skipped later during translation.
func ValidateRequest(req *ChatRequest, cfg ValidationConfig) *APIError {
	if req.Model == "" {
		return NewInvalidRequestError("model is required")
	}

	if len(req.Messages) == 0 {
		return NewInvalidRequestError("messages must contain at least one entry")
	}

	if cfg.MaxMessages > 0 && len(req.Messages) > cfg.MaxMessages {
		return NewInvalidRequestError(
			fmt.Sprintf("messages exceeds maximum of %d entries", cfg.MaxMessages))
	}

	if cfg.MaxTools > 0 && len(req.Tools) > cfg.MaxTools {
		return NewInvalidRequestError(
			fmt.Sprintf("tools exceeds maximum of %d", cfg.MaxTools))
	}

	for i, msg := range req.Messages {
		if msg.Role == "" {
			return NewInvalidRequestError(
				fmt.Sprintf("messages[%d] is missing a role", i))
		}
	}

	if req.MaxTokens != nil && *req.MaxTokens <= 0 {
		return NewInvalidRequestError("max_tokens must be positive")
	}
	if req.MaxCompletionTokens != nil && *req.MaxCompletionTokens <= 0 {
		return NewInvalidRequestError("max_completion_tokens must be positive")
	}

	if req.Temperature != nil && (*req.Temperature < 0.0 || *req.Temperature > 2.0) {
		return NewInvalidRequestError("temperature must be between 0.0 and 2.0")
	}

	if req.TopP != nil && (*req.TopP < 0.0 || *req.TopP > 1.0) {
		return NewInvalidRequestError("top_p must be between 0.0 and 1.0")
	}

	// A forced tool_choice must reference a declared tool.
	if req.ToolChoice != nil && req.ToolChoice.Function != nil {
		name := req.ToolChoice.Function.Function.Name
		found := false
		for _, tool := range req.Tools {
			if tool.Def().Name == name {
				found = true
				break
			}
		}
		if !found {
			return NewInvalidRequestError(
				fmt.Sprintf("tool_choice references unknown tool %q", name))
		}
	}

	return nil
}
