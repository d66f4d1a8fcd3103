package anthropic

import "time"

// defaultAPIVersion is the anthropic-version header sent when the
// configuration does not pin one.
const defaultAPIVersion = "2023-06-01"

// Config holds configuration for the Anthropic provider adapter.
type Config struct {
	// BaseURL is the Messages API server URL (e.g., "http://localhost:8000").
	BaseURL string

	// APIKey is sent in the x-api-key header (optional for local backends).
	APIKey string

	// APIVersion overrides the anthropic-version header.
	APIVersion string

	// Timeout for non-streaming HTTP requests. Defaults to 120s. Streaming
	// requests are bounded by their context instead.
	Timeout time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig(baseURL string) Config {
	return Config{
		BaseURL:    baseURL,
		APIVersion: defaultAPIVersion,
		Timeout:    120 * time.Second,
	}
}
