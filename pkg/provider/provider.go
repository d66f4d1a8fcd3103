package provider

import (
	"context"

	"github.com/rhuss/umleitung/pkg/api"
)

// Provider abstracts the upstream inference backend. Requests and
// responses use the consumer schema; each adapter translates to and from
// its own backend protocol internally.
//
// Implementations must be safe for concurrent use by multiple goroutines.
// Concurrent exchanges never share translation state.
type Provider interface {
	// Name returns the provider identifier (e.g., "anthropic").
	Name() string

	// Complete performs non-streaming inference.
	Complete(ctx context.Context, req *api.ChatRequest) (*api.ChatResponse, error)

	// Stream performs streaming inference. The returned channel receives
	// Event values in upstream arrival order and is closed by the provider
	// when the stream completes, errors, or the context is cancelled.
	Stream(ctx context.Context, req *api.ChatRequest) (<-chan Event, error)

	// ListModels returns the models available from the backend.
	ListModels(ctx context.Context) ([]api.Model, error)

	// Close releases provider resources (HTTP clients, connections).
	Close() error
}

// Event is one unit of a streaming exchange: either a consumer-schema
// chunk to forward, or a stream-level failure. Exactly one field is set.
type Event struct {
	Chunk *api.ChatCompletionChunk
	Err   *api.APIError
}
