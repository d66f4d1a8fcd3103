package transport

import (
	"context"

	"github.com/rhuss/umleitung/pkg/api"
)

// ChatCompleter handles the core chat-completion operation. The
// implementation receives a request and writes the result (streaming
// chunks or a complete response) to the ResponseWriter.
type ChatCompleter interface {
	CreateChatCompletion(ctx context.Context, req *api.ChatRequest, w ResponseWriter) error
}

// ChatCompleterFunc is an adapter that allows using an ordinary function
// as a ChatCompleter.
type ChatCompleterFunc func(ctx context.Context, req *api.ChatRequest, w ResponseWriter) error

// CreateChatCompletion calls f(ctx, req, w).
func (f ChatCompleterFunc) CreateChatCompletion(ctx context.Context, req *api.ChatRequest, w ResponseWriter) error {
	return f(ctx, req, w)
}

// ModelLister serves the models-listing endpoint. The provider satisfies
// it directly; ModelCache wraps it with a TTL.
type ModelLister interface {
	ListModels(ctx context.Context) ([]api.Model, error)
}

// ResponseWriter abstracts streaming and non-streaming output for the
// handler. The transport layer creates a ResponseWriter for each request
// and provides it to the handler.
//
// WriteChunk and WriteResponse are mutually exclusive on a single writer
// instance. WriteDone terminates a streaming response with the out-of-band
// "data: [DONE]" marker; further writes are rejected.
type ResponseWriter interface {
	// WriteChunk sends a single streaming chunk, flushed immediately.
	// Returns an error after WriteDone or WriteResponse.
	WriteChunk(ctx context.Context, chunk *api.ChatCompletionChunk) error

	// WriteError sends an error envelope as one SSE data frame on a
	// streaming response. Returns an error on a non-streaming writer.
	WriteError(ctx context.Context, apiErr *api.APIError) error

	// WriteDone writes the terminal marker after the last chunk. Safe to
	// call at most once; a no-op error is returned afterwards.
	WriteDone(ctx context.Context) error

	// WriteResponse sends a complete non-streaming response. Returns an
	// error if streaming already started on this writer.
	WriteResponse(ctx context.Context, resp *api.ChatResponse) error

	// Flush ensures buffered data is sent to the client. Returns an error
	// if the client has disconnected.
	Flush() error
}
