package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/rhuss/umleitung/pkg/api"
	"github.com/rhuss/umleitung/pkg/transport"
)

// writerState tracks the state of an SSE ResponseWriter.
type writerState int

const (
	writerIdle      writerState = iota // Initial state, no writes yet
	writerStreaming                    // WriteChunk has been called at least once
	writerCompleted                    // [DONE] sent or WriteResponse called
)

// sseResponseWriter implements transport.ResponseWriter for HTTP responses.
// It handles both streaming (SSE) and non-streaming (JSON) output.
//
// Streaming frames are data-only ("data: {json}\n\n"); the stream ends
// with a single "data: [DONE]" marker written by WriteDone. WriteDone is
// a separate call because the trailing usage chunk is emitted after the
// chunk carrying the finish reason, so the writer cannot terminate on
// its own.
type sseResponseWriter struct {
	w  http.ResponseWriter
	rc *http.ResponseController

	mu    sync.Mutex
	state writerState

	// onChunk is called with the completion ID of the first chunk, for
	// in-flight registry registration.
	onChunk func(id string)
}

var _ transport.ResponseWriter = (*sseResponseWriter)(nil)

// newSSEResponseWriter creates a ResponseWriter wrapping an
// http.ResponseWriter. The onChunk callback receives the completion ID
// from the first streamed chunk (may be nil if not needed).
func newSSEResponseWriter(w http.ResponseWriter, onChunk func(id string)) *sseResponseWriter {
	return &sseResponseWriter{
		w:       w,
		rc:      http.NewResponseController(w),
		onChunk: onChunk,
	}
}

// WriteChunk sends a single streaming chunk as a data-only SSE frame and
// flushes immediately.
func (s *sseResponseWriter) WriteChunk(ctx context.Context, chunk *api.ChatCompletionChunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == writerCompleted {
		return errors.New("cannot write chunk: writer is completed")
	}
	s.startStreamingLocked()

	if s.onChunk != nil && chunk.ID != "" {
		s.onChunk(chunk.ID)
		s.onChunk = nil // Only call once.
	}

	return s.writeDataFrameLocked(chunk)
}

// WriteError sends an error envelope as one SSE data frame. Clients that
// already received chunks learn about the failure in-band; the HTTP
// status is long gone at this point.
func (s *sseResponseWriter) WriteError(ctx context.Context, apiErr *api.APIError) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == writerCompleted {
		return errors.New("cannot write error: writer is completed")
	}
	s.startStreamingLocked()

	return s.writeDataFrameLocked(api.ErrorResponse{Error: apiErr})
}

// WriteDone writes the terminal "data: [DONE]" marker and completes the
// writer.
func (s *sseResponseWriter) WriteDone(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == writerCompleted {
		return errors.New("cannot write [DONE]: writer is completed")
	}
	s.startStreamingLocked()

	if _, err := fmt.Fprint(s.w, "data: [DONE]\n\n"); err != nil {
		return fmt.Errorf("failed to write [DONE]: %w", err)
	}
	if err := s.rc.Flush(); err != nil {
		return fmt.Errorf("failed to flush [DONE]: %w", err)
	}
	s.state = writerCompleted
	return nil
}

// WriteResponse sends a complete non-streaming JSON response.
// This is mutually exclusive with WriteChunk.
func (s *sseResponseWriter) WriteResponse(ctx context.Context, resp *api.ChatResponse) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == writerStreaming {
		return errors.New("cannot write response: streaming has already started")
	}
	if s.state == writerCompleted {
		return errors.New("cannot write response: writer is completed")
	}

	s.w.Header().Set("Content-Type", "application/json")
	s.state = writerCompleted

	if err := json.NewEncoder(s.w).Encode(resp); err != nil {
		return fmt.Errorf("failed to encode response: %w", err)
	}

	return nil
}

// Flush ensures buffered data is sent to the client.
func (s *sseResponseWriter) Flush() error {
	return s.rc.Flush()
}

// startStreamingLocked sets the SSE headers on the first streamed write.
// Callers must hold s.mu.
func (s *sseResponseWriter) startStreamingLocked() {
	if s.state != writerIdle {
		return
	}
	s.w.Header().Set("Content-Type", "text/event-stream")
	s.w.Header().Set("Cache-Control", "no-cache")
	s.w.Header().Set("Connection", "keep-alive")
	s.state = writerStreaming
}

// writeDataFrameLocked serializes v and writes it as one flushed SSE data
// frame. Callers must hold s.mu.
func (s *sseResponseWriter) writeDataFrameLocked(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal frame: %w", err)
	}
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", data); err != nil {
		return fmt.Errorf("failed to write frame: %w", err)
	}
	if err := s.rc.Flush(); err != nil {
		return fmt.Errorf("failed to flush: %w", err)
	}
	return nil
}

// hasStartedStreaming returns true if at least one SSE frame has been written.
func (s *sseResponseWriter) hasStartedStreaming() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == writerStreaming || (s.state == writerCompleted && s.w.Header().Get("Content-Type") == "text/event-stream")
}
