package http

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rhuss/umleitung/pkg/api"
)

func TestSSEWriter_StreamingFrames(t *testing.T) {
	rec := httptest.NewRecorder()
	var firstID string
	rw := newSSEResponseWriter(rec, func(id string) { firstID = id })

	text := "hi"
	chunk := &api.ChatCompletionChunk{
		ID:      "chatcmpl-abc",
		Object:  api.ObjectChatCompletionChunk,
		Model:   "m",
		Choices: []api.ChunkChoice{{Delta: api.ChunkDelta{Content: &text}}},
	}

	if err := rw.WriteChunk(context.Background(), chunk); err != nil {
		t.Fatal(err)
	}
	if err := rw.WriteChunk(context.Background(), chunk); err != nil {
		t.Fatal(err)
	}
	if err := rw.WriteDone(context.Background()); err != nil {
		t.Fatal(err)
	}

	if rec.Header().Get("Content-Type") != "text/event-stream" {
		t.Errorf("unexpected content type: %q", rec.Header().Get("Content-Type"))
	}
	if rec.Header().Get("Cache-Control") != "no-cache" {
		t.Errorf("unexpected cache control: %q", rec.Header().Get("Cache-Control"))
	}
	if firstID != "chatcmpl-abc" {
		t.Errorf("expected onChunk callback with first id, got %q", firstID)
	}

	body := rec.Body.String()
	if !strings.HasSuffix(body, "data: [DONE]\n\n") {
		t.Errorf("expected trailing [DONE] marker, got %q", body)
	}
	if strings.Count(body, "data: ") != 3 {
		t.Errorf("expected 3 data frames, got %q", body)
	}
	if strings.Contains(body, "event:") {
		t.Errorf("frames must be data-only, got %q", body)
	}
}

func TestSSEWriter_OnChunkCalledOnce(t *testing.T) {
	rec := httptest.NewRecorder()
	var calls int
	rw := newSSEResponseWriter(rec, func(id string) { calls++ })

	chunk := &api.ChatCompletionChunk{ID: "chatcmpl-1"}
	rw.WriteChunk(context.Background(), chunk)
	rw.WriteChunk(context.Background(), chunk)

	if calls != 1 {
		t.Errorf("expected a single callback, got %d", calls)
	}
}

func TestSSEWriter_RejectsWritesAfterDone(t *testing.T) {
	rec := httptest.NewRecorder()
	rw := newSSEResponseWriter(rec, nil)

	rw.WriteChunk(context.Background(), &api.ChatCompletionChunk{ID: "chatcmpl-1"})
	rw.WriteDone(context.Background())

	if err := rw.WriteChunk(context.Background(), &api.ChatCompletionChunk{ID: "chatcmpl-1"}); err == nil {
		t.Error("expected error writing a chunk after [DONE]")
	}
	if err := rw.WriteDone(context.Background()); err == nil {
		t.Error("expected error on second [DONE]")
	}
	if err := rw.WriteError(context.Background(), api.NewServerError("x")); err == nil {
		t.Error("expected error writing an error frame after [DONE]")
	}
}

func TestSSEWriter_WriteResponse(t *testing.T) {
	rec := httptest.NewRecorder()
	rw := newSSEResponseWriter(rec, nil)

	content := "hello"
	resp := &api.ChatResponse{
		ID:      "chatcmpl-1",
		Object:  api.ObjectChatCompletion,
		Model:   "m",
		Choices: []api.Choice{{Message: api.AssistantMessage{Role: api.RoleAssistant, Content: &content}, FinishReason: api.FinishStop}},
	}

	if err := rw.WriteResponse(context.Background(), resp); err != nil {
		t.Fatal(err)
	}
	if rec.Header().Get("Content-Type") != "application/json" {
		t.Errorf("unexpected content type: %q", rec.Header().Get("Content-Type"))
	}
	if strings.Contains(rec.Body.String(), "data:") {
		t.Errorf("non-streaming body must not be SSE framed: %q", rec.Body.String())
	}

	if err := rw.WriteResponse(context.Background(), resp); err == nil {
		t.Error("expected error on second WriteResponse")
	}
}

func TestSSEWriter_WriteResponseAfterStreamingRejected(t *testing.T) {
	rec := httptest.NewRecorder()
	rw := newSSEResponseWriter(rec, nil)

	rw.WriteChunk(context.Background(), &api.ChatCompletionChunk{ID: "chatcmpl-1"})
	if err := rw.WriteResponse(context.Background(), &api.ChatResponse{}); err == nil {
		t.Error("expected error mixing streaming and non-streaming writes")
	}
}

func TestSSEWriter_WriteErrorInBand(t *testing.T) {
	rec := httptest.NewRecorder()
	rw := newSSEResponseWriter(rec, nil)

	rw.WriteChunk(context.Background(), &api.ChatCompletionChunk{ID: "chatcmpl-1"})
	if err := rw.WriteError(context.Background(), api.NewServerError("upstream died")); err != nil {
		t.Fatal(err)
	}
	rw.WriteDone(context.Background())

	body := rec.Body.String()
	if !strings.Contains(body, `"error"`) || !strings.Contains(body, "upstream died") {
		t.Errorf("expected in-band error frame, got %q", body)
	}
	if !strings.HasSuffix(body, "data: [DONE]\n\n") {
		t.Errorf("expected [DONE] after error frame, got %q", body)
	}
}

func TestSSEWriter_HasStartedStreaming(t *testing.T) {
	rec := httptest.NewRecorder()
	rw := newSSEResponseWriter(rec, nil)

	if rw.hasStartedStreaming() {
		t.Error("fresh writer must not report streaming")
	}
	rw.WriteChunk(context.Background(), &api.ChatCompletionChunk{ID: "chatcmpl-1"})
	if !rw.hasStartedStreaming() {
		t.Error("expected streaming after first chunk")
	}
	rw.WriteDone(context.Background())
	if !rw.hasStartedStreaming() {
		t.Error("completed SSE writer still counts as having streamed")
	}
}
