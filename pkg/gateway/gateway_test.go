package gateway

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rhuss/umleitung/pkg/api"
	"github.com/rhuss/umleitung/pkg/provider"
	"github.com/rhuss/umleitung/pkg/storage"
	"github.com/rhuss/umleitung/pkg/storage/memory"
	"github.com/rhuss/umleitung/pkg/transport"
)

// fakeProvider returns scripted results and records the request it saw.
type fakeProvider struct {
	resp      *api.ChatResponse
	err       error
	events    []provider.Event
	streamErr error
	lastReq   *api.ChatRequest
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) Complete(ctx context.Context, req *api.ChatRequest) (*api.ChatResponse, error) {
	f.lastReq = req
	return f.resp, f.err
}

func (f *fakeProvider) Stream(ctx context.Context, req *api.ChatRequest) (<-chan provider.Event, error) {
	f.lastReq = req
	if f.streamErr != nil {
		return nil, f.streamErr
	}
	ch := make(chan provider.Event, len(f.events))
	for _, ev := range f.events {
		ch <- ev
	}
	close(ch)
	return ch, nil
}

func (f *fakeProvider) ListModels(ctx context.Context) ([]api.Model, error) { return nil, nil }
func (f *fakeProvider) Close() error                                        { return nil }

// captureWriter records everything written through the ResponseWriter.
type captureWriter struct {
	chunks   []*api.ChatCompletionChunk
	errs     []*api.APIError
	resp     *api.ChatResponse
	done     int
	chunkErr error
}

func (c *captureWriter) WriteChunk(ctx context.Context, chunk *api.ChatCompletionChunk) error {
	if c.chunkErr != nil {
		return c.chunkErr
	}
	c.chunks = append(c.chunks, chunk)
	return nil
}

func (c *captureWriter) WriteError(ctx context.Context, apiErr *api.APIError) error {
	c.errs = append(c.errs, apiErr)
	return nil
}

func (c *captureWriter) WriteDone(ctx context.Context) error {
	c.done++
	return nil
}

func (c *captureWriter) WriteResponse(ctx context.Context, resp *api.ChatResponse) error {
	c.resp = resp
	return nil
}

func (c *captureWriter) Flush() error { return nil }

func userRequest(model string) *api.ChatRequest {
	return &api.ChatRequest{
		Model:    model,
		Messages: []api.ChatMessage{{Role: api.RoleUser, Content: api.Str("hi")}},
	}
}

func textChunk(id, text string) provider.Event {
	return provider.Event{Chunk: &api.ChatCompletionChunk{
		ID:      id,
		Object:  api.ObjectChatCompletionChunk,
		Choices: []api.ChunkChoice{{Delta: api.ChunkDelta{Content: &text}}},
	}}
}

func TestNew_RequiresProvider(t *testing.T) {
	if _, err := New(nil, nil, Config{}, nil); err == nil {
		t.Error("expected error for nil provider")
	}
}

func TestCreateChatCompletion_NonStreaming(t *testing.T) {
	content := "hello"
	p := &fakeProvider{resp: &api.ChatResponse{
		ID:      "chatcmpl-x",
		Choices: []api.Choice{{Message: api.AssistantMessage{Role: api.RoleAssistant, Content: &content}}},
		Usage:   &api.Usage{PromptTokens: 1, CompletionTokens: 2, TotalTokens: 3},
	}}
	g, err := New(p, nil, Config{}, nil)
	if err != nil {
		t.Fatal(err)
	}

	w := &captureWriter{}
	if err := g.CreateChatCompletion(context.Background(), userRequest("m"), w); err != nil {
		t.Fatal(err)
	}
	if w.resp == nil || *w.resp.Choices[0].Message.Content != "hello" {
		t.Errorf("unexpected response: %+v", w.resp)
	}
	if len(w.chunks) != 0 || w.done != 0 {
		t.Error("non-streaming path must not touch streaming writes")
	}
}

func TestCreateChatCompletion_DefaultModel(t *testing.T) {
	p := &fakeProvider{resp: &api.ChatResponse{Choices: []api.Choice{{}}}}
	g, _ := New(p, nil, Config{DefaultModel: "fallback"}, nil)

	if err := g.CreateChatCompletion(context.Background(), userRequest(""), w0()); err != nil {
		t.Fatal(err)
	}
	if p.lastReq.Model != "fallback" {
		t.Errorf("expected default model applied, got %q", p.lastReq.Model)
	}
}

func w0() *captureWriter { return &captureWriter{} }

func TestCreateChatCompletion_ModelRequired(t *testing.T) {
	p := &fakeProvider{}
	g, _ := New(p, nil, Config{}, nil)

	err := g.CreateChatCompletion(context.Background(), userRequest(""), w0())
	if err == nil {
		t.Fatal("expected error")
	}
	apiErr := err.(*api.APIError)
	if apiErr.Type != api.ErrorTypeInvalidRequest {
		t.Errorf("unexpected type: %q", apiErr.Type)
	}
}

func TestCreateChatCompletion_ValidationFailure(t *testing.T) {
	p := &fakeProvider{}
	g, _ := New(p, nil, Config{}, nil)

	req := &api.ChatRequest{Model: "m"} // no messages
	err := g.CreateChatCompletion(context.Background(), req, w0())
	if err == nil {
		t.Fatal("expected validation error")
	}
	if p.lastReq != nil {
		t.Error("invalid request must not reach the provider")
	}
}

func TestCreateChatCompletion_ProviderError(t *testing.T) {
	want := api.NewError("overloaded", api.ErrorTypeServerError, 529)
	p := &fakeProvider{err: want}
	g, _ := New(p, nil, Config{}, nil)

	if err := g.CreateChatCompletion(context.Background(), userRequest("m"), w0()); err != want {
		t.Errorf("expected provider error passed through, got %v", err)
	}
}

func TestStreamCompletion_ForwardsInOrder(t *testing.T) {
	p := &fakeProvider{events: []provider.Event{
		textChunk("chatcmpl-s1", "a"),
		textChunk("chatcmpl-s1", "b"),
		{Chunk: &api.ChatCompletionChunk{
			ID:      "chatcmpl-s1",
			Choices: []api.ChunkChoice{},
			Usage:   &api.Usage{PromptTokens: 2, CompletionTokens: 2, TotalTokens: 4},
		}},
	}}
	g, _ := New(p, nil, Config{}, nil)

	req := userRequest("m")
	req.Stream = true
	w := &captureWriter{}
	if err := g.CreateChatCompletion(context.Background(), req, w); err != nil {
		t.Fatal(err)
	}

	if len(w.chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(w.chunks))
	}
	if *w.chunks[0].Choices[0].Delta.Content != "a" || *w.chunks[1].Choices[0].Delta.Content != "b" {
		t.Error("chunks out of order")
	}
	if w.done != 1 {
		t.Errorf("expected exactly one [DONE], got %d", w.done)
	}
}

func TestStreamCompletion_ErrorBeforeFirstChunk(t *testing.T) {
	want := api.NewError("bad key", api.ErrorTypeAuthentication, 401)
	p := &fakeProvider{events: []provider.Event{{Err: want}}}
	g, _ := New(p, nil, Config{}, nil)

	req := userRequest("m")
	req.Stream = true
	w := &captureWriter{}
	err := g.CreateChatCompletion(context.Background(), req, w)

	if err != want {
		t.Errorf("expected plain error before first chunk, got %v", err)
	}
	if len(w.errs) != 0 || w.done != 0 {
		t.Error("nothing must be written when the stream fails up front")
	}
}

func TestStreamCompletion_ErrorAfterChunksGoesInBand(t *testing.T) {
	streamErr := api.NewServerError("upstream reset")
	p := &fakeProvider{events: []provider.Event{
		textChunk("chatcmpl-s1", "partial"),
		{Err: streamErr},
	}}
	g, _ := New(p, nil, Config{}, nil)

	req := userRequest("m")
	req.Stream = true
	w := &captureWriter{}
	if err := g.CreateChatCompletion(context.Background(), req, w); err != nil {
		t.Fatalf("in-band delivery must not return an error, got %v", err)
	}

	if len(w.chunks) != 1 {
		t.Errorf("expected the partial chunk forwarded, got %d", len(w.chunks))
	}
	if len(w.errs) != 1 || w.errs[0] != streamErr {
		t.Errorf("expected in-band error frame, got %v", w.errs)
	}
	if w.done != 1 {
		t.Errorf("expected [DONE] after error frame, got %d", w.done)
	}
}

func TestStreamCompletion_SetupError(t *testing.T) {
	want := api.NewServerError("connect refused")
	p := &fakeProvider{streamErr: want}
	g, _ := New(p, nil, Config{}, nil)

	req := userRequest("m")
	req.Stream = true
	if err := g.CreateChatCompletion(context.Background(), req, w0()); err != want {
		t.Errorf("expected setup error, got %v", err)
	}
}

func TestStreamCompletion_ClientDisconnect(t *testing.T) {
	p := &fakeProvider{events: []provider.Event{
		textChunk("chatcmpl-s1", "a"),
		textChunk("chatcmpl-s1", "b"),
	}}
	g, _ := New(p, nil, Config{}, nil)

	req := userRequest("m")
	req.Stream = true
	w := &captureWriter{chunkErr: errors.New("client gone")}
	if err := g.CreateChatCompletion(context.Background(), req, w); err == nil {
		t.Error("expected write error surfaced")
	}
	if w.done != 0 {
		t.Error("no [DONE] after client disconnect")
	}
}

func TestRecordUsage_NonStreaming(t *testing.T) {
	content := "ok"
	p := &fakeProvider{resp: &api.ChatResponse{
		ID:      "chatcmpl-acct1acct1acct1acct1acct",
		Choices: []api.Choice{{Message: api.AssistantMessage{Role: api.RoleAssistant, Content: &content}}},
		Usage: &api.Usage{
			PromptTokens:        10,
			CompletionTokens:    5,
			TotalTokens:         15,
			PromptTokensDetails: &api.PromptTokensDetails{CachedTokens: 3},
		},
	}}
	store := memory.New(100)
	g, _ := New(p, store, Config{RecordUsage: true}, nil)

	ctx := transport.ContextWithRequestID(context.Background(), "req-9")
	if err := g.CreateChatCompletion(ctx, userRequest("m"), w0()); err != nil {
		t.Fatal(err)
	}

	recs, err := store.ListUsage(context.Background(), storage.ListOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 1 {
		t.Fatalf("expected 1 record, got %d", len(recs))
	}
	rec := recs[0]
	if rec.ID != "chatcmpl-acct1acct1acct1acct1acct" || rec.RequestID != "req-9" || rec.Model != "m" {
		t.Errorf("unexpected record: %+v", rec)
	}
	if rec.Streamed {
		t.Error("non-streaming exchange marked as streamed")
	}
	if rec.PromptTokens != 10 || rec.CompletionTokens != 5 || rec.TotalTokens != 15 || rec.CachedTokens != 3 {
		t.Errorf("unexpected token counts: %+v", rec)
	}
	if rec.CreatedAt.IsZero() || time.Since(rec.CreatedAt) > time.Minute {
		t.Errorf("unexpected created_at: %v", rec.CreatedAt)
	}
}

func TestRecordUsage_Streaming(t *testing.T) {
	p := &fakeProvider{events: []provider.Event{
		textChunk("chatcmpl-s9s9s9s9s9s9s9s9s9s9s9s9", "x"),
		{Chunk: &api.ChatCompletionChunk{
			ID:      "chatcmpl-s9s9s9s9s9s9s9s9s9s9s9s9",
			Choices: []api.ChunkChoice{},
			Usage:   &api.Usage{PromptTokens: 4, CompletionTokens: 6, TotalTokens: 10},
		}},
	}}
	store := memory.New(100)
	g, _ := New(p, store, Config{RecordUsage: true}, nil)

	req := userRequest("m")
	req.Stream = true
	if err := g.CreateChatCompletion(context.Background(), req, w0()); err != nil {
		t.Fatal(err)
	}

	recs, _ := store.ListUsage(context.Background(), storage.ListOptions{})
	if len(recs) != 1 {
		t.Fatalf("expected 1 record, got %d", len(recs))
	}
	if !recs[0].Streamed || recs[0].ID != "chatcmpl-s9s9s9s9s9s9s9s9s9s9s9s9" || recs[0].TotalTokens != 10 {
		t.Errorf("unexpected record: %+v", recs[0])
	}
}

func TestRecordUsage_DisabledWithoutFlag(t *testing.T) {
	content := "ok"
	p := &fakeProvider{resp: &api.ChatResponse{
		ID:      "chatcmpl-off",
		Choices: []api.Choice{{Message: api.AssistantMessage{Role: api.RoleAssistant, Content: &content}}},
	}}
	store := memory.New(100)
	g, _ := New(p, store, Config{RecordUsage: false}, nil)

	g.CreateChatCompletion(context.Background(), userRequest("m"), w0())
	if store.Len() != 0 {
		t.Errorf("expected no records when accounting is off, got %d", store.Len())
	}
}

func TestRecordUsage_NormalizesForeignID(t *testing.T) {
	content := "ok"
	p := &fakeProvider{resp: &api.ChatResponse{
		ID:      "msg_upstream_01",
		Choices: []api.Choice{{Message: api.AssistantMessage{Role: api.RoleAssistant, Content: &content}}},
		Usage:   &api.Usage{PromptTokens: 1, CompletionTokens: 1, TotalTokens: 2},
	}}
	store := memory.New(100)
	g, _ := New(p, store, Config{RecordUsage: true}, nil)

	if err := g.CreateChatCompletion(context.Background(), userRequest("m"), w0()); err != nil {
		t.Fatal(err)
	}

	recs, err := store.ListUsage(context.Background(), storage.ListOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 1 {
		t.Fatalf("expected 1 record, got %d", len(recs))
	}
	if !api.ValidateCompletionID(recs[0].ID) {
		t.Errorf("record kept upstream-shaped id %q", recs[0].ID)
	}
}

func TestConfig_ValidationDefaults(t *testing.T) {
	v := Config{}.validation()
	def := api.DefaultValidationConfig()
	if v.MaxMessages != def.MaxMessages || v.MaxTools != def.MaxTools {
		t.Errorf("expected defaults, got %+v", v)
	}

	v = Config{Validation: api.ValidationConfig{MaxMessages: 5, MaxTools: 2}}.validation()
	if v.MaxMessages != 5 || v.MaxTools != 2 {
		t.Errorf("expected explicit limits kept, got %+v", v)
	}
}
