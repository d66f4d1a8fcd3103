package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/rhuss/umleitung/pkg/api"
	"github.com/rhuss/umleitung/pkg/auth"
	"github.com/rhuss/umleitung/pkg/debug"
	"github.com/rhuss/umleitung/pkg/observability"
	"github.com/rhuss/umleitung/pkg/provider"
	"github.com/rhuss/umleitung/pkg/storage"
	"github.com/rhuss/umleitung/pkg/transport"
)

// Gateway orchestrates request processing between the transport layer
// and the upstream provider. It implements transport.ChatCompleter.
type Gateway struct {
	provider provider.Provider
	usage    storage.UsageStore
	cfg      Config
	logger   *slog.Logger
}

// Ensure Gateway implements transport.ChatCompleter at compile time.
var _ transport.ChatCompleter = (*Gateway)(nil)

// New creates a new Gateway. The provider must not be nil. The usage
// store can be nil to disable accounting.
func New(p provider.Provider, usage storage.UsageStore, cfg Config, logger *slog.Logger) (*Gateway, error) {
	if p == nil {
		return nil, fmt.Errorf("gateway: provider must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{
		provider: p,
		usage:    usage,
		cfg:      cfg,
		logger:   logger,
	}, nil
}

// CreateChatCompletion handles one chat completion exchange, streaming
// or not, and writes the result to w.
func (g *Gateway) CreateChatCompletion(ctx context.Context, req *api.ChatRequest, w transport.ResponseWriter) error {
	if req.Model == "" {
		if g.cfg.DefaultModel == "" {
			return api.NewInvalidRequestError("model is required")
		}
		req.Model = g.cfg.DefaultModel
	}

	if apiErr := api.ValidateRequest(req, g.cfg.validation()); apiErr != nil {
		return apiErr
	}

	if req.Stream {
		return g.streamCompletion(ctx, req, w)
	}
	return g.completeOnce(ctx, req, w)
}

// completeOnce runs the non-streaming path: one upstream exchange, one
// JSON body.
func (g *Gateway) completeOnce(ctx context.Context, req *api.ChatRequest, w transport.ResponseWriter) error {
	start := time.Now()
	resp, err := g.provider.Complete(ctx, req)
	g.observe(req.Model, err, time.Since(start))
	if err != nil {
		return err
	}

	g.recordUsage(ctx, resp.ID, req.Model, false, resp.Usage)

	return w.WriteResponse(ctx, resp)
}

// streamCompletion runs the streaming path. Chunks are forwarded in
// upstream order, one SSE frame per chunk, with no buffering. A failure
// after the first chunk is delivered in-band as an error frame followed
// by the terminal marker; the HTTP status is already committed by then.
func (g *Gateway) streamCompletion(ctx context.Context, req *api.ChatRequest, w transport.ResponseWriter) error {
	start := time.Now()
	events, err := g.provider.Stream(ctx, req)
	if err != nil {
		g.observe(req.Model, err, time.Since(start))
		return err
	}

	var (
		completionID string
		lastUsage    *api.Usage
		wroteChunk   bool
	)

	for ev := range events {
		if ev.Err != nil {
			g.observe(req.Model, ev.Err, time.Since(start))
			if !wroteChunk {
				// Nothing sent yet: surface as a plain HTTP error.
				return ev.Err
			}
			if werr := w.WriteError(ctx, ev.Err); werr != nil {
				return werr
			}
			return w.WriteDone(ctx)
		}

		chunk := ev.Chunk
		if completionID == "" {
			completionID = chunk.ID
		}
		if chunk.Usage != nil {
			lastUsage = chunk.Usage
		}

		if err := w.WriteChunk(ctx, chunk); err != nil {
			// Client gone; drain the provider channel so its goroutine
			// can finish and release the upstream connection.
			go func() {
				for range events {
				}
			}()
			return err
		}
		wroteChunk = true
	}

	g.observe(req.Model, nil, time.Since(start))
	g.recordUsage(ctx, completionID, req.Model, true, lastUsage)

	return w.WriteDone(ctx)
}

// observe feeds the Prometheus upstream metrics when enabled.
func (g *Gateway) observe(model string, err error, elapsed time.Duration) {
	if !g.cfg.Metrics {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	observability.ObserveExchange(model, status, elapsed.Seconds())
}

// recordUsage writes one accounting record. Failures are logged, never
// surfaced: accounting must not fail a completed exchange.
func (g *Gateway) recordUsage(ctx context.Context, completionID, model string, streamed bool, usage *api.Usage) {
	if g.cfg.Metrics && usage != nil {
		cached := 0
		if usage.PromptTokensDetails != nil {
			cached = usage.PromptTokensDetails.CachedTokens
		}
		observability.ObserveTokens(model, usage.PromptTokens, usage.CompletionTokens, cached)
	}

	if g.usage == nil || !g.cfg.RecordUsage {
		return
	}

	rec := &storage.UsageRecord{
		ID:        completionID,
		RequestID: transport.RequestIDFromContext(ctx),
		Subject:   subjectFromContext(ctx),
		TenantID:  storage.GetTenant(ctx),
		Model:     model,
		Streamed:  streamed,
		CreatedAt: time.Now().UTC(),
	}
	// Providers may surface an upstream-shaped identifier; accounting
	// records always carry a well-formed consumer completion ID.
	if !api.ValidateCompletionID(rec.ID) {
		rec.ID = api.NewCompletionID()
	}
	if usage != nil {
		rec.PromptTokens = usage.PromptTokens
		rec.CompletionTokens = usage.CompletionTokens
		rec.TotalTokens = usage.TotalTokens
		if usage.PromptTokensDetails != nil {
			rec.CachedTokens = usage.PromptTokensDetails.CachedTokens
		}
	}

	debug.Log(debug.Usage, "writing usage record",
		"completion_id", rec.ID,
		"subject", rec.Subject,
		"total_tokens", rec.TotalTokens)

	// Detached context: the client may already have disconnected.
	recordCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	if err := g.usage.RecordUsage(recordCtx, rec); err != nil {
		g.logger.Warn("usage record failed",
			slog.String("completion_id", rec.ID),
			slog.String("error", err.Error()))
	}
}

// subjectFromContext resolves the authenticated caller, if any.
func subjectFromContext(ctx context.Context) string {
	if c := auth.CallerFromContext(ctx); c != nil {
		return c.Subject
	}
	return ""
}
