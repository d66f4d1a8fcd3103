package transport

import (
	"context"
	"log/slog"
	"time"

	"github.com/rhuss/umleitung/pkg/api"
)

// Logging returns middleware that emits one structured log line per
// completion exchange: request ID, requested model, whether the
// exchange streamed, the inbound message count, and duration.
//
// HTTP method, path, and status live a layer below the ChatCompleter;
// the adapter's HTTP middleware logs those.
func Logging(logger *slog.Logger) Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next ChatCompleter) ChatCompleter {
		return ChatCompleterFunc(func(ctx context.Context, req *api.ChatRequest, w ResponseWriter) error {
			start := time.Now()

			err := next.CreateChatCompletion(ctx, req, w)

			level, msg := slog.LevelInfo, "chat completion done"
			attrs := []slog.Attr{
				slog.String("request_id", RequestIDFromContext(ctx)),
				slog.String("model", req.Model),
				slog.Bool("stream", req.Stream),
				slog.Int("messages", len(req.Messages)),
				slog.Duration("duration", time.Since(start)),
			}
			if err != nil {
				level, msg = slog.LevelError, "chat completion failed"
				attrs = append(attrs, slog.String("error", err.Error()))
			}
			logger.LogAttrs(ctx, level, msg, attrs...)

			return err
		})
	}
}
