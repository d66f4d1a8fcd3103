package transport

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/rhuss/umleitung/pkg/api"
)

// Recovery returns middleware that converts a panicking completion
// handler into a server error response instead of tearing down the
// connection. The panic value and stack are logged under the request ID
// so the crash is diagnosable; the server keeps accepting requests.
func Recovery(logger *slog.Logger) Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next ChatCompleter) ChatCompleter {
		return ChatCompleterFunc(func(ctx context.Context, req *api.ChatRequest, w ResponseWriter) (retErr error) {
			defer func() {
				if r := recover(); r != nil {
					logger.LogAttrs(ctx, slog.LevelError, "panic in completion handler",
						slog.String("request_id", RequestIDFromContext(ctx)),
						slog.Any("panic", r),
						slog.String("stack", string(debug.Stack())),
					)
					retErr = api.NewServerError(fmt.Sprintf("internal server error: %v", r))
				}
			}()
			return next.CreateChatCompletion(ctx, req, w)
		})
	}
}
