package transport

import (
	"context"
	"crypto/rand"
	"encoding/hex"

	"github.com/rhuss/umleitung/pkg/api"
)

type requestIDKey struct{}

// ContextWithRequestID stamps ctx with an exchange-scoped request ID.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestIDFromContext returns the request ID stamped on ctx, or the
// empty string when none is set.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// RequestID returns middleware that guarantees every exchange carries a
// request ID. An ID supplied by the HTTP adapter (from the X-Request-ID
// header) is kept; exchanges arriving without one get a fresh req_
// identifier so log lines and usage records stay correlatable.
func RequestID() Middleware {
	return func(next ChatCompleter) ChatCompleter {
		return ChatCompleterFunc(func(ctx context.Context, req *api.ChatRequest, w ResponseWriter) error {
			if RequestIDFromContext(ctx) == "" {
				ctx = ContextWithRequestID(ctx, newRequestID())
			}
			return next.CreateChatCompletion(ctx, req, w)
		})
	}
}

func newRequestID() string {
	var b [12]byte
	rand.Read(b[:])
	return "req_" + hex.EncodeToString(b[:])
}
