package auth

import "context"

type callerContextKey struct{}

// WithCaller returns a context carrying the resolved caller.
func WithCaller(ctx context.Context, c *Caller) context.Context {
	return context.WithValue(ctx, callerContextKey{}, c)
}

// CallerFromContext returns the caller the request runs as, or nil when
// the request never passed the gate.
func CallerFromContext(ctx context.Context) *Caller {
	c, _ := ctx.Value(callerContextKey{}).(*Caller)
	return c
}
