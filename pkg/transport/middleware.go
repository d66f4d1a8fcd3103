package transport

// Middleware wraps a ChatCompleter to add cross-cutting behavior around
// the completion handler: panic recovery, request IDs, logging.
type Middleware func(ChatCompleter) ChatCompleter

// Chain composes middleware into one. The first middleware is the
// outermost wrapper: Chain(a, b, c) produces a(b(c(handler))), so a
// sees the exchange first on the way in and last on the way out.
func Chain(middlewares ...Middleware) Middleware {
	return func(next ChatCompleter) ChatCompleter {
		wrapped := next
		for i := len(middlewares) - 1; i >= 0; i-- {
			wrapped = middlewares[i](wrapped)
		}
		return wrapped
	}
}
