package auth

import (
	"log/slog"
	"net/http"

	"github.com/rhuss/umleitung/pkg/api"
	"github.com/rhuss/umleitung/pkg/observability"
	"github.com/rhuss/umleitung/pkg/storage"
	"github.com/rhuss/umleitung/pkg/transport"
)

// DefaultOpenPaths lists endpoints reachable without credentials.
var DefaultOpenPaths = []string{"/healthz", "/readyz", "/metrics"}

// Middleware wraps next behind the gate. Requests to a path in openPaths
// pass through untouched. Everything else must resolve to a caller, and,
// when a limiter is set, stay inside the caller's rate budget. The
// resolved caller is placed on the request context and its tenant is
// propagated for usage-store scoping. Rejections use the gateway's
// standard error envelope.
func Middleware(gate *Gate, limiter Limiter, openPaths []string) func(http.Handler) http.Handler {
	open := make(map[string]bool, len(openPaths))
	for _, p := range openPaths {
		open[p] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if open[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			caller, err := gate.Resolve(r.Context(), r)
			if err != nil {
				slog.Warn("request rejected at gate",
					"path", r.URL.Path,
					"remote_addr", r.RemoteAddr,
					"error", err,
				)
				transport.WriteErrorResponse(w,
					api.NewAuthenticationError("authentication required"),
					http.StatusUnauthorized)
				return
			}
			if caller.Subject == "" {
				// A verifier bug, not a client error.
				slog.Error("verifier resolved a caller without a subject")
				transport.WriteErrorResponse(w,
					api.NewServerError("internal authentication error"),
					http.StatusInternalServerError)
				return
			}

			if limiter != nil {
				if err := limiter.Allow(caller); err != nil {
					slog.Warn("rate budget exhausted",
						"subject", caller.Subject,
						"tier", caller.Tier,
					)
					observability.RateLimitRejectedTotal.WithLabelValues(tierLabel(caller)).Inc()
					transport.WriteErrorResponse(w,
						api.NewRateLimitError("rate limit exceeded"),
						http.StatusTooManyRequests)
					return
				}
			}

			ctx := WithCaller(r.Context(), caller)
			if caller.Tenant != "" {
				ctx = storage.SetTenant(ctx, caller.Tenant)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func tierLabel(c *Caller) string {
	if c.Tier == "" {
		return "default"
	}
	return c.Tier
}
