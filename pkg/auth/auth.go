// Package auth gates gateway endpoints behind pluggable credential
// verifiers and resolves each request to a Caller. The gateway stamps
// usage records with the caller's subject and tenant; the rate limiter
// draws its per-minute budget from the caller's tier.
package auth

import (
	"context"
	"errors"
	"net/http"
)

// Verdict is a verifier's judgement of a request's credentials.
type Verdict int

const (
	// VerdictSkip means the verifier does not recognize the credential
	// shape. The gate moves on to the next verifier.
	VerdictSkip Verdict = iota

	// VerdictAllow means the credentials checked out. The gate stops and
	// the request runs as the returned caller.
	VerdictAllow

	// VerdictDeny means credentials of the right shape were presented
	// but failed verification. The gate stops and rejects the request.
	VerdictDeny
)

// Caller is the identity a request runs as after passing the gate.
type Caller struct {
	// Subject identifies the caller. Never empty for a gated request.
	Subject string

	// Tenant scopes usage records for multi-tenant accounting. Empty
	// means unscoped.
	Tenant string

	// Tier selects the caller's rate budget. Empty falls back to the
	// limiter's default budget.
	Tier string

	// Scopes lists granted authorization scopes, when the credential
	// carries any.
	Scopes []string
}

// Verifier inspects a request's credentials and votes on it.
type Verifier interface {
	Verify(ctx context.Context, r *http.Request) (Verdict, *Caller, error)
}

var (
	ErrNoCredentials  = errors.New("no credentials presented")
	ErrBadCredentials = errors.New("credentials rejected")
	ErrRateLimited    = errors.New("rate limit exceeded")
)

// Gate resolves a request to a caller by consulting its verifiers in
// order. The first non-skip verdict settles the request.
type Gate struct {
	Verifiers []Verifier

	// Anonymous, when non-nil, is the caller assigned to requests that
	// every verifier skipped. When nil such requests are denied.
	Anonymous *Caller
}

// Resolve runs the request through the gate.
func (g *Gate) Resolve(ctx context.Context, r *http.Request) (*Caller, error) {
	for _, v := range g.Verifiers {
		verdict, caller, err := v.Verify(ctx, r)
		switch verdict {
		case VerdictAllow:
			return caller, nil
		case VerdictDeny:
			if err == nil {
				err = ErrBadCredentials
			}
			return nil, err
		}
	}

	if g.Anonymous != nil {
		anon := *g.Anonymous
		return &anon, nil
	}
	return nil, ErrNoCredentials
}

// BearerToken extracts the token from an Authorization header using the
// Bearer scheme. ok is false when the header is absent or uses another
// scheme, which verifiers treat as a skip.
func BearerToken(r *http.Request) (token string, ok bool) {
	const scheme = "Bearer "
	header := r.Header.Get("Authorization")
	if len(header) < len(scheme) || header[:len(scheme)] != scheme {
		return "", false
	}
	return header[len(scheme):], true
}
