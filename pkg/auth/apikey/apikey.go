// Package apikey verifies bearer tokens against API keys from the
// gateway configuration. Keys live in memory only as SHA-256 digests;
// the plaintext is dropped at construction time.
package apikey

import (
	"context"
	"crypto/sha256"
	"net/http"

	"github.com/rhuss/umleitung/pkg/auth"
)

// Key pairs a configured secret with the caller it grants.
type Key struct {
	Secret string
	Caller auth.Caller
}

// Verifier resolves bearer tokens to callers via a digest lookup.
// Digests are uniformly distributed, so the lookup reveals nothing
// about the configured secrets through timing.
type Verifier struct {
	callers map[[sha256.Size]byte]auth.Caller
}

// New builds a verifier from configured keys. Later entries win when
// two keys share a secret.
func New(keys []Key) *Verifier {
	v := &Verifier{callers: make(map[[sha256.Size]byte]auth.Caller, len(keys))}
	for _, k := range keys {
		v.callers[sha256.Sum256([]byte(k.Secret))] = k.Caller
	}
	return v
}

// Verify checks the request's bearer token against the key table.
// Requests without a bearer credential are skipped so another verifier
// in the gate can claim them.
func (v *Verifier) Verify(_ context.Context, r *http.Request) (auth.Verdict, *auth.Caller, error) {
	token, ok := auth.BearerToken(r)
	if !ok {
		return auth.VerdictSkip, nil, nil
	}
	if token == "" {
		return auth.VerdictDeny, nil, auth.ErrBadCredentials
	}

	caller, found := v.callers[sha256.Sum256([]byte(token))]
	if !found {
		return auth.VerdictDeny, nil, auth.ErrBadCredentials
	}
	return auth.VerdictAllow, &caller, nil
}
