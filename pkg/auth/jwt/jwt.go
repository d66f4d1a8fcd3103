// Package jwt verifies RSA-signed bearer tokens against a JWKS
// endpoint and maps their claims onto the gateway's caller model:
// subject, tenant for usage scoping, and scopes. The claim names are
// configurable so the gateway can sit behind different issuers.
package jwt

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/big"
	"net/http"
	"strings"
	"sync"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"

	"github.com/rhuss/umleitung/pkg/auth"
)

// Config describes the token issuer and the claim mapping.
type Config struct {
	// Issuer, when set, must match the token's iss claim.
	Issuer string

	// Audience, when set, must be present in the token's aud claim.
	Audience string

	// JWKSURL is the key-set endpoint used for signature verification.
	JWKSURL string

	// UserClaim names the claim that becomes the caller subject.
	// Default "sub".
	UserClaim string

	// TenantClaim names the claim that becomes the caller tenant.
	// Default "tenant_id".
	TenantClaim string

	// ScopesClaim names the claim carrying scopes, either as a
	// space-separated string or a JSON array. Default "scope".
	ScopesClaim string

	// CacheTTL bounds how long fetched signing keys are reused.
	// Default one hour.
	CacheTTL time.Duration

	// HTTPClient fetches the key set. Default http.DefaultClient.
	HTTPClient *http.Client
}

func (c *Config) fillDefaults() {
	if c.UserClaim == "" {
		c.UserClaim = "sub"
	}
	if c.TenantClaim == "" {
		c.TenantClaim = "tenant_id"
	}
	if c.ScopesClaim == "" {
		c.ScopesClaim = "scope"
	}
	if c.CacheTTL == 0 {
		c.CacheTTL = time.Hour
	}
	if c.HTTPClient == nil {
		c.HTTPClient = http.DefaultClient
	}
}

// Verifier validates bearer JWTs and resolves them to callers.
type Verifier struct {
	cfg    Config
	parser *jwtlib.Parser
	keys   *keyring
}

// New builds a verifier for the given issuer configuration.
func New(cfg Config) *Verifier {
	cfg.fillDefaults()

	opts := []jwtlib.ParserOption{
		jwtlib.WithValidMethods([]string{"RS256", "RS384", "RS512"}),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwtlib.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, jwtlib.WithAudience(cfg.Audience))
	}

	return &Verifier{
		cfg:    cfg,
		parser: jwtlib.NewParser(opts...),
		keys: &keyring{
			url:    cfg.JWKSURL,
			ttl:    cfg.CacheTTL,
			client: cfg.HTTPClient,
			byKID:  make(map[string]*rsa.PublicKey),
		},
	}
}

// Verify validates the request's bearer token. Requests without a
// bearer credential are skipped; a present but invalid token is denied.
func (v *Verifier) Verify(ctx context.Context, r *http.Request) (auth.Verdict, *auth.Caller, error) {
	raw, ok := auth.BearerToken(r)
	if !ok {
		return auth.VerdictSkip, nil, nil
	}
	if raw == "" {
		return auth.VerdictDeny, nil, fmt.Errorf("empty bearer token")
	}

	token, err := v.parser.Parse(raw, func(t *jwtlib.Token) (any, error) {
		return v.signingKey(ctx, t)
	})
	if err != nil {
		slog.Debug("token validation failed", "error", err)
		return auth.VerdictDeny, nil, fmt.Errorf("invalid token: %w", err)
	}

	claims, ok := token.Claims.(jwtlib.MapClaims)
	if !ok || !token.Valid {
		return auth.VerdictDeny, nil, fmt.Errorf("invalid token claims")
	}

	caller, err := v.resolveCaller(claims)
	if err != nil {
		return auth.VerdictDeny, nil, err
	}
	return auth.VerdictAllow, caller, nil
}

// signingKey resolves the RSA public key a token was signed with, keyed
// by the kid header.
func (v *Verifier) signingKey(ctx context.Context, t *jwtlib.Token) (*rsa.PublicKey, error) {
	if _, ok := t.Method.(*jwtlib.SigningMethodRSA); !ok {
		return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
	}
	kid, _ := t.Header["kid"].(string)
	if kid == "" {
		return nil, fmt.Errorf("token missing kid header")
	}
	key, err := v.keys.lookup(ctx, kid)
	if err != nil {
		return nil, fmt.Errorf("resolving key %q: %w", kid, err)
	}
	return key, nil
}

// resolveCaller maps validated claims onto the gateway caller model.
func (v *Verifier) resolveCaller(claims jwtlib.MapClaims) (*auth.Caller, error) {
	subject, _ := claims[v.cfg.UserClaim].(string)
	if subject == "" {
		return nil, fmt.Errorf("token missing %q claim", v.cfg.UserClaim)
	}

	caller := &auth.Caller{Subject: subject}
	caller.Tenant, _ = claims[v.cfg.TenantClaim].(string)
	caller.Scopes = scopeList(claims[v.cfg.ScopesClaim])
	return caller, nil
}

// scopeList normalizes a scope claim. OAuth issuers emit a
// space-separated string; others use a JSON array.
func scopeList(claim any) []string {
	switch val := claim.(type) {
	case string:
		if scopes := strings.Fields(val); len(scopes) > 0 {
			return scopes
		}
	case []any:
		var scopes []string
		for _, entry := range val {
			if s, ok := entry.(string); ok {
				scopes = append(scopes, s)
			}
		}
		return scopes
	}
	return nil
}

// keyring caches the issuer's RSA public keys by kid. Keys are
// refetched as a set once the deadline passes or an unknown kid shows
// up, so issuer key rotation is picked up without a restart.
type keyring struct {
	url    string
	ttl    time.Duration
	client *http.Client

	mu       sync.RWMutex
	byKID    map[string]*rsa.PublicKey
	deadline time.Time
}

func (k *keyring) lookup(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	k.mu.RLock()
	key, fresh := k.cachedLocked(kid)
	k.mu.RUnlock()
	if fresh {
		return key, nil
	}

	k.mu.Lock()
	defer k.mu.Unlock()

	// Another request may have refreshed while we waited for the lock.
	if key, fresh := k.cachedLocked(kid); fresh {
		return key, nil
	}

	if err := k.refresh(ctx); err != nil {
		return nil, err
	}
	key, ok := k.byKID[kid]
	if !ok {
		return nil, fmt.Errorf("kid %q not in key set", kid)
	}
	return key, nil
}

func (k *keyring) cachedLocked(kid string) (*rsa.PublicKey, bool) {
	if time.Now().After(k.deadline) {
		return nil, false
	}
	key, ok := k.byKID[kid]
	return key, ok
}

// refresh replaces the cached key set. Caller holds the write lock.
func (k *keyring) refresh(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, k.url, nil)
	if err != nil {
		return fmt.Errorf("building key-set request: %w", err)
	}

	resp, err := k.client.Do(req)
	if err != nil {
		return fmt.Errorf("fetching key set: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("key-set endpoint returned status %d", resp.StatusCode)
	}

	var doc struct {
		Keys []jwksEntry `json:"keys"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return fmt.Errorf("decoding key set: %w", err)
	}

	byKID := make(map[string]*rsa.PublicKey, len(doc.Keys))
	for _, entry := range doc.Keys {
		if entry.Kty != "RSA" || (entry.Use != "" && entry.Use != "sig") {
			continue
		}
		key, err := entry.publicKey()
		if err != nil {
			slog.Warn("skipping unusable signing key", "kid", entry.Kid, "error", err)
			continue
		}
		byKID[entry.Kid] = key
	}

	k.byKID = byKID
	k.deadline = time.Now().Add(k.ttl)

	slog.Debug("signing keys refreshed", "keys", len(byKID), "url", k.url)
	return nil
}

// jwksEntry is one key of a JWKS document, RSA fields only.
type jwksEntry struct {
	Kty string `json:"kty"`
	Kid string `json:"kid"`
	Use string `json:"use"`
	N   string `json:"n"`
	E   string `json:"e"`
}

func (e jwksEntry) publicKey() (*rsa.PublicKey, error) {
	modulus, err := base64.RawURLEncoding.DecodeString(e.N)
	if err != nil {
		return nil, fmt.Errorf("decoding modulus: %w", err)
	}
	exponent, err := base64.RawURLEncoding.DecodeString(e.E)
	if err != nil {
		return nil, fmt.Errorf("decoding exponent: %w", err)
	}

	exp := new(big.Int).SetBytes(exponent)
	if !exp.IsInt64() || exp.Int64() > int64(^uint32(0)) {
		return nil, fmt.Errorf("exponent out of range")
	}

	return &rsa.PublicKey{
		N: new(big.Int).SetBytes(modulus),
		E: int(exp.Int64()),
	}, nil
}
