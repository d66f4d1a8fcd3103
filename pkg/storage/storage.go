package storage

import (
	"context"
	"time"
)

// UsageRecord is one accounting entry, written after an exchange finishes.
// Token counts come from the upstream's final usage report; a record with
// all-zero counts is still written so request volume stays countable.
type UsageRecord struct {
	// ID is the completion ID the client saw (chatcmpl-...).
	ID string

	// RequestID correlates the record with log entries and the
	// X-Request-ID response header.
	RequestID string

	// Subject identifies the authenticated caller, empty when the
	// gateway runs without authentication.
	Subject string

	// TenantID scopes the record in multi-tenant deployments.
	TenantID string

	Model    string
	Streamed bool

	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
	CachedTokens     int

	CreatedAt time.Time
}

// ListOptions filters and pages a usage listing.
type ListOptions struct {
	Subject string
	Model   string
	Since   time.Time
	Until   time.Time
	Limit   int
}

// UsageStore persists usage records. Implementations must be safe for
// concurrent use. RecordUsage is called on the request path, so
// implementations should return quickly and never block on best-effort
// work.
type UsageStore interface {
	// RecordUsage persists a single record. The record's CreatedAt is
	// set by the caller; ID must be unique.
	RecordUsage(ctx context.Context, rec *UsageRecord) error

	// ListUsage returns records matching opts, newest first. Tenant
	// scoping is taken from the context.
	ListUsage(ctx context.Context, opts ListOptions) ([]*UsageRecord, error)

	// HealthCheck verifies the backend is reachable.
	HealthCheck(ctx context.Context) error

	// Close releases backend resources.
	Close() error
}
