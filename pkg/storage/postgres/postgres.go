// Package postgres provides a PostgreSQL implementation of storage.UsageStore.
// It uses pgx/v5 for connection pooling; one row per completed exchange.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rhuss/umleitung/pkg/storage"
)

// Store is a PostgreSQL-backed UsageStore.
type Store struct {
	pool *pgxpool.Pool
}

// Ensure Store implements storage.UsageStore at compile time.
var _ storage.UsageStore = (*Store)(nil)

// New creates a new PostgreSQL store with the given configuration.
// If MigrateOnStart is true, schema migrations are applied automatically.
func New(ctx context.Context, cfg Config) (*Store, error) {
	cfg.defaults()

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parsing DSN: %w", err)
	}

	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	// Verify connectivity.
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	s := &Store{pool: pool}

	if cfg.MigrateOnStart {
		if err := s.migrate(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("running migrations: %w", err)
		}
	}

	return s, nil
}

// RecordUsage persists one accounting row.
func (s *Store) RecordUsage(ctx context.Context, rec *storage.UsageRecord) error {
	tenantID := rec.TenantID
	if tenantID == "" {
		tenantID = storage.GetTenant(ctx)
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO usage_records (
			id, request_id, subject, tenant_id, model, streamed,
			prompt_tokens, completion_tokens, total_tokens, cached_tokens,
			created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`,
		rec.ID, nullString(rec.RequestID), nullString(rec.Subject), tenantID,
		rec.Model, rec.Streamed,
		rec.PromptTokens, rec.CompletionTokens, rec.TotalTokens, rec.CachedTokens,
		rec.CreatedAt,
	)

	if err != nil {
		if isDuplicateKey(err) {
			return storage.ErrConflict
		}
		return fmt.Errorf("inserting usage record: %w", err)
	}

	return nil
}

// ListUsage returns records matching opts, newest first. Tenant scoping
// is taken from the context.
func (s *Store) ListUsage(ctx context.Context, opts storage.ListOptions) ([]*storage.UsageRecord, error) {
	var (
		conds []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if tenantID := storage.GetTenant(ctx); tenantID != "" {
		conds = append(conds, "tenant_id = "+arg(tenantID))
	}
	if opts.Subject != "" {
		conds = append(conds, "subject = "+arg(opts.Subject))
	}
	if opts.Model != "" {
		conds = append(conds, "model = "+arg(opts.Model))
	}
	if !opts.Since.IsZero() {
		conds = append(conds, "created_at >= "+arg(opts.Since))
	}
	if !opts.Until.IsZero() {
		conds = append(conds, "created_at < "+arg(opts.Until))
	}

	query := `
		SELECT id, request_id, subject, tenant_id, model, streamed,
		       prompt_tokens, completion_tokens, total_tokens, cached_tokens,
		       created_at
		FROM usage_records`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at DESC"
	if opts.Limit > 0 {
		query += " LIMIT " + arg(opts.Limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying usage records: %w", err)
	}
	defer rows.Close()

	var out []*storage.UsageRecord
	for rows.Next() {
		var (
			rec       storage.UsageRecord
			requestID *string
			subject   *string
		)
		if err := rows.Scan(
			&rec.ID, &requestID, &subject, &rec.TenantID, &rec.Model, &rec.Streamed,
			&rec.PromptTokens, &rec.CompletionTokens, &rec.TotalTokens, &rec.CachedTokens,
			&rec.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning usage record: %w", err)
		}
		if requestID != nil {
			rec.RequestID = *requestID
		}
		if subject != nil {
			rec.Subject = *subject
		}
		out = append(out, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating usage records: %w", err)
	}

	return out, nil
}

// SumTokens aggregates total tokens for a subject since the given time.
// Used by reporting tooling; not part of the UsageStore interface.
func (s *Store) SumTokens(ctx context.Context, subject string, opts storage.ListOptions) (int64, error) {
	var total *int64
	err := s.pool.QueryRow(ctx, `
		SELECT SUM(total_tokens) FROM usage_records
		WHERE subject = $1 AND created_at >= $2
	`, subject, opts.Since).Scan(&total)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("summing tokens: %w", err)
	}
	if total == nil {
		return 0, nil
	}
	return *total, nil
}

// HealthCheck verifies the database connection.
func (s *Store) HealthCheck(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the connection pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// nullString converts an empty string to nil for nullable TEXT columns.
func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// isDuplicateKey checks if the error is a PostgreSQL unique violation (23505).
func isDuplicateKey(err error) bool {
	return err != nil && strings.Contains(err.Error(), "23505")
}
