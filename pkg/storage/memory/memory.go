// Package memory provides an in-memory implementation of storage.UsageStore
// for testing and lightweight deployments. Records are kept in a bounded
// ring: when the limit is reached the oldest record is dropped, so the
// store cannot grow without bound under sustained traffic.
package memory

import (
	"container/list"
	"context"
	"sync"

	"github.com/rhuss/umleitung/pkg/storage"
)

// Store is an in-memory UsageStore with bounded retention.
type Store struct {
	mu      sync.RWMutex
	byID    map[string]*list.Element
	records *list.List // front = newest, back = oldest
	maxSize int        // 0 = unlimited
}

// Ensure Store implements storage.UsageStore at compile time.
var _ storage.UsageStore = (*Store)(nil)

// New creates a new in-memory store. If maxSize is 0, the store grows
// without limit. If maxSize > 0, the oldest record is dropped when the
// limit is reached.
func New(maxSize int) *Store {
	return &Store{
		byID:    make(map[string]*list.Element),
		records: list.New(),
		maxSize: maxSize,
	}
}

// RecordUsage stores a record in memory.
func (s *Store) RecordUsage(ctx context.Context, rec *storage.UsageRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byID[rec.ID]; exists {
		return storage.ErrConflict
	}

	cp := *rec
	if cp.TenantID == "" {
		cp.TenantID = storage.GetTenant(ctx)
	}

	if s.maxSize > 0 && s.records.Len() >= s.maxSize {
		oldest := s.records.Back()
		if oldest != nil {
			s.records.Remove(oldest)
			delete(s.byID, oldest.Value.(*storage.UsageRecord).ID)
		}
	}

	s.byID[cp.ID] = s.records.PushFront(&cp)
	return nil
}

// ListUsage returns records matching opts, newest first. Tenant scoping
// is taken from the context.
func (s *Store) ListUsage(ctx context.Context, opts storage.ListOptions) ([]*storage.UsageRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tenantID := storage.GetTenant(ctx)

	var out []*storage.UsageRecord
	for e := s.records.Front(); e != nil; e = e.Next() {
		rec := e.Value.(*storage.UsageRecord)
		if tenantID != "" && rec.TenantID != tenantID {
			continue
		}
		if opts.Subject != "" && rec.Subject != opts.Subject {
			continue
		}
		if opts.Model != "" && rec.Model != opts.Model {
			continue
		}
		if !opts.Since.IsZero() && rec.CreatedAt.Before(opts.Since) {
			continue
		}
		if !opts.Until.IsZero() && !rec.CreatedAt.Before(opts.Until) {
			continue
		}
		cp := *rec
		out = append(out, &cp)
		if opts.Limit > 0 && len(out) >= opts.Limit {
			break
		}
	}
	return out, nil
}

// HealthCheck always succeeds for the in-memory store.
func (s *Store) HealthCheck(ctx context.Context) error {
	return nil
}

// Close is a no-op for the in-memory store.
func (s *Store) Close() error {
	return nil
}

// Len reports the number of stored records. Used in tests.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.records.Len()
}
