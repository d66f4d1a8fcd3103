package memory

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/rhuss/umleitung/pkg/storage"
)

func record(id string, created time.Time) *storage.UsageRecord {
	return &storage.UsageRecord{
		ID:               id,
		Subject:          "alice",
		Model:            "claude-3",
		PromptTokens:     10,
		CompletionTokens: 5,
		TotalTokens:      15,
		CreatedAt:        created,
	}
}

func TestRecordAndList(t *testing.T) {
	s := New(100)
	ctx := context.Background()
	now := time.Now()

	for i := 0; i < 3; i++ {
		if err := s.RecordUsage(ctx, record(fmt.Sprintf("chatcmpl-%d", i), now.Add(time.Duration(i)*time.Second))); err != nil {
			t.Fatal(err)
		}
	}

	recs, err := s.ListUsage(ctx, storage.ListOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 3 {
		t.Fatalf("expected 3 records, got %d", len(recs))
	}
	// Newest first.
	if recs[0].ID != "chatcmpl-2" || recs[2].ID != "chatcmpl-0" {
		t.Errorf("unexpected order: %s, %s, %s", recs[0].ID, recs[1].ID, recs[2].ID)
	}
}

func TestDuplicateID(t *testing.T) {
	s := New(100)
	ctx := context.Background()

	s.RecordUsage(ctx, record("chatcmpl-dup", time.Now()))
	err := s.RecordUsage(ctx, record("chatcmpl-dup", time.Now()))
	if !errors.Is(err, storage.ErrConflict) {
		t.Errorf("expected ErrConflict, got %v", err)
	}
}

func TestBoundedRetention(t *testing.T) {
	s := New(2)
	ctx := context.Background()
	now := time.Now()

	for i := 0; i < 3; i++ {
		s.RecordUsage(ctx, record(fmt.Sprintf("chatcmpl-%d", i), now.Add(time.Duration(i)*time.Second)))
	}

	if s.Len() != 2 {
		t.Fatalf("expected 2 records retained, got %d", s.Len())
	}
	recs, _ := s.ListUsage(ctx, storage.ListOptions{})
	for _, rec := range recs {
		if rec.ID == "chatcmpl-0" {
			t.Error("expected oldest record evicted")
		}
	}

	// The evicted ID can be reused.
	if err := s.RecordUsage(ctx, record("chatcmpl-0", now)); err != nil {
		t.Errorf("expected evicted id usable again, got %v", err)
	}
}

func TestListFilters(t *testing.T) {
	s := New(100)
	ctx := context.Background()
	now := time.Now()

	a := record("chatcmpl-a", now.Add(-2*time.Hour))
	b := record("chatcmpl-b", now)
	b.Subject = "bob"
	b.Model = "claude-thinking"
	s.RecordUsage(ctx, a)
	s.RecordUsage(ctx, b)

	recs, _ := s.ListUsage(ctx, storage.ListOptions{Subject: "bob"})
	if len(recs) != 1 || recs[0].ID != "chatcmpl-b" {
		t.Errorf("subject filter failed: %v", recs)
	}

	recs, _ = s.ListUsage(ctx, storage.ListOptions{Model: "claude-3"})
	if len(recs) != 1 || recs[0].ID != "chatcmpl-a" {
		t.Errorf("model filter failed: %v", recs)
	}

	recs, _ = s.ListUsage(ctx, storage.ListOptions{Since: now.Add(-time.Hour)})
	if len(recs) != 1 || recs[0].ID != "chatcmpl-b" {
		t.Errorf("since filter failed: %v", recs)
	}

	recs, _ = s.ListUsage(ctx, storage.ListOptions{Until: now.Add(-time.Hour)})
	if len(recs) != 1 || recs[0].ID != "chatcmpl-a" {
		t.Errorf("until filter failed: %v", recs)
	}

	recs, _ = s.ListUsage(ctx, storage.ListOptions{Limit: 1})
	if len(recs) != 1 {
		t.Errorf("limit failed: %v", recs)
	}
}

func TestTenantScoping(t *testing.T) {
	s := New(100)
	ctxA := storage.SetTenant(context.Background(), "tenant-a")
	ctxB := storage.SetTenant(context.Background(), "tenant-b")

	s.RecordUsage(ctxA, record("chatcmpl-a", time.Now()))
	s.RecordUsage(ctxB, record("chatcmpl-b", time.Now()))

	recs, _ := s.ListUsage(ctxA, storage.ListOptions{})
	if len(recs) != 1 || recs[0].ID != "chatcmpl-a" {
		t.Errorf("tenant A scoping failed: %v", recs)
	}

	// No tenant sees everything (single-tenant mode).
	recs, _ = s.ListUsage(context.Background(), storage.ListOptions{})
	if len(recs) != 2 {
		t.Errorf("expected 2 records without tenant, got %d", len(recs))
	}
}

func TestListReturnsCopies(t *testing.T) {
	s := New(100)
	ctx := context.Background()
	s.RecordUsage(ctx, record("chatcmpl-x", time.Now()))

	recs, _ := s.ListUsage(ctx, storage.ListOptions{})
	recs[0].Model = "mutated"

	again, _ := s.ListUsage(ctx, storage.ListOptions{})
	if again[0].Model != "claude-3" {
		t.Error("stored record must not be affected by caller mutation")
	}
}

func TestHealthCheckAndClose(t *testing.T) {
	s := New(0)
	if err := s.HealthCheck(context.Background()); err != nil {
		t.Errorf("unexpected health error: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("unexpected close error: %v", err)
	}
}
