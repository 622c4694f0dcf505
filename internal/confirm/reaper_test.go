package confirm

import (
	"context"
	"testing"
	"time"

	"gastos/internal/core"
)

type stubReaperStore struct {
	expired []core.PendingExpense
	deleted []int64
}

func (s *stubReaperStore) ExpiredPendingExpenses(_ context.Context, _ time.Time, _ int) ([]core.PendingExpense, error) {
	return s.expired, nil
}

func (s *stubReaperStore) DeletePendingExpense(_ context.Context, id int64) error {
	s.deleted = append(s.deleted, id)
	return nil
}

func TestSweepAutoConfirmsAwaitingValidation(t *testing.T) {
	store := newStubStore()
	p := pendingFixture(9)
	p.ExpiresAt = time.Now().Add(-time.Hour)
	store.pending[9] = p
	resolver := &stubResolver{store: store}
	rs := &stubReaperStore{expired: []core.PendingExpense{p}}

	r := NewReaper(rs, resolver, time.Minute, testLogger())
	r.Sweep(context.Background())

	if len(resolver.resolved) != 1 || resolver.resolved[0] != 9 {
		t.Fatalf("expected auto-confirm of pending 9, got %v", resolver.resolved)
	}
	if len(rs.deleted) != 0 {
		t.Fatalf("expected no discards, got %v", rs.deleted)
	}
}

func TestSweepDiscardsAwaitingCategoryReply(t *testing.T) {
	store := newStubStore()
	p := pendingFixture(9)
	p.Status = core.StatusAwaitingCategoryReply
	p.ExpiresAt = time.Now().Add(-time.Hour)
	store.pending[9] = p
	resolver := &stubResolver{store: store}
	rs := &stubReaperStore{expired: []core.PendingExpense{p}}

	r := NewReaper(rs, resolver, time.Minute, testLogger())
	r.Sweep(context.Background())

	if len(resolver.resolved) != 0 {
		t.Fatalf("expected no auto-confirm, got %v", resolver.resolved)
	}
	if len(rs.deleted) != 1 || rs.deleted[0] != 9 {
		t.Fatalf("expected pending 9 discarded, got %v", rs.deleted)
	}
}

func TestSweepToleratesAlreadySettledRows(t *testing.T) {
	store := newStubStore() // pending 9 not present: settled after listing
	resolver := &stubResolver{store: store}
	p := pendingFixture(9)
	p.ExpiresAt = time.Now().Add(-time.Hour)
	rs := &stubReaperStore{expired: []core.PendingExpense{p}}

	r := NewReaper(rs, resolver, time.Minute, testLogger())
	r.Sweep(context.Background())

	if len(resolver.resolved) != 0 || len(rs.deleted) != 0 {
		t.Fatalf("expected no-op sweep, resolved=%v deleted=%v", resolver.resolved, rs.deleted)
	}
}

func TestSweepDiscardsWhenNoSuggestion(t *testing.T) {
	store := newStubStore()
	p := pendingFixture(9)
	p.SuggestedCategoryID = 0
	p.ExpiresAt = time.Now().Add(-time.Hour)
	store.pending[9] = p
	resolver := &stubResolver{store: store}
	rs := &stubReaperStore{expired: []core.PendingExpense{p}}

	r := NewReaper(rs, resolver, time.Minute, testLogger())
	r.Sweep(context.Background())

	if len(rs.deleted) != 1 {
		t.Fatalf("expected discard without suggestion, got %v", rs.deleted)
	}
}
