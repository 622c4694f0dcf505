package worker

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"gastos/internal/amqp"
	"gastos/internal/core"
	applog "gastos/internal/log"
	sheetsmem "gastos/internal/sheets/memory"
)

type stubStore struct {
	expenses   map[int64]core.Expense
	categories map[int64]string
	unsynced   []int64
	synced     []int64
	errored    []int64
}

func newStubStore() *stubStore {
	return &stubStore{
		expenses:   map[int64]core.Expense{},
		categories: map[int64]string{},
	}
}

func (s *stubStore) GetExpenseWithCategory(_ context.Context, id int64) (core.Expense, string, error) {
	e, ok := s.expenses[id]
	if !ok {
		return core.Expense{}, "", core.ErrNotFound
	}
	return e, s.categories[id], nil
}

func (s *stubStore) UnsyncedExpenses(context.Context, int) ([]int64, error) {
	return s.unsynced, nil
}

func (s *stubStore) MarkSynced(_ context.Context, id int64) error {
	s.synced = append(s.synced, id)
	return nil
}

func (s *stubStore) MarkSyncError(_ context.Context, id int64) error {
	s.errored = append(s.errored, id)
	return nil
}

func testLogger() *applog.Logger {
	return applog.New(applog.Config{Level: slog.LevelError})
}

func expenseFixture() core.Expense {
	return core.Expense{
		ID:          42,
		Value:       core.Money{Cents: 15075},
		Description: "Compra de madeira",
		Date:        time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC),
		CategoryID:  1,
	}
}

func TestHandleSyncMessageMirrorsExpense(t *testing.T) {
	store := newStubStore()
	store.expenses[42] = expenseFixture()
	store.categories[42] = "Marcenaria"
	mirror := sheetsmem.New()
	w := NewSyncWorker(store, mirror, 10, testLogger())

	err := w.HandleSyncMessage(context.Background(), amqp.NewExpenseCreatedMessage(42))
	if err != nil {
		t.Fatalf("HandleSyncMessage: %v", err)
	}

	entries := mirror.Entries()
	if len(entries) != 1 {
		t.Fatalf("expected one mirrored entry, got %d", len(entries))
	}
	if entries[0].AmountCents != 15075 || entries[0].Category != "Marcenaria" {
		t.Fatalf("unexpected entry: %+v", entries[0])
	}
	if len(store.synced) != 1 || store.synced[0] != 42 {
		t.Fatalf("expected expense 42 marked synced, got %v", store.synced)
	}
}

func TestHandleSyncMessageMarksErrorOnMissingExpense(t *testing.T) {
	store := newStubStore()
	mirror := sheetsmem.New()
	w := NewSyncWorker(store, mirror, 10, testLogger())

	err := w.HandleSyncMessage(context.Background(), amqp.NewExpenseCreatedMessage(42))
	if err == nil {
		t.Fatal("expected error for missing expense")
	}
	if len(store.errored) != 1 || store.errored[0] != 42 {
		t.Fatalf("expected sync error flag, got %v", store.errored)
	}
}

func TestHandleSyncMessageMarksErrorOnMirrorFailure(t *testing.T) {
	store := newStubStore()
	store.expenses[42] = expenseFixture()
	store.categories[42] = "Marcenaria"
	mirror := sheetsmem.New()
	mirror.FailAppend = true
	w := NewSyncWorker(store, mirror, 10, testLogger())

	err := w.HandleSyncMessage(context.Background(), amqp.NewExpenseCreatedMessage(42))
	if err == nil {
		t.Fatal("expected error on mirror failure")
	}
	if len(store.errored) != 1 {
		t.Fatalf("expected sync error flag, got %v", store.errored)
	}
	if len(store.synced) != 0 {
		t.Fatal("expected no synced flag on failure")
	}
}

func TestProcessBacklogContinuesPastFailures(t *testing.T) {
	store := newStubStore()
	store.expenses[1] = expenseFixture()
	store.categories[1] = "Marcenaria"
	// Expense 2 is missing from the store.
	store.expenses[3] = expenseFixture()
	store.categories[3] = "Obra"
	store.unsynced = []int64{1, 2, 3}
	mirror := sheetsmem.New()
	w := NewSyncWorker(store, mirror, 10, testLogger())

	if err := w.ProcessBacklog(context.Background()); err != nil {
		t.Fatalf("ProcessBacklog: %v", err)
	}

	if len(mirror.Entries()) != 2 {
		t.Fatalf("expected two mirrored entries, got %d", len(mirror.Entries()))
	}
	if len(store.errored) != 1 || store.errored[0] != 2 {
		t.Fatalf("expected expense 2 flagged, got %v", store.errored)
	}
}

func TestProcessBacklogEmptyIsNoop(t *testing.T) {
	store := newStubStore()
	mirror := sheetsmem.New()
	w := NewSyncWorker(store, mirror, 10, testLogger())

	if err := w.ProcessBacklog(context.Background()); err != nil {
		t.Fatalf("ProcessBacklog: %v", err)
	}
	if len(mirror.Entries()) != 0 {
		t.Fatal("expected no entries")
	}
}
