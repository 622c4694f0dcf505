package services

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"gastos/internal/core"
	applog "gastos/internal/log"
)

type stubStore struct {
	expense    core.Expense
	resolveErr error
	category   core.Category
	catErr     error
}

func (s *stubStore) ResolvePending(context.Context, int64, int64) (core.Expense, error) {
	return s.expense, s.resolveErr
}

func (s *stubStore) CategoryByID(context.Context, int64) (core.Category, error) {
	return s.category, s.catErr
}

type stubPublisher struct {
	published []int64
	err       error
}

func (p *stubPublisher) PublishExpenseCreated(_ context.Context, id int64) error {
	if p.err != nil {
		return p.err
	}
	p.published = append(p.published, id)
	return nil
}

func testLogger() *applog.Logger {
	return applog.New(applog.Config{Level: slog.LevelError})
}

func TestConfirmPendingPublishes(t *testing.T) {
	store := &stubStore{
		expense:  core.Expense{ID: 42, Value: core.Money{Cents: 15075}, Description: "Madeira", CategoryID: 1},
		category: core.Category{ID: 1, Name: "Marcenaria"},
	}
	pub := &stubPublisher{}
	svc := NewExpenseService(store, pub, testLogger())

	expense, category, err := svc.ConfirmPending(context.Background(), 9, 1)
	if err != nil {
		t.Fatalf("ConfirmPending: %v", err)
	}
	if expense.ID != 42 || category.Name != "Marcenaria" {
		t.Fatalf("unexpected result: %+v %+v", expense, category)
	}
	if len(pub.published) != 1 || pub.published[0] != 42 {
		t.Fatalf("expected publish of expense 42, got %v", pub.published)
	}
}

func TestConfirmPendingSwallowsPublishFailure(t *testing.T) {
	store := &stubStore{
		expense:  core.Expense{ID: 42, Value: core.Money{Cents: 100}, Description: "Prego", CategoryID: 1},
		category: core.Category{ID: 1, Name: "Marcenaria"},
	}
	pub := &stubPublisher{err: errors.New("broker down")}
	svc := NewExpenseService(store, pub, testLogger())

	if _, _, err := svc.ConfirmPending(context.Background(), 9, 1); err != nil {
		t.Fatalf("expected publish failure to be swallowed, got %v", err)
	}
}

func TestConfirmPendingPropagatesNotFound(t *testing.T) {
	store := &stubStore{
		category:   core.Category{ID: 1, Name: "Marcenaria"},
		resolveErr: core.ErrNotFound,
	}
	pub := &stubPublisher{}
	svc := NewExpenseService(store, pub, testLogger())

	_, _, err := svc.ConfirmPending(context.Background(), 9, 1)
	if !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if len(pub.published) != 0 {
		t.Fatal("expected no publish on failure")
	}
}

func TestConfirmPendingRejectsUnknownCategory(t *testing.T) {
	store := &stubStore{catErr: core.ErrNotFound}
	svc := NewExpenseService(store, nil, testLogger())

	_, _, err := svc.ConfirmPending(context.Background(), 9, 99)
	if !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestConfirmPendingWithoutPublisher(t *testing.T) {
	store := &stubStore{
		expense:  core.Expense{ID: 42, Value: core.Money{Cents: 100}, Description: "Prego", CategoryID: 1},
		category: core.Category{ID: 1, Name: "Marcenaria"},
	}
	svc := NewExpenseService(store, nil, testLogger())

	if _, _, err := svc.ConfirmPending(context.Background(), 9, 1); err != nil {
		t.Fatalf("ConfirmPending without publisher: %v", err)
	}
}
