package core

import (
	"testing"
	"time"
)

func TestMoneyValidate(t *testing.T) {
	if err := (Money{Cents: 1}).Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if err := (Money{Cents: 0}).Validate(); err == nil {
		t.Fatalf("expected error for zero")
	}
	if err := (Money{Cents: -100}).Validate(); err == nil {
		t.Fatalf("expected error for negative")
	}
}

func TestExpenseValidate(t *testing.T) {
	good := Expense{
		Value:           Money{Cents: 15075},
		Description:     "mesa de jantar",
		Date:            time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		CategoryID:      3,
		SourceMessageID: "wamid.1",
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	bads := []Expense{
		{Value: Money{Cents: 0}, Description: "a", Date: good.Date, CategoryID: 1},
		{Value: Money{Cents: 1}, Description: "", Date: good.Date, CategoryID: 1},
		{Value: Money{Cents: 1}, Description: "a", Date: time.Time{}, CategoryID: 1},
		{Value: Money{Cents: 1}, Description: "a", Date: good.Date, CategoryID: 0},
	}
	for i, e := range bads {
		if err := e.Validate(); err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestPendingExpenseValidate(t *testing.T) {
	now := time.Now()
	good := PendingExpense{
		Value:           Money{Cents: 4200},
		Description:     "tinta",
		SourceMessageID: "wamid.2",
		SourceGroupID:   "123@g.us",
		Status:          StatusAwaitingValidation,
		ExpiresAt:       now.Add(5 * time.Minute),
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	t.Run("missing source message id", func(t *testing.T) {
		p := good
		p.SourceMessageID = " "
		if err := p.Validate(); err == nil {
			t.Fatalf("expected error")
		}
	})
	t.Run("invalid status", func(t *testing.T) {
		p := good
		p.Status = "resolved"
		if err := p.Validate(); err == nil {
			t.Fatalf("expected error")
		}
	})
	t.Run("missing expiry", func(t *testing.T) {
		p := good
		p.ExpiresAt = time.Time{}
		if err := p.Validate(); err == nil {
			t.Fatalf("expected error")
		}
	})
}

func TestPendingExpenseExpired(t *testing.T) {
	now := time.Now()
	p := PendingExpense{ExpiresAt: now.Add(time.Minute)}
	if p.Expired(now) {
		t.Fatalf("should not be expired yet")
	}
	if !p.Expired(now.Add(2 * time.Minute)) {
		t.Fatalf("should be expired")
	}
}

func TestPendingStatusValid(t *testing.T) {
	for _, s := range []PendingStatus{StatusAwaitingContext, StatusAwaitingValidation, StatusAwaitingCategoryReply} {
		if !s.Valid() {
			t.Fatalf("%q should be valid", s)
		}
	}
	if PendingStatus("done").Valid() {
		t.Fatalf("unknown status should be invalid")
	}
}
