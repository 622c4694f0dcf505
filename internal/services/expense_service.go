// Package services holds the application services that sit between the chat
// pipeline and the outbound adapters.
package services

import (
	"context"
	"fmt"

	"gastos/internal/core"
	applog "gastos/internal/log"
)

// Store is the repository slice the expense service needs.
type Store interface {
	ResolvePending(ctx context.Context, pendingID, categoryID int64) (core.Expense, error)
	CategoryByID(ctx context.Context, id int64) (core.Category, error)
}

// Publisher announces confirmed expenses to the sync worker.
type Publisher interface {
	PublishExpenseCreated(ctx context.Context, id int64) error
}

// ExpenseService settles pending expenses into the ledger and announces them
// for the sheet mirror.
type ExpenseService struct {
	store     Store
	publisher Publisher
	logger    *applog.Logger
}

// NewExpenseService builds the service. publisher may be nil when running
// without a broker; confirmed expenses are then picked up by the worker's
// periodic backlog scan.
func NewExpenseService(store Store, publisher Publisher, logger *applog.Logger) *ExpenseService {
	return &ExpenseService{
		store:     store,
		publisher: publisher,
		logger:    logger.WithComponent(applog.ComponentStorage),
	}
}

// ConfirmPending resolves the pending expense with the chosen category. The
// ledger write is authoritative; a failed publish only delays the mirror, so
// it is logged and swallowed.
func (s *ExpenseService) ConfirmPending(ctx context.Context, pendingID, categoryID int64) (core.Expense, core.Category, error) {
	category, err := s.store.CategoryByID(ctx, categoryID)
	if err != nil {
		return core.Expense{}, core.Category{}, fmt.Errorf("confirm pending: %w", err)
	}

	expense, err := s.store.ResolvePending(ctx, pendingID, categoryID)
	if err != nil {
		return core.Expense{}, core.Category{}, fmt.Errorf("confirm pending: %w", err)
	}

	if s.publisher != nil {
		if err := s.publisher.PublishExpenseCreated(ctx, expense.ID); err != nil {
			s.logger.Warn("publish expense created failed",
				applog.FieldExpenseID, expense.ID, applog.FieldError, err)
		}
	}

	return expense, category, nil
}
