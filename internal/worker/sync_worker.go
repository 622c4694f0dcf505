// Package worker mirrors confirmed expenses from SQLite into the spreadsheet.
package worker

import (
	"context"
	"fmt"

	"gastos/internal/amqp"
	"gastos/internal/core"
	applog "gastos/internal/log"
	"gastos/internal/sheets"
)

// Store is the repository slice the sync worker reads and flags.
type Store interface {
	GetExpenseWithCategory(ctx context.Context, id int64) (core.Expense, string, error)
	UnsyncedExpenses(ctx context.Context, limit int) ([]int64, error)
	MarkSynced(ctx context.Context, id int64) error
	MarkSyncError(ctx context.Context, id int64) error
}

// SyncWorker copies confirmed expenses to the sheet mirror, driven by AMQP
// messages with a periodic backlog scan as backstop.
type SyncWorker struct {
	store     Store
	writer    sheets.EntryWriter
	batchSize int
	logger    *applog.Logger
}

func NewSyncWorker(store Store, writer sheets.EntryWriter, batchSize int, logger *applog.Logger) *SyncWorker {
	if batchSize <= 0 {
		batchSize = 10
	}
	return &SyncWorker{
		store:     store,
		writer:    writer,
		batchSize: batchSize,
		logger:    logger.WithComponent(applog.ComponentWorker),
	}
}

// HandleSyncMessage processes one expense created message.
func (w *SyncWorker) HandleSyncMessage(ctx context.Context, msg *amqp.ExpenseCreatedMessage) error {
	return w.syncExpense(ctx, msg.ID)
}

// ProcessBacklog mirrors any expenses that missed their message. Failures on
// individual rows are flagged and skipped so the batch keeps moving.
func (w *SyncWorker) ProcessBacklog(ctx context.Context) error {
	ids, err := w.store.UnsyncedExpenses(ctx, w.batchSize)
	if err != nil {
		return fmt.Errorf("list unsynced expenses: %w", err)
	}
	if len(ids) == 0 {
		return nil
	}

	w.logger.Info("processing sync backlog", "count", len(ids))
	for _, id := range ids {
		if err := w.syncExpense(ctx, id); err != nil {
			w.logger.Error("backlog sync failed", applog.FieldExpenseID, id, applog.FieldError, err)
		}
	}
	return nil
}

// StartupSyncCheck drains a larger backlog once at boot to recover from
// downtime or lost messages.
func (w *SyncWorker) StartupSyncCheck(ctx context.Context) error {
	ids, err := w.store.UnsyncedExpenses(ctx, w.batchSize*5)
	if err != nil {
		return fmt.Errorf("list unsynced expenses for startup check: %w", err)
	}
	if len(ids) == 0 {
		w.logger.Info("no unsynced expenses on startup")
		return nil
	}

	synced, failed := 0, 0
	for _, id := range ids {
		if err := w.syncExpense(ctx, id); err != nil {
			w.logger.Error("startup sync failed", applog.FieldExpenseID, id, applog.FieldError, err)
			failed++
			continue
		}
		synced++
	}

	w.logger.Info("startup sync completed",
		applog.FieldOperation, "sync",
		"total", len(ids), "synced", synced, "errors", failed)
	return nil
}

func (w *SyncWorker) syncExpense(ctx context.Context, id int64) error {
	expense, category, err := w.store.GetExpenseWithCategory(ctx, id)
	if err != nil {
		if markErr := w.store.MarkSyncError(ctx, id); markErr != nil {
			w.logger.Error("mark sync error failed", applog.FieldExpenseID, id, applog.FieldError, markErr)
		}
		return fmt.Errorf("get expense: %w", err)
	}

	entry := sheets.Entry{
		Date:        expense.Date,
		Description: expense.Description,
		AmountCents: expense.Value.Cents,
		Category:    category,
	}
	ref, err := w.writer.Append(ctx, entry)
	if err != nil {
		if markErr := w.store.MarkSyncError(ctx, id); markErr != nil {
			w.logger.Error("mark sync error failed", applog.FieldExpenseID, id, applog.FieldError, markErr)
		}
		return fmt.Errorf("append to sheet: %w", err)
	}

	if err := w.store.MarkSynced(ctx, id); err != nil {
		// The mirror write worked; only the flag is behind.
		w.logger.Error("mark synced failed", applog.FieldExpenseID, id, applog.FieldError, err)
	}

	w.logger.Info("expense mirrored",
		applog.FieldOperation, "sync",
		applog.FieldExpenseID, id,
		applog.FieldAmountCents, expense.Value.Cents,
		"sheet_ref", ref)
	return nil
}
