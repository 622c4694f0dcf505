package confirm

import (
	"context"
	"errors"
	"time"

	"gastos/internal/core"
	applog "gastos/internal/log"
)

const (
	// DefaultReapInterval is how often expired pending expenses are swept.
	DefaultReapInterval = time.Minute

	reapBatchSize = 100
)

// ReaperStore is the slice of the repository the reaper needs.
type ReaperStore interface {
	ExpiredPendingExpenses(ctx context.Context, now time.Time, limit int) ([]core.PendingExpense, error)
	DeletePendingExpense(ctx context.Context, id int64) error
}

// Reaper settles pending expenses nobody answered. Candidates that were still
// awaiting the first confirmation are auto-confirmed with the suggested
// category; ones stuck mid category edit are discarded, since the user
// explicitly rejected the suggestion.
type Reaper struct {
	store    ReaperStore
	resolver Resolver
	interval time.Duration
	logger   *applog.Logger
	now      func() time.Time
}

func NewReaper(store ReaperStore, resolver Resolver, interval time.Duration, logger *applog.Logger) *Reaper {
	if interval <= 0 {
		interval = DefaultReapInterval
	}
	return &Reaper{
		store:    store,
		resolver: resolver,
		interval: interval,
		logger:   logger.WithComponent(applog.ComponentReaper),
		now:      time.Now,
	}
}

// Run sweeps on a fixed interval until the context ends.
func (r *Reaper) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep(ctx)
		}
	}
}

// Sweep settles one batch of expired pending expenses.
func (r *Reaper) Sweep(ctx context.Context) {
	expired, err := r.store.ExpiredPendingExpenses(ctx, r.now(), reapBatchSize)
	if err != nil {
		r.logger.Error("list expired pending expenses failed", applog.FieldError, err)
		return
	}

	confirmed, discarded := 0, 0
	for _, p := range expired {
		switch p.Status {
		case core.StatusAwaitingValidation:
			if p.SuggestedCategoryID <= 0 {
				r.discard(ctx, p.ID, &discarded)
				continue
			}
			_, _, err := r.resolver.ConfirmPending(ctx, p.ID, p.SuggestedCategoryID)
			if errors.Is(err, core.ErrNotFound) {
				// Settled by a late click between listing and resolving.
				continue
			}
			if err != nil {
				r.logger.Error("auto-confirm failed",
					applog.FieldPendingID, p.ID, applog.FieldError, err)
				continue
			}
			confirmed++
		default:
			r.discard(ctx, p.ID, &discarded)
		}
	}

	if confirmed > 0 || discarded > 0 {
		r.logger.Info("expired pending expenses settled",
			applog.FieldOperation, "reap",
			"confirmed", confirmed,
			"discarded", discarded)
	}
}

func (r *Reaper) discard(ctx context.Context, id int64, discarded *int) {
	if err := r.store.DeletePendingExpense(ctx, id); err != nil {
		r.logger.Error("discard pending expense failed",
			applog.FieldPendingID, id, applog.FieldError, err)
		return
	}
	*discarded++
}
