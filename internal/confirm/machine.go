// Package confirm drives the interactive confirmation round trip for pending
// expenses: edit clicks, category list replies, and expiry reaping.
package confirm

import (
	"context"
	"errors"
	"fmt"

	"gastos/internal/chat"
	"gastos/internal/core"
	applog "gastos/internal/log"
)

const (
	staleReplyText   = "Essa despesa não está mais pendente."
	failedReplyText  = "Não consegui registrar a despesa. Tente novamente."
	listPromptText   = "Escolha a categoria da despesa:"
	listSectionTitle = "Categorias"
)

// Store is the pending-expense slice of the repository the machine reads.
type Store interface {
	GetPendingExpense(ctx context.Context, id int64) (core.PendingExpense, error)
	MarkPendingAwaitingCategory(ctx context.Context, id int64) error
	ListCategories(ctx context.Context) ([]core.Category, error)
}

// Resolver settles a pending expense into the ledger. Implementations are
// atomic: exactly one caller wins per pending id, later ones get
// core.ErrNotFound.
type Resolver interface {
	ConfirmPending(ctx context.Context, pendingID, categoryID int64) (core.Expense, core.Category, error)
}

// Sender is the outbound slice of the chat gateway the machine uses.
type Sender interface {
	SendText(ctx context.Context, chatID, text string) error
	SendList(ctx context.Context, chatID, text string, list chat.ListSpec) error
}

type Machine struct {
	store    Store
	resolver Resolver
	gateway  Sender
	logger   *applog.Logger
}

func NewMachine(store Store, resolver Resolver, gateway Sender, logger *applog.Logger) *Machine {
	return &Machine{
		store:    store,
		resolver: resolver,
		gateway:  gateway,
		logger:   logger.WithComponent(applog.ComponentConfirm),
	}
}

// HandleButtonReply processes an edit click. A click on an already settled
// prompt gets a "no longer pending" notice; that is a normal outcome, not an
// error. Replies outside the protocol are ignored.
func (m *Machine) HandleButtonReply(ctx context.Context, evt chat.Event) {
	if evt.Kind != chat.EventButtonReply || evt.ButtonReply == nil {
		return
	}
	pendingID, ok := parseEditButtonID(evt.ButtonReply.SelectedID)
	if !ok {
		m.logger.Debug("unrecognized button reply", "selected_id", evt.ButtonReply.SelectedID)
		return
	}

	pending, err := m.store.GetPendingExpense(ctx, pendingID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			m.send(ctx, evt.GroupID, pendingID, staleReplyText)
			return
		}
		m.logger.Error("get pending expense failed",
			applog.FieldPendingID, pendingID, applog.FieldError, err)
		return
	}

	if err := m.store.MarkPendingAwaitingCategory(ctx, pending.ID); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			// Settled between the lookup and the transition.
			m.send(ctx, evt.GroupID, pendingID, staleReplyText)
			return
		}
		m.logger.Error("mark awaiting category failed",
			applog.FieldPendingID, pendingID, applog.FieldError, err)
		return
	}

	m.offerCategoryList(ctx, evt.GroupID, pendingID)
}

// HandleListReply processes a category choice; the row id carries both the
// chosen category and the pending expense.
func (m *Machine) HandleListReply(ctx context.Context, evt chat.Event) {
	if evt.Kind != chat.EventListReply || evt.ListReply == nil {
		return
	}
	categoryID, pendingID, ok := parseRowID(evt.ListReply.SelectedID)
	if !ok {
		m.logger.Debug("unrecognized list reply", "selected_id", evt.ListReply.SelectedID)
		return
	}

	expense, category, err := m.resolver.ConfirmPending(ctx, pendingID, categoryID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			m.send(ctx, evt.GroupID, pendingID, failedReplyText)
			return
		}
		m.logger.Error("resolve pending expense failed",
			applog.FieldPendingID, pendingID, applog.FieldError, err)
		return
	}

	text := fmt.Sprintf("Despesa registrada: %s — %s (%s)",
		expense.Value.BRL(), expense.Description, category.Name)
	m.send(ctx, evt.GroupID, pendingID, text)

	m.logger.Info("pending expense confirmed",
		applog.FieldOperation, "confirm",
		applog.FieldPendingID, pendingID,
		applog.FieldExpenseID, expense.ID,
		applog.FieldCategoryID, category.ID)
}

func (m *Machine) offerCategoryList(ctx context.Context, groupID string, pendingID int64) {
	cats, err := m.store.ListCategories(ctx)
	if err != nil {
		m.logger.Error("list categories failed",
			applog.FieldPendingID, pendingID, applog.FieldError, err)
		return
	}

	options := make([]chat.ListOption, len(cats))
	for i, c := range cats {
		options[i] = chat.ListOption{
			ID:    CategoryRowID(c.ID, pendingID),
			Title: c.Name,
		}
	}
	list := chat.ListSpec{Title: listSectionTitle, Options: options}
	if err := m.gateway.SendList(ctx, groupID, listPromptText, list); err != nil {
		m.logger.Error("send category list failed",
			applog.FieldPendingID, pendingID, applog.FieldError, err)
	}
}

func (m *Machine) send(ctx context.Context, groupID string, pendingID int64, text string) {
	if err := m.gateway.SendText(ctx, groupID, text); err != nil {
		m.logger.Error("send reply failed",
			applog.FieldPendingID, pendingID, applog.FieldError, err)
	}
}
