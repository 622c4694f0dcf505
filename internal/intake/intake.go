// Package intake turns inbound media messages from monitored groups into
// pending expenses awaiting confirmation.
package intake

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gastos/internal/analyzer"
	"gastos/internal/cache"
	"gastos/internal/chat"
	"gastos/internal/confirm"
	"gastos/internal/core"
	applog "gastos/internal/log"
)

const (
	// DefaultPendingTTL bounds how long a candidate waits for an edit click
	// before the reaper settles it with the suggested category.
	DefaultPendingTTL = 5 * time.Minute

	categoryCacheKey = "categories"
	categoryCacheTTL = 10 * time.Minute
)

// Store is the slice of the repository the intake pipeline needs.
type Store interface {
	ActiveMonitoredGroupByGroupID(ctx context.Context, groupID string) (core.MonitoredGroup, error)
	ListCategories(ctx context.Context) ([]core.Category, error)
	CreatePendingExpense(ctx context.Context, p core.PendingExpense) (int64, bool, error)
}

// Sender is the outbound slice of the chat gateway the pipeline uses.
type Sender interface {
	DownloadAttachment(ctx context.Context, url string) ([]byte, error)
	SendButtons(ctx context.Context, chatID, text string, buttons []chat.Button) error
}

type Orchestrator struct {
	store      Store
	gateway    Sender
	analyzer   analyzer.Analyzer
	logger     *applog.Logger
	pendingTTL time.Duration
	categories *cache.LRUCache[[]core.Category]
	now        func() time.Time
}

func New(store Store, gateway Sender, az analyzer.Analyzer, pendingTTL time.Duration, logger *applog.Logger) *Orchestrator {
	if pendingTTL <= 0 {
		pendingTTL = DefaultPendingTTL
	}
	return &Orchestrator{
		store:      store,
		gateway:    gateway,
		analyzer:   az,
		logger:     logger.WithComponent(applog.ComponentIntake),
		pendingTTL: pendingTTL,
		categories: cache.NewLRUCache[[]core.Category](1, categoryCacheTTL),
		now:        time.Now,
	}
}

// HandleMedia processes one inbound media event. The pipeline never replies
// with errors into the group: anything it cannot turn into a confirmation
// prompt is dropped with a log line.
func (o *Orchestrator) HandleMedia(ctx context.Context, evt chat.Event) {
	if evt.Kind != chat.EventMedia || evt.Attachment == nil {
		return
	}
	if !evt.IsGroup {
		o.logger.Debug("ignoring direct message", applog.FieldMessageID, evt.MessageID)
		return
	}

	if _, err := o.store.ActiveMonitoredGroupByGroupID(ctx, evt.GroupID); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			o.logger.Debug("group not monitored", applog.FieldGroupID, evt.GroupID)
		} else {
			o.logger.Error("monitored group lookup failed",
				applog.FieldGroupID, evt.GroupID, applog.FieldError, err)
		}
		return
	}

	result, err := o.analyze(ctx, evt)
	if err != nil {
		o.logger.Warn("analysis failed",
			applog.FieldGroupID, evt.GroupID,
			applog.FieldMessageID, evt.MessageID,
			applog.FieldError, err)
		return
	}
	if result == nil {
		o.logger.Debug("no expense recognized",
			applog.FieldGroupID, evt.GroupID, applog.FieldMessageID, evt.MessageID)
		return
	}

	cats, err := o.listCategories(ctx)
	if err != nil {
		o.logger.Error("list categories failed", applog.FieldError, err)
		return
	}
	suggested := matchCategory(cats, result.CategoryName)
	if suggested.ID == 0 {
		o.logger.Warn("suggested category does not exist",
			applog.FieldCategory, result.CategoryName, applog.FieldMessageID, evt.MessageID)
		return
	}

	pending := core.PendingExpense{
		Value:               result.Value,
		Description:         result.Description,
		SuggestedCategoryID: suggested.ID,
		SourceMessageID:     evt.MessageID,
		SourceGroupID:       evt.GroupID,
		ParticipantPhone:    evt.ParticipantPhone,
		AttachmentURL:       evt.Attachment.URL,
		Status:              core.StatusAwaitingValidation,
		ExpiresAt:           o.now().Add(o.pendingTTL),
	}
	id, created, err := o.store.CreatePendingExpense(ctx, pending)
	if err != nil {
		o.logger.Error("create pending expense failed",
			applog.FieldMessageID, evt.MessageID, applog.FieldError, err)
		return
	}
	if !created {
		// Redelivered message; the first delivery already prompted.
		o.logger.Debug("duplicate source message", applog.FieldMessageID, evt.MessageID)
		return
	}

	if err := o.sendPrompt(ctx, evt.GroupID, id, pending.Value, pending.Description, suggested.Name); err != nil {
		o.logger.Error("send confirmation prompt failed",
			applog.FieldPendingID, id, applog.FieldError, err)
		return
	}

	o.logger.Info("pending expense created",
		applog.FieldOperation, "intake",
		applog.FieldPendingID, id,
		applog.FieldGroupID, evt.GroupID,
		applog.FieldAmountCents, pending.Value.Cents,
		applog.FieldCategory, suggested.Name)
}

// analyze routes the attachment to the right model call. Audio goes through
// transcription first and is then analyzed as text.
func (o *Orchestrator) analyze(ctx context.Context, evt chat.Event) (*analyzer.Result, error) {
	data, err := o.gateway.DownloadAttachment(ctx, evt.Attachment.URL)
	if err != nil {
		return nil, fmt.Errorf("download attachment: %w", err)
	}

	names, err := o.categoryNames(ctx)
	if err != nil {
		return nil, err
	}

	switch evt.Attachment.Kind {
	case chat.AttachmentImage, chat.AttachmentDocument:
		return o.analyzer.AnalyzeImage(ctx, data, evt.Attachment.MimeType, evt.Attachment.Caption, names)
	case chat.AttachmentAudio:
		transcript, err := o.analyzer.TranscribeAudio(ctx, data, evt.Attachment.MimeType)
		if err != nil {
			return nil, fmt.Errorf("transcribe audio: %w", err)
		}
		if strings.TrimSpace(transcript) == "" {
			return nil, nil
		}
		return o.analyzer.AnalyzeText(ctx, transcript, names)
	default:
		return nil, nil
	}
}

// sendPrompt announces the candidate with a single edit control. Silence
// counts as agreement: the reaper confirms untouched candidates at expiry.
func (o *Orchestrator) sendPrompt(ctx context.Context, groupID string, pendingID int64, value core.Money, description, category string) error {
	text := fmt.Sprintf("Encontrei uma despesa:\n%s — %s\nCategoria: %s",
		value.BRL(), description, category)
	return o.gateway.SendButtons(ctx, groupID, text, []chat.Button{
		{ID: confirm.EditButtonID(pendingID), Label: "Editar categoria"},
	})
}

func (o *Orchestrator) listCategories(ctx context.Context) ([]core.Category, error) {
	if cats, ok := o.categories.Get(categoryCacheKey); ok {
		return cats, nil
	}
	cats, err := o.store.ListCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	o.categories.Set(categoryCacheKey, cats)
	return cats, nil
}

func (o *Orchestrator) categoryNames(ctx context.Context) ([]string, error) {
	cats, err := o.listCategories(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(cats))
	for i, c := range cats {
		names[i] = c.Name
	}
	return names, nil
}

// matchCategory resolves a model-suggested name by exact lookup. A miss drops
// the candidate; the model is prompted with the exact known names.
func matchCategory(cats []core.Category, name string) core.Category {
	for _, c := range cats {
		if c.Name == name {
			return c
		}
	}
	return core.Category{}
}
