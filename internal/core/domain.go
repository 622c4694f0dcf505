package core

import (
	"errors"
	"strings"
	"time"
)

const (
	// StatusAwaitingContext marks a pending expense whose analysis needs more input.
	StatusAwaitingContext PendingStatus = "awaiting_context"
	// StatusAwaitingValidation marks a pending expense waiting for the first
	// interactive reply (or for implicit confirmation on expiry).
	StatusAwaitingValidation PendingStatus = "awaiting_validation"
	// StatusAwaitingCategoryReply marks a pending expense whose category list
	// was sent and not answered yet.
	StatusAwaitingCategoryReply PendingStatus = "awaiting_category_reply"
)

type (
	PendingStatus string

	Money struct {
		Cents int64
	}

	Category struct {
		ID   int64
		Name string
	}

	// Expense is an immutable ledger fact, created exactly once per confirmed
	// pending expense.
	Expense struct {
		ID              int64
		Value           Money
		Description     string
		Date            time.Time
		CategoryID      int64
		SourceMessageID string
	}

	// PendingExpense is a provisional ledger candidate awaiting confirmation
	// or expiry. At most one exists per originating message.
	PendingExpense struct {
		ID                  int64
		Value               Money
		Description         string
		SuggestedCategoryID int64 // 0 when no category was suggested
		SourceMessageID     string
		SourceGroupID       string
		ParticipantPhone    string
		AttachmentURL       string
		Status              PendingStatus
		ExpiresAt           time.Time
		CreatedAt           time.Time
	}

	// MonitoredGroup designates a chat as an expense source for a profile.
	// At most one row per profile has IsActive set.
	MonitoredGroup struct {
		ID        int64
		GroupID   string
		Name      string
		ProfileID int64
		IsActive  bool
	}

	// GroupSummary is the read-only view of a group held by the directory cache.
	GroupSummary struct {
		GroupID string
		Name    string
	}
)

var (
	ErrAccessDenied        = errors.New("access denied")
	ErrNotFound            = errors.New("not found")
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	ErrValidation          = errors.New("validation failure")

	ErrInvalidAmount    = errors.New("invalid amount")
	ErrEmptyDescription = errors.New("empty description")
)

func (s PendingStatus) Valid() bool {
	switch s {
	case StatusAwaitingContext, StatusAwaitingValidation, StatusAwaitingCategoryReply:
		return true
	}
	return false
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (e Expense) Validate() error {
	if err := e.Value.Validate(); err != nil {
		return err
	}
	if len(strings.TrimSpace(e.Description)) == 0 {
		return ErrEmptyDescription
	}
	if len(e.Description) > 200 {
		return errors.New("description too long (max 200 characters)")
	}
	if e.Date.IsZero() {
		return errors.New("date cannot be zero")
	}
	if e.CategoryID <= 0 {
		return errors.New("missing category")
	}
	return nil
}

func (p PendingExpense) Validate() error {
	if err := p.Value.Validate(); err != nil {
		return err
	}
	if len(strings.TrimSpace(p.Description)) == 0 {
		return ErrEmptyDescription
	}
	if strings.TrimSpace(p.SourceMessageID) == "" {
		return errors.New("missing source message id")
	}
	if strings.TrimSpace(p.SourceGroupID) == "" {
		return errors.New("missing source group id")
	}
	if !p.Status.Valid() {
		return errors.New("invalid pending status")
	}
	if p.ExpiresAt.IsZero() {
		return errors.New("missing expiry")
	}
	return nil
}

// Expired reports whether the pending expense passed its expiry at the given
// instant.
func (p PendingExpense) Expired(now time.Time) bool {
	return now.After(p.ExpiresAt)
}
