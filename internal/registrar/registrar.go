// Package registrar binds a profile to the single group chat it monitors.
package registrar

import (
	"context"
	"fmt"
	"strings"

	"gastos/internal/core"
	applog "gastos/internal/log"
	"gastos/internal/phone"
)

// Outcome describes what SetActiveGroup did. All three are successes.
type Outcome int

const (
	// OutcomeCreated means a monitoring row was created and activated.
	OutcomeCreated Outcome = iota
	// OutcomeReactivated means an existing row was promoted back to active.
	OutcomeReactivated
	// OutcomeAlreadyActive means the group was already the profile's active one.
	OutcomeAlreadyActive
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCreated:
		return "created"
	case OutcomeReactivated:
		return "reactivated"
	case OutcomeAlreadyActive:
		return "already_active"
	default:
		return "unknown"
	}
}

// Directory answers membership questions from the cached group roster.
type Directory interface {
	LookupGroupsFor(ctx context.Context, rawPhone string) []core.GroupSummary
}

// Store persists monitoring registrations.
type Store interface {
	ActivateMonitoredGroup(ctx context.Context, groupID, name string, profileID int64) (core.MonitoredGroup, bool, bool, error)
	SubscriptionActive(ctx context.Context, profileID int64) (bool, error)
}

type Registrar struct {
	directory Directory
	store     Store
	logger    *applog.Logger
}

func New(directory Directory, store Store, logger *applog.Logger) *Registrar {
	return &Registrar{
		directory: directory,
		store:     store,
		logger:    logger.WithComponent(applog.ComponentRegistrar),
	}
}

// SetActiveGroup makes groupID the profile's monitored group, demoting any
// other. The profile must hold an active subscription and the requester must
// be a verifiable participant of the group; the membership check goes through
// the directory cache, so a very recent join may need a refresh to land.
func (r *Registrar) SetActiveGroup(ctx context.Context, groupID string, profileID int64, requesterPhone string) (core.MonitoredGroup, Outcome, error) {
	if strings.TrimSpace(groupID) == "" {
		return core.MonitoredGroup{}, 0, fmt.Errorf("set active group: missing group id: %w", core.ErrValidation)
	}
	if profileID <= 0 {
		return core.MonitoredGroup{}, 0, fmt.Errorf("set active group: missing profile id: %w", core.ErrValidation)
	}
	normalized := phone.Normalize(requesterPhone)
	if normalized == "" {
		return core.MonitoredGroup{}, 0, fmt.Errorf("set active group: unusable phone %q: %w", requesterPhone, core.ErrValidation)
	}

	subscribed, err := r.store.SubscriptionActive(ctx, profileID)
	if err != nil {
		return core.MonitoredGroup{}, 0, fmt.Errorf("set active group: %w", err)
	}
	if !subscribed {
		return core.MonitoredGroup{}, 0, fmt.Errorf("set active group: profile %d has no active subscription: %w",
			profileID, core.ErrAccessDenied)
	}

	group, ok := r.memberOf(ctx, normalized, groupID)
	if !ok {
		return core.MonitoredGroup{}, 0, fmt.Errorf("set active group: group %s not found among %s's groups: %w",
			groupID, normalized, core.ErrNotFound)
	}

	row, created, alreadyActive, err := r.store.ActivateMonitoredGroup(ctx, group.GroupID, group.Name, profileID)
	if err != nil {
		return core.MonitoredGroup{}, 0, fmt.Errorf("set active group: %w", err)
	}

	outcome := OutcomeReactivated
	switch {
	case alreadyActive:
		outcome = OutcomeAlreadyActive
	case created:
		outcome = OutcomeCreated
	}

	r.logger.Info("monitored group updated",
		applog.FieldOperation, "set_active_group",
		applog.FieldGroupID, group.GroupID,
		applog.FieldProfileID, profileID,
		"outcome", outcome.String())
	return row, outcome, nil
}

// memberOf reports whether the normalized phone belongs to the group,
// returning the group's directory record for its display name.
func (r *Registrar) memberOf(ctx context.Context, normalizedPhone, groupID string) (core.GroupSummary, bool) {
	for _, g := range r.directory.LookupGroupsFor(ctx, normalizedPhone) {
		if g.GroupID == groupID {
			return g, true
		}
	}
	return core.GroupSummary{}, false
}
