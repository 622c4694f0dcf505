// Package directory maintains a TTL-bounded snapshot of every group the
// connected account participates in, indexed by normalized participant phone.
package directory

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"gastos/internal/chat"
	"gastos/internal/core"
	applog "gastos/internal/log"
	"gastos/internal/phone"
)

// DefaultTTL bounds snapshot staleness; the background loop refreshes at the
// same cadence.
const DefaultTTL = 5 * time.Minute

// Roster fetches for groups the listing came back without participants.
const rosterFetchConcurrency = 4

const asyncRefreshTimeout = 30 * time.Second

// GroupRecord is one group as of the snapshot's fetch. Never mutated after
// publication.
type GroupRecord struct {
	GroupID      string
	Name         string
	Participants map[string]struct{} // normalized phones
}

// snapshot is the immutable picture readers observe. A refresh builds a new
// one from scratch and publishes it wholesale; byPhone only ever references
// indices into the same snapshot's groups slice.
type snapshot struct {
	groups    []GroupRecord
	byPhone   map[string][]int
	fetchedAt time.Time
}

// Cache serves roster lookups from the latest published snapshot. Reads
// never block on a refresh in flight.
type Cache struct {
	gateway chat.Gateway
	ttl     time.Duration
	logger  *applog.Logger

	current atomic.Pointer[snapshot]
	flight  singleflight.Group

	now func() time.Time
}

func New(gateway chat.Gateway, ttl time.Duration, logger *applog.Logger) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{
		gateway: gateway,
		ttl:     ttl,
		logger:  logger.WithComponent(applog.ComponentDirectory),
		now:     time.Now,
	}
}

// Refresh rebuilds and publishes the snapshot unless the current one is
// still inside the TTL. Concurrent callers share a single in-flight fetch;
// a failed fetch leaves the previous snapshot published and is reported only
// to the callers that waited on it.
func (c *Cache) Refresh(ctx context.Context) error {
	if c.fresh() {
		return nil
	}
	return c.refreshShared(ctx, false)
}

// ForceRefresh refreshes regardless of TTL. Used by the background loop.
func (c *Cache) ForceRefresh(ctx context.Context) error {
	return c.refreshShared(ctx, true)
}

func (c *Cache) refreshShared(ctx context.Context, force bool) error {
	_, err, _ := c.flight.Do("refresh", func() (interface{}, error) {
		// Re-check under the flight: a refresh that finished while this
		// caller queued already satisfied it.
		if !force && c.fresh() {
			return nil, nil
		}
		return nil, c.rebuild(ctx)
	})
	return err
}

func (c *Cache) fresh() bool {
	snap := c.current.Load()
	return snap != nil && c.now().Sub(snap.fetchedAt) < c.ttl
}

func (c *Cache) rebuild(ctx context.Context) error {
	started := c.now()

	groups, err := c.gateway.ListGroups(ctx)
	if err != nil {
		return fmt.Errorf("list groups: %w", err)
	}

	records := make([]GroupRecord, len(groups))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(rosterFetchConcurrency)
	for i, grp := range groups {
		g.Go(func() error {
			roster := grp.Participants
			if roster == nil {
				var err error
				roster, err = c.gateway.FetchGroupRoster(gctx, grp.GroupID)
				if err != nil {
					return fmt.Errorf("roster for %s: %w", grp.GroupID, err)
				}
			}
			participants := make(map[string]struct{}, len(roster))
			for _, raw := range roster {
				if p := phone.Normalize(raw); p != "" {
					participants[p] = struct{}{}
				}
			}
			records[i] = GroupRecord{
				GroupID:      grp.GroupID,
				Name:         grp.Name,
				Participants: participants,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	byPhone := make(map[string][]int)
	for i, rec := range records {
		for p := range rec.Participants {
			byPhone[p] = append(byPhone[p], i)
		}
	}

	c.current.Store(&snapshot{
		groups:    records,
		byPhone:   byPhone,
		fetchedAt: c.now(),
	})

	c.logger.Info("directory snapshot published",
		applog.FieldGroupCount, len(records),
		applog.FieldDuration, c.now().Sub(started).Milliseconds())
	return nil
}

// LookupGroupsFor returns the groups whose roster contains the given phone,
// per the current snapshot. Stale or missing snapshots trigger a background
// refresh but the call never waits for it.
func (c *Cache) LookupGroupsFor(ctx context.Context, rawPhone string) []core.GroupSummary {
	p := phone.Normalize(rawPhone)
	if p == "" {
		return nil
	}
	snap := c.snapshotKickingRefresh()
	if snap == nil {
		return nil
	}
	indices := snap.byPhone[p]
	summaries := make([]core.GroupSummary, 0, len(indices))
	for _, i := range indices {
		summaries = append(summaries, core.GroupSummary{
			GroupID: snap.groups[i].GroupID,
			Name:    snap.groups[i].Name,
		})
	}
	return summaries
}

// ListAllGroups returns every group in the current snapshot, same staleness
// semantics as LookupGroupsFor.
func (c *Cache) ListAllGroups(ctx context.Context) []core.GroupSummary {
	snap := c.snapshotKickingRefresh()
	if snap == nil {
		return nil
	}
	summaries := make([]core.GroupSummary, 0, len(snap.groups))
	for _, rec := range snap.groups {
		summaries = append(summaries, core.GroupSummary{GroupID: rec.GroupID, Name: rec.Name})
	}
	return summaries
}

func (c *Cache) snapshotKickingRefresh() *snapshot {
	snap := c.current.Load()
	if snap == nil || c.now().Sub(snap.fetchedAt) >= c.ttl {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), asyncRefreshTimeout)
			defer cancel()
			if err := c.Refresh(ctx); err != nil {
				c.logger.Warn("background refresh failed, serving stale snapshot",
					applog.FieldOperation, applog.OpRefresh, applog.FieldError, err)
			}
		}()
	}
	return snap
}

// Run refreshes once at startup and then on a fixed interval equal to the
// TTL, independent of reader-triggered refreshes. Returns when ctx is done.
func (c *Cache) Run(ctx context.Context) {
	if err := c.ForceRefresh(ctx); err != nil {
		c.logger.Error("startup refresh failed", applog.FieldError, err)
	}

	ticker := time.NewTicker(c.ttl)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("directory refresher stopped")
			return
		case <-ticker.C:
			if err := c.ForceRefresh(ctx); err != nil {
				c.logger.Error("periodic refresh failed", applog.FieldError, err)
			}
		}
	}
}
