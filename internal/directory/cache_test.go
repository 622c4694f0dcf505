package directory

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"gastos/internal/chat"
	chatmem "gastos/internal/chat/memory"
	applog "gastos/internal/log"
)

func testLogger() *applog.Logger {
	return applog.New(applog.Config{Level: slog.LevelError})
}

// stubGateway counts listing calls and can park them on a gate so tests can
// observe refreshes in flight.
type stubGateway struct {
	mu     sync.Mutex
	groups []chat.Group
	calls  atomic.Int64
	gate   chan struct{}
}

func (s *stubGateway) ListGroups(ctx context.Context) ([]chat.Group, error) {
	s.calls.Add(1)
	if s.gate != nil {
		<-s.gate
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]chat.Group(nil), s.groups...), nil
}

func (s *stubGateway) FetchGroupRoster(ctx context.Context, groupID string) ([]string, error) {
	return nil, nil
}

func (s *stubGateway) DownloadAttachment(ctx context.Context, url string) ([]byte, error) {
	return nil, nil
}
func (s *stubGateway) SendText(ctx context.Context, chatID, text string) error { return nil }
func (s *stubGateway) SendButtons(ctx context.Context, chatID, text string, buttons []chat.Button) error {
	return nil
}
func (s *stubGateway) SendList(ctx context.Context, chatID, text string, list chat.ListSpec) error {
	return nil
}

func (s *stubGateway) setGroups(groups []chat.Group) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.groups = groups
}

func TestRefreshBuildsInvertedIndex(t *testing.T) {
	gw := chatmem.New()
	gw.SetGroups([]chat.Group{
		{GroupID: "1@g.us", Name: "Obra", Participants: []string{"5511987654321", "5511912345678"}},
		{GroupID: "2@g.us", Name: "Família", Participants: []string{"5511987654321"}},
		{GroupID: "3@g.us", Name: "Outros", Participants: []string{"5521999990000"}},
	})
	c := New(gw, time.Minute, testLogger())

	if err := c.ForceRefresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	got := c.LookupGroupsFor(context.Background(), "5511987654321")
	if len(got) != 2 {
		t.Fatalf("expected 2 groups, got %d: %+v", len(got), got)
	}
	ids := map[string]bool{}
	for _, g := range got {
		ids[g.GroupID] = true
	}
	if !ids["1@g.us"] || !ids["2@g.us"] {
		t.Fatalf("wrong groups: %+v", got)
	}

	if all := c.ListAllGroups(context.Background()); len(all) != 3 {
		t.Fatalf("expected 3 groups, got %d", len(all))
	}
}

func TestLookupNormalizesPhone(t *testing.T) {
	gw := chatmem.New()
	gw.SetGroups([]chat.Group{
		{GroupID: "1@g.us", Name: "Obra", Participants: []string{"5511987654321"}},
	})
	c := New(gw, time.Minute, testLogger())
	if err := c.ForceRefresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	// Bare national number with punctuation must hit the same key.
	if got := c.LookupGroupsFor(context.Background(), "(11) 98765-4321"); len(got) != 1 {
		t.Fatalf("expected 1 group, got %+v", got)
	}
	if got := c.LookupGroupsFor(context.Background(), ""); got != nil {
		t.Fatalf("empty phone should yield nil, got %+v", got)
	}
}

func TestRefreshSkippedInsideTTL(t *testing.T) {
	gw := &stubGateway{}
	gw.setGroups([]chat.Group{{GroupID: "1@g.us", Name: "Obra", Participants: []string{}}})
	c := New(gw, time.Hour, testLogger())

	if err := c.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if err := c.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if n := gw.calls.Load(); n != 1 {
		t.Fatalf("expected a single fetch inside TTL, got %d", n)
	}
}

func TestRefreshFailureKeepsPreviousSnapshot(t *testing.T) {
	gw := chatmem.New()
	gw.SetGroups([]chat.Group{
		{GroupID: "1@g.us", Name: "Obra", Participants: []string{"5511987654321"}},
	})
	c := New(gw, time.Minute, testLogger())
	if err := c.ForceRefresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	gw.FailListGroups = true
	if err := c.ForceRefresh(context.Background()); err == nil {
		t.Fatalf("expected refresh error")
	}

	// Readers still see the last published snapshot.
	if got := c.LookupGroupsFor(context.Background(), "5511987654321"); len(got) != 1 {
		t.Fatalf("stale snapshot should still serve, got %+v", got)
	}
}

func TestConcurrentRefreshesSingleFlight(t *testing.T) {
	gw := &stubGateway{gate: make(chan struct{})}
	gw.setGroups([]chat.Group{{GroupID: "1@g.us", Name: "Obra", Participants: []string{}}})
	c := New(gw, time.Minute, testLogger())

	const callers = 8
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = c.ForceRefresh(context.Background())
		}()
	}

	// Let the callers pile up behind the in-flight fetch, then release it.
	time.Sleep(50 * time.Millisecond)
	close(gw.gate)
	wg.Wait()

	if n := gw.calls.Load(); n != 1 {
		t.Fatalf("expected one shared fetch, got %d", n)
	}
}

func TestReadersNeverSeePartialSnapshot(t *testing.T) {
	gen1 := []chat.Group{
		{GroupID: "a@g.us", Name: "A", Participants: []string{"5511911111111"}},
		{GroupID: "b@g.us", Name: "B", Participants: []string{"5511911111111"}},
	}
	gen2 := []chat.Group{
		{GroupID: "c@g.us", Name: "C", Participants: []string{"5511911111111"}},
		{GroupID: "d@g.us", Name: "D", Participants: []string{"5511911111111"}},
	}
	gen1IDs := map[string]bool{"a@g.us": true, "b@g.us": true}
	gen2IDs := map[string]bool{"c@g.us": true, "d@g.us": true}

	gw := chatmem.New()
	gw.SetGroups(gen1)
	c := New(gw, time.Minute, testLogger())
	if err := c.ForceRefresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 50; i++ {
			if i%2 == 0 {
				gw.SetGroups(gen2)
			} else {
				gw.SetGroups(gen1)
			}
			_ = c.ForceRefresh(context.Background())
		}
	}()

	for {
		select {
		case <-done:
			return
		default:
		}
		got := c.LookupGroupsFor(context.Background(), "5511911111111")
		if len(got) != 2 {
			t.Fatalf("expected 2 groups per snapshot, got %+v", got)
		}
		// All results must come from one generation; a mix would mean a
		// half-built index was published.
		if gen1IDs[got[0].GroupID] != gen1IDs[got[1].GroupID] ||
			gen2IDs[got[0].GroupID] != gen2IDs[got[1].GroupID] {
			t.Fatalf("mixed generations in one read: %+v", got)
		}
	}
}
