// Package memory provides an in-memory chat gateway used by tests and by
// local development without a paired device.
package memory

import (
	"context"
	"fmt"
	"sync"

	"gastos/internal/chat"
	"gastos/internal/core"
)

// SentMessage records one outbound send, regardless of shape.
type SentMessage struct {
	ChatID  string
	Text    string
	Buttons []chat.Button
	List    *chat.ListSpec
}

// Gateway is a deterministic chat.Gateway backed by maps.
type Gateway struct {
	mu          sync.Mutex
	groups      []chat.Group
	rosters     map[string][]string
	attachments map[string][]byte
	sent        []SentMessage

	// Fail switches let tests exercise upstream-failure paths.
	FailListGroups bool
	FailDownload   bool
	FailSend       bool
}

var _ chat.Gateway = (*Gateway)(nil)

func New() *Gateway {
	return &Gateway{
		rosters:     make(map[string][]string),
		attachments: make(map[string][]byte),
	}
}

// SetGroups replaces the group list and rosters served by the gateway.
func (g *Gateway) SetGroups(groups []chat.Group) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.groups = groups
	g.rosters = make(map[string][]string, len(groups))
	for _, grp := range groups {
		g.rosters[grp.GroupID] = grp.Participants
	}
}

// PutAttachment registers downloadable bytes under a URL.
func (g *Gateway) PutAttachment(url string, data []byte) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.attachments[url] = data
}

// Sent returns a copy of everything sent so far.
func (g *Gateway) Sent() []SentMessage {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]SentMessage(nil), g.sent...)
}

func (g *Gateway) ListGroups(_ context.Context) ([]chat.Group, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.FailListGroups {
		return nil, fmt.Errorf("list groups: %w", core.ErrUpstreamUnavailable)
	}
	return append([]chat.Group(nil), g.groups...), nil
}

func (g *Gateway) FetchGroupRoster(_ context.Context, groupID string) ([]string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	roster, ok := g.rosters[groupID]
	if !ok {
		return nil, fmt.Errorf("group %s: %w", groupID, core.ErrNotFound)
	}
	return append([]string(nil), roster...), nil
}

func (g *Gateway) DownloadAttachment(_ context.Context, url string) ([]byte, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.FailDownload {
		return nil, fmt.Errorf("download attachment: %w", core.ErrUpstreamUnavailable)
	}
	data, ok := g.attachments[url]
	if !ok {
		return nil, fmt.Errorf("attachment %s: %w", url, core.ErrNotFound)
	}
	return data, nil
}

func (g *Gateway) SendText(_ context.Context, chatID, text string) error {
	return g.record(SentMessage{ChatID: chatID, Text: text})
}

func (g *Gateway) SendButtons(_ context.Context, chatID, text string, buttons []chat.Button) error {
	return g.record(SentMessage{ChatID: chatID, Text: text, Buttons: buttons})
}

func (g *Gateway) SendList(_ context.Context, chatID, text string, list chat.ListSpec) error {
	l := list
	return g.record(SentMessage{ChatID: chatID, Text: text, List: &l})
}

func (g *Gateway) record(msg SentMessage) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.FailSend {
		return fmt.Errorf("send: %w", core.ErrUpstreamUnavailable)
	}
	g.sent = append(g.sent, msg)
	return nil
}
