// Package memory provides an in-memory sheet mirror used by tests and local
// development.
package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"gastos/internal/sheets"
)

type Store struct {
	mu    sync.Mutex
	items []sheets.Entry

	// FailAppend lets tests exercise the mirror-failure path.
	FailAppend bool
}

var _ sheets.EntryWriter = (*Store)(nil)

func New() *Store {
	return &Store{}
}

// Append stores the entry and returns a synthetic row reference.
func (s *Store) Append(_ context.Context, e sheets.Entry) (string, error) {
	if strings.TrimSpace(e.Description) == "" {
		return "", fmt.Errorf("empty description")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailAppend {
		return "", fmt.Errorf("append unavailable")
	}
	s.items = append(s.items, e)
	return fmt.Sprintf("mem:%d", len(s.items)), nil
}

// Entries returns a copy of everything appended so far.
func (s *Store) Entries() []sheets.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]sheets.Entry(nil), s.items...)
}
