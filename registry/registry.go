// Package registry tracks which search-query groups are waiting for
// their videos to finish processing, and arbitrates which caller gets to
// aggregate a group once it is ready.
package registry

import (
	"context"
	"sync"
	"time"

	"reviewbot/types"
)

// Registry is the pending-group store shared by the event handler and
// the background sweeper. Claim is the atomic hand-off: exactly one
// caller wins the entry, and only that caller proceeds to aggregate.
type Registry interface {
	// Touch inserts the group with first seen = now, or bumps
	// last_update if the group is already pending.
	Touch(ctx context.Context, query string) (types.PendingEntry, error)
	// Get returns the entry for the group if it is pending.
	Get(ctx context.Context, query string) (types.PendingEntry, bool, error)
	// Claim removes the entry and reports whether this caller removed
	// it. A false return means another path already claimed the group.
	Claim(ctx context.Context, query string) (types.PendingEntry, bool, error)
	// Snapshot returns a copy of every pending entry.
	Snapshot(ctx context.Context) ([]types.PendingEntry, error)
	// Len returns the number of pending groups.
	Len(ctx context.Context) (int, error)
}

// Memory is the in-process Registry. State does not survive a restart;
// the sweeper's catalog fallback pass covers groups lost that way.
type Memory struct {
	mu      sync.Mutex
	entries map[string]types.PendingEntry
	now     func() time.Time
}

// NewMemory creates an in-memory registry. now defaults to time.Now.
func NewMemory(now func() time.Time) *Memory {
	if now == nil {
		now = time.Now
	}
	return &Memory{
		entries: make(map[string]types.PendingEntry),
		now:     now,
	}
}

// Touch implements Registry.
func (m *Memory) Touch(_ context.Context, query string) (types.PendingEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	entry, ok := m.entries[query]
	if !ok {
		entry = types.PendingEntry{SearchQuery: query, FirstSeen: now}
	}
	entry.LastUpdate = now
	m.entries[query] = entry
	return entry, nil
}

// Get implements Registry.
func (m *Memory) Get(_ context.Context, query string) (types.PendingEntry, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.entries[query]
	return entry, ok, nil
}

// Claim implements Registry.
func (m *Memory) Claim(_ context.Context, query string) (types.PendingEntry, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.entries[query]
	if !ok {
		return types.PendingEntry{}, false, nil
	}
	delete(m.entries, query)
	return entry, true, nil
}

// Snapshot implements Registry.
func (m *Memory) Snapshot(_ context.Context) ([]types.PendingEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entries := make([]types.PendingEntry, 0, len(m.entries))
	for _, entry := range m.entries {
		entries = append(entries, entry)
	}
	return entries, nil
}

// Len implements Registry.
func (m *Memory) Len(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries), nil
}
