// Package cache keeps per-(calendar, range) event lists for a short TTL so
// repeated previews do not refetch every calendar.
package cache

import (
	"context"
	"strings"
	"sync"
	"time"

	"dsigen/internal/model"
)

// DefaultTTL is how long a fetched event list stays fresh.
const DefaultTTL = 5 * time.Minute

// Store is a TTL cache of event lists. Implementations must be safe for
// concurrent use by the fetch worker pool.
type Store interface {
	Get(ctx context.Context, key string) ([]model.CalendarEvent, bool)
	Set(ctx context.Context, key string, evs []model.CalendarEvent)
	// Invalidate drops every entry.
	Invalidate(ctx context.Context) error
}

// Key builds the cache key for a calendar and period.
func Key(calendarID string, p model.Period) string {
	return strings.Join([]string{calendarID, p.Key()}, "|")
}

type entry struct {
	events    []model.CalendarEvent
	updatedAt time.Time
}

// Memory is an in-process Store.
type Memory struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[string]entry
	now     func() time.Time
}

// NewMemory creates a Memory store; ttl <= 0 selects DefaultTTL.
func NewMemory(ttl time.Duration) *Memory {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Memory{
		ttl:     ttl,
		entries: make(map[string]entry),
		now:     time.Now,
	}
}

func (m *Memory) expired(e entry, now time.Time) bool {
	return now.Sub(e.updatedAt) >= m.ttl
}

// Get returns a fresh entry. A stale one is dropped.
func (m *Memory) Get(_ context.Context, key string) ([]model.CalendarEvent, bool) {
	now := m.now()
	m.mu.RLock()
	e, ok := m.entries[key]
	m.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if m.expired(e, now) {
		m.mu.Lock()
		// A concurrent Set may have refreshed the key.
		if cur, ok := m.entries[key]; ok && m.expired(cur, now) {
			delete(m.entries, key)
		}
		m.mu.Unlock()
		return nil, false
	}
	out := make([]model.CalendarEvent, len(e.events))
	copy(out, e.events)
	return out, true
}

// Set stores evs under key and sweeps out stale entries.
func (m *Memory) Set(_ context.Context, key string, evs []model.CalendarEvent) {
	stored := make([]model.CalendarEvent, len(evs))
	copy(stored, evs)

	now := m.now()
	m.mu.Lock()
	for k, e := range m.entries {
		if m.expired(e, now) {
			delete(m.entries, k)
		}
	}
	m.entries[key] = entry{events: stored, updatedAt: now}
	m.mu.Unlock()
}

func (m *Memory) Invalidate(_ context.Context) error {
	m.mu.Lock()
	m.entries = make(map[string]entry)
	m.mu.Unlock()
	return nil
}

// Len reports the number of fresh entries.
func (m *Memory) Len() int {
	now := m.now()
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, e := range m.entries {
		if !m.expired(e, now) {
			n++
		}
	}
	return n
}

// Nop never stores anything.
type Nop struct{}

func (Nop) Get(context.Context, string) ([]model.CalendarEvent, bool) { return nil, false }
func (Nop) Set(context.Context, string, []model.CalendarEvent)       {}
func (Nop) Invalidate(context.Context) error                          { return nil }
