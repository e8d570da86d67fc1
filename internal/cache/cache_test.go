package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dsigen/internal/model"
)

func TestMemoryTTL(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 6, 11, 10, 0, 0, 0, time.UTC)

	m := NewMemory(5 * time.Minute)
	m.now = func() time.Time { return now }

	m.Set(ctx, "k", []model.CalendarEvent{{ID: "a"}})
	got, ok := m.Get(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, "a", got[0].ID)

	now = now.Add(4 * time.Minute)
	_, ok = m.Get(ctx, "k")
	assert.True(t, ok)

	now = now.Add(time.Minute)
	_, ok = m.Get(ctx, "k")
	assert.False(t, ok)
}

func TestMemoryEvictsStale(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 6, 11, 10, 0, 0, 0, time.UTC)

	m := NewMemory(5 * time.Minute)
	m.now = func() time.Time { return now }

	m.Set(ctx, "old", []model.CalendarEvent{{ID: "a"}})
	m.Set(ctx, "read", []model.CalendarEvent{{ID: "b"}})
	require.Equal(t, 2, m.Len())

	now = now.Add(5 * time.Minute)
	assert.Equal(t, 0, m.Len())

	_, ok := m.Get(ctx, "read")
	assert.False(t, ok)
	assert.NotContains(t, m.entries, "read")
	assert.Contains(t, m.entries, "old")

	m.Set(ctx, "new", []model.CalendarEvent{{ID: "c"}})
	assert.NotContains(t, m.entries, "old")
	assert.Len(t, m.entries, 1)
	assert.Equal(t, 1, m.Len())
}

func TestMemoryReturnsCopies(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(0)

	in := []model.CalendarEvent{{ID: "a"}}
	m.Set(ctx, "k", in)
	in[0].ID = "mutated"

	got, _ := m.Get(ctx, "k")
	got[0].ID = "also mutated"

	again, _ := m.Get(ctx, "k")
	assert.Equal(t, "a", again[0].ID)
}

func TestMemoryInvalidate(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(time.Hour)
	m.Set(ctx, "a", nil)
	m.Set(ctx, "b", nil)
	require.Equal(t, 2, m.Len())

	require.NoError(t, m.Invalidate(ctx))
	assert.Equal(t, 0, m.Len())
	_, ok := m.Get(ctx, "a")
	assert.False(t, ok)
}

func TestKey(t *testing.T) {
	p := model.NewPeriod(time.Date(2025, 6, 9, 0, 0, 0, 0, time.UTC), time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, "cal@x|2025-06-09..2025-06-15", Key("cal@x", p))
}
