package dates

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dsigen/internal/model"
)

func day(s string) time.Time {
	d, err := model.ParseDay(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestMondayOf(t *testing.T) {
	start := day("2024-12-20")
	for i := 0; i < 60; i++ {
		d := start.AddDate(0, 0, i)
		m := MondayOf(d)
		assert.Equal(t, time.Monday, m.Weekday(), d)
		diff := int(d.Sub(m).Hours() / 24)
		assert.GreaterOrEqual(t, diff, 0)
		assert.LessOrEqual(t, diff, 6)
	}
}

func TestMondayOfIgnoresTimeOfDay(t *testing.T) {
	loc := time.FixedZone("BRT", -3*3600)
	d := time.Date(2025, 6, 15, 23, 30, 0, 0, loc)
	assert.Equal(t, day("2025-06-09"), MondayOf(d))
}

func TestWeekRangeIdempotent(t *testing.T) {
	p := WeekRange(day("2025-06-11"))
	assert.Equal(t, day("2025-06-09"), p.Start)
	assert.Equal(t, day("2025-06-15"), p.End)
	assert.Len(t, p.Days(), 7)

	for _, d := range p.Days() {
		assert.Equal(t, p, WeekRange(d))
	}
}

func TestLabels(t *testing.T) {
	d := day("2025-06-14")
	assert.Equal(t, "SÁB", Weekday(d))
	assert.Equal(t, "JUN", Month(d))
	assert.Equal(t, "junho", MonthLong(d))
	assert.Equal(t, "14 JUN (SÁB)", ColumnLabel(d))
	assert.Equal(t, "14 JUN 25", ShortDate(d))
	assert.True(t, IsWeekend(d))
	assert.True(t, IsWeekend(day("2025-06-15")))
	assert.False(t, IsWeekend(day("2025-06-13")))

	p := WeekRange(day("2025-06-18"))
	assert.Equal(t, "16 JUN 25 a 22 JUN 25", PeriodTitle(p))
}

func TestUTCBounds(t *testing.T) {
	loc := time.FixedZone("BRT", -3*3600)
	d := time.Date(2025, 1, 31, 22, 0, 0, 0, loc)
	assert.Equal(t, "2025-01-31T00:00:00Z", UTCStart(d))
	assert.Equal(t, "2025-02-01T00:00:00Z", UTCEndExclusive(d))
}

func TestValidate(t *testing.T) {
	t.Run("inverted", func(t *testing.T) {
		_, err := Validate(model.Period{Start: day("2025-06-10"), End: day("2025-06-09")})
		require.ErrorIs(t, err, ErrEndBeforeStart)
	})

	t.Run("two weeks is fine", func(t *testing.T) {
		w, err := Validate(model.Period{Start: day("2025-06-09"), End: day("2025-06-22")})
		require.NoError(t, err)
		assert.Empty(t, w)
	})

	t.Run("long span warns", func(t *testing.T) {
		w, err := Validate(model.Period{Start: day("2025-06-01"), End: day("2025-06-22")})
		require.NoError(t, err)
		require.Len(t, w, 1)
		assert.Equal(t, "period", w[0].Scope)
	})
}
