package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"dsigen/internal/model"
)

func day(s string) time.Time {
	d, err := model.ParseDay(s)
	if err != nil {
		panic(err)
	}
	return d
}

func allDay(id, start, end string) model.CalendarEvent {
	return model.CalendarEvent{
		ID:    id,
		Start: model.EventTime{Date: start},
		End:   model.EventTime{Date: end},
	}
}

func timed(id, start, end string) model.CalendarEvent {
	return model.CalendarEvent{
		ID:    id,
		Start: model.EventTime{DateTime: start},
		End:   model.EventTime{DateTime: end},
	}
}

func ids(evs []model.CalendarEvent) []string {
	out := make([]string, 0, len(evs))
	for _, ev := range evs {
		out = append(out, ev.ID)
	}
	return out
}

func TestDedupe(t *testing.T) {
	in := []model.CalendarEvent{
		{ID: "a", Summary: "first"},
		{ID: "b"},
		{ID: ""},
		{ID: "a", Summary: "second"},
		{ID: "c"},
		{ID: "b"},
	}
	out := Dedupe(in)
	assert.Equal(t, []string{"a", "b", "c"}, ids(out))
	assert.Equal(t, "first", out[0].Summary)
	assert.Equal(t, out, Dedupe(out))
}

func TestIntersectsDayAllDay(t *testing.T) {
	ev := allDay("x", "2025-01-10", "2025-01-13")
	assert.True(t, IntersectsDay(ev, day("2025-01-10")))
	assert.True(t, IntersectsDay(ev, day("2025-01-11")))
	assert.True(t, IntersectsDay(ev, day("2025-01-12")))
	assert.False(t, IntersectsDay(ev, day("2025-01-13")))
	assert.False(t, IntersectsDay(ev, day("2025-01-09")))
}

func TestIntersectsDayTimed(t *testing.T) {
	ev := timed("x", "2025-01-10T22:00:00-03:00", "2025-01-11T02:00:00-03:00")
	assert.True(t, IntersectsDay(ev, day("2025-01-10")))
	assert.True(t, IntersectsDay(ev, day("2025-01-11")))
	assert.False(t, IntersectsDay(ev, day("2025-01-12")))

	single := timed("y", "2025-01-10T08:00:00-03:00", "2025-01-10T09:00:00-03:00")
	assert.True(t, IntersectsDay(single, day("2025-01-10")))
	assert.False(t, IntersectsDay(single, day("2025-01-11")))
}

func TestIntersectsDayUnparseable(t *testing.T) {
	assert.False(t, IntersectsDay(model.CalendarEvent{ID: "x"}, day("2025-01-10")))
	assert.False(t, IntersectsDay(allDay("x", "garbage", "2025-01-11"), day("2025-01-10")))
	assert.False(t, IntersectsDay(timed("x", "2025-01-10T08:00:00Z", ""), day("2025-01-10")))
}

func TestActiveOverPeriod(t *testing.T) {
	ev := allDay("x", "2025-01-01", "2025-01-04")
	assert.True(t, ActiveOverPeriod(ev, model.Period{Start: day("2025-01-03"), End: day("2025-01-03")}))
	assert.False(t, ActiveOverPeriod(ev, model.Period{Start: day("2025-01-04"), End: day("2025-01-10")}))

	tm := timed("y", "2025-01-04T10:00:00Z", "2025-01-04T11:00:00Z")
	assert.True(t, ActiveOverPeriod(tm, model.Period{Start: day("2025-01-04"), End: day("2025-01-10")}))
}

func TestOverlap(t *testing.T) {
	p := model.Period{Start: day("2025-06-09"), End: day("2025-06-15")}
	assert.Equal(t, 7, Overlap(allDay("a", "2025-06-01", "2025-07-01"), p))
	assert.Equal(t, 2, Overlap(allDay("b", "2025-06-14", "2025-06-20"), p))
	assert.Equal(t, 1, Overlap(timed("c", "2025-06-15T08:00:00Z", "2025-06-15T09:00:00Z"), p))
	assert.Equal(t, 0, Overlap(allDay("d", "2025-06-16", "2025-06-17"), p))
}

func TestStartKeyAndTimeLabel(t *testing.T) {
	ad := allDay("a", "2025-06-09", "2025-06-10")
	tm := timed("b", "2025-06-09T07:30:00-03:00", "2025-06-09T08:00:00-03:00")
	assert.Less(t, StartKey(ad), StartKey(tm))
	assert.Equal(t, "D", TimeLabel(ad))
	assert.Equal(t, "07:30", TimeLabel(tm))
}
