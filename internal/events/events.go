// Package events merges event lists from several calendars and answers
// day/period occupancy questions about single events.
package events

import (
	"strings"
	"time"

	"dsigen/internal/model"
)

// Dedupe drops events without an ID and every repeated ID after its first
// occurrence. Order is preserved.
func Dedupe(evs []model.CalendarEvent) []model.CalendarEvent {
	seen := make(map[string]struct{}, len(evs))
	out := make([]model.CalendarEvent, 0, len(evs))
	for _, ev := range evs {
		if ev.ID == "" {
			continue
		}
		if _, dup := seen[ev.ID]; dup {
			continue
		}
		seen[ev.ID] = struct{}{}
		out = append(out, ev)
	}
	return out
}

// Span returns the calendar dates an event declares. For all-day events end
// is the exclusive date as sent by the source; for timed events it is the
// date the end timestamp falls on. ok is false when either bound cannot be
// parsed.
func Span(ev model.CalendarEvent) (start, end time.Time, allDay bool, ok bool) {
	if ev.Start.AllDay() {
		s, err := model.ParseDay(ev.Start.Date)
		if err != nil {
			return time.Time{}, time.Time{}, false, false
		}
		e, err := model.ParseDay(ev.End.Date)
		if err != nil {
			return time.Time{}, time.Time{}, false, false
		}
		return s, e, true, true
	}

	if ev.Start.DateTime == "" || ev.End.DateTime == "" {
		return time.Time{}, time.Time{}, false, false
	}
	s, err := datePrefix(ev.Start.DateTime)
	if err != nil {
		return time.Time{}, time.Time{}, false, false
	}
	e, err := datePrefix(ev.End.DateTime)
	if err != nil {
		return time.Time{}, time.Time{}, false, false
	}
	return s, e, false, true
}

// datePrefix reads the local calendar date written in the first ten bytes of
// an RFC3339 timestamp, without converting zones.
func datePrefix(ts string) (time.Time, error) {
	if len(ts) < 10 {
		return model.ParseDay(ts)
	}
	return model.ParseDay(ts[:10])
}

// InclusiveSpan is Span with the all-day end shifted back one day so both
// bounds are inclusive.
func InclusiveSpan(ev model.CalendarEvent) (start, end time.Time, ok bool) {
	s, e, allDay, ok := Span(ev)
	if !ok {
		return time.Time{}, time.Time{}, false
	}
	if allDay {
		e = e.AddDate(0, 0, -1)
	}
	return s, e, true
}

// IntersectsDay reports whether ev occupies day: all-day events cover
// [start, end), timed events cover [start, end].
func IntersectsDay(ev model.CalendarEvent, day time.Time) bool {
	s, e, allDay, ok := Span(ev)
	if !ok {
		return false
	}
	day = model.Day(day)
	if day.Before(s) {
		return false
	}
	if allDay {
		return day.Before(e)
	}
	return !day.After(e)
}

// ActiveOverPeriod reports whether ev's inclusive span touches p.
func ActiveOverPeriod(ev model.CalendarEvent, p model.Period) bool {
	s, e, ok := InclusiveSpan(ev)
	if !ok {
		return false
	}
	return !s.After(p.End) && !e.Before(p.Start)
}

// Overlap counts the days ev shares with p, both inclusive. Zero means no
// overlap.
func Overlap(ev model.CalendarEvent, p model.Period) int {
	s, e, ok := InclusiveSpan(ev)
	if !ok {
		return 0
	}
	if s.Before(p.Start) {
		s = p.Start
	}
	if e.After(p.End) {
		e = p.End
	}
	if s.After(e) {
		return 0
	}
	return int(e.Sub(s).Hours()/24) + 1
}

// StartKey is the raw start string used to order a day's events. Date-only
// values compare before any timestamp on the same date.
func StartKey(ev model.CalendarEvent) string {
	return ev.Start.Raw()
}

// TimeLabel is the HORA cell: "HH:MM" for timed events, "D" for all-day.
func TimeLabel(ev model.CalendarEvent) string {
	raw := ev.Start.Raw()
	if i := strings.IndexByte(raw, 'T'); i >= 0 && len(raw) >= i+6 {
		return raw[i+1 : i+6]
	}
	return "D"
}
