// Package bullets renders the informational date-prefixed lists of a
// directive (courses, commemorative dates) and the holiday set.
package bullets

import (
	"context"
	"fmt"
	"sort"
	"time"

	"dsigen/internal/dates"
	"dsigen/internal/events"
	appLog "dsigen/internal/log"
	"dsigen/internal/model"
	"dsigen/internal/sanitize"
	"dsigen/internal/source"
)

const (
	lookBackDays  = 365
	lookAheadDays = 30

	// ResponsibleBlank is appended when a line needs a hand-filled owner.
	ResponsibleBlank = " - _____________"
)

// Window is the lookup range for lines active over p.
func Window(p model.Period) model.Period {
	return p.Widen(lookBackDays, lookAheadDays)
}

type Builder struct {
	src      source.Fetcher
	holidays string
}

// NewBuilder creates a Builder reading holidays from holidayCalendar.
func NewBuilder(src source.Fetcher, holidayCalendar string) *Builder {
	return &Builder{src: src, holidays: holidayCalendar}
}

// ForPeriod lists the events of calendarID active over p as
// "DD MMM YY - text" or "DD MMM YY a DD MMM YY - text" lines, ordered by
// start date with repeated lines removed.
func (b *Builder) ForPeriod(ctx context.Context, calendarID string, p model.Period, withResponsible bool) ([]string, []model.Warning) {
	evs, err := b.src.List(ctx, calendarID, Window(p))
	if err != nil {
		appLog.Error("bullet list fetch failed", err, "calendar", calendarID, "period", p.Key())
		return nil, []model.Warning{{
			Scope:   "bullets:" + calendarID,
			Message: fmt.Sprintf("could not load %s: %v", calendarID, err),
		}}
	}

	type line struct {
		start time.Time
		text  string
	}
	var lines []line
	for _, ev := range evs {
		if !events.ActiveOverPeriod(ev, p) {
			continue
		}
		summary := sanitize.Text(ev.Summary)
		if summary == "" {
			continue
		}
		s, e, _ := events.InclusiveSpan(ev)
		text := dates.ShortDate(s)
		if !e.Equal(s) {
			text += " a " + dates.ShortDate(e)
		}
		text += " - " + summary
		if withResponsible {
			text += ResponsibleBlank
		}
		lines = append(lines, line{start: s, text: text})
	}

	sort.SliceStable(lines, func(i, j int) bool {
		return lines[i].start.Before(lines[j].start)
	})

	seen := make(map[string]struct{}, len(lines))
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		if _, dup := seen[l.text]; dup {
			continue
		}
		seen[l.text] = struct{}{}
		out = append(out, l.text)
	}
	return out, nil
}

// Holidays expands every event on the holiday calendar that touches p into
// the individual dates it covers. All-day events cover [start, end), timed
// events [start, end].
func (b *Builder) Holidays(ctx context.Context, p model.Period) (model.HolidaySet, []model.Warning) {
	set := make(model.HolidaySet)
	evs, err := b.src.List(ctx, b.holidays, p)
	if err != nil {
		appLog.Error("holiday fetch failed", err, "calendar", b.holidays, "period", p.Key())
		return set, []model.Warning{{
			Scope:   "holidays",
			Message: fmt.Sprintf("could not load holidays, weekends only will be highlighted: %v", err),
		}}
	}
	for _, ev := range evs {
		s, e, allDay, ok := events.Span(ev)
		if !ok {
			continue
		}
		for d := s; d.Before(e) || (!allDay && d.Equal(e)); d = d.AddDate(0, 0, 1) {
			set.Add(d)
		}
	}
	return set, nil
}
