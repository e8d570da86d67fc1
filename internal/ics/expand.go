package ics

import (
	"errors"
	"time"

	"github.com/teambition/rrule-go"

	appLog "dsigen/internal/log"
	"dsigen/internal/model"
	"dsigen/internal/source"
)

const defaultMaxInstances = 5000

// Window bounds an expansion: instances overlapping [From, To) are kept.
type Window struct {
	From time.Time
	To   time.Time

	// Location renders timed instances; nil means time.Local.
	Location *time.Location

	// MaxInstances caps each recurring series. Zero selects 5000.
	MaxInstances int
}

// Expand turns parsed VEVENTs into concrete event instances inside w,
// applying RRULE, EXDATE and RECURRENCE-ID overrides. Output is sorted by
// start.
func Expand(vevents []VEvent, w Window) ([]model.CalendarEvent, error) {
	if w.To.Before(w.From) {
		return nil, errors.New("ics: window end is before start")
	}
	if w.Location == nil {
		w.Location = time.Local
	}
	if w.MaxInstances <= 0 {
		w.MaxInstances = defaultMaxInstances
	}

	bases := make(map[string][]VEvent)
	overrides := make(map[string][]VEvent)
	var order []string
	for _, ev := range vevents {
		if ev.IsOverride() {
			overrides[ev.UID] = append(overrides[ev.UID], ev)
			continue
		}
		if _, seen := bases[ev.UID]; !seen {
			order = append(order, ev.UID)
		}
		bases[ev.UID] = append(bases[ev.UID], ev)
	}

	out := make([]model.CalendarEvent, 0)
	for _, uid := range order {
		for _, ev := range bases[uid] {
			if ev.RawRRule == "" {
				if overlaps(ev.Start, ev.End, ev.AllDay, w) {
					out = append(out, toModel(ev, ev.UID, w.Location))
				}
				continue
			}
			out = append(out, expandSeries(ev, overrides[uid], w)...)
		}
	}

	source.SortByStart(out)
	return out, nil
}

func expandSeries(ev VEvent, overrides []VEvent, w Window) []model.CalendarEvent {
	r, err := rrule.StrToRRule(ev.RawRRule)
	if err != nil {
		appLog.Error("ics rrule parse failed", err, "uid", ev.UID, "rrule", ev.RawRRule)
		return nil
	}
	r.DTStart(ev.Start)

	var set rrule.Set
	set.RRule(r)
	for _, ex := range ev.ExDates {
		set.ExDate(ex.In(ev.Start.Location()))
	}

	dur := ev.End.Sub(ev.Start)
	// Look back by the event duration so instances that started before the
	// window but run into it are kept.
	from := w.From.Add(-dur).In(ev.Start.Location())
	to := w.To.In(ev.Start.Location())
	starts := set.Between(from, to, true)
	if len(starts) > w.MaxInstances {
		appLog.Warn("ics series truncated", "uid", ev.UID, "cap", w.MaxInstances, "instances", len(starts))
		starts = starts[:w.MaxInstances]
	}

	out := make([]model.CalendarEvent, 0, len(starts))
	for _, s := range starts {
		inst := ev
		inst.Start = s
		inst.End = s.Add(dur)
		inst.RawRRule = ""
		if o, ok := findOverride(overrides, s); ok {
			inst = o
		}
		if !overlaps(inst.Start, inst.End, inst.AllDay, w) {
			continue
		}
		out = append(out, toModel(inst, instanceID(ev.UID, s, ev.AllDay), w.Location))
	}
	return out
}

func findOverride(overrides []VEvent, start time.Time) (VEvent, bool) {
	for _, o := range overrides {
		if o.Recurrence.In(start.Location()).Equal(start) {
			return o, true
		}
		// Date-only RECURRENCE-ID values parse at UTC midnight.
		if o.AllDay && model.Day(*o.Recurrence).Equal(model.Day(start)) {
			return o, true
		}
	}
	return VEvent{}, false
}

// instanceID mirrors the "<uid>_<start>" instance identifiers calendar
// servers hand out for expanded recurring events.
func instanceID(uid string, start time.Time, allDay bool) string {
	if allDay {
		return uid + "_" + start.Format("20060102")
	}
	return uid + "_" + start.UTC().Format("20060102T150405Z")
}

func overlaps(start, end time.Time, allDay bool, w Window) bool {
	if allDay {
		// Compare calendar dates; the window is expressed in UTC days.
		return model.Day(start).Before(w.To) && model.Day(end).After(w.From)
	}
	if !start.Before(w.To) {
		return false
	}
	if end.Equal(start) {
		return !start.Before(w.From)
	}
	return end.After(w.From)
}

func toModel(ev VEvent, id string, loc *time.Location) model.CalendarEvent {
	out := model.CalendarEvent{
		ID:          id,
		Summary:     ev.Summary,
		Description: ev.Description,
		Location:    ev.Location,
	}
	if ev.AllDay {
		out.Start = model.EventTime{Date: ev.Start.Format(model.DateLayout)}
		out.End = model.EventTime{Date: ev.End.Format(model.DateLayout)}
		return out
	}
	out.Start = model.EventTime{DateTime: ev.Start.In(loc).Format(time.RFC3339)}
	out.End = model.EventTime{DateTime: ev.End.In(loc).Format(time.RFC3339)}
	return out
}
