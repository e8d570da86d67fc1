package ics

import (
	"bytes"
	"errors"
	"strconv"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	appLog "dsigen/internal/log"
)

// VEvent is the normalized form of a single VEVENT before recurrence
// expansion.
type VEvent struct {
	Feed string

	UID string
	Seq int

	Summary     string
	Description string
	Location    string

	Start  time.Time
	End    time.Time
	AllDay bool

	RawRRule   string
	ExDates    []time.Time
	Recurrence *time.Time // RECURRENCE-ID, in the event's own zone
}

// IsOverride reports whether v replaces one instance of a recurring event.
func (v VEvent) IsOverride() bool {
	return v.Recurrence != nil
}

// Parse decodes an ICS payload. Malformed VEVENTs are logged and skipped;
// only an unreadable calendar is an error.
func Parse(feedID string, body []byte) ([]VEvent, error) {
	if len(body) == 0 {
		return nil, errors.New("ics: empty body")
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	out := make([]VEvent, 0)
	for _, comp := range cal.Events() {
		ev, perr := parseVEvent(feedID, comp)
		if perr != nil {
			appLog.Warn("ics vevent skipped", "feed", feedID, "reason", perr.Error())
			continue
		}
		out = append(out, ev)
	}

	appLog.Debug("ics parsed", "feed", feedID, "event_count", len(out))
	return out, nil
}

func parseVEvent(feedID string, ve *ical.VEvent) (VEvent, error) {
	out := VEvent{Feed: feedID}

	uid := ve.GetProperty(ical.ComponentPropertyUniqueId)
	if uid == nil || uid.Value == "" {
		return out, errors.New("missing UID")
	}
	out.UID = uid.Value

	if p := ve.GetProperty(ical.ComponentPropertySequence); p != nil {
		if n, err := strconv.Atoi(strings.TrimSpace(p.Value)); err == nil {
			out.Seq = n
		}
	}
	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		out.Summary = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertyDescription); p != nil {
		out.Description = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertyLocation); p != nil {
		out.Location = p.Value
	}

	dtStart := ve.GetProperty(ical.ComponentPropertyDtStart)
	if dtStart == nil {
		return out, errors.New("missing DTSTART")
	}
	out.AllDay = isDateValue(dtStart)

	if out.AllDay {
		start, err := parseICSTime(dtStart.Value)
		if err != nil {
			return out, err
		}
		out.Start = start
		if dtEnd := ve.GetProperty(ical.ComponentPropertyDtEnd); dtEnd != nil {
			if end, err := parseICSTime(dtEnd.Value); err == nil {
				out.End = end
			}
		}
		// A date-only event without DTEND lasts one day.
		if !out.End.After(out.Start) {
			out.End = out.Start.AddDate(0, 0, 1)
		}
	} else {
		start, err := ve.GetStartAt()
		if err != nil {
			return out, err
		}
		out.Start = start
		end, err := ve.GetEndAt()
		if err != nil || end.Before(start) {
			end = start
		}
		out.End = end
	}

	if p := ve.GetProperty(ical.ComponentPropertyRrule); p != nil {
		out.RawRRule = p.Value
	}

	for _, p := range ve.GetProperties(ical.ComponentPropertyExdate) {
		for _, part := range strings.Split(p.Value, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			if t, err := parseICSTimeIn(part, propLocation(p)); err == nil {
				out.ExDates = append(out.ExDates, t)
			}
		}
	}

	if p := ve.GetProperty("RECURRENCE-ID"); p != nil {
		if t, err := parseICSTimeIn(p.Value, propLocation(p)); err == nil {
			out.Recurrence = &t
		}
	}

	return out, nil
}

// isDateValue reports VALUE=DATE or a bare YYYYMMDD value.
func isDateValue(p *ical.IANAProperty) bool {
	if vs, ok := p.ICalParameters["VALUE"]; ok && len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
		return true
	}
	return !strings.Contains(p.Value, "T")
}

// propLocation resolves the TZID parameter of p. Floating values and
// unknown zones fall back to time.Local.
func propLocation(p *ical.IANAProperty) *time.Location {
	vs, ok := p.ICalParameters["TZID"]
	if !ok || len(vs) == 0 || vs[0] == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(strings.Trim(vs[0], `"`))
	if err != nil {
		appLog.Warn("ics unknown TZID", "tzid", vs[0], "reason", err.Error())
		return time.Local
	}
	return loc
}

// parseICSTime parses DATE, floating DATE-TIME and UTC DATE-TIME values.
// Date-only values are returned at midnight UTC so their calendar date is
// preserved verbatim.
func parseICSTime(v string) (time.Time, error) {
	return parseICSTimeIn(v, time.Local)
}

// parseICSTimeIn is parseICSTime with local DATE-TIME values read in loc.
func parseICSTimeIn(v string, loc *time.Location) (time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, errors.New("empty time value")
	}
	if strings.HasSuffix(v, "Z") {
		return time.Parse("20060102T150405Z", v)
	}
	if strings.Contains(v, "T") {
		return time.ParseInLocation("20060102T150405", v, loc)
	}
	return time.Parse("20060102", v)
}
