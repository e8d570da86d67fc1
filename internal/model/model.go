package model

import "time"

// DateLayout is the calendar-date form used by all-day descriptors and
// holiday keys.
const DateLayout = "2006-01-02"

// EventTime is a start or end descriptor. Exactly one of Date (all-day) or
// DateTime (timed, RFC3339) is expected to be set; an event whose start
// carries neither is ignored by every intersection helper.
type EventTime struct {
	Date     string `json:"date,omitempty"`
	DateTime string `json:"date_time,omitempty"`
}

// AllDay reports whether the descriptor is date-only.
func (t EventTime) AllDay() bool {
	return t.Date != ""
}

// Raw returns the descriptor's raw string, timed form first.
func (t EventTime) Raw() string {
	if t.DateTime != "" {
		return t.DateTime
	}
	return t.Date
}

// CalendarEvent is a single event instance as returned by a calendar source,
// tagged with the calendar it was fetched from.
type CalendarEvent struct {
	ID             string `json:"id"`
	SourceCalendar string `json:"source_calendar"`

	Summary     string `json:"summary"`
	Description string `json:"description,omitempty"`
	Location    string `json:"location,omitempty"`

	Start EventTime `json:"start"`
	End   EventTime `json:"end"`
}

// Text joins summary, description and location the way tag extraction
// expects to see them.
func (e CalendarEvent) Text() string {
	return e.Summary + " " + e.Description + " " + e.Location
}

// Period is an inclusive [Start, End] range of calendar dates. Both bounds
// are midnight UTC.
type Period struct {
	Start time.Time
	End   time.Time
}

// NewPeriod truncates both bounds to their calendar date.
func NewPeriod(start, end time.Time) Period {
	return Period{Start: Day(start), End: Day(end)}
}

// Shift moves both bounds by the given number of days.
func (p Period) Shift(days int) Period {
	return Period{Start: p.Start.AddDate(0, 0, days), End: p.End.AddDate(0, 0, days)}
}

// Widen extends the period by before days at the start and after days at
// the end.
func (p Period) Widen(before, after int) Period {
	return Period{Start: p.Start.AddDate(0, 0, -before), End: p.End.AddDate(0, 0, after)}
}

// Days lists every date in the period in order.
func (p Period) Days() []time.Time {
	var out []time.Time
	for d := p.Start; !d.After(p.End); d = d.AddDate(0, 0, 1) {
		out = append(out, d)
	}
	return out
}

// Contains reports whether day falls inside the period.
func (p Period) Contains(day time.Time) bool {
	day = Day(day)
	return !day.Before(p.Start) && !day.After(p.End)
}

// Key is a stable textual form used for cache keys and logging.
func (p Period) Key() string {
	return p.Start.Format(DateLayout) + ".." + p.End.Format(DateLayout)
}

// Day truncates t to its calendar date at midnight UTC, keeping the
// wall-clock date of t's own location.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDay parses a YYYY-MM-DD date into a Day.
func ParseDay(s string) (time.Time, error) {
	return time.Parse(DateLayout, s)
}

// Columns are the visible grid headers in order.
var Columns = [...]string{"DATA", "HORA", "ATIVIDADE", "LOCAL", "UNIF", "RESP", "OBS"}

// TableRow is one row of a rendered weekly grid. Rows of the same day form a
// contiguous block; only the first row of a block carries Date and Special.
type TableRow struct {
	Date        string `json:"data"`
	Time        string `json:"hora"`
	Activity    string `json:"atividade"`
	Location    string `json:"local"`
	Uniform     string `json:"unif"`
	Responsible string `json:"resp"`
	Observation string `json:"obs"`

	Special bool `json:"-"`
}

// Cells returns the seven visible column values in grid order.
func (r TableRow) Cells() []string {
	return []string{r.Date, r.Time, r.Activity, r.Location, r.Uniform, r.Responsible, r.Observation}
}

// HolidaySet holds individual holiday dates keyed by YYYY-MM-DD.
type HolidaySet map[string]struct{}

func (h HolidaySet) Add(day time.Time) {
	h[day.Format(DateLayout)] = struct{}{}
}

func (h HolidaySet) Has(day time.Time) bool {
	_, ok := h[day.Format(DateLayout)]
	return ok
}

// OperationEntry is an active operation parsed from the operations calendar.
type OperationEntry struct {
	Name        string
	Type        string
	FirstActive time.Time
}

// TagMatch is the outcome of a best-overlap tag resolution. Found is false
// when no event in the window produced a tag.
type TagMatch struct {
	Value   string
	Found   bool
	Overlap int
}

// Warning is a non-fatal condition surfaced to the caller alongside a
// (possibly partial) result.
type Warning struct {
	Scope   string `json:"scope"`
	Message string `json:"message"`
}

// HistoryEntry records a generated directive for the current session.
type HistoryEntry struct {
	ID         string    `json:"id"`
	Number     int       `json:"number"`
	Period     string    `json:"period"`
	DocumentID string    `json:"document_id"`
	CreatedAt  time.Time `json:"created_at"`
}
