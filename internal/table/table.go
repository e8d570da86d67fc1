// Package table builds the weekly grid rows of a directive.
package table

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

// Default owner tags for the RESP column.
const (
	OwnerPrimary   = "S3"
	OwnerCommander = "Cmdo"
	OwnerPlanning  = "PGI"

	untitled = "S/T"
)

// Calendar is a calendar feeding the grid together with the RESP tag its
// events carry.
type Calendar struct {
	ID    string
	Owner string
}

// Calendars lists the grid sources. Commander and Planning are optional and
// only read when selected in Options.
type Calendars struct {
	Primary   Calendar
	Commander Calendar
	Planning  Calendar
}

// Options selects the secondary calendars for one week.
type Options struct {
	Commander bool
	Planning  bool
}

type Builder struct {
	src  source.Fetcher
	cals Calendars
}

// NewBuilder creates a Builder. Empty owner tags fall back to the defaults.
func NewBuilder(src source.Fetcher, cals Calendars) *Builder {
	if cals.Primary.Owner == "" {
		cals.Primary.Owner = OwnerPrimary
	}
	if cals.Commander.Owner == "" {
		cals.Commander.Owner = OwnerCommander
	}
	if cals.Planning.Owner == "" {
		cals.Planning.Owner = OwnerPlanning
	}
	return &Builder{src: src, cals: cals}
}

// Week builds the rows for the seven days of p. Every day yields at least
// one row; Date and Special are set on the first row of each day only.
func (b *Builder) Week(ctx context.Context, p model.Period, opts Options, holidays model.HolidaySet) ([]model.TableRow, []model.Warning) {
	selected := []Calendar{b.cals.Primary}
	if opts.Commander && b.cals.Commander.ID != "" {
		selected = append(selected, b.cals.Commander)
	}
	if opts.Planning && b.cals.Planning.ID != "" {
		selected = append(selected, b.cals.Planning)
	}

	var (
		merged   []model.CalendarEvent
		warnings []model.Warning
	)
	owners := make(map[string]string, len(selected))
	for _, c := range selected {
		owners[c.ID] = c.Owner
		evs, err := b.src.List(ctx, c.ID, p)
		if err != nil {
			appLog.Error("week calendar fetch failed", err, "calendar", c.ID, "period", p.Key())
			warnings = append(warnings, model.Warning{
				Scope:   "table:" + c.ID,
				Message: fmt.Sprintf("could not load %s events for %s: %v", c.Owner, dates.PeriodTitle(p), err),
			})
			continue
		}
		merged = append(merged, evs...)
	}
	merged = events.Dedupe(merged)

	rows := make([]model.TableRow, 0, len(merged)+7)
	for _, day := range p.Days() {
		rows = append(rows, dayRows(day, merged, owners, holidays)...)
	}
	return rows, warnings
}

func dayRows(day time.Time, evs []model.CalendarEvent, owners map[string]string, holidays model.HolidaySet) []model.TableRow {
	var today []model.CalendarEvent
	for _, ev := range evs {
		if events.IntersectsDay(ev, day) {
			today = append(today, ev)
		}
	}
	sort.SliceStable(today, func(i, j int) bool {
		return events.StartKey(today[i]) < events.StartKey(today[j])
	})

	label := dates.ColumnLabel(day)
	special := IsSpecial(day, holidays)
	if len(today) == 0 {
		return []model.TableRow{{Date: label, Special: special}}
	}

	rows := make([]model.TableRow, 0, len(today))
	for i, ev := range today {
		activity := sanitize.Text(ev.Summary)
		if ev.Summary == "" {
			activity = untitled
		}
		row := model.TableRow{
			Time:        events.TimeLabel(ev),
			Activity:    activity,
			Location:    sanitize.Text(ev.Location),
			Responsible: owners[ev.SourceCalendar],
		}
		if i == 0 {
			row.Date = label
			row.Special = special
		}
		rows = append(rows, row)
	}
	return rows
}

// IsSpecial reports whether day is a weekend day or a holiday.
func IsSpecial(day time.Time, holidays model.HolidaySet) bool {
	return dates.IsWeekend(day) || holidays.Has(day)
}

// Block is a contiguous run of rows belonging to one day.
type Block struct {
	// Start is the index of the block's first row.
	Start   int
	Len     int
	Special bool
}

// Blocks groups rows into day blocks. A block opens at every row carrying
// a date label; leading rows without one are not part of any block.
func Blocks(rows []model.TableRow) []Block {
	var out []Block
	for i, r := range rows {
		if r.Date != "" {
			out = append(out, Block{Start: i, Len: 1, Special: r.Special})
			continue
		}
		if len(out) > 0 {
			last := &out[len(out)-1]
			last.Len++
			last.Special = last.Special || r.Special
		}
	}
	return out
}
