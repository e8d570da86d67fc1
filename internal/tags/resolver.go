// Package tags resolves the short codes a directive header needs (week
// number, phase, active operations) from free text on dedicated calendars.
package tags

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"dsigen/internal/events"
	appLog "dsigen/internal/log"
	"dsigen/internal/model"
	"dsigen/internal/sanitize"
	"dsigen/internal/source"
)

const (
	// Missing-week sentinels for the S and S+1 positions of the week tag.
	MissingS  = "-1"
	MissingS1 = "-2"

	weekSlackDays     = 3
	operationLookBack = 365
	operationLookAhd  = 30
)

// Calendars names the tag calendars a Resolver reads.
type Calendars struct {
	Week       string
	Phase      string
	Operations string
}

// Resolver runs the best-overlap heuristics against the tag calendars.
type Resolver struct {
	src    source.Fetcher
	cals   Calendars
	phases *PhaseMatcher
}

// NewResolver creates a Resolver. An empty vocabulary selects DefaultPhases.
func NewResolver(src source.Fetcher, cals Calendars, phases []string) *Resolver {
	if len(phases) == 0 {
		phases = DefaultPhases
	}
	return &Resolver{src: src, cals: cals, phases: NewPhaseMatcher(phases)}
}

// WeekWindow is the lookup range for the week tag of p.
func WeekWindow(p model.Period) model.Period {
	return p.Widen(weekSlackDays, weekSlackDays)
}

// PhaseWindow is the lookup range for the phase of combined.
func PhaseWindow(combined model.Period) model.Period {
	return combined.Widen(weekSlackDays, weekSlackDays)
}

// OperationsWindow is the lookup range for operations active over combined.
func OperationsWindow(combined model.Period) model.Period {
	return combined.Widen(operationLookBack, operationLookAhd)
}

// bestMatch picks the tag of the event with the largest overlap with p.
// Equal overlaps keep the first event in fetch order. Events without a
// positive overlap never match.
func bestMatch(evs []model.CalendarEvent, p model.Period, extract func(string) (string, bool)) model.TagMatch {
	var best model.TagMatch
	for _, ev := range evs {
		if !events.ActiveOverPeriod(ev, p) {
			continue
		}
		value, ok := extract(ev.Text())
		if !ok {
			continue
		}
		if ov := events.Overlap(ev, p); ov > 0 && (!best.Found || ov > best.Overlap) {
			best = model.TagMatch{Value: value, Found: true, Overlap: ov}
		}
	}
	return best
}

// Week resolves the instruction-week tag for a single period.
func (r *Resolver) Week(ctx context.Context, p model.Period) (model.TagMatch, error) {
	evs, err := r.src.List(ctx, r.cals.Week, WeekWindow(p))
	if err != nil {
		return model.TagMatch{}, err
	}
	return bestMatch(evs, p, ExtractWeekTag), nil
}

// WeekNumber resolves weeks S and S+1 and joins them as "S/S+1". An
// unresolved week contributes its positional sentinel and a warning.
func (r *Resolver) WeekNumber(ctx context.Context, s, s1 model.Period) (string, []model.Warning) {
	var warnings []model.Warning
	resolve := func(p model.Period, label, sentinel string) string {
		m, err := r.Week(ctx, p)
		if err != nil {
			appLog.Error("week tag lookup failed", err, "week", label, "period", p.Key())
			warnings = append(warnings, model.Warning{
				Scope:   "week:" + label,
				Message: fmt.Sprintf("could not read week tags for %s: %v", label, err),
			})
			return sentinel
		}
		if !m.Found {
			warnings = append(warnings, model.Warning{
				Scope:   "week:" + label,
				Message: fmt.Sprintf("no instruction week found for %s (%s)", label, p.Key()),
			})
			return sentinel
		}
		return m.Value
	}
	a := resolve(s, "S", MissingS)
	b := resolve(s1, "S+1", MissingS1)
	return a + "/" + b, warnings
}

// Phase resolves the phase code over the combined S..S+1 period. Found is
// false when no event matched; the caller supplies a default label.
func (r *Resolver) Phase(ctx context.Context, combined model.Period) (model.TagMatch, []model.Warning) {
	evs, err := r.src.List(ctx, r.cals.Phase, PhaseWindow(combined))
	if err != nil {
		appLog.Error("phase lookup failed", err, "period", combined.Key())
		return model.TagMatch{}, []model.Warning{{
			Scope:   "phase",
			Message: fmt.Sprintf("could not read phase calendar: %v", err),
		}}
	}
	return bestMatch(evs, combined, r.phases.Match), nil
}

// Operations lists operations active over combined, one entry per
// (name, type) with its earliest start, in chronological order.
func (r *Resolver) Operations(ctx context.Context, combined model.Period) ([]model.OperationEntry, []model.Warning) {
	evs, err := r.src.List(ctx, r.cals.Operations, OperationsWindow(combined))
	if err != nil {
		appLog.Error("operations lookup failed", err, "period", combined.Key())
		return nil, []model.Warning{{
			Scope:   "operations",
			Message: fmt.Sprintf("could not read operations calendar: %v", err),
		}}
	}

	type key struct{ name, typ string }
	index := make(map[key]int)
	var out []model.OperationEntry
	for _, ev := range evs {
		if !events.ActiveOverPeriod(ev, combined) {
			continue
		}
		summary := sanitize.Text(ev.Summary)
		if summary == "" {
			continue
		}
		start, _, ok := events.InclusiveSpan(ev)
		if !ok {
			continue
		}
		name, typ := ParseOperation(summary)
		k := key{name, typ}
		if i, seen := index[k]; seen {
			if start.Before(out[i].FirstActive) {
				out[i].FirstActive = start
			}
			continue
		}
		index[k] = len(out)
		out = append(out, model.OperationEntry{Name: name, Type: typ, FirstActive: start})
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].FirstActive.Before(out[j].FirstActive)
	})
	return out, nil
}

// FormatOperations renders the numbered operations list, one line per entry.
func FormatOperations(ops []model.OperationEntry) []string {
	lines := make([]string, 0, len(ops))
	for i, op := range ops {
		label := op.Name
		if op.Type != "" {
			label += " (" + op.Type + ")"
		}
		lines = append(lines, fmt.Sprintf(" %d) %s - __ Militares - _____________", i+1, label))
	}
	return lines
}

// JoinOperations flattens the formatted list for single-cell outputs.
func JoinOperations(ops []model.OperationEntry) string {
	return strings.Join(FormatOperations(ops), "\n")
}
