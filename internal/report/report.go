// Package report assembles a weekly instruction directive from the
// calendars and hands it to the document writer and the backup exporter.
package report

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"dsigen/internal/bullets"
	"dsigen/internal/dates"
	"dsigen/internal/export"
	"dsigen/internal/gdocs"
	"dsigen/internal/layout"
	appLog "dsigen/internal/log"
	"dsigen/internal/model"
	"dsigen/internal/source"
	"dsigen/internal/table"
	"dsigen/internal/tags"
)

const (
	MinNumber = 1
	MaxNumber = 999

	// DefaultPhase is printed when no phase event covers the period.
	DefaultPhase = "Mdd Adm"
)

// ErrInvalidNumber is returned for a directive number outside 1..999.
var ErrInvalidNumber = errors.New("report: directive number must be between 1 and 999")

// Source is the event gateway: single-calendar reads plus the pooled
// multi-calendar load used for preloading.
type Source interface {
	source.Fetcher
	ListMany(ctx context.Context, calendarIDs []string, p model.Period) (map[string][]model.CalendarEvent, []model.Warning)
}

// DocumentWriter creates the directive document.
type DocumentWriter interface {
	Create(ctx context.Context, d gdocs.Draft) (string, error)
}

// Calendars maps every role to its calendar ID.
type Calendars struct {
	Primary   table.Calendar
	Commander table.Calendar
	Planning  table.Calendar

	Courses    string
	Holidays   string
	Week       string
	Phase      string
	Operations string
}

// Supplement is the hand-written part of a directive.
type Supplement struct {
	Parade      layout.Parade `json:"formatura"`
	Future      string        `json:"atividades_futuras"`
	Units       string        `json:"su"`
	NotExecuted string        `json:"nao_executadas"`
}

// Request selects one directive.
type Request struct {
	Number     int
	RefDate    time.Time
	Commander  bool
	Planning   bool
	Supplement Supplement
}

// Directive is the assembled content of one directive.
type Directive struct {
	Number     string                 `json:"number"`
	Title      string                 `json:"title"`
	S          model.Period           `json:"-"`
	S1         model.Period           `json:"-"`
	PeriodS    string                 `json:"period_s"`
	PeriodS1   string                 `json:"period_s1"`
	WeekTag    string                 `json:"week_tag"`
	Phase      string                 `json:"phase"`
	Operations []string               `json:"operations"`
	Entries    []model.OperationEntry `json:"-"`
	Courses    []string               `json:"courses"`
	Dates      []string               `json:"dates"`
	Holidays   []string               `json:"holidays"`
	WeekS      []model.TableRow       `json:"week_s"`
	WeekS1     []model.TableRow       `json:"week_s1"`
	Warnings   []model.Warning        `json:"warnings"`
}

// Result is the outcome of Generate.
type Result struct {
	DocumentID string             `json:"document_id"`
	URL        string             `json:"url"`
	Backup     []byte             `json:"-"`
	BackupKind export.Kind        `json:"backup_kind"`
	History    model.HistoryEntry `json:"history"`
	Directive  *Directive         `json:"directive"`
	Warnings   []model.Warning    `json:"warnings"`
}

// Generator wires the builders together. It holds no per-request state.
type Generator struct {
	src        Source
	session    *Session
	writer     DocumentWriter
	cals       Calendars
	letterhead layout.Letterhead
	phase      string

	tags    *tags.Resolver
	bullets *bullets.Builder
	tables  *table.Builder

	now func() time.Time
}

// Option configures a Generator.
type Option func(*Generator)

// WithDefaultPhase sets the phase printed when none resolves.
func WithDefaultPhase(phase string) Option {
	return func(g *Generator) {
		if phase != "" {
			g.phase = phase
		}
	}
}

// WithPhases sets the phase vocabulary in match order.
func WithPhases(phases []string) Option {
	return func(g *Generator) {
		g.tags = tags.NewResolver(g.src, tags.Calendars{Week: g.cals.Week, Phase: g.cals.Phase, Operations: g.cals.Operations}, phases)
	}
}

// WithClock sets the issue-date clock.
func WithClock(now func() time.Time) Option {
	return func(g *Generator) {
		if now != nil {
			g.now = now
		}
	}
}

func NewGenerator(src Source, session *Session, writer DocumentWriter, cals Calendars, letterhead layout.Letterhead, opts ...Option) *Generator {
	g := &Generator{
		src:        src,
		session:    session,
		writer:     writer,
		cals:       cals,
		letterhead: letterhead,
		phase:      DefaultPhase,
		tags:       tags.NewResolver(src, tags.Calendars{Week: cals.Week, Phase: cals.Phase, Operations: cals.Operations}, nil),
		bullets:    bullets.NewBuilder(src, cals.Holidays),
		tables: table.NewBuilder(src, table.Calendars{
			Primary:   cals.Primary,
			Commander: cals.Commander,
			Planning:  cals.Planning,
		}),
		now: time.Now,
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

// Weeks derives week S and S+1 from a reference date.
func Weeks(ref time.Time) (s, s1 model.Period) {
	s = dates.WeekRange(ref)
	return s, s.Shift(7)
}

// FormatNumber renders a directive number as three digits.
func FormatNumber(n int) string {
	return fmt.Sprintf("%03d", n)
}

func validate(req Request) (s, s1 model.Period, warnings []model.Warning, err error) {
	if req.Number < MinNumber || req.Number > MaxNumber {
		return s, s1, nil, fmt.Errorf("%w: got %d", ErrInvalidNumber, req.Number)
	}
	s, s1 = Weeks(req.RefDate)
	warnings, err = dates.Validate(model.Period{Start: s.Start, End: s1.End})
	return s, s1, warnings, err
}

// Preview assembles the directive without writing anything.
func (g *Generator) Preview(ctx context.Context, req Request) (*Directive, error) {
	s, s1, warnings, err := validate(req)
	if err != nil {
		return nil, err
	}
	combined := model.Period{Start: s.Start, End: s1.End}
	d := &Directive{
		Number:   FormatNumber(req.Number),
		S:        s,
		S1:       s1,
		PeriodS:  dates.PeriodTitle(s),
		PeriodS1: dates.PeriodTitle(s1),
		Warnings: warnings,
	}
	d.Title = layout.Title(layout.Content{Number: d.Number, S1: s1})

	var w []model.Warning
	d.WeekTag, w = g.tags.WeekNumber(ctx, s, s1)
	d.Warnings = append(d.Warnings, w...)

	phase, w := g.tags.Phase(ctx, combined)
	d.Warnings = append(d.Warnings, w...)
	d.Phase = g.phase
	if phase.Found {
		d.Phase = phase.Value
	}

	d.Entries, w = g.tags.Operations(ctx, combined)
	d.Warnings = append(d.Warnings, w...)
	d.Operations = tags.FormatOperations(d.Entries)

	d.Courses, w = g.bullets.ForPeriod(ctx, g.cals.Courses, combined, true)
	d.Warnings = append(d.Warnings, w...)
	d.Dates, w = g.bullets.ForPeriod(ctx, g.cals.Holidays, combined, false)
	d.Warnings = append(d.Warnings, w...)

	holidays, w := g.bullets.Holidays(ctx, combined)
	d.Warnings = append(d.Warnings, w...)
	for day := range holidays {
		d.Holidays = append(d.Holidays, day)
	}
	sort.Strings(d.Holidays)

	opts := table.Options{Commander: req.Commander, Planning: req.Planning}
	d.WeekS, w = g.tables.Week(ctx, s, opts, holidays)
	d.Warnings = append(d.Warnings, w...)
	d.WeekS1, w = g.tables.Week(ctx, s1, opts, holidays)
	d.Warnings = append(d.Warnings, w...)

	for _, warn := range d.Warnings {
		appLog.Warn("directive warning", "number", d.Number, "scope", warn.Scope, "message", warn.Message)
	}
	return d, nil
}

func (d *Directive) exportReport() export.Report {
	return export.Report{
		Number:     d.Number,
		WeekTag:    d.WeekTag,
		Phase:      d.Phase,
		Operations: d.Operations,
		WeekS:      d.WeekS,
		WeekS1:     d.WeekS1,
	}
}

// Draft renders d into the document writer's input.
func (g *Generator) Draft(d *Directive, sup Supplement) gdocs.Draft {
	c := layout.Content{
		Number:      d.Number,
		Issued:      g.now(),
		S:           d.S,
		S1:          d.S1,
		WeekTag:     d.WeekTag,
		Phase:       d.Phase,
		Operations:  d.Operations,
		Courses:     d.Courses,
		Dates:       d.Dates,
		Parade:      sup.Parade,
		Future:      sup.Future,
		Units:       sup.Units,
		NotExecuted: sup.NotExecuted,
	}
	return gdocs.Draft{
		Title:     d.Title,
		Preamble:  layout.Preamble(g.letterhead, c),
		Interlude: layout.Interlude(c),
		Closing:   layout.Closing(g.letterhead, c),
		WeekS:     d.WeekS,
		WeekS1:    d.WeekS1,
	}
}

// Export assembles the directive and returns only its backup.
func (g *Generator) Export(ctx context.Context, req Request) ([]byte, export.Kind, []model.Warning, error) {
	d, err := g.Preview(ctx, req)
	if err != nil {
		return nil, "", nil, err
	}
	data, kind, w, err := export.Backup(d.exportReport())
	return data, kind, append(d.Warnings, w...), err
}

// Generate assembles the directive, writes the document, records it in the
// session history and builds the backup.
func (g *Generator) Generate(ctx context.Context, req Request) (*Result, error) {
	d, err := g.Preview(ctx, req)
	if err != nil {
		return nil, err
	}
	appLog.Info("writing directive", "number", d.Number, "title", d.Title)

	id, err := g.writer.Create(ctx, g.Draft(d, req.Supplement))
	if err != nil {
		return nil, fmt.Errorf("report: directive %s: %w", d.Number, err)
	}

	res := &Result{
		DocumentID: id,
		URL:        gdocs.URL(id),
		History:    g.session.Record(req.Number, d.PeriodS1, id),
		Directive:  d,
		Warnings:   d.Warnings,
	}

	data, kind, w, err := export.Backup(d.exportReport())
	res.Warnings = append(res.Warnings, w...)
	if err != nil {
		appLog.Error("backup export failed", err, "number", d.Number)
		res.Warnings = append(res.Warnings, model.Warning{Scope: "export", Message: fmt.Sprintf("no backup produced: %v", err)})
		return res, nil
	}
	res.Backup, res.BackupKind = data, kind
	return res, nil
}

// Preload warms the cache with every (calendar, window) pair a directive
// for ref reads, one pooled load per window.
func (g *Generator) Preload(ctx context.Context, ref time.Time) []model.Warning {
	s, s1 := Weeks(ref)
	combined := model.Period{Start: s.Start, End: s1.End}
	grid := nonEmpty(g.cals.Primary.ID, g.cals.Commander.ID, g.cals.Planning.ID)

	loads := []struct {
		p   model.Period
		ids []string
	}{
		{s, grid},
		{s1, grid},
		{tags.WeekWindow(s), nonEmpty(g.cals.Week)},
		{tags.WeekWindow(s1), nonEmpty(g.cals.Week)},
		{tags.PhaseWindow(combined), nonEmpty(g.cals.Phase)},
		{tags.OperationsWindow(combined), nonEmpty(g.cals.Operations)},
		{bullets.Window(combined), nonEmpty(g.cals.Courses, g.cals.Holidays)},
		{combined, nonEmpty(g.cals.Holidays)},
	}

	var warnings []model.Warning
	for _, l := range loads {
		if len(l.ids) == 0 {
			continue
		}
		_, w := g.src.ListMany(ctx, l.ids, l.p)
		warnings = append(warnings, w...)
	}
	appLog.Info("calendars preloaded", "period", combined.Key(), "warnings", len(warnings))
	return warnings
}

func nonEmpty(ids ...string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id != "" {
			out = append(out, id)
		}
	}
	return out
}
