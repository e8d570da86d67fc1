package report

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dsigen/internal/cache"
	"dsigen/internal/export"
	"dsigen/internal/gdocs"
	"dsigen/internal/layout"
	appLog "dsigen/internal/log"
	"dsigen/internal/model"
	"dsigen/internal/table"
)

func TestMain(m *testing.M) {
	appLog.Nop()
	m.Run()
}

type fakeSource struct {
	events map[string][]model.CalendarEvent
	errs   map[string]error

	mu    sync.Mutex
	calls map[string]int
}

func (f *fakeSource) List(_ context.Context, calendarID string, p model.Period) ([]model.CalendarEvent, error) {
	f.mu.Lock()
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	f.calls[calendarID+"@"+p.Key()]++
	f.mu.Unlock()
	if err := f.errs[calendarID]; err != nil {
		return nil, err
	}
	out := make([]model.CalendarEvent, 0, len(f.events[calendarID]))
	for _, ev := range f.events[calendarID] {
		ev.SourceCalendar = calendarID
		out = append(out, ev)
	}
	return out, nil
}

func (f *fakeSource) ListMany(ctx context.Context, ids []string, p model.Period) (map[string][]model.CalendarEvent, []model.Warning) {
	out := make(map[string][]model.CalendarEvent, len(ids))
	var warnings []model.Warning
	for _, id := range ids {
		evs, err := f.List(ctx, id, p)
		if err != nil {
			warnings = append(warnings, model.Warning{Scope: "calendar:" + id, Message: err.Error()})
			continue
		}
		out[id] = evs
	}
	return out, warnings
}

type fakeWriter struct {
	drafts []gdocs.Draft
	err    error
}

func (w *fakeWriter) Create(_ context.Context, d gdocs.Draft) (string, error) {
	if w.err != nil {
		return "", w.err
	}
	w.drafts = append(w.drafts, d)
	return fmt.Sprintf("doc-%d", len(w.drafts)), nil
}

func allDay(summary, start, end string) model.CalendarEvent {
	return model.CalendarEvent{
		ID:      summary + start,
		Summary: summary,
		Start:   model.EventTime{Date: start},
		End:     model.EventTime{Date: end},
	}
}

func timed(summary, start, end string) model.CalendarEvent {
	return model.CalendarEvent{
		ID:      summary + start,
		Summary: summary,
		Start:   model.EventTime{DateTime: start},
		End:     model.EventTime{DateTime: end},
	}
}

func testCalendars() Calendars {
	return Calendars{
		Primary:    table.Calendar{ID: "s3"},
		Commander:  table.Calendar{ID: "cmt"},
		Planning:   table.Calendar{ID: "pgi"},
		Courses:    "cursos",
		Holidays:   "datas",
		Week:       "si",
		Phase:      "fase",
		Operations: "operacoes",
	}
}

func juneSource() *fakeSource {
	return &fakeSource{events: map[string][]model.CalendarEvent{
		"s3": {
			timed("TFM", "2025-06-10T06:30:00-03:00", "2025-06-10T08:00:00-03:00"),
			allDay("Expediente", "2025-06-17", "2025-06-18"),
		},
		"cmt": {
			timed("Reunião do Cmdo", "2025-06-12T09:00:00-03:00", "2025-06-12T10:00:00-03:00"),
		},
		"si": {
			allDay("SI 07", "2025-06-09", "2025-06-16"),
			allDay("SI 08", "2025-06-16", "2025-06-23"),
		},
		"fase":      {allDay("Período IIQ", "2025-05-01", "2025-07-01")},
		"operacoes": {allDay("Op Ágata (glo)", "2025-05-20", "2025-07-01")},
		"cursos":    {allDay("Estágio de Tiro", "2025-06-16", "2025-06-21")},
		"datas": {
			allDay("Feriado Municipal", "2025-06-12", "2025-06-13"),
			allDay("Corpus Christi", "2025-06-19", "2025-06-20"),
		},
	}}
}

func refDate() time.Time {
	return time.Date(2025, 6, 11, 10, 0, 0, 0, time.UTC)
}

func newGenerator(src Source, w DocumentWriter) (*Generator, *Session) {
	session := NewSession(cache.NewMemory(time.Minute))
	g := NewGenerator(src, session, w, testCalendars(), layout.Letterhead{Tag: "S3/24º BIS", City: "São Luís, MA"},
		WithClock(refDate))
	return g, session
}

func TestWeeks(t *testing.T) {
	s, s1 := Weeks(refDate())
	assert.Equal(t, "2025-06-09..2025-06-15", s.Key())
	assert.Equal(t, "2025-06-16..2025-06-22", s1.Key())
}

func TestPreview(t *testing.T) {
	src := juneSource()
	g, _ := newGenerator(src, &fakeWriter{})

	d, err := g.Preview(context.Background(), Request{Number: 7, RefDate: refDate(), Commander: true})
	require.NoError(t, err)

	assert.Empty(t, d.Warnings)
	assert.Equal(t, "007", d.Number)
	assert.Equal(t, "DIRETRIZ SEMANAL DE INSTRUÇÃO 007 (16 JUN 25 a 22 JUN 25)", d.Title)
	assert.Equal(t, "07/08", d.WeekTag)
	assert.Equal(t, "IIQ", d.Phase)
	assert.Equal(t, []string{" 1) Op Ágata (GLO) - __ Militares - _____________"}, d.Operations)
	assert.Equal(t, []string{"16 JUN 25 a 20 JUN 25 - Estágio de Tiro - _____________"}, d.Courses)
	assert.Equal(t, []string{"12 JUN 25 - Feriado Municipal", "19 JUN 25 - Corpus Christi"}, d.Dates)
	assert.Equal(t, []string{"2025-06-12", "2025-06-19"}, d.Holidays)

	require.Len(t, d.WeekS, 7)
	assert.Equal(t, model.TableRow{Date: "09 JUN (SEG)"}, d.WeekS[0])
	assert.Equal(t, model.TableRow{Date: "10 JUN (TER)", Time: "06:30", Activity: "TFM", Responsible: "S3"}, d.WeekS[1])
	assert.Equal(t, model.TableRow{Date: "12 JUN (QUI)", Time: "09:00", Activity: "Reunião do Cmdo", Responsible: "Cmdo", Special: true}, d.WeekS[3])
	assert.False(t, d.WeekS[4].Special)
	assert.True(t, d.WeekS[5].Special, "saturday")
	assert.True(t, d.WeekS[6].Special, "sunday")

	require.Len(t, d.WeekS1, 7)
	assert.Equal(t, model.TableRow{Date: "17 JUN (TER)", Time: "D", Activity: "Expediente", Responsible: "S3"}, d.WeekS1[1])
	assert.True(t, d.WeekS1[3].Special, "corpus christi")

	// Planning was not selected.
	for call := range src.calls {
		assert.NotContains(t, call, "pgi@")
	}
}

func TestPreviewMissingTags(t *testing.T) {
	src := juneSource()
	delete(src.events, "si")
	delete(src.events, "fase")
	src.errs = map[string]error{"operacoes": errors.New("forbidden")}
	g, _ := newGenerator(src, &fakeWriter{})

	d, err := g.Preview(context.Background(), Request{Number: 12, RefDate: refDate()})
	require.NoError(t, err)

	assert.Equal(t, "-1/-2", d.WeekTag)
	assert.Equal(t, DefaultPhase, d.Phase)
	assert.Empty(t, d.Operations)

	scopes := make([]string, 0, len(d.Warnings))
	for _, w := range d.Warnings {
		scopes = append(scopes, w.Scope)
	}
	assert.Equal(t, []string{"week:S", "week:S+1", "operations"}, scopes)
}

func TestPreviewRejectsNumber(t *testing.T) {
	for _, n := range []int{0, -3, 1000} {
		src := juneSource()
		g, _ := newGenerator(src, &fakeWriter{})
		_, err := g.Preview(context.Background(), Request{Number: n, RefDate: refDate()})
		assert.ErrorIs(t, err, ErrInvalidNumber, "number %d", n)
		assert.Empty(t, src.calls)
	}
}

func TestGenerate(t *testing.T) {
	w := &fakeWriter{}
	g, session := newGenerator(juneSource(), w)

	res, err := g.Generate(context.Background(), Request{
		Number:  7,
		RefDate: refDate(),
		Supplement: Supplement{
			Parade: layout.Parade{Purpose: "Entrega de boinas"},
			Units:  "1ª Cia: rancho",
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "doc-1", res.DocumentID)
	assert.Equal(t, "https://docs.google.com/document/d/doc-1/edit", res.URL)
	assert.Equal(t, export.KindXLSX, res.BackupKind)
	assert.NotEmpty(t, res.Backup)
	assert.Empty(t, res.Warnings)

	require.Len(t, w.drafts, 1)
	draft := w.drafts[0]
	assert.Equal(t, res.Directive.Title, draft.Title)
	assert.Contains(t, draft.Preamble, "DSI Nº 007 - S3/24º BIS\n11 JUN 25\n")
	assert.Contains(t, draft.Preamble, "(QTS nº 007 - SI: 07/08 - FASE: IIQ)")
	assert.Contains(t, draft.Preamble, " 1) 16 JUN 25 a 20 JUN 25 - Estágio de Tiro - _____________")
	assert.Equal(t, "\n b. Semana (S+1) - 16 JUN 25 a 22 JUN 25\n", draft.Interlude)
	assert.Contains(t, draft.Closing, " 1) Finalidade: Entrega de boinas")
	assert.Contains(t, draft.Closing, " 1. 1ª Cia: rancho")
	assert.Contains(t, draft.Closing, "São Luís, MA, 11 de junho de 2025")
	assert.Equal(t, res.Directive.WeekS, draft.WeekS)

	history := session.History()
	require.Len(t, history, 1)
	assert.Equal(t, res.History, history[0])
	assert.Equal(t, 7, history[0].Number)
	assert.Equal(t, "16 JUN 25 a 22 JUN 25", history[0].Period)
	assert.Equal(t, "doc-1", history[0].DocumentID)
	assert.NotEmpty(t, history[0].ID)
}

func TestGenerateWriterFailure(t *testing.T) {
	boom := errors.New("quota exceeded")
	g, session := newGenerator(juneSource(), &fakeWriter{err: boom})

	_, err := g.Generate(context.Background(), Request{Number: 7, RefDate: refDate()})
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "directive 007")
	assert.Empty(t, session.History())
}

func TestExport(t *testing.T) {
	g, session := newGenerator(juneSource(), &fakeWriter{})

	data, kind, warnings, err := g.Export(context.Background(), Request{Number: 7, RefDate: refDate()})
	require.NoError(t, err)
	assert.Empty(t, warnings)
	assert.Equal(t, export.KindXLSX, kind)
	assert.Equal(t, export.KindXLSX, export.DetectKind(data))
	assert.Empty(t, session.History())
}

func TestPreloadCoversPreview(t *testing.T) {
	preloaded := juneSource()
	g, _ := newGenerator(preloaded, &fakeWriter{})
	assert.Empty(t, g.Preload(context.Background(), refDate()))

	previewed := juneSource()
	g, _ = newGenerator(previewed, &fakeWriter{})
	_, err := g.Preview(context.Background(), Request{Number: 1, RefDate: refDate(), Commander: true, Planning: true})
	require.NoError(t, err)

	require.NotEmpty(t, previewed.calls)
	for call := range previewed.calls {
		assert.Contains(t, preloaded.calls, call)
	}
}

func TestSessionHistory(t *testing.T) {
	s := NewSession(nil)
	for i := 1; i <= HistoryLimit+3; i++ {
		s.Record(i, "p", fmt.Sprintf("doc-%d", i))
	}
	h := s.History()
	require.Len(t, h, HistoryLimit)
	assert.Equal(t, HistoryLimit+3, h[0].Number)
	assert.Equal(t, 4, h[len(h)-1].Number)
	assert.NotEqual(t, h[0].ID, h[1].ID)
}

func TestSessionRefresh(t *testing.T) {
	mem := cache.NewMemory(time.Minute)
	s := NewSession(mem)
	mem.Set(context.Background(), "k", []model.CalendarEvent{{ID: "a"}})
	require.Equal(t, 1, mem.Len())

	require.NoError(t, s.Refresh(context.Background()))
	assert.Equal(t, 0, mem.Len())
}
