// Package source fetches complete event lists for a calendar and period
// from a paginated calendar backend.
package source

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"

	"dsigen/internal/cache"
	"dsigen/internal/dates"
	appLog "dsigen/internal/log"
	"dsigen/internal/model"
)

const (
	// DefaultWorkers bounds concurrent calendar fetches in ListMany.
	DefaultWorkers = 8
	// maxPages stops a backend that keeps returning continuation tokens.
	maxPages = 1000
)

// ErrPaginationLoop is returned when a backend repeats a page token.
var ErrPaginationLoop = errors.New("source: page token repeated")

// Page is one response page from a calendar backend.
type Page struct {
	Events        []model.CalendarEvent
	NextPageToken string
}

// Lister is the calendar backend. timeMin and timeMax are RFC3339 UTC
// bounds, timeMax exclusive. Events are expected in ascending start order.
type Lister interface {
	ListPage(ctx context.Context, calendarID, timeMin, timeMax, pageToken string) (Page, error)
}

// Fetcher is what the directive builders depend on.
type Fetcher interface {
	List(ctx context.Context, calendarID string, p model.Period) ([]model.CalendarEvent, error)
}

// Gateway implements Fetcher over a Lister, with caching and a bounded
// worker pool for multi-calendar loads.
type Gateway struct {
	lister  Lister
	store   cache.Store
	workers int
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithCache sets the event-list cache. The default is cache.Nop.
func WithCache(s cache.Store) Option {
	return func(g *Gateway) {
		if s != nil {
			g.store = s
		}
	}
}

// WithWorkers sets the ListMany pool width.
func WithWorkers(n int) Option {
	return func(g *Gateway) {
		if n > 0 {
			g.workers = n
		}
	}
}

func NewGateway(l Lister, opts ...Option) *Gateway {
	g := &Gateway{
		lister:  l,
		store:   cache.Nop{},
		workers: DefaultWorkers,
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

// List returns every event of calendarID whose window intersects p,
// following page tokens in order until exhausted. Each event is tagged with
// calendarID as its source calendar.
func (g *Gateway) List(ctx context.Context, calendarID string, p model.Period) ([]model.CalendarEvent, error) {
	key := cache.Key(calendarID, p)
	if evs, ok := g.store.Get(ctx, key); ok {
		appLog.Debug("events cache hit", "calendar", calendarID, "period", p.Key(), "count", len(evs))
		return evs, nil
	}

	timeMin := dates.UTCStart(p.Start)
	timeMax := dates.UTCEndExclusive(p.End)

	var (
		out   []model.CalendarEvent
		token string
		seen  = make(map[string]struct{})
	)
	for page := 0; ; page++ {
		if page >= maxPages {
			return nil, fmt.Errorf("source: calendar %s exceeded %d pages", calendarID, maxPages)
		}
		res, err := g.lister.ListPage(ctx, calendarID, timeMin, timeMax, token)
		if err != nil {
			return nil, fmt.Errorf("source: list %s page %d: %w", calendarID, page, err)
		}
		for _, ev := range res.Events {
			ev.SourceCalendar = calendarID
			out = append(out, ev)
		}
		if res.NextPageToken == "" {
			break
		}
		if _, dup := seen[res.NextPageToken]; dup {
			return nil, fmt.Errorf("%w: calendar %s", ErrPaginationLoop, calendarID)
		}
		seen[res.NextPageToken] = struct{}{}
		token = res.NextPageToken
	}

	appLog.Debug("events fetched", "calendar", calendarID, "period", p.Key(), "count", len(out))
	g.store.Set(ctx, key, out)
	return out, nil
}

// ListMany fetches several calendars in parallel. A failing calendar yields
// an empty list and a warning; it never affects its siblings.
func (g *Gateway) ListMany(ctx context.Context, calendarIDs []string, p model.Period) (map[string][]model.CalendarEvent, []model.Warning) {
	results := make([][]model.CalendarEvent, len(calendarIDs))
	errs := make([]error, len(calendarIDs))

	var eg errgroup.Group
	eg.SetLimit(g.workers)
	for i, id := range calendarIDs {
		eg.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					errs[i] = fmt.Errorf("source: panic fetching %s: %v", id, r)
				}
			}()
			results[i], errs[i] = g.List(ctx, id, p)
			return nil
		})
	}
	_ = eg.Wait()

	out := make(map[string][]model.CalendarEvent, len(calendarIDs))
	var warnings []model.Warning
	for i, id := range calendarIDs {
		if errs[i] != nil {
			appLog.Error("calendar fetch failed", errs[i], "calendar", id, "period", p.Key())
			warnings = append(warnings, model.Warning{
				Scope:   "calendar:" + id,
				Message: fmt.Sprintf("could not load calendar %s: %v", id, errs[i]),
			})
			out[id] = []model.CalendarEvent{}
			continue
		}
		if results[i] == nil {
			results[i] = []model.CalendarEvent{}
		}
		out[id] = results[i]
	}
	return out, warnings
}

// SortByStart orders events by their raw start string, stable for ties.
func SortByStart(evs []model.CalendarEvent) {
	sort.SliceStable(evs, func(i, j int) bool {
		return evs[i].Start.Raw() < evs[j].Start.Raw()
	})
}

// Mux routes calendar IDs to the Lister that serves them, falling back to a
// default Lister.
type Mux struct {
	routes   map[string]Lister
	fallback Lister
}

func NewMux(fallback Lister) *Mux {
	return &Mux{routes: make(map[string]Lister), fallback: fallback}
}

// Handle routes calendarID to l.
func (m *Mux) Handle(calendarID string, l Lister) {
	m.routes[calendarID] = l
}

func (m *Mux) ListPage(ctx context.Context, calendarID, timeMin, timeMax, pageToken string) (Page, error) {
	l, ok := m.routes[calendarID]
	if !ok {
		l = m.fallback
	}
	if l == nil {
		return Page{}, fmt.Errorf("source: no backend for calendar %s", calendarID)
	}
	return l.ListPage(ctx, calendarID, timeMin, timeMax, pageToken)
}
