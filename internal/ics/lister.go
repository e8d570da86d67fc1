// Package ics serves calendars published as ICS feeds through the same
// paginated interface as the calendar API.
package ics

import (
	"context"
	"fmt"
	"time"

	"dsigen/internal/source"
)

// Lister implements source.Lister for a fixed set of feeds. Each request
// downloads (or revalidates) the feed, expands it over the requested window
// and returns everything as a single page.
type Lister struct {
	fetcher  *Fetcher
	feeds    map[string]Feed
	location *time.Location
}

func NewLister(f *Fetcher, loc *time.Location, feeds ...Feed) *Lister {
	l := &Lister{fetcher: f, feeds: make(map[string]Feed, len(feeds)), location: loc}
	for _, fd := range feeds {
		l.feeds[fd.ID] = fd
	}
	return l
}

// Feeds lists the configured calendar IDs.
func (l *Lister) Feeds() []string {
	out := make([]string, 0, len(l.feeds))
	for id := range l.feeds {
		out = append(out, id)
	}
	return out
}

func (l *Lister) ListPage(ctx context.Context, calendarID, timeMin, timeMax, _ string) (source.Page, error) {
	feed, ok := l.feeds[calendarID]
	if !ok {
		return source.Page{}, fmt.Errorf("ics: unknown calendar %s", calendarID)
	}
	from, err := time.Parse(time.RFC3339, timeMin)
	if err != nil {
		return source.Page{}, fmt.Errorf("ics: timeMin: %w", err)
	}
	to, err := time.Parse(time.RFC3339, timeMax)
	if err != nil {
		return source.Page{}, fmt.Errorf("ics: timeMax: %w", err)
	}

	body, _, err := l.fetcher.Fetch(ctx, feed)
	if err != nil {
		return source.Page{}, err
	}
	vevents, err := Parse(feed.ID, body)
	if err != nil {
		return source.Page{}, fmt.Errorf("ics: parse %s: %w", feed.ID, err)
	}
	evs, err := Expand(vevents, Window{From: from, To: to, Location: l.location})
	if err != nil {
		return source.Page{}, err
	}
	return source.Page{Events: evs}, nil
}
