// Package gcal serves source.Lister pages from the Google Calendar v3 API.
package gcal

import (
	"context"
	"fmt"

	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"dsigen/internal/model"
	"dsigen/internal/source"
)

// PageSize is the maxResults sent with every request.
const PageSize = 250

// Client lists expanded event instances, ordered by start time.
type Client struct {
	svc *calendar.Service
}

// New builds a Client. Credentials come from opts (for example
// option.WithCredentialsFile); acquiring them is the caller's job.
func New(ctx context.Context, opts ...option.ClientOption) (*Client, error) {
	svc, err := calendar.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("gcal: new service: %w", err)
	}
	return &Client{svc: svc}, nil
}

func (c *Client) ListPage(ctx context.Context, calendarID, timeMin, timeMax, pageToken string) (source.Page, error) {
	call := c.svc.Events.List(calendarID).
		TimeMin(timeMin).
		TimeMax(timeMax).
		SingleEvents(true).
		OrderBy("startTime").
		MaxResults(PageSize).
		Context(ctx)
	if pageToken != "" {
		call = call.PageToken(pageToken)
	}

	res, err := call.Do()
	if err != nil {
		return source.Page{}, err
	}

	page := source.Page{
		Events:        make([]model.CalendarEvent, 0, len(res.Items)),
		NextPageToken: res.NextPageToken,
	}
	for _, it := range res.Items {
		page.Events = append(page.Events, FromAPI(it))
	}
	return page, nil
}

// FromAPI converts an API event into the model, leaving SourceCalendar for
// the gateway to fill.
func FromAPI(ev *calendar.Event) model.CalendarEvent {
	if ev == nil {
		return model.CalendarEvent{}
	}
	return model.CalendarEvent{
		ID:          ev.Id,
		Summary:     ev.Summary,
		Description: ev.Description,
		Location:    ev.Location,
		Start:       eventTime(ev.Start),
		End:         eventTime(ev.End),
	}
}

func eventTime(t *calendar.EventDateTime) model.EventTime {
	if t == nil {
		return model.EventTime{}
	}
	if t.Date != "" {
		return model.EventTime{Date: t.Date}
	}
	return model.EventTime{DateTime: t.DateTime}
}
