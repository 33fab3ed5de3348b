package calendar

import (
	"context"
	"fmt"
	"strings"
	"time"

	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"github.com/bowerhall/mira/internal/logger"
)

// GoogleCalendar backs BusySource and BookingSink with a Google Calendar
// accessed through a service account.
type GoogleCalendar struct {
	svc        *gcal.Service
	calendarID string
}

func NewGoogleCalendar(ctx context.Context, credentialsFile, calendarID string) (*GoogleCalendar, error) {
	svc, err := gcal.NewService(ctx,
		option.WithCredentialsFile(credentialsFile),
		option.WithScopes(gcal.CalendarScope),
	)
	if err != nil {
		return nil, fmt.Errorf("calendar service: %w", err)
	}
	return &GoogleCalendar{svc: svc, calendarID: calendarID}, nil
}

// Busy returns the vessel's occupied intervals within the working day. Events
// are matched by vessel name in the summary, one shared calendar per fleet.
func (g *GoogleCalendar) Busy(ctx context.Context, day time.Time, vessel string) ([]Interval, error) {
	dayStart := day.Add(dayStartHour * time.Hour)
	dayEnd := day.Add(dayEndHour * time.Hour)

	events, err := g.svc.Events.List(g.calendarID).
		TimeMin(dayStart.Format(time.RFC3339)).
		TimeMax(dayEnd.Format(time.RFC3339)).
		SingleEvents(true).
		OrderBy("startTime").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}

	var busy []Interval
	for _, ev := range events.Items {
		if vessel != "" && !strings.Contains(ev.Summary, vessel) {
			continue
		}
		start, err1 := parseEventTime(ev.Start)
		end, err2 := parseEventTime(ev.End)
		if err1 != nil || err2 != nil {
			continue
		}
		busy = append(busy, Interval{Start: start, End: end})
	}
	return busy, nil
}

func (g *GoogleCalendar) Create(ctx context.Context, b Booking) error {
	event := &gcal.Event{
		Summary:     fmt.Sprintf("%s - %s", b.Vessel, b.ClientName),
		Description: fmt.Sprintf("Client: %s\nPhone: %s", b.ClientName, b.ClientPhone),
		Start:       &gcal.EventDateTime{DateTime: b.Start.Format(time.RFC3339)},
		End:         &gcal.EventDateTime{DateTime: b.End.Format(time.RFC3339)},
	}

	created, err := g.svc.Events.Insert(g.calendarID, event).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}

	logger.Info("booking recorded", "vessel", b.Vessel, "start", b.Start, "event", created.Id)
	return nil
}

func parseEventTime(t *gcal.EventDateTime) (time.Time, error) {
	if t == nil {
		return time.Time{}, fmt.Errorf("missing event time")
	}
	if t.DateTime != "" {
		return time.Parse(time.RFC3339, t.DateTime)
	}
	return time.Parse("2006-01-02", t.Date)
}
