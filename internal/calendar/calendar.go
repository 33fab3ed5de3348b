// Package calendar computes charter availability and records bookings. The
// busy-slot source is an interface so tests (and deployments without a
// calendar) can swap it out.
package calendar

import (
	"context"
	"fmt"
	"time"
)

// Working day boundaries for departures.
const (
	dayStartHour = 8
	dayEndHour   = 20
)

// Interval is a half-open busy window [Start, End).
type Interval struct {
	Start time.Time
	End   time.Time
}

// Slot is a free window long enough for the requested duration.
type Slot struct {
	Start time.Time
	End   time.Time
}

func (s Slot) DisplayText() string {
	return fmt.Sprintf("between %d and %d", s.Start.Hour(), s.End.Hour())
}

// Booking is a confirmed reservation to record.
type Booking struct {
	ClientName  string
	ClientPhone string
	Vessel      string
	Start       time.Time
	End         time.Time
}

// BusySource lists busy intervals for one vessel on one day.
type BusySource interface {
	Busy(ctx context.Context, day time.Time, vessel string) ([]Interval, error)
}

// BookingSink records a confirmed booking.
type BookingSink interface {
	Create(ctx context.Context, b Booking) error
}

type Service struct {
	busy BusySource
	sink BookingSink
	loc  *time.Location
}

func NewService(busy BusySource, sink BookingSink, loc *time.Location) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{busy: busy, sink: sink, loc: loc}
}

// Availability inverts the vessel's busy intervals over the working day and
// keeps the free ranges that fit durationHours.
func (s *Service) Availability(ctx context.Context, date string, durationHours int, vessel string) ([]Slot, error) {
	day, err := time.ParseInLocation("2006-01-02", date, s.loc)
	if err != nil {
		return nil, fmt.Errorf("parse date %q: %w", date, err)
	}
	if durationHours <= 0 {
		durationHours = 1
	}

	// no busy source means no external calendar: the whole day is free
	var busy []Interval
	if s.busy != nil {
		busy, err = s.busy.Busy(ctx, day, vessel)
		if err != nil {
			return nil, fmt.Errorf("list busy slots: %w", err)
		}
	}

	dayStart := day.Add(dayStartHour * time.Hour)
	dayEnd := day.Add(dayEndHour * time.Hour)
	need := time.Duration(durationHours) * time.Hour

	var free []Slot
	cursor := dayStart

	for _, b := range busy {
		if b.Start.After(cursor) && b.Start.Sub(cursor) >= need {
			free = append(free, Slot{Start: cursor, End: b.Start})
		}
		if b.End.After(cursor) {
			cursor = b.End
		}
	}
	if cursor.Before(dayEnd) && dayEnd.Sub(cursor) >= need {
		free = append(free, Slot{Start: cursor, End: dayEnd})
	}

	return free, nil
}

// Book parses the requested window and records it. The calendar failing must
// not sink the booking flow, so callers treat errors as advisory.
func (s *Service) Book(ctx context.Context, b Booking) error {
	if s.sink == nil {
		return nil
	}
	return s.sink.Create(ctx, b)
}

// ParseWindow turns "2026-07-14" + "15:00" + 3 into the concrete interval.
func (s *Service) ParseWindow(date, startTime string, durationHours int) (time.Time, time.Time, error) {
	start, err := time.ParseInLocation("2006-01-02 15:04", date+" "+startTime, s.loc)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("parse booking time %q %q: %w", date, startTime, err)
	}
	return start, start.Add(time.Duration(durationHours) * time.Hour), nil
}
