package calendar

import (
	"context"
	"testing"
	"time"
)

type stubBusy struct {
	intervals []Interval
	err       error
}

func (s *stubBusy) Busy(ctx context.Context, day time.Time, vessel string) ([]Interval, error) {
	return s.intervals, s.err
}

type recordingSink struct {
	bookings []Booking
}

func (r *recordingSink) Create(ctx context.Context, b Booking) error {
	r.bookings = append(r.bookings, b)
	return nil
}

func day(t *testing.T) time.Time {
	t.Helper()
	d, err := time.ParseInLocation("2006-01-02", "2026-07-17", time.UTC)
	if err != nil {
		t.Fatal(err)
	}
	return d
}

func at(t *testing.T, hour int) time.Time {
	return day(t).Add(time.Duration(hour) * time.Hour)
}

func TestAvailabilityEmptyDay(t *testing.T) {
	svc := NewService(&stubBusy{}, nil, time.UTC)

	slots, err := svc.Availability(context.Background(), "2026-07-17", 3, "Sea Ray")
	if err != nil {
		t.Fatal(err)
	}
	if len(slots) != 1 {
		t.Fatalf("expected one free slot, got %d", len(slots))
	}
	if slots[0].Start.Hour() != dayStartHour || slots[0].End.Hour() != dayEndHour {
		t.Errorf("expected the whole working day, got %v", slots[0])
	}
}

func TestAvailabilityInvertsBusyIntervals(t *testing.T) {
	busy := &stubBusy{intervals: []Interval{
		{Start: at(t, 10), End: at(t, 12)},
		{Start: at(t, 15), End: at(t, 17)},
	}}
	svc := NewService(busy, nil, time.UTC)

	slots, err := svc.Availability(context.Background(), "2026-07-17", 2, "Sea Ray")
	if err != nil {
		t.Fatal(err)
	}
	if len(slots) != 3 {
		t.Fatalf("expected 3 free slots, got %d: %v", len(slots), slots)
	}

	expect := [][2]int{{8, 10}, {12, 15}, {17, 20}}
	for i, e := range expect {
		if slots[i].Start.Hour() != e[0] || slots[i].End.Hour() != e[1] {
			t.Errorf("slot %d: expected %d-%d, got %d-%d", i, e[0], e[1], slots[i].Start.Hour(), slots[i].End.Hour())
		}
	}
}

func TestAvailabilityFiltersShortGaps(t *testing.T) {
	busy := &stubBusy{intervals: []Interval{
		{Start: at(t, 9), End: at(t, 12)},
	}}
	svc := NewService(busy, nil, time.UTC)

	slots, err := svc.Availability(context.Background(), "2026-07-17", 2, "Sea Ray")
	if err != nil {
		t.Fatal(err)
	}
	// the 8-9 gap is too short for a 2 hour charter
	if len(slots) != 1 {
		t.Fatalf("expected 1 slot, got %d: %v", len(slots), slots)
	}
	if slots[0].Start.Hour() != 12 {
		t.Errorf("expected the afternoon slot, got %v", slots[0])
	}
}

func TestAvailabilityNilBusySource(t *testing.T) {
	svc := NewService(nil, nil, time.UTC)

	slots, err := svc.Availability(context.Background(), "2026-07-17", 1, "Sea Ray")
	if err != nil {
		t.Fatal(err)
	}
	if len(slots) != 1 {
		t.Fatalf("no calendar means the day is free, got %v", slots)
	}
}

func TestAvailabilityBadDate(t *testing.T) {
	svc := NewService(&stubBusy{}, nil, time.UTC)
	if _, err := svc.Availability(context.Background(), "next friday", 2, "Sea Ray"); err == nil {
		t.Fatal("expected an error for an unparseable date")
	}
}

func TestBookRecords(t *testing.T) {
	sink := &recordingSink{}
	svc := NewService(nil, sink, time.UTC)

	start, end, err := svc.ParseWindow("2026-07-17", "15:00", 3)
	if err != nil {
		t.Fatal(err)
	}
	if end.Sub(start) != 3*time.Hour {
		t.Errorf("expected a 3 hour window, got %v", end.Sub(start))
	}

	err = svc.Book(context.Background(), Booking{ClientName: "Dana", Vessel: "Sea Ray", Start: start, End: end})
	if err != nil {
		t.Fatal(err)
	}
	if len(sink.bookings) != 1 {
		t.Fatalf("expected the booking recorded, got %d", len(sink.bookings))
	}
}

func TestBookNilSink(t *testing.T) {
	svc := NewService(nil, nil, time.UTC)
	if err := svc.Book(context.Background(), Booking{}); err != nil {
		t.Fatal("nil sink must be tolerated")
	}
}

func TestSlotDisplayText(t *testing.T) {
	s := Slot{Start: at(t, 12), End: at(t, 15)}
	if s.DisplayText() != "between 12 and 15" {
		t.Errorf("unexpected display text: %s", s.DisplayText())
	}
}
