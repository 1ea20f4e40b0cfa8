package calendar

import (
	"encoding/json"
	"fmt"
	"time"
)

// Clock is a time of day with minute precision.
type Clock struct {
	Hour   int
	Minute int
}

// ClockLayout is the layout SOCS uses for times of day.
const ClockLayout = "15:04"

// ParseClock parses a time of day in ClockLayout form.
func ParseClock(s string) (Clock, error) {
	t, err := time.Parse(ClockLayout, s)
	if err != nil {
		return Clock{}, err
	}
	return Clock{Hour: t.Hour(), Minute: t.Minute()}, nil
}

// Add returns c shifted by d, wrapping around midnight.
func (c Clock) Add(d time.Duration) Clock {
	const day = 24 * time.Hour
	offset := (c.offset() + d) % day
	if offset < 0 {
		offset += day
	}
	return Clock{Hour: int(offset / time.Hour), Minute: int(offset % time.Hour / time.Minute)}
}

func (c Clock) offset() time.Duration {
	return time.Duration(c.Hour)*time.Hour + time.Duration(c.Minute)*time.Minute
}

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

// EventTime is either an all-day marker for a date or a specific moment on a
// date. Times are institution-local and carry no zone.
type EventTime struct {
	date   Date
	clock  Clock
	allDay bool
}

// AllDayAt returns an all-day EventTime on d.
func AllDayAt(d Date) EventTime {
	return EventTime{date: d, allDay: true}
}

// SpecificAt returns an EventTime at clock c on d.
func SpecificAt(d Date, c Clock) EventTime {
	return EventTime{date: d, clock: c}
}

// Date returns the day of t.
func (t EventTime) Date() Date { return t.date }

// IsAllDay reports whether t is an all-day marker.
func (t EventTime) IsAllDay() bool { return t.allDay }

// Clock returns the time of day and true for a specific time, or false for all-day.
func (t EventTime) Clock() (Clock, bool) {
	if t.allDay {
		return Clock{}, false
	}
	return t.clock, true
}

// Compare orders event times by date, then all-day before specific times on
// the same date, then by clock.
func (t EventTime) Compare(other EventTime) int {
	if c := t.date.Compare(other.date); c != 0 {
		return c
	}
	switch {
	case t.allDay && other.allDay:
		return 0
	case t.allDay:
		return -1
	case other.allDay:
		return 1
	}
	return cmpInt(int(t.clock.offset()), int(other.clock.offset()))
}

func (t EventTime) String() string {
	if t.allDay {
		return t.date.Format("02 Jan 2006") + " (All Day)"
	}
	return t.date.Format("02 Jan 2006") + " at " + t.clock.String()
}

type eventTimeJSON struct {
	Date   Date   `json:"date"`
	Time   string `json:"time,omitempty"`
	AllDay bool   `json:"all_day,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (t EventTime) MarshalJSON() ([]byte, error) {
	out := eventTimeJSON{Date: t.date, AllDay: t.allDay}
	if !t.allDay {
		out.Time = t.clock.String()
	}
	return json.Marshal(out)
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *EventTime) UnmarshalJSON(data []byte) error {
	var in eventTimeJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	if in.AllDay || in.Time == "" {
		*t = AllDayAt(in.Date)
		return nil
	}
	c, err := ParseClock(in.Time)
	if err != nil {
		return fmt.Errorf("parse event time %q: %w", in.Time, err)
	}
	*t = SpecificAt(in.Date, c)
	return nil
}

// Event is a single SOCS calendar entry. Two events with the same ID are the
// same event, whatever their other fields say.
type Event struct {
	ID          string    `json:"event_id"`
	Title       string    `json:"title"`
	Description *string   `json:"description,omitempty"`
	Location    string    `json:"location"`
	Categories  []string  `json:"categories"`
	Start       EventTime `json:"start"`
	End         EventTime `json:"end"`
}
