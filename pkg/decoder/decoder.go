// Package decoder turns one SOCS calendar XML response into calendar events.
//
// The decoder knows nothing about pagination or date ranges: it maps a single
// document field by field and fails the whole document on the first event
// that does not match the schema.
package decoder

import (
	"bytes"
	"encoding/xml"
	"errors"
	"strings"
	"time"

	"github.com/Sternrassler/socs-calendar-client/pkg/calendar"
)

// SOCS wire layouts.
const (
	// DateLayout matches "10/12/2025" and "1/2/2025" (day first).
	DateLayout = "2/1/2006"

	allDayMarker = "all day"
)

// Used when an event has a start clock but a blank EndTime element.
const defaultDuration = time.Hour

var (
	errMissing    = errors.New("required element missing")
	errBadClock   = errors.New("expected HH:MM or All Day")
	errEmptyInput = errors.New("empty document")
)

type xmlCalendar struct {
	Events []xmlEvent `xml:"CalendarEvent"`
}

// Pointer fields distinguish an absent element from an empty one.
type xmlEvent struct {
	EventID     *string `xml:"EventID"`
	StartDate   *string `xml:"StartDate"`
	EndDate     *string `xml:"EndDate"`
	StartTime   *string `xml:"StartTime"`
	EndTime     *string `xml:"EndTime"`
	Title       *string `xml:"Title"`
	Description *string `xml:"Description"`
	Location    *string `xml:"Location"`
	Category    *string `xml:"Category"`
}

// Decode parses a raw SOCS calendar document. Any structural or field-level
// mismatch yields a *ParseError; no event is ever silently skipped.
func Decode(raw []byte) ([]calendar.Event, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, &ParseError{Err: errEmptyInput}
	}

	var doc xmlCalendar
	if err := xml.Unmarshal(raw, &doc); err != nil {
		return nil, &ParseError{Err: err}
	}

	events := make([]calendar.Event, 0, len(doc.Events))
	for _, x := range doc.Events {
		ev, err := decodeEvent(x)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, nil
}

func decodeEvent(x xmlEvent) (calendar.Event, error) {
	id := strings.TrimSpace(deref(x.EventID))
	if id == "" {
		return calendar.Event{}, &ParseError{Field: "EventID", Err: errMissing}
	}
	fail := func(field string, value *string, err error) (calendar.Event, error) {
		return calendar.Event{}, &ParseError{EventID: id, Field: field, Value: deref(value), Err: err}
	}

	if x.Title == nil {
		return fail("Title", nil, errMissing)
	}

	startDate, err := parseDate(x.StartDate)
	if err != nil {
		return fail("StartDate", x.StartDate, err)
	}
	endDate, err := parseDate(x.EndDate)
	if err != nil {
		return fail("EndDate", x.EndDate, err)
	}

	start, err := parseEventTime(startDate, deref(x.StartTime))
	if err != nil {
		return fail("StartTime", x.StartTime, err)
	}

	var end calendar.EventTime
	switch {
	case x.EndTime == nil:
		if start.IsAllDay() {
			end = calendar.AllDayAt(endDate)
		} else {
			end = start
		}
	case strings.TrimSpace(*x.EndTime) == "":
		if clock, ok := start.Clock(); ok {
			end = calendar.SpecificAt(endDate, clock.Add(defaultDuration))
		} else {
			end = calendar.AllDayAt(endDate)
		}
	default:
		end, err = parseEventTime(endDate, *x.EndTime)
		if err != nil {
			return fail("EndTime", x.EndTime, err)
		}
	}

	return calendar.Event{
		ID:          id,
		Title:       strings.TrimSpace(*x.Title),
		Description: optional(x.Description),
		Location:    strings.TrimSpace(deref(x.Location)),
		Categories:  splitCategories(deref(x.Category)),
		Start:       start,
		End:         end,
	}, nil
}

func parseDate(s *string) (calendar.Date, error) {
	if s == nil {
		return calendar.Date{}, errMissing
	}
	t, err := time.Parse(DateLayout, strings.TrimSpace(*s))
	if err != nil {
		return calendar.Date{}, err
	}
	return calendar.DateOf(t), nil
}

// parseEventTime treats a blank value or "All Day" as an all-day marker.
func parseEventTime(date calendar.Date, s string) (calendar.EventTime, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, allDayMarker) {
		return calendar.AllDayAt(date), nil
	}
	clock, err := calendar.ParseClock(s)
	if err != nil {
		return calendar.EventTime{}, errBadClock
	}
	return calendar.SpecificAt(date, clock), nil
}

func splitCategories(s string) []string {
	categories := []string{}
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			categories = append(categories, part)
		}
	}
	return categories
}

func optional(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
