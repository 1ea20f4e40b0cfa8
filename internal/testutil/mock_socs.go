// Package testutil provides testing utilities for the SOCS calendar client.
package testutil

import (
	"encoding/xml"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/Sternrassler/socs-calendar-client/pkg/calendar"
)

// Wire layouts used by SOCS.
const (
	queryDateLayout = "02 Jan 06"
	xmlDateLayout   = "2/1/2006"
	allDay          = "All Day"
)

// DefaultCap is the number of events the mock returns before truncating.
const DefaultCap = 100

// MockSOCSResponse defines a fixed response for the mock SOCS endpoint.
type MockSOCSResponse struct {
	StatusCode int
	Body       string
	Delay      time.Duration
}

// MockSOCS is a configurable mock SOCS calendar server. By default it serves
// its event set filtered to the requested date range and truncated to Cap,
// the way the real endpoint does.
type MockSOCS struct {
	server *httptest.Server
	mu     sync.RWMutex

	events   []calendar.Event
	cap      int
	override func(w http.ResponseWriter, r *http.Request, rng calendar.DateRange) bool

	// Tracking
	RequestCount      int
	Ranges            []calendar.DateRange
	LastRequestHeader http.Header
	LastQuery         map[string]string
}

// NewMockSOCS creates a mock server holding events.
func NewMockSOCS(events []calendar.Event) *MockSOCS {
	mock := &MockSOCS{
		events: append([]calendar.Event(nil), events...),
		cap:    DefaultCap,
	}

	mock.server = httptest.NewServer(http.HandlerFunc(mock.serve))
	return mock
}

func (m *MockSOCS) serve(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	rng, err := parseRange(q.Get("startdate"), q.Get("enddate"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if q.Get("key") == "" {
		http.Error(w, "missing key", http.StatusForbidden)
		return
	}

	m.mu.Lock()
	m.RequestCount++
	m.Ranges = append(m.Ranges, rng)
	m.LastRequestHeader = r.Header.Clone()
	m.LastQuery = make(map[string]string, len(q))
	for k := range q {
		m.LastQuery[k] = q.Get(k)
	}
	override := m.override
	m.mu.Unlock()

	if override != nil && override(w, r, rng) {
		return
	}

	m.mu.RLock()
	events := m.query(rng)
	m.mu.RUnlock()

	w.Header().Set("Content-Type", "text/xml; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write(RenderXML(events))
}

func parseRange(start, end string) (calendar.DateRange, error) {
	s, err := time.Parse(queryDateLayout, start)
	if err != nil {
		return calendar.DateRange{}, fmt.Errorf("bad startdate %q", start)
	}
	e, err := time.Parse(queryDateLayout, end)
	if err != nil {
		return calendar.DateRange{}, fmt.Errorf("bad enddate %q", end)
	}
	return calendar.NewDateRange(calendar.DateOf(s), calendar.DateOf(e))
}

// query returns the events the server would send for rng: every event
// overlapping the range, ordered by start, truncated to the cap.
// Callers must hold m.mu.
func (m *MockSOCS) query(rng calendar.DateRange) []calendar.Event {
	var out []calendar.Event
	for _, ev := range m.events {
		if ev.Start.Date().After(rng.End) || ev.End.Date().Before(rng.Start) {
			continue
		}
		out = append(out, ev)
	}
	calendar.SortByStart(out)
	if len(out) > m.cap {
		out = out[:m.cap]
	}
	return out
}

// URL returns an endpoint URL carrying a school ID and API key.
func (m *MockSOCS) URL() string {
	return m.server.URL + "/socs/xml/SOCScalendar.ashx?ID=42&key=test-key"
}

// Close shuts down the mock server.
func (m *MockSOCS) Close() {
	m.server.Close()
}

// SetCap sets the truncation cap.
func (m *MockSOCS) SetCap(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cap = n
}

// SetEvents replaces the served event set.
func (m *MockSOCS) SetEvents(events []calendar.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append([]calendar.Event(nil), events...)
}

// SetResponse answers every request with resp.
func (m *MockSOCS) SetResponse(resp MockSOCSResponse) {
	m.FailRange(func(calendar.DateRange) bool { return true }, resp)
}

// FailRange answers requests whose range matches with resp; all other
// requests are served normally.
func (m *MockSOCS) FailRange(match func(calendar.DateRange) bool, resp MockSOCSResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.override = func(w http.ResponseWriter, r *http.Request, rng calendar.DateRange) bool {
		if !match(rng) {
			return false
		}
		if resp.Delay > 0 {
			select {
			case <-time.After(resp.Delay):
			case <-r.Context().Done():
				return true
			}
		}
		w.WriteHeader(resp.StatusCode)
		if resp.Body != "" {
			w.Write([]byte(resp.Body))
		}
		return true
	}
}

// Reset clears tracking counters and any fixed response.
func (m *MockSOCS) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RequestCount = 0
	m.Ranges = nil
	m.LastRequestHeader = nil
	m.LastQuery = nil
	m.override = nil
}

// GetRequestCount returns the number of requests made to the server.
func (m *MockSOCS) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.RequestCount
}

// GetRanges returns the ranges requested so far, in arrival order.
func (m *MockSOCS) GetRanges() []calendar.DateRange {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]calendar.DateRange(nil), m.Ranges...)
}

// GetLastQuery returns the query parameters of the latest request.
func (m *MockSOCS) GetLastQuery() map[string]string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.LastQuery
}

// GetLastRequestHeader returns the headers of the latest request.
func (m *MockSOCS) GetLastRequestHeader() http.Header {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.LastRequestHeader
}

type xmlEvent struct {
	EventID     string  `xml:"EventID"`
	StartDate   string  `xml:"StartDate"`
	EndDate     string  `xml:"EndDate"`
	StartTime   string  `xml:"StartTime"`
	EndTime     string  `xml:"EndTime"`
	Title       string  `xml:"Title"`
	Description *string `xml:"Description"`
	Location    string  `xml:"Location"`
	Category    string  `xml:"Category"`
}

type xmlCalendar struct {
	XMLName xml.Name   `xml:"CalendarEvents"`
	Events  []xmlEvent `xml:"CalendarEvent"`
}

// RenderXML encodes events as a SOCS calendar document.
func RenderXML(events []calendar.Event) []byte {
	doc := xmlCalendar{Events: make([]xmlEvent, 0, len(events))}
	for _, ev := range events {
		doc.Events = append(doc.Events, xmlEvent{
			EventID:     ev.ID,
			StartDate:   ev.Start.Date().Time().Format(xmlDateLayout),
			EndDate:     ev.End.Date().Time().Format(xmlDateLayout),
			StartTime:   wireClock(ev.Start),
			EndTime:     wireClock(ev.End),
			Title:       ev.Title,
			Description: ev.Description,
			Location:    ev.Location,
			Category:    strings.Join(ev.Categories, ","),
		})
	}

	out, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		panic(fmt.Sprintf("render SOCS XML: %v", err))
	}
	return append([]byte(xml.Header), out...)
}

func wireClock(t calendar.EventTime) string {
	if c, ok := t.Clock(); ok {
		return c.String()
	}
	return allDay
}

// GenerateEvents returns perDay events on each of days consecutive days from
// start, each one hour long starting at 08:00 plus its index.
func GenerateEvents(start calendar.Date, days, perDay int) []calendar.Event {
	events := make([]calendar.Event, 0, days*perDay)
	for d := 0; d < days; d++ {
		date := start.AddDays(d)
		for i := 0; i < perDay; i++ {
			clock := calendar.Clock{Hour: (8 + i) % 24}
			events = append(events, calendar.Event{
				ID:         fmt.Sprintf("%s-%03d", date.Format("20060102"), i),
				Title:      fmt.Sprintf("Event %d on %s", i, date),
				Location:   "Main Hall",
				Categories: []string{"Academic"},
				Start:      calendar.SpecificAt(date, clock),
				End:        calendar.SpecificAt(date, clock.Add(time.Hour)),
			})
		}
	}
	return events
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() MockSOCSResponse {
	return MockSOCSResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       "Internal server error",
	}
}

// NewForbiddenResponse creates a 403 response, as sent for a bad API key.
func NewForbiddenResponse() MockSOCSResponse {
	return MockSOCSResponse{
		StatusCode: http.StatusForbidden,
		Body:       "Invalid key",
	}
}

// NewMalformedResponse creates a 200 response whose event has an invalid date.
func NewMalformedResponse() MockSOCSResponse {
	return MockSOCSResponse{
		StatusCode: http.StatusOK,
		Body: `<?xml version="1.0" encoding="utf-8"?>
<CalendarEvents>
  <CalendarEvent>
    <EventID>bad-1</EventID>
    <StartDate>31/02/2025</StartDate>
    <EndDate>31/02/2025</EndDate>
    <StartTime>09:00</StartTime>
    <EndTime>10:00</EndTime>
    <Title>Impossible date</Title>
  </CalendarEvent>
</CalendarEvents>`,
	}
}
