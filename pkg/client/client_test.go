package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/Sternrassler/socs-calendar-client/internal/testutil"
	"github.com/Sternrassler/socs-calendar-client/pkg/calendar"
	"github.com/Sternrassler/socs-calendar-client/pkg/decoder"
)

// newTestClient returns a client against endpoint without rate limiting.
func newTestClient(t *testing.T, endpoint string, mutate func(*Config)) *Client {
	t.Helper()

	cfg := DefaultConfig(endpoint)
	cfg.RateLimit = 0
	if mutate != nil {
		mutate(&cfg)
	}

	c, err := New(cfg)
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func jan(d int) calendar.Date {
	return calendar.NewDate(2025, time.January, d)
}

func TestNew_Validation(t *testing.T) {
	valid := DefaultConfig("https://www.socscms.com/socs/xml/SOCScalendar.ashx?ID=1&key=k")

	tests := []struct {
		name        string
		mutate      func(*Config)
		expectError bool
		errorMsg    string
	}{
		{
			name:        "valid config",
			mutate:      func(*Config) {},
			expectError: false,
		},
		{
			name:        "empty endpoint",
			mutate:      func(c *Config) { c.Endpoint = "" },
			expectError: true,
			errorMsg:    "endpoint is required",
		},
		{
			name:        "relative endpoint",
			mutate:      func(c *Config) { c.Endpoint = "/socs/xml/SOCScalendar.ashx" },
			expectError: true,
			errorMsg:    "endpoint must be an absolute http(s) URL",
		},
		{
			name:        "unsupported scheme",
			mutate:      func(c *Config) { c.Endpoint = "ftp://www.socscms.com/cal" },
			expectError: true,
			errorMsg:    "endpoint must be an absolute http(s) URL",
		},
		{
			name:        "empty user agent",
			mutate:      func(c *Config) { c.UserAgent = "" },
			expectError: true,
			errorMsg:    "user-agent is required",
		},
		{
			name:        "truncation cap too low",
			mutate:      func(c *Config) { c.TruncationCap = 0 },
			expectError: true,
			errorMsg:    "truncation_cap must be >= 1 (got 0)",
		},
		{
			name:        "concurrency too low",
			mutate:      func(c *Config) { c.MaxConcurrency = 0 },
			expectError: true,
			errorMsg:    "max_concurrency must be >= 1 (got 0)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			client, err := New(cfg)

			if tt.expectError {
				if err == nil {
					t.Errorf("Expected error but got nil")
					return
				}
				if tt.errorMsg != "" && err.Error() != tt.errorMsg {
					t.Errorf("Error message = %q, want %q", err.Error(), tt.errorMsg)
				}
			} else {
				if err != nil {
					t.Errorf("Unexpected error: %v", err)
					return
				}
				if client == nil {
					t.Error("Client is nil")
				}
			}
		})
	}
}

func TestDefaultConfig(t *testing.T) {
	endpoint := "https://www.socscms.com/socs/xml/SOCScalendar.ashx?ID=1&key=k"
	cfg := DefaultConfig(endpoint)

	if cfg.Endpoint != endpoint {
		t.Errorf("Endpoint = %q, want %q", cfg.Endpoint, endpoint)
	}
	if cfg.UserAgent == "" {
		t.Error("UserAgent should be set")
	}
	if cfg.Flags != DefaultInclusionFlags() {
		t.Errorf("Flags = %v, want defaults", cfg.Flags)
	}
	if cfg.TruncationCap != 100 {
		t.Errorf("TruncationCap = %d, want 100", cfg.TruncationCap)
	}
	if cfg.MaxConcurrency < 1 {
		t.Errorf("MaxConcurrency = %d, should be >= 1", cfg.MaxConcurrency)
	}
	if cfg.DedupePolicy != calendar.KeepFirst {
		t.Errorf("DedupePolicy = %q, want first", cfg.DedupePolicy)
	}
	if cfg.Retry.MaxAttempts != 1 {
		t.Errorf("Retry.MaxAttempts = %d, want 1", cfg.Retry.MaxAttempts)
	}
}

func TestBuildURL(t *testing.T) {
	rng := calendar.DateRange{Start: calendar.NewDate(2025, time.December, 1), End: calendar.NewDate(2026, time.January, 9)}
	got, err := BuildURL("https://www.socscms.com/socs/xml/SOCScalendar.ashx?ID=123&key=abc&startdate=stale", rng, DefaultInclusionFlags())
	if err != nil {
		t.Fatalf("BuildURL() failed: %v", err)
	}

	u, err := url.Parse(got)
	if err != nil {
		t.Fatalf("BuildURL() returned unparsable URL %q: %v", got, err)
	}
	q := u.Query()

	want := map[string]string{
		"ID":                 "123",
		"key":                "abc",
		"startdate":          "01 Dec 25",
		"enddate":            "09 Jan 26",
		"Sport":              "0",
		"CoCurricular":       "0",
		"IncludeInternal":    "1",
		"IncludeUnpublished": "1",
	}
	for k, v := range want {
		if q.Get(k) != v {
			t.Errorf("query %s = %q, want %q", k, q.Get(k), v)
		}
	}
	if len(q["startdate"]) != 1 {
		t.Errorf("startdate should be replaced, got %v", q["startdate"])
	}
}

func TestInclusionFlags_String(t *testing.T) {
	flags := InclusionFlags{Sport: true, Unpublished: true}
	want := "sport=1,cocurricular=0,internal=0,unpublished=1"
	if got := flags.String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestFetchRaw_RequestShape(t *testing.T) {
	mock := testutil.NewMockSOCS(testutil.GenerateEvents(jan(1), 3, 2))
	defer mock.Close()

	c := newTestClient(t, mock.URL(), func(cfg *Config) {
		cfg.UserAgent = "TestSchool/1.0 (it@example.com)"
		cfg.Flags = InclusionFlags{Sport: true, CoCurricular: true}
	})

	raw, err := c.FetchRaw(context.Background(), calendar.DateRange{Start: jan(1), End: jan(3)})
	if err != nil {
		t.Fatalf("FetchRaw() failed: %v", err)
	}
	if !strings.Contains(string(raw), "<CalendarEvent>") {
		t.Errorf("Expected SOCS XML body, got %q", raw)
	}

	header := mock.GetLastRequestHeader()
	if ua := header.Get("User-Agent"); ua != "TestSchool/1.0 (it@example.com)" {
		t.Errorf("User-Agent = %q", ua)
	}
	q := mock.GetLastQuery()
	if q["startdate"] != "01 Jan 25" || q["enddate"] != "03 Jan 25" {
		t.Errorf("dates = %q..%q", q["startdate"], q["enddate"])
	}
	if q["Sport"] != "1" || q["CoCurricular"] != "1" || q["IncludeInternal"] != "0" || q["IncludeUnpublished"] != "0" {
		t.Errorf("flags not sent as configured: %v", q)
	}
}

func TestFetchRange_Decodes(t *testing.T) {
	events := testutil.GenerateEvents(jan(10), 2, 3)
	mock := testutil.NewMockSOCS(events)
	defer mock.Close()

	c := newTestClient(t, mock.URL(), nil)
	got, err := c.FetchRange(context.Background(), calendar.DateRange{Start: jan(10), End: jan(11)})
	if err != nil {
		t.Fatalf("FetchRange() failed: %v", err)
	}
	if len(got) != len(events) {
		t.Fatalf("Expected %d events, got %d", len(events), len(got))
	}
	for i := range events {
		if got[i].ID != events[i].ID || got[i].Start != events[i].Start || got[i].End != events[i].End {
			t.Errorf("event %d = %+v, want %+v", i, got[i], events[i])
		}
	}
}

func TestFetchRange_TransportErrors(t *testing.T) {
	tests := []struct {
		name     string
		response testutil.MockSOCSResponse
		class    ErrorClass
		status   int
	}{
		{"forbidden", testutil.NewForbiddenResponse(), ErrorClassClient, http.StatusForbidden},
		{"server error", testutil.NewServerErrorResponse(), ErrorClassServer, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := testutil.NewMockSOCS(nil)
			defer mock.Close()
			mock.SetResponse(tt.response)

			c := newTestClient(t, mock.URL(), nil)
			_, err := c.FetchRange(context.Background(), calendar.DateRange{Start: jan(1), End: jan(2)})

			var terr *TransportError
			if !errors.As(err, &terr) {
				t.Fatalf("Expected *TransportError, got %T: %v", err, err)
			}
			if terr.ErrorClass != tt.class {
				t.Errorf("ErrorClass = %q, want %q", terr.ErrorClass, tt.class)
			}
			if terr.StatusCode != tt.status {
				t.Errorf("StatusCode = %d, want %d", terr.StatusCode, tt.status)
			}
			if terr.Range.Start != jan(1) || terr.Range.End != jan(2) {
				t.Errorf("Range = %s", terr.Range)
			}
		})
	}
}

func TestFetchRange_NetworkError(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	endpoint := server.URL + "/cal?key=k"
	server.Close()

	c := newTestClient(t, endpoint, nil)
	_, err := c.FetchRange(context.Background(), calendar.DateRange{Start: jan(1), End: jan(1)})

	var terr *TransportError
	if !errors.As(err, &terr) {
		t.Fatalf("Expected *TransportError, got %T: %v", err, err)
	}
	if terr.ErrorClass != ErrorClassNetwork {
		t.Errorf("ErrorClass = %q, want network", terr.ErrorClass)
	}
}

func TestFetchRange_MalformedDocument(t *testing.T) {
	mock := testutil.NewMockSOCS(nil)
	defer mock.Close()
	mock.SetResponse(testutil.NewMalformedResponse())

	c := newTestClient(t, mock.URL(), nil)
	_, err := c.FetchRange(context.Background(), calendar.DateRange{Start: jan(1), End: jan(1)})

	var perr *decoder.ParseError
	if !errors.As(err, &perr) {
		t.Fatalf("Expected *decoder.ParseError, got %T: %v", err, err)
	}
	if perr.EventID != "bad-1" || perr.Field != "StartDate" {
		t.Errorf("ParseError = %+v", perr)
	}
}

func TestFetchRaw_RetriesServerErrors(t *testing.T) {
	mock := testutil.NewMockSOCS(testutil.GenerateEvents(jan(1), 1, 1))
	defer mock.Close()

	failures := 0
	mock.FailRange(func(calendar.DateRange) bool {
		failures++
		return failures <= 2
	}, testutil.NewServerErrorResponse())

	c := newTestClient(t, mock.URL(), func(cfg *Config) {
		cfg.Retry = fastRetry(3)
	})

	events, err := c.FetchRange(context.Background(), calendar.DateRange{Start: jan(1), End: jan(1)})
	if err != nil {
		t.Fatalf("FetchRange() failed after retries: %v", err)
	}
	if len(events) != 1 {
		t.Errorf("Expected 1 event, got %d", len(events))
	}
	if got := mock.GetRequestCount(); got != 3 {
		t.Errorf("Expected 3 requests, got %d", got)
	}
}

func TestFetchRaw_NoRetryByDefault(t *testing.T) {
	mock := testutil.NewMockSOCS(nil)
	defer mock.Close()
	mock.SetResponse(testutil.NewServerErrorResponse())

	c := newTestClient(t, mock.URL(), nil)
	_, err := c.FetchRaw(context.Background(), calendar.DateRange{Start: jan(1), End: jan(1)})
	if err == nil {
		t.Fatal("Expected error, got nil")
	}
	if errors.Is(err, ErrRetryExhausted) {
		t.Error("Single-attempt config should not report exhausted retries")
	}
	if got := mock.GetRequestCount(); got != 1 {
		t.Errorf("Expected 1 request, got %d", got)
	}
}

func TestFetchEvents_SplitsTruncatedRange(t *testing.T) {
	// 31 days x 4 events = 124, above the cap of 100.
	events := testutil.GenerateEvents(jan(1), 31, 4)
	mock := testutil.NewMockSOCS(events)
	defer mock.Close()

	c := newTestClient(t, mock.URL(), nil)
	got, err := c.FetchEvents(context.Background(), calendar.DateRange{Start: jan(1), End: jan(31)})
	if err != nil {
		t.Fatalf("FetchEvents() failed: %v", err)
	}

	if len(got) != len(events) {
		t.Errorf("Expected %d events, got %d", len(events), len(got))
	}
	for i := 1; i < len(got); i++ {
		if got[i-1].Start.Compare(got[i].Start) > 0 {
			t.Fatalf("events not sorted at %d", i)
		}
	}
	if n := mock.GetRequestCount(); n != 3 {
		t.Errorf("Expected 3 requests (full range + two halves), got %d", n)
	}
}

func TestFetchEvents_FailsWholeCallOnSubRangeError(t *testing.T) {
	mock := testutil.NewMockSOCS(testutil.GenerateEvents(jan(1), 31, 4))
	defer mock.Close()
	mock.FailRange(func(rng calendar.DateRange) bool {
		return rng.Start == jan(17)
	}, testutil.NewServerErrorResponse())

	c := newTestClient(t, mock.URL(), nil)
	events, err := c.FetchEvents(context.Background(), calendar.DateRange{Start: jan(1), End: jan(31)})

	if events != nil {
		t.Errorf("Expected no partial results, got %d events", len(events))
	}
	var terr *TransportError
	if !errors.As(err, &terr) {
		t.Fatalf("Expected *TransportError, got %T: %v", err, err)
	}
	if terr.Range.Start != jan(17) {
		t.Errorf("Error should name the failing sub-range, got %s", terr.Range)
	}
}

func TestPackageFetchEvents(t *testing.T) {
	events := testutil.GenerateEvents(jan(5), 2, 2)
	mock := testutil.NewMockSOCS(events)
	defer mock.Close()

	got, err := FetchEvents(context.Background(), mock.URL(), jan(1), jan(31))
	if err != nil {
		t.Fatalf("FetchEvents() failed: %v", err)
	}
	if len(got) != 4 {
		t.Errorf("Expected 4 events, got %d", len(got))
	}

	if _, err := FetchEvents(context.Background(), mock.URL(), jan(31), jan(1)); !errors.Is(err, calendar.ErrInvalidRange) {
		t.Errorf("Expected ErrInvalidRange for reversed range, got %v", err)
	}
}

func TestPackageFetchRawAndDecode(t *testing.T) {
	mock := testutil.NewMockSOCS(testutil.GenerateEvents(jan(5), 1, 2))
	defer mock.Close()

	raw, err := FetchRaw(context.Background(), mock.URL(), jan(5), jan(5))
	if err != nil {
		t.Fatalf("FetchRaw() failed: %v", err)
	}
	events, err := Decode(raw)
	if err != nil {
		t.Fatalf("Decode() failed: %v", err)
	}
	if len(events) != 2 {
		t.Errorf("Expected 2 events, got %d", len(events))
	}
}

func TestSetHTTPClient(t *testing.T) {
	mock := testutil.NewMockSOCS(nil)
	defer mock.Close()

	c := newTestClient(t, mock.URL(), nil)
	called := false
	c.SetHTTPClient(&http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
		called = true
		return http.DefaultTransport.RoundTrip(r)
	})})

	if _, err := c.FetchRaw(context.Background(), calendar.DateRange{Start: jan(1), End: jan(1)}); err != nil {
		t.Fatalf("FetchRaw() failed: %v", err)
	}
	if !called {
		t.Error("custom HTTP client was not used")
	}
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func TestFetchRaw_NetworkErrorRedactsKey(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	endpoint := server.URL + "/cal?ID=1&key=super-secret"
	server.Close()

	c := newTestClient(t, endpoint, nil)
	_, err := c.FetchRaw(context.Background(), calendar.DateRange{Start: jan(1), End: jan(1)})
	if err == nil {
		t.Fatal("Expected error, got nil")
	}
	if strings.Contains(err.Error(), "super-secret") {
		t.Errorf("Error leaks API key: %v", err)
	}
}
