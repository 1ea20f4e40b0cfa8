package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/Sternrassler/socs-calendar-client/internal/testutil"
	"github.com/Sternrassler/socs-calendar-client/pkg/calendar"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd("test")
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestFetchCommand_JSON(t *testing.T) {
	events := testutil.GenerateEvents(jan(1), 31, 4)
	mock := testutil.NewMockSOCS(events)
	defer mock.Close()

	t.Setenv("SOCS_ENDPOINT", mock.URL())
	t.Setenv("SOCS_RATE_LIMIT", "0")

	out, err := runCLI(t, "fetch", "--start", "2025-01-01", "--end", "2025-01-31")
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}

	var got []calendar.Event
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("Invalid JSON output: %v\n%s", err, out)
	}
	if len(got) != len(events) {
		t.Errorf("Expected %d events, got %d", len(events), len(got))
	}
}

func TestFetchCommand_Table(t *testing.T) {
	mock := testutil.NewMockSOCS(testutil.GenerateEvents(jan(6), 1, 2))
	defer mock.Close()

	t.Setenv("SOCS_ENDPOINT", mock.URL())

	out, err := runCLI(t, "fetch", "--start", "2025-01-06", "--end", "2025-01-06", "--format", "table")
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 3 {
		t.Fatalf("Expected header + 2 rows, got %d lines:\n%s", len(lines), out)
	}
	if !strings.HasPrefix(lines[0], "START") {
		t.Errorf("Unexpected header %q", lines[0])
	}
	if !strings.Contains(lines[1], "06 Jan 2025 at 08:00") {
		t.Errorf("Unexpected first row %q", lines[1])
	}
}

func TestFetchCommand_Errors(t *testing.T) {
	mock := testutil.NewMockSOCS(nil)
	defer mock.Close()
	t.Setenv("SOCS_ENDPOINT", mock.URL())

	tests := []struct {
		name string
		args []string
	}{
		{"bad start", []string{"fetch", "--start", "Jan 1"}},
		{"reversed range", []string{"fetch", "--start", "2025-02-01", "--end", "2025-01-01"}},
		{"bad format", []string{"fetch", "--start", "2025-01-01", "--format", "xml"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := runCLI(t, tt.args...); err == nil {
				t.Error("Expected error, got nil")
			}
		})
	}
}

func TestParseRange_Defaults(t *testing.T) {
	rng, err := parseRange("", "", 30)
	if err != nil {
		t.Fatalf("parseRange() failed: %v", err)
	}
	if rng.Start != today() || rng.Days() != 30 {
		t.Errorf("default range = %s, want 30 days from today", rng)
	}

	rng, err = parseRange("2025-01-10", "", 7)
	if err != nil {
		t.Fatalf("parseRange() failed: %v", err)
	}
	if rng.Start != jan(10) || rng.End != jan(16) {
		t.Errorf("range = %s, want 2025-01-10..2025-01-16", rng)
	}
}
