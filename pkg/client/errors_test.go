package client

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/Sternrassler/socs-calendar-client/pkg/calendar"
)

var testRange = calendar.DateRange{
	Start: calendar.NewDate(2025, time.January, 1),
	End:   calendar.NewDate(2025, time.January, 31),
}

func TestShouldRetry(t *testing.T) {
	tests := []struct {
		name       string
		errorClass ErrorClass
		expected   bool
	}{
		{
			name:       "client error should not retry",
			errorClass: ErrorClassClient,
			expected:   false,
		},
		{
			name:       "server error should retry",
			errorClass: ErrorClassServer,
			expected:   true,
		},
		{
			name:       "network error should retry",
			errorClass: ErrorClassNetwork,
			expected:   true,
		},
		{
			name:       "empty error class should not retry",
			errorClass: "",
			expected:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := shouldRetry(tt.errorClass)
			if result != tt.expected {
				t.Errorf("shouldRetry(%q) = %v, want %v", tt.errorClass, result, tt.expected)
			}
		})
	}
}

func TestTransportError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *TransportError
		expected string
	}{
		{
			name: "error with wrapped error",
			err: &TransportError{
				Range:      testRange,
				ErrorClass: ErrorClassNetwork,
				Message:    "request failed",
				Err:        errors.New("connection refused"),
			},
			expected: "SOCS network error (status 0) for 2025-01-01..2025-01-31: request failed: connection refused",
		},
		{
			name: "error without wrapped error",
			err: &TransportError{
				Range:      testRange,
				StatusCode: 403,
				ErrorClass: ErrorClassClient,
				Message:    "403 Forbidden",
			},
			expected: "SOCS client error (status 403) for 2025-01-01..2025-01-31: 403 Forbidden",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.expected {
				t.Errorf("Error() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestTransportError_Unwrap(t *testing.T) {
	inner := errors.New("inner error")
	err := &TransportError{ErrorClass: ErrorClassNetwork, Err: inner}

	if !errors.Is(err, inner) {
		t.Error("errors.Is should find the wrapped error")
	}
	if (&TransportError{}).Unwrap() != nil {
		t.Error("Unwrap() of a bare error should be nil")
	}
}

func TestClassOf(t *testing.T) {
	server := &TransportError{StatusCode: 502, ErrorClass: ErrorClassServer}

	tests := []struct {
		name     string
		err      error
		expected ErrorClass
	}{
		{"transport error", server, ErrorClassServer},
		{"wrapped transport error", fmt.Errorf("outer: %w", server), ErrorClassServer},
		{"plain error", errors.New("boom"), ""},
		{"nil", nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classOf(tt.err); got != tt.expected {
				t.Errorf("classOf() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestClassifyStatus(t *testing.T) {
	tests := []struct {
		status   int
		expected ErrorClass
	}{
		{200, ""},
		{204, ""},
		{304, ErrorClassClient},
		{400, ErrorClassClient},
		{403, ErrorClassClient},
		{404, ErrorClassClient},
		{429, ErrorClassClient},
		{500, ErrorClassServer},
		{503, ErrorClassServer},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.status), func(t *testing.T) {
			if got := classifyStatus(tt.status); got != tt.expected {
				t.Errorf("classifyStatus(%d) = %q, want %q", tt.status, got, tt.expected)
			}
		})
	}
}
