package client

import (
	"errors"
	"fmt"

	"github.com/Sternrassler/socs-calendar-client/pkg/calendar"
)

// Common errors returned by the client.
var (
	// ErrRetryExhausted is returned when all retry attempts are exhausted.
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	// ErrContextCancelled is returned when the context is cancelled during retry.
	ErrContextCancelled = errors.New("context cancelled")
)

// ErrorClass represents a classification of transport errors.
type ErrorClass string

const (
	// ErrorClassClient represents 4xx client errors (bad key, unknown school).
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx server errors.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassNetwork represents network/timeout errors and unreadable bodies.
	ErrorClassNetwork ErrorClass = "network"
)

// TransportError reports a failure to obtain a response body from SOCS.
type TransportError struct {
	Range      calendar.DateRange
	StatusCode int
	ErrorClass ErrorClass
	Message    string
	Err        error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("SOCS %s error (status %d) for %s: %s: %v",
			e.ErrorClass, e.StatusCode, e.Range, e.Message, e.Err)
	}
	return fmt.Sprintf("SOCS %s error (status %d) for %s: %s",
		e.ErrorClass, e.StatusCode, e.Range, e.Message)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *TransportError) Unwrap() error {
	return e.Err
}

// shouldRetry determines if an error should be retried based on its classification.
func shouldRetry(errorClass ErrorClass) bool {
	switch errorClass {
	case ErrorClassClient:
		// A wrong key or school ID will not fix itself
		return false
	case ErrorClassServer, ErrorClassNetwork:
		return true
	default:
		return false
	}
}

// classOf extracts the error class from a *TransportError, if any.
func classOf(err error) ErrorClass {
	var terr *TransportError
	if errors.As(err, &terr) {
		return terr.ErrorClass
	}
	return ""
}
