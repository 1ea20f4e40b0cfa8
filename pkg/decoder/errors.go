package decoder

import (
	"fmt"
	"strings"
)

// ParseError reports a SOCS response that does not match the expected schema.
// It is never transient and is not retried.
type ParseError struct {
	// EventID identifies the offending event, empty for document-level failures.
	EventID string

	// Field is the XML element that failed, empty for document-level failures.
	Field string

	// Value is the raw text that failed to parse, if any.
	Value string

	Err error
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	var b strings.Builder
	b.WriteString("parse SOCS calendar")
	if e.EventID != "" {
		fmt.Fprintf(&b, ": event %s", e.EventID)
	}
	if e.Field != "" {
		fmt.Fprintf(&b, ": %s %q", e.Field, e.Value)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *ParseError) Unwrap() error {
	return e.Err
}
