package store

import (
	"time"

	"github.com/Sternrassler/socs-calendar-client/pkg/calendar"
)

// Entry is a stored fetch result.
type Entry struct {
	// Range is the range the events were fetched for.
	Range calendar.DateRange `json:"range"`

	// Events is the merged, deduplicated and sorted result.
	Events []calendar.Event `json:"events"`

	// FetchedAt is when the fetch completed.
	FetchedAt time.Time `json:"fetched_at"`

	// Expires is when the entry becomes stale.
	Expires time.Time `json:"expires"`
}

// NewEntry creates an entry fetched now and valid for ttl.
func NewEntry(rng calendar.DateRange, events []calendar.Event, ttl time.Duration) *Entry {
	now := time.Now()
	return &Entry{
		Range:     rng,
		Events:    events,
		FetchedAt: now,
		Expires:   now.Add(ttl),
	}
}

// IsExpired returns true if the entry has expired.
func (e *Entry) IsExpired() bool {
	return time.Now().After(e.Expires)
}

// TTL returns the time until expiration.
// Returns 0 if already expired.
func (e *Entry) TTL() time.Duration {
	ttl := time.Until(e.Expires)
	if ttl < 0 {
		return 0
	}
	return ttl
}

// Age returns how long ago the entry was fetched.
func (e *Entry) Age() time.Duration {
	return time.Since(e.FetchedAt)
}
