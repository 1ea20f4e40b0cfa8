package store

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/Sternrassler/socs-calendar-client/pkg/calendar"
)

const keyPrefix = "socs:events"

// Key identifies a stored result.
type Key struct {
	// Endpoint is the full SOCS endpoint, including school ID and API key.
	Endpoint string

	// Range is the inclusive date range that was fetched.
	Range calendar.DateRange

	// Flags is the rendered inclusion flag set the result was fetched with.
	Flags string
}

// String generates a deterministic Redis key.
//
// Example:
//
//	socs:events:3f2a9c0b1d4e5f60:2025-01-01:2025-01-31:sport=0,cocurricular=0,internal=1,unpublished=1
func (k Key) String() string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(k.Endpoint)))
	parts := []string{
		keyPrefix,
		hex.EncodeToString(sum[:])[:16],
		k.Range.Start.String(),
		k.Range.End.String(),
	}
	if k.Flags != "" {
		parts = append(parts, k.Flags)
	}
	return strings.Join(parts, ":")
}
