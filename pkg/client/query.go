package client

import (
	"fmt"
	"net/url"

	"github.com/Sternrassler/socs-calendar-client/pkg/calendar"
)

// QueryDateLayout is the SOCS date format for startdate/enddate, e.g. "10 Dec 25".
const QueryDateLayout = "02 Jan 06"

// SOCS query parameter names.
const (
	paramStartDate          = "startdate"
	paramEndDate            = "enddate"
	paramSport              = "Sport"
	paramCoCurricular       = "CoCurricular"
	paramIncludeInternal    = "IncludeInternal"
	paramIncludeUnpublished = "IncludeUnpublished"
)

// InclusionFlags are SOCS's own event filters, sent with every request.
//
// Unpublished events are included by default. Whether a given API key should
// see them is the calendar owner's access-control decision; the flag is kept
// explicit here so every call site states what it asks for.
type InclusionFlags struct {
	Sport        bool `yaml:"sport" json:"sport"`
	CoCurricular bool `yaml:"co_curricular" json:"co_curricular"`
	Internal     bool `yaml:"internal" json:"internal"`
	Unpublished  bool `yaml:"unpublished" json:"unpublished"`
}

// DefaultInclusionFlags returns the standard query: no sport or co-curricular
// fixtures, internal and unpublished events included.
func DefaultInclusionFlags() InclusionFlags {
	return InclusionFlags{
		Sport:        false,
		CoCurricular: false,
		Internal:     true,
		Unpublished:  true,
	}
}

// String renders the flags compactly, e.g. "sport=0,cocurricular=0,internal=1,unpublished=1".
func (f InclusionFlags) String() string {
	return fmt.Sprintf("sport=%s,cocurricular=%s,internal=%s,unpublished=%s",
		bit(f.Sport), bit(f.CoCurricular), bit(f.Internal), bit(f.Unpublished))
}

// BuildURL returns the request URL for rng. The endpoint keeps its own query
// (the school ID and API key); date and flag parameters are added or replaced.
func BuildURL(endpoint string, rng calendar.DateRange, flags InclusionFlags) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("parse endpoint: %w", err)
	}

	q := u.Query()
	q.Set(paramStartDate, rng.Start.Format(QueryDateLayout))
	q.Set(paramEndDate, rng.End.Format(QueryDateLayout))
	q.Set(paramSport, bit(flags.Sport))
	q.Set(paramCoCurricular, bit(flags.CoCurricular))
	q.Set(paramIncludeInternal, bit(flags.Internal))
	q.Set(paramIncludeUnpublished, bit(flags.Unpublished))
	u.RawQuery = q.Encode()

	return u.String(), nil
}

func bit(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
