package calendar

import (
	"errors"
	"fmt"
)

// ErrInvalidRange is returned when a range ends before it starts.
var ErrInvalidRange = errors.New("invalid date range")

// DateRange is an inclusive span of calendar days. Start is never after End.
type DateRange struct {
	Start Date `json:"start"`
	End   Date `json:"end"`
}

// NewDateRange returns the inclusive range [start, end].
func NewDateRange(start, end Date) (DateRange, error) {
	if start.After(end) {
		return DateRange{}, fmt.Errorf("%w: start %s is after end %s", ErrInvalidRange, start, end)
	}
	return DateRange{Start: start, End: end}, nil
}

// Days returns the number of days covered by r, counting both ends.
func (r DateRange) Days() int {
	return r.Start.DaysUntil(r.End) + 1
}

// IsSingleDay reports whether r covers exactly one day.
func (r DateRange) IsSingleDay() bool {
	return r.Start == r.End
}

// Contains reports whether d falls inside r.
func (r DateRange) Contains(d Date) bool {
	return !d.Before(r.Start) && !d.After(r.End)
}

// Split bisects r into [Start, mid] and [mid+1, End], where mid lies halfway
// between the ends (rounded down). The halves do not overlap and together
// cover r exactly. ok is false for a single-day range, which cannot be split.
func (r DateRange) Split() (left, right DateRange, ok bool) {
	if r.IsSingleDay() {
		return DateRange{}, DateRange{}, false
	}
	mid := r.Start.AddDays(r.Start.DaysUntil(r.End) / 2)
	left = DateRange{Start: r.Start, End: mid}
	right = DateRange{Start: mid.AddDays(1), End: r.End}
	return left, right, true
}

func (r DateRange) String() string {
	return r.Start.String() + ".." + r.End.String()
}
