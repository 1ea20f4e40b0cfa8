package calendar

import (
	"fmt"
	"slices"
	"strings"
)

// DedupePolicy selects which copy of an event survives deduplication.
type DedupePolicy string

const (
	// KeepFirst keeps the first copy seen. Merges visit earlier sub-ranges first,
	// so this keeps the snapshot from the earliest range that returned the event.
	KeepFirst DedupePolicy = "first"

	// KeepLast keeps the field values of the last copy seen.
	KeepLast DedupePolicy = "last"
)

// ParseDedupePolicy parses "first" or "last".
func ParseDedupePolicy(s string) (DedupePolicy, error) {
	switch p := DedupePolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case KeepFirst, KeepLast:
		return p, nil
	case "":
		return KeepFirst, nil
	default:
		return "", fmt.Errorf("unknown dedupe policy %q", s)
	}
}

// Dedupe returns events with at most one entry per ID. Entries keep the
// position of the first occurrence; policy decides whose fields are kept.
// Deduplicating an already unique slice returns an equal slice.
func Dedupe(events []Event, policy DedupePolicy) []Event {
	out := make([]Event, 0, len(events))
	index := make(map[string]int, len(events))

	for _, ev := range events {
		if i, seen := index[ev.ID]; seen {
			if policy == KeepLast {
				out[i] = ev
			}
			continue
		}
		index[ev.ID] = len(out)
		out = append(out, ev)
	}
	return out
}

// SortByStart sorts events in place by start time. The sort is stable, so
// events with equal starts keep their encounter order.
func SortByStart(events []Event) {
	slices.SortStableFunc(events, func(a, b Event) int {
		return a.Start.Compare(b.Start)
	})
}

// Merge concatenates batches in order, deduplicates by ID and sorts by start.
func Merge(policy DedupePolicy, batches ...[]Event) []Event {
	total := 0
	for _, b := range batches {
		total += len(b)
	}
	all := make([]Event, 0, total)
	for _, b := range batches {
		all = append(all, b...)
	}

	merged := Dedupe(all, policy)
	SortByStart(merged)
	return merged
}
