// Package pagination fetches complete SOCS result sets by splitting date ranges.
//
// SOCS silently truncates a response once it holds a fixed number of events and
// offers no page token or total count. A response whose size reaches that cap is
// therefore treated as incomplete: the range is bisected and each half fetched
// again, recursively, until every response is below the cap or the range is a
// single day.
//
// Example usage:
//
//	fetcher := pagination.NewRangeFetcher(socsClient, pagination.DefaultConfig())
//	events, err := fetcher.FetchAll(ctx, calendar.DateRange{Start: start, End: end})
//
// The range fetcher:
//   - Fetches the whole range first
//   - Bisects ranges whose response reaches Config.TruncationCap
//   - Runs sibling halves concurrently (bounded by Config.MaxConcurrency)
//   - Concatenates leaf results in range order, deduplicates by event ID and
//     sorts by start time
//   - Fails the whole call on the first branch error (no partial results)
package pagination
