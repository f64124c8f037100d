package schedule

import (
	"slices"
	"time"

	log "github.com/sirupsen/logrus"
)

// sweep is the state threaded through one composition. It is owned by a single goroutine.
type sweep struct {
	cursor time.Time
	limit  time.Time
	index  int
	output []CalendarEntry
}

// Compose interleaves the busy entries with free slots covering timeRange.
// sortedEntries must be sorted by start (see SortEntries). Free slots are at most one
// TimeStep long; a gap shorter than a step produces one slot that ends exactly at the next busy entry,
// and the last slot is cut at timeRange.Max.
// Candidate slots are filtered by the policy and may be clamped to now.
func Compose(timeRange TimeRange, sortedEntries []CalendarEntry, policy BookingPolicy, now time.Time) []CalendarEntry {
	step := policy.TimeStep
	if step <= 0 {
		log.Warnf("booking time step %s is not positive, skipping free slot synthesis", step)
		return sortedEntries
	}

	s := sweep{cursor: timeRange.Min, limit: timeRange.Max}
	for s.cursor.Before(timeRange.Max) {
		if s.index < len(sortedEntries) && !sortedEntries[s.index].Event.Usable() {
			// malformed entries are dropped without consuming time
			s.index++
			continue
		}

		if s.index == len(sortedEntries) {
			s.offer(policy, s.cursor.Add(step), now)
			continue
		}

		entry := sortedEntries[s.index]
		gap := ceilSecond(entry.Event.Start.Sub(s.cursor))
		switch {
		case gap >= step:
			s.offer(policy, s.cursor.Add(step), now)
		case gap > 0:
			s.offer(policy, s.cursor.Add(gap), now)
		default:
			s.output = append(s.output, entry)
			// jump to the busy end, not by its duration, so straddling and nested entries leave no hole
			if end := *entry.Event.End; end.After(s.cursor) {
				s.cursor = end
			}
			s.index++
		}
	}
	return s.output
}

// offer advances the cursor to end and appends the free slot [cursor, end) if the policy admits it.
// Slots never extend past the end of the range.
func (s *sweep) offer(policy BookingPolicy, end time.Time, now time.Time) {
	if end.After(s.limit) {
		end = s.limit
	}
	start := s.cursor
	s.cursor = end
	if start, ok := policy.admit(start, end, now); ok {
		s.output = append(s.output, newFreeEntry(start, end))
	}
}

// SortEntries sorts entries by start ascending, keeping the relative order of equal starts.
// Entries without a start sort first.
func SortEntries(entries []CalendarEntry) {
	slices.SortStableFunc(entries, func(a, b CalendarEntry) int {
		as, bs := a.Event.Start, b.Event.Start
		switch {
		case as == nil && bs == nil:
			return 0
		case as == nil:
			return -1
		case bs == nil:
			return 1
		}
		return as.Compare(*bs)
	})
}

func ceilSecond(d time.Duration) time.Duration {
	r := d % time.Second
	switch {
	case r > 0:
		return d + time.Second - r
	case r < 0:
		return d - r
	}
	return d
}

// dedupeEntries drops busy entries repeating the calendar and start of an earlier entry.
func dedupeEntries(sorted []CalendarEntry) []CalendarEntry {
	type key struct {
		calendarID string
		start      int64
	}
	seen := make(map[key]struct{}, len(sorted))
	out := sorted[:0]
	for _, e := range sorted {
		if e.Event.Start != nil {
			k := key{e.CalendarID, e.Event.Start.UnixNano()}
			if _, ok := seen[k]; ok {
				continue
			}
			seen[k] = struct{}{}
		}
		out = append(out, e)
	}
	return out
}
