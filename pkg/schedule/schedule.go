package schedule

import (
	"errors"
	"fmt"
	"time"
)

var ErrInvalidTimeRange = errors.New("invalid time range: min is after max")

type TimeRange struct {
	Min time.Time
	Max time.Time
}

func NewTimeRange(min, max time.Time) (TimeRange, error) {
	if min.After(max) {
		return TimeRange{}, fmt.Errorf("%w (%s > %s)", ErrInvalidTimeRange, min.Format(time.RFC3339), max.Format(time.RFC3339))
	}
	return TimeRange{Min: min, Max: max}, nil
}

// Event is either a remote calendar event or a synthesized free slot.
// Start and End are nil only for malformed remote data.
type Event struct {
	ID           string
	Summary      string
	Start        *time.Time
	End          *time.Time
	Canceled     bool
	CreatorEmail string
}

// Usable reports whether the event has a start and an end that is not before it.
func (e Event) Usable() bool {
	return e.Start != nil && e.End != nil && !e.End.Before(*e.Start)
}

func (e Event) Duration() time.Duration {
	if !e.Usable() {
		return 0
	}
	return e.End.Sub(*e.Start)
}

type CalendarEntry struct {
	// CalendarID is empty for synthesized free entries.
	CalendarID string
	Event      Event
}

func (c CalendarEntry) IsFree() bool {
	return c.CalendarID == ""
}

func newFreeEntry(start, end time.Time) CalendarEntry {
	return CalendarEntry{
		Event: Event{Start: &start, End: &end},
	}
}

type Mode int

const (
	ModeStandard Mode = iota
	ModeRevocable
)

func (m Mode) String() string {
	switch m {
	case ModeRevocable:
		return "revocable"
	default:
		return "standard"
	}
}

func ModeFor(onlyRevocable bool) Mode {
	if onlyRevocable {
		return ModeRevocable
	}
	return ModeStandard
}
