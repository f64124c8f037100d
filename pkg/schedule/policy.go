package schedule

import (
	"errors"
	"slices"
	"time"
)

type DayRange struct {
	Min time.Duration
	Max time.Duration
}

// BookingPolicy governs which free slots are offered. It is read-only once loaded.
type BookingPolicy struct {
	TimeStep             time.Duration
	BookingDays          []time.Weekday
	BookingRangeOfDay    DayRange
	MinimumEventDuration time.Duration
	// Location in which weekday and midnight are evaluated. Nil means the slot's own location.
	Location *time.Location
}

// DefaultPolicy is the policy used when the configuration sets no booking section.
func DefaultPolicy() BookingPolicy {
	return BookingPolicy{
		TimeStep:             30 * time.Minute,
		BookingDays:          []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday},
		BookingRangeOfDay:    DayRange{Min: 8 * time.Hour, Max: 20 * time.Hour},
		MinimumEventDuration: 15 * time.Minute,
	}
}

func (p BookingPolicy) Validate() error {
	if p.TimeStep <= 0 {
		return errors.New("booking time step must be positive")
	}
	if p.BookingRangeOfDay.Min > p.BookingRangeOfDay.Max {
		return errors.New("booking range of day min is after max")
	}
	if p.MinimumEventDuration < 0 {
		return errors.New("minimum event duration cannot be negative")
	}
	return nil
}

func (p BookingPolicy) bookable(day time.Weekday) bool {
	return slices.Contains(p.BookingDays, day)
}

func (p BookingPolicy) local(t time.Time) time.Time {
	if p.Location == nil {
		return t
	}
	return t.In(p.Location)
}

// admit applies the policy to a candidate free slot. The returned start may be
// clamped to now; ok is false when the slot must be dropped.
func (p BookingPolicy) admit(start, end, now time.Time) (time.Time, bool) {
	local := p.local(start)
	if !p.bookable(local.Weekday()) {
		return start, false
	}

	midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, local.Location())
	sinceMidnight := local.Sub(midnight)
	if sinceMidnight < p.BookingRangeOfDay.Min || sinceMidnight > p.BookingRangeOfDay.Max {
		return start, false
	}

	if start.Before(now) {
		start = now
	}
	if !end.After(start) || end.Sub(start) < p.MinimumEventDuration {
		return start, false
	}
	return start, true
}
