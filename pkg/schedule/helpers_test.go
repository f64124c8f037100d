package schedule

import "time"

// day is a Monday.
var day = time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

func at(hour, minute int) time.Time {
	return day.Add(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute)
}

func event(id string, start, end time.Time) Event {
	return Event{ID: id, Start: &start, End: &end}
}

func busy(calendarID string, start, end time.Time) CalendarEntry {
	return CalendarEntry{CalendarID: calendarID, Event: event(calendarID+"-"+start.Format("1504"), start, end)}
}

func allDaysPolicy(minimum time.Duration) BookingPolicy {
	return BookingPolicy{
		TimeStep: 30 * time.Minute,
		BookingDays: []time.Weekday{
			time.Sunday, time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday, time.Saturday,
		},
		BookingRangeOfDay:    DayRange{Min: 0, Max: 24 * time.Hour},
		MinimumEventDuration: minimum,
	}
}

type span struct {
	free       bool
	start, end time.Time
}

func spans(entries []CalendarEntry) []span {
	out := make([]span, 0, len(entries))
	for _, e := range entries {
		out = append(out, span{free: e.IsFree(), start: *e.Event.Start, end: *e.Event.End})
	}
	return out
}
