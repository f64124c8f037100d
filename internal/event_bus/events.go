package event_bus

import "time"

const (
	ScheduleProvidedType EventType = "schedule.provided"
	ScheduleFailedType   EventType = "schedule.failed"
)

type ScheduleProvided struct {
	RequestId   string
	CalendarIDs []string
	Revocable   bool
	Entries     int
	// FreeEntries is the number of synthesized free slots among Entries.
	FreeEntries int
	Duration    time.Duration
}

type ScheduleFailed struct {
	RequestId   string
	CalendarIDs []string
	Revocable   bool
	Error       string
}
