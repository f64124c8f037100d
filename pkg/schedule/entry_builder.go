package schedule

import "strings"

// BuildEntries filters a calendar's raw events by mode and tags the survivors with the calendar id.
// In revocable mode only active events created by currentUserEmail are kept; an empty email matches nothing.
func BuildEntries(calendarID string, events []Event, mode Mode, currentUserEmail string) []CalendarEntry {
	entries := make([]CalendarEntry, 0, len(events))
	for _, e := range events {
		if e.Canceled {
			continue
		}
		if mode == ModeRevocable && !createdBy(e, currentUserEmail) {
			continue
		}
		entries = append(entries, CalendarEntry{CalendarID: calendarID, Event: e})
	}
	return entries
}

func createdBy(e Event, email string) bool {
	return email != "" && strings.EqualFold(e.CreatorEmail, email)
}
