package ics

import (
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/klokku/slotfinder/pkg/schedule"
	log "github.com/sirupsen/logrus"
	"github.com/teambition/rrule-go"
)

type vevent struct {
	uid          string
	summary      string
	start        *time.Time
	end          *time.Time
	canceled     bool
	creatorEmail string
	rule         string
	exDates      []time.Time
	recurrenceId *time.Time
}

// expand turns VEVENTs into events overlapping timeRange. Recurring events are
// expanded into one event per occurrence, with overridden occurrences replaced
// by their RECURRENCE-ID VEVENT. Events without usable times are kept as they are.
func expand(components []*ical.VEvent, timeRange schedule.TimeRange) []schedule.Event {
	parsed := make([]vevent, 0, len(components))
	overridden := make(map[string]map[int64]struct{})
	for _, component := range components {
		ev := parseVEvent(component)
		if ev.recurrenceId != nil {
			if overridden[ev.uid] == nil {
				overridden[ev.uid] = make(map[int64]struct{})
			}
			overridden[ev.uid][ev.recurrenceId.Unix()] = struct{}{}
		}
		parsed = append(parsed, ev)
	}

	var events []schedule.Event
	for _, ev := range parsed {
		if ev.start == nil || ev.end == nil {
			events = append(events, ev.toEvent(ev.uid, ev.start, ev.end))
			continue
		}
		if ev.rule == "" || ev.recurrenceId != nil {
			if overlaps(*ev.start, *ev.end, timeRange) {
				events = append(events, ev.toEvent(ev.uid, ev.start, ev.end))
			}
			continue
		}
		events = append(events, ev.occurrences(timeRange, overridden[ev.uid])...)
	}
	return events
}

func (ev vevent) occurrences(timeRange schedule.TimeRange, overridden map[int64]struct{}) []schedule.Event {
	rule, err := rrule.StrToRRule(ev.rule)
	if err != nil {
		log.Warnf("skipping recurrence of ICS event %s with invalid RRULE %q: %v", ev.uid, ev.rule, err)
		return []schedule.Event{ev.toEvent(ev.uid, ev.start, ev.end)}
	}
	rule.DTStart(*ev.start)

	var set rrule.Set
	set.RRule(rule)
	for _, exDate := range ev.exDates {
		set.ExDate(exDate.In(ev.start.Location()))
	}

	duration := ev.end.Sub(*ev.start)
	location := ev.start.Location()
	starts := set.Between(timeRange.Min.Add(-duration).In(location), timeRange.Max.In(location), true)
	if len(starts) > maxOccurrencesPerEvent {
		log.Warnf("ICS event %s has %d occurrences in range, keeping the first %d", ev.uid, len(starts), maxOccurrencesPerEvent)
		starts = starts[:maxOccurrencesPerEvent]
	}

	events := make([]schedule.Event, 0, len(starts))
	for _, start := range starts {
		if _, ok := overridden[start.Unix()]; ok {
			continue
		}
		end := start.Add(duration)
		if !overlaps(start, end, timeRange) {
			continue
		}
		id := ev.uid + "_" + start.UTC().Format("20060102T150405Z")
		events = append(events, ev.toEvent(id, &start, &end))
	}
	return events
}

func (ev vevent) toEvent(id string, start, end *time.Time) schedule.Event {
	return schedule.Event{
		ID:           id,
		Summary:      ev.summary,
		Start:        start,
		End:          end,
		Canceled:     ev.canceled,
		CreatorEmail: ev.creatorEmail,
	}
}

func parseVEvent(component *ical.VEvent) vevent {
	var ev vevent
	if p := component.GetProperty(ical.ComponentPropertyUniqueId); p != nil {
		ev.uid = p.Value
	}
	if p := component.GetProperty(ical.ComponentPropertySummary); p != nil {
		ev.summary = p.Value
	}
	if p := component.GetProperty(ical.ComponentPropertyStatus); p != nil {
		ev.canceled = strings.EqualFold(strings.TrimSpace(p.Value), "CANCELLED")
	}
	if p := component.GetProperty(ical.ComponentPropertyOrganizer); p != nil {
		ev.creatorEmail = organizerEmail(p.Value)
	}
	if start, err := component.GetStartAt(); err == nil {
		ev.start = &start
	}
	if end, err := component.GetEndAt(); err == nil {
		ev.end = &end
	}
	if p := component.GetProperty(ical.ComponentPropertyRrule); p != nil {
		ev.rule = p.Value
	}
	for _, p := range component.GetProperties(ical.ComponentPropertyExdate) {
		for _, value := range strings.Split(p.Value, ",") {
			if t, err := parseICSTime(value, tzid(p)); err == nil {
				ev.exDates = append(ev.exDates, t)
			}
		}
	}
	if p := component.GetProperty(ical.ComponentProperty("RECURRENCE-ID")); p != nil {
		if t, err := parseICSTime(p.Value, tzid(p)); err == nil {
			ev.recurrenceId = &t
		}
	}
	return ev
}

func organizerEmail(value string) string {
	value = strings.TrimSpace(value)
	if len(value) >= len("mailto:") && strings.EqualFold(value[:len("mailto:")], "mailto:") {
		return value[len("mailto:"):]
	}
	return value
}

func tzid(p *ical.IANAProperty) *time.Location {
	if values, ok := p.ICalParameters["TZID"]; ok && len(values) > 0 {
		if location, err := time.LoadLocation(values[0]); err == nil {
			return location
		}
	}
	return time.UTC
}

// parseICSTime parses DATE and DATE-TIME values. Floating times are read in location.
func parseICSTime(value string, location *time.Location) (time.Time, error) {
	value = strings.TrimSpace(value)
	switch {
	case strings.HasSuffix(value, "Z"):
		return time.Parse("20060102T150405Z", value)
	case strings.Contains(value, "T"):
		return time.ParseInLocation("20060102T150405", value, location)
	default:
		return time.ParseInLocation("20060102", value, location)
	}
}

func overlaps(start, end time.Time, timeRange schedule.TimeRange) bool {
	return start.Before(timeRange.Max) && end.After(timeRange.Min)
}
