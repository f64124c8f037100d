package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/klokku/slotfinder/pkg/schedule"
	log "github.com/sirupsen/logrus"
	gcal "google.golang.org/api/calendar/v3"
)

var ErrUnauthenticated = fmt.Errorf("user is unauthenticated, authentication is required: %w", schedule.ErrSourceUnauthorized)

const defaultPageSize = 250

// Calendar queries events of Google calendars on behalf of one user.
type Calendar struct {
	service  *gcal.Service
	location *time.Location
	pageSize int64
}

func newGoogleCalendar(service *gcal.Service, location *time.Location, pageSize int64) *Calendar {
	if location == nil {
		location = time.UTC
	}
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	return &Calendar{
		service:  service,
		location: location,
		pageSize: pageSize,
	}
}

// QueryEvents returns one page of the calendar's events overlapping timeRange.
// Cancelled events are included so that callers can filter them.
func (c *Calendar) QueryEvents(ctx context.Context, calendarID string, timeRange schedule.TimeRange, pageToken string) (schedule.Page, error) {
	call := c.service.Events.List(calendarID).
		TimeMin(timeRange.Min.Format(time.RFC3339)).
		TimeMax(timeRange.Max.Format(time.RFC3339)).
		SingleEvents(true).
		ShowDeleted(true).
		MaxResults(c.pageSize).
		Context(ctx)
	if pageToken != "" {
		call = call.PageToken(pageToken)
	}

	googleEvents, err := call.Do()
	if err != nil {
		log.Errorf("unable to retrieve events of calendar %s from Google Calendar: %v", calendarID, err)
		return schedule.Page{}, classifyError(calendarID, err)
	}

	return schedule.Page{
		Items:         c.googleEventsToEvents(googleEvents.Items),
		NextPageToken: googleEvents.NextPageToken,
	}, nil
}

// googleEventsToEvents keeps events with unreadable times, leaving the bad time nil.
func (c *Calendar) googleEventsToEvents(googleEvents []*gcal.Event) []schedule.Event {
	events := make([]schedule.Event, 0, len(googleEvents))
	for _, item := range googleEvents {
		if item == nil {
			continue
		}
		start, err := c.parseEventDateTime(item.Start)
		if err != nil {
			log.Warnf("invalid start of calendar event %s (%s): %v", item.Summary, item.Id, err)
		}
		end, err := c.parseEventDateTime(item.End)
		if err != nil {
			log.Warnf("invalid end of calendar event %s (%s): %v", item.Summary, item.Id, err)
		}
		if start == nil || end == nil {
			log.Warnf("found calendar event without start or end: %s (%s)", item.Summary, item.Id)
		}

		var creatorEmail string
		if item.Creator != nil {
			creatorEmail = item.Creator.Email
		}

		events = append(events, schedule.Event{
			ID:           item.Id,
			Summary:      item.Summary,
			Start:        start,
			End:          end,
			Canceled:     item.Status == "cancelled",
			CreatorEmail: creatorEmail,
		})
	}
	return events
}

// parseEventDateTime returns nil for an absent value. All-day dates are midnight
// in the event's time zone, or the calendar's location when none is given.
func (c *Calendar) parseEventDateTime(dt *gcal.EventDateTime) (*time.Time, error) {
	if dt == nil {
		return nil, nil
	}
	if dt.DateTime != "" {
		t, err := time.Parse(time.RFC3339, dt.DateTime)
		if err != nil {
			return nil, err
		}
		return &t, nil
	}
	if dt.Date != "" {
		location := c.location
		if dt.TimeZone != "" {
			if l, err := time.LoadLocation(dt.TimeZone); err == nil {
				location = l
			}
		}
		t, err := time.ParseInLocation("2006-01-02", dt.Date, location)
		if err != nil {
			return nil, err
		}
		return &t, nil
	}
	return nil, nil
}

// classifyError separates undecodable responses from transport failures.
func classifyError(calendarID string, err error) error {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return &schedule.DecodeError{CalendarID: calendarID, Err: err}
	}
	return &schedule.TransportError{CalendarID: calendarID, Err: err}
}
