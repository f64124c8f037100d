package calendar_provider

import (
	"context"
	"fmt"
	"sync"

	"github.com/klokku/slotfinder/pkg/google"
	"github.com/klokku/slotfinder/pkg/schedule"
	log "github.com/sirupsen/logrus"
)

// IcsSource serves the calendars configured as ICS subscriptions.
type IcsSource interface {
	schedule.RemoteQuery
	Has(calendarID string) bool
}

// CalendarProvider routes each events query to the ICS feed configured for the
// calendar id, or to the current user's Google Calendar otherwise.
type CalendarProvider struct {
	googleService google.Service
	ics           IcsSource
}

func NewCalendarProvider(googleService google.Service, ics IcsSource) *CalendarProvider {
	return &CalendarProvider{
		googleService: googleService,
		ics:           ics,
	}
}

type scopeKey struct{}

type requestScope struct {
	once     sync.Once
	calendar *google.Calendar
	err      error
}

// WithRequestScope marks ctx as one schedule request. Queries made under it resolve the
// user's Google calendar once and share it across all pages and calendars.
func WithRequestScope(ctx context.Context) context.Context {
	return context.WithValue(ctx, scopeKey{}, &requestScope{})
}

func (c *CalendarProvider) googleCalendar(ctx context.Context) (*google.Calendar, error) {
	scope, ok := ctx.Value(scopeKey{}).(*requestScope)
	if !ok {
		return c.googleService.GetCalendar(ctx)
	}
	scope.once.Do(func() {
		scope.calendar, scope.err = c.googleService.GetCalendar(ctx)
	})
	return scope.calendar, scope.err
}

func (c *CalendarProvider) getCalendar(ctx context.Context, calendarID string) (schedule.RemoteQuery, error) {
	if c.ics != nil && c.ics.Has(calendarID) {
		return c.ics, nil
	}
	if c.googleService == nil {
		return nil, fmt.Errorf("no calendar source for calendar %s", calendarID)
	}
	cal, err := c.googleCalendar(ctx)
	if err != nil {
		return nil, err
	}
	return cal, nil
}

func (c *CalendarProvider) QueryEvents(ctx context.Context, calendarID string, timeRange schedule.TimeRange, pageToken string) (schedule.Page, error) {
	cal, err := c.getCalendar(ctx, calendarID)
	if err != nil {
		log.Debugf("failed to get calendar source for %s: %v", calendarID, err)
		return schedule.Page{}, fmt.Errorf("failed to get calendar %s: %w", calendarID, err)
	}
	return cal.QueryEvents(ctx, calendarID, timeRange, pageToken)
}
