package ics

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/klokku/slotfinder/pkg/schedule"
	log "github.com/sirupsen/logrus"
)

const maxOccurrencesPerEvent = 5000

// Source serves events of ICS subscriptions, keyed by calendar id.
// A feed is always returned as a single page.
type Source struct {
	client *http.Client
	feeds  map[string]string
}

func NewSource(client *http.Client, feeds map[string]string) *Source {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Source{client: client, feeds: feeds}
}

// Has reports whether calendarID is served by an ICS feed.
func (s *Source) Has(calendarID string) bool {
	_, ok := s.feeds[calendarID]
	return ok
}

func (s *Source) QueryEvents(ctx context.Context, calendarID string, timeRange schedule.TimeRange, pageToken string) (schedule.Page, error) {
	url, ok := s.feeds[calendarID]
	if !ok {
		return schedule.Page{}, &schedule.TransportError{CalendarID: calendarID, Err: fmt.Errorf("no ICS feed configured")}
	}
	if pageToken != "" {
		return schedule.Page{}, nil
	}

	body, err := s.download(ctx, url)
	if err != nil {
		log.Errorf("unable to download ICS feed of calendar %s: %v", calendarID, err)
		return schedule.Page{}, &schedule.TransportError{CalendarID: calendarID, Err: err}
	}

	cal, err := ical.ParseCalendar(strings.NewReader(body))
	if err != nil {
		log.Errorf("unable to parse ICS feed of calendar %s: %v", calendarID, err)
		return schedule.Page{}, &schedule.DecodeError{CalendarID: calendarID, Err: err}
	}

	events := expand(cal.Events(), timeRange)
	log.Debugf("ICS feed of calendar %s has %d events in range", calendarID, len(events))
	return schedule.Page{Items: events}, nil
}

func (s *Source) download(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "text/calendar")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("unexpected status %s", resp.Status)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read body: %w", err)
	}
	return string(body), nil
}
