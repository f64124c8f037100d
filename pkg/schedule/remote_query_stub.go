package schedule

import (
	"context"
	"fmt"
	"sync"
)

// RemoteQueryStub serves canned pages keyed by calendar id and page token.
type RemoteQueryStub struct {
	mu      sync.Mutex
	pages   map[string]map[string]Page
	errs    map[string]map[string]error
	queried map[string][]string
	// Block, when set, is awaited by every query before answering.
	Block chan struct{}
}

func NewRemoteQueryStub() *RemoteQueryStub {
	return &RemoteQueryStub{
		pages:   make(map[string]map[string]Page),
		errs:    make(map[string]map[string]error),
		queried: make(map[string][]string),
	}
}

// AddPage registers the page returned for calendarID when queried with token.
func (s *RemoteQueryStub) AddPage(calendarID, token string, items []Event, nextToken string) *RemoteQueryStub {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pages[calendarID] == nil {
		s.pages[calendarID] = make(map[string]Page)
	}
	s.pages[calendarID][token] = Page{Items: items, NextPageToken: nextToken}
	return s
}

func (s *RemoteQueryStub) FailPage(calendarID, token string, err error) *RemoteQueryStub {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.errs[calendarID] == nil {
		s.errs[calendarID] = make(map[string]error)
	}
	s.errs[calendarID][token] = err
	return s
}

// Queried returns the tokens requested for calendarID, in request order.
func (s *RemoteQueryStub) Queried(calendarID string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.queried[calendarID]...)
}

func (s *RemoteQueryStub) QueryEvents(ctx context.Context, calendarID string, _ TimeRange, pageToken string) (Page, error) {
	if s.Block != nil {
		select {
		case <-s.Block:
		case <-ctx.Done():
			return Page{}, ctx.Err()
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.queried[calendarID] = append(s.queried[calendarID], pageToken)
	if err, ok := s.errs[calendarID][pageToken]; ok {
		return Page{}, err
	}
	page, ok := s.pages[calendarID][pageToken]
	if !ok {
		return Page{}, &TransportError{CalendarID: calendarID, Err: fmt.Errorf("no page for token %q", pageToken)}
	}
	return page, nil
}
