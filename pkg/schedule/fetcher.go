package schedule

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"
)

const defaultMaxPages = 100

// Page is one page of a remote events query.
type Page struct {
	Items         []Event
	NextPageToken string
}

// RemoteQuery issues one events query for a calendar. An empty pageToken requests the first page.
type RemoteQuery interface {
	QueryEvents(ctx context.Context, calendarID string, timeRange TimeRange, pageToken string) (Page, error)
}

// PageCursor is a calendar's query plus the continuation token of the next page.
type PageCursor struct {
	CalendarID        string
	TimeRange         TimeRange
	ContinuationToken string
}

type PagedFetcher struct {
	remote   RemoteQuery
	maxPages int
}

func NewPagedFetcher(remote RemoteQuery, maxPages int) *PagedFetcher {
	if maxPages <= 0 {
		maxPages = defaultMaxPages
	}
	return &PagedFetcher{remote: remote, maxPages: maxPages}
}

// Fetch issues exactly one remote query for the cursor. The returned cursor is nil
// when the page carries no continuation token.
func (f *PagedFetcher) Fetch(ctx context.Context, cursor PageCursor) ([]Event, *PageCursor, error) {
	page, err := f.remote.QueryEvents(ctx, cursor.CalendarID, cursor.TimeRange, cursor.ContinuationToken)
	if err != nil {
		return nil, nil, err
	}
	if page.NextPageToken == "" {
		return page.Items, nil, nil
	}
	next := cursor
	next.ContinuationToken = page.NextPageToken
	return page.Items, &next, nil
}

// FetchAll fetches every page of the calendar and concatenates the items in page-arrival order.
// The first failing page aborts the whole calendar.
func (f *PagedFetcher) FetchAll(ctx context.Context, calendarID string, timeRange TimeRange) ([]Event, error) {
	var items []Event
	cursor := &PageCursor{CalendarID: calendarID, TimeRange: timeRange}
	seen := make(map[string]struct{})

	for pageNo := 1; cursor != nil; pageNo++ {
		if pageNo > f.maxPages {
			return nil, fmt.Errorf("calendar %s: %w (%d pages)", calendarID, ErrPageLimitExceeded, f.maxPages)
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		pageItems, next, err := f.Fetch(ctx, *cursor)
		if err != nil {
			log.Debugf("fetching page %d of calendar %s failed: %v", pageNo, calendarID, err)
			return nil, fmt.Errorf("failed to fetch page %d of calendar %s: %w", pageNo, calendarID, err)
		}
		items = append(items, pageItems...)

		if next != nil {
			if _, repeated := seen[next.ContinuationToken]; repeated {
				return nil, fmt.Errorf("calendar %s: %w (token %q repeated)", calendarID, ErrPageLimitExceeded, next.ContinuationToken)
			}
			seen[next.ContinuationToken] = struct{}{}
		}
		cursor = next
	}

	log.Tracef("fetched %d events from calendar %s", len(items), calendarID)
	return items, nil
}
