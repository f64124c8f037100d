package schedule

import (
	"context"
	"strings"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const defaultConcurrency = 4

// Aggregator fans a PagedFetcher out over several calendars.
type Aggregator struct {
	fetcher     *PagedFetcher
	concurrency int
}

func NewAggregator(fetcher *PagedFetcher, concurrency int) *Aggregator {
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	return &Aggregator{fetcher: fetcher, concurrency: concurrency}
}

// Aggregate fetches every calendar concurrently and returns the built entries of all of them,
// grouped by calendar in request order. The first failing calendar fails the whole call and
// cancels the fetches still in flight.
func (a *Aggregator) Aggregate(ctx context.Context, calendarIDs []string, timeRange TimeRange, mode Mode, currentUserEmail string) ([]CalendarEntry, error) {
	ids := uniqueCalendarIDs(calendarIDs)
	slots := make([][]CalendarEntry, len(ids))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.concurrency)
	for i, calendarID := range ids {
		g.Go(func() error {
			events, err := a.fetcher.FetchAll(gctx, calendarID, timeRange)
			if err != nil {
				return err
			}
			slots[i] = BuildEntries(calendarID, events, mode, currentUserEmail)
			log.Debugf("calendar %s: %d of %d events kept in %s mode", calendarID, len(slots[i]), len(events), mode)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var total int
	for _, s := range slots {
		total += len(s)
	}
	merged := make([]CalendarEntry, 0, total)
	for _, s := range slots {
		merged = append(merged, s...)
	}
	return merged, nil
}

func uniqueCalendarIDs(calendarIDs []string) []string {
	ids := make([]string, 0, len(calendarIDs))
	seen := make(map[string]struct{}, len(calendarIDs))
	for _, id := range calendarIDs {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids
}
