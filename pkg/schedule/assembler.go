package schedule

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/klokku/slotfinder/internal/event_bus"
	"github.com/klokku/slotfinder/internal/utils"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"
)

const defaultComposers = 2

// IdentityProvider resolves the email of the user issuing the request.
// An empty string means the user is unknown.
type IdentityProvider interface {
	CurrentUserEmail(ctx context.Context) string
}

// Dispatcher runs a function on the caller's execution context.
type Dispatcher interface {
	Dispatch(fn func())
}

type DispatcherFunc func(fn func())

func (f DispatcherFunc) Dispatch(fn func()) {
	f(fn)
}

type Request struct {
	CalendarIDs   []string
	TimeRange     TimeRange
	OnlyRevocable bool
}

// Assembler drives the whole pipeline: concurrent fetch, filtering, merge and composition.
type Assembler struct {
	aggregator *Aggregator
	policy     BookingPolicy
	clock      utils.Clock
	identity   IdentityProvider
	composers  *semaphore.Weighted
	bus        *event_bus.EventBus
}

func NewAssembler(aggregator *Aggregator, policy BookingPolicy, clock utils.Clock, identity IdentityProvider, bus *event_bus.EventBus, composers int) (*Assembler, error) {
	if err := policy.Validate(); err != nil {
		return nil, fmt.Errorf("invalid booking policy: %w", err)
	}
	if composers <= 0 {
		composers = defaultComposers
	}
	return &Assembler{
		aggregator: aggregator,
		policy:     policy,
		clock:      clock,
		identity:   identity,
		composers:  semaphore.NewWeighted(int64(composers)),
		bus:        bus,
	}, nil
}

// Schedule returns the composed entries for the request. The sort and sweep run on a
// background goroutine and the result is handed back to the calling goroutine.
func (a *Assembler) Schedule(ctx context.Context, req Request) ([]CalendarEntry, error) {
	requestId := uuid.NewString()
	started := time.Now()

	entries, err := a.schedule(ctx, req)
	if err != nil {
		log.Errorf("schedule request %s for %d calendar(s) failed: %v", requestId, len(req.CalendarIDs), err)
		a.publish(ctx, event_bus.ScheduleFailedType, event_bus.ScheduleFailed{
			RequestId:   requestId,
			CalendarIDs: req.CalendarIDs,
			Revocable:   req.OnlyRevocable,
			Error:       err.Error(),
		})
		return nil, err
	}

	a.publish(ctx, event_bus.ScheduleProvidedType, event_bus.ScheduleProvided{
		RequestId:   requestId,
		CalendarIDs: req.CalendarIDs,
		Revocable:   req.OnlyRevocable,
		Entries:     len(entries),
		FreeEntries: countFree(entries),
		Duration:    time.Since(started),
	})
	return entries, nil
}

// Provide is the asynchronous form of Schedule. callback is invoked exactly once, through dispatcher.
func (a *Assembler) Provide(ctx context.Context, req Request, dispatcher Dispatcher, callback func(entries []CalendarEntry, err error)) {
	go func() {
		entries, err := a.Schedule(ctx, req)
		dispatcher.Dispatch(func() {
			callback(entries, err)
		})
	}()
}

func (a *Assembler) schedule(ctx context.Context, req Request) ([]CalendarEntry, error) {
	if req.TimeRange.Min.After(req.TimeRange.Max) {
		return nil, ErrInvalidTimeRange
	}

	mode := ModeFor(req.OnlyRevocable)
	var email string
	if mode == ModeRevocable {
		email = a.identity.CurrentUserEmail(ctx)
	}

	entries, err := a.aggregator.Aggregate(ctx, req.CalendarIDs, req.TimeRange, mode, email)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch calendars: %w", err)
	}

	policy := a.policy
	timeRange := req.TimeRange
	result, err := a.background(ctx, func() []CalendarEntry {
		SortEntries(entries)
		sorted := dedupeEntries(entries)
		if mode == ModeRevocable {
			return sorted
		}
		return Compose(timeRange, sorted, policy, a.clock.Now())
	})
	if err != nil {
		return nil, err
	}

	select {
	case composed := <-result:
		return composed, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (a *Assembler) background(ctx context.Context, fn func() []CalendarEntry) (<-chan []CalendarEntry, error) {
	if err := a.composers.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	out := make(chan []CalendarEntry, 1)
	go func() {
		defer a.composers.Release(1)
		out <- fn()
	}()
	return out, nil
}

func (a *Assembler) publish(ctx context.Context, eventType event_bus.EventType, data any) {
	if a.bus == nil {
		return
	}
	if err := a.bus.Publish(event_bus.NewEvent(ctx, eventType, data)); err != nil {
		log.Debugf("failed to publish %s: %v", eventType, err)
	}
}

func countFree(entries []CalendarEntry) int {
	var n int
	for _, e := range entries {
		if e.IsFree() {
			n++
		}
	}
	return n
}
