package schedule

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/klokku/slotfinder/internal/event_bus"
	"github.com/klokku/slotfinder/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type identityStub string

func (i identityStub) CurrentUserEmail(context.Context) string {
	return string(i)
}

func setupAssembler(t *testing.T, remote RemoteQuery, bus *event_bus.EventBus) *Assembler {
	t.Helper()
	clock := &utils.MockClock{FixedNow: longAgo}
	aggregator := NewAggregator(NewPagedFetcher(remote, 0), 2)
	assembler, err := NewAssembler(aggregator, allDaysPolicy(15*time.Minute), clock, identityStub("alice@example.com"), bus, 1)
	require.NoError(t, err)
	return assembler
}

func TestNewAssembler_InvalidPolicy(t *testing.T) {
	policy := allDaysPolicy(0)
	policy.TimeStep = 0

	_, err := NewAssembler(NewAggregator(NewPagedFetcher(NewRemoteQueryStub(), 0), 0), policy, utils.SystemClock{}, identityStub(""), nil, 0)

	assert.Error(t, err)
}

func TestAssembler_Schedule(t *testing.T) {
	remote := NewRemoteQueryStub().
		AddPage("room-a", "", []Event{event("a1", at(10, 0), at(10, 30))}, "").
		AddPage("room-b", "", []Event{event("b1", at(9, 0), at(9, 30))}, "p2").
		AddPage("room-b", "p2", []Event{{ID: "b2", Canceled: true}}, "")
	assembler := setupAssembler(t, remote, nil)

	entries, err := assembler.Schedule(context.Background(), Request{
		CalendarIDs: []string{"room-a", "room-b"},
		TimeRange:   TimeRange{Min: at(9, 0), Max: at(11, 0)},
	})

	require.NoError(t, err)
	assert.Equal(t, []span{
		{false, at(9, 0), at(9, 30)},
		{true, at(9, 30), at(10, 0)},
		{false, at(10, 0), at(10, 30)},
		{true, at(10, 30), at(11, 0)},
	}, spans(entries))
	assert.Equal(t, "room-b", entries[0].CalendarID)
	assert.Equal(t, "room-a", entries[2].CalendarID)
}

func TestAssembler_RevocableNeverSynthesizes(t *testing.T) {
	mine := event("mine", at(10, 0), at(11, 0))
	mine.CreatorEmail = "alice@example.com"
	alsoMine := event("also-mine", at(8, 0), at(9, 0))
	alsoMine.CreatorEmail = "ALICE@example.com"
	remote := NewRemoteQueryStub().
		AddPage("room-a", "", []Event{mine, event("theirs", at(9, 0), at(10, 0))}, "").
		AddPage("room-b", "", []Event{alsoMine}, "")
	assembler := setupAssembler(t, remote, nil)

	entries, err := assembler.Schedule(context.Background(), Request{
		CalendarIDs:   []string{"room-a", "room-b"},
		TimeRange:     TimeRange{Min: at(0, 0), Max: at(23, 0)},
		OnlyRevocable: true,
	})

	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "also-mine", entries[0].Event.ID)
	assert.Equal(t, "mine", entries[1].Event.ID)
	for _, e := range entries {
		assert.False(t, e.IsFree())
	}
}

func TestAssembler_InvalidTimeRange(t *testing.T) {
	assembler := setupAssembler(t, NewRemoteQueryStub(), nil)

	_, err := assembler.Schedule(context.Background(), Request{TimeRange: TimeRange{Min: at(11, 0), Max: at(9, 0)}})

	assert.ErrorIs(t, err, ErrInvalidTimeRange)
}

func TestAssembler_FailureOnSecondPageDiscardsEverything(t *testing.T) {
	bus := event_bus.NewEventBus()
	var failed []event_bus.ScheduleFailed
	event_bus.SubscribeTyped(bus, event_bus.ScheduleFailedType, func(e event_bus.EventT[event_bus.ScheduleFailed]) error {
		failed = append(failed, e.Data)
		return nil
	})

	transportErr := &TransportError{CalendarID: "room-b", Err: errors.New("timeout")}
	remote := NewRemoteQueryStub().
		AddPage("room-a", "", []Event{event("a1", at(10, 0), at(10, 30))}, "").
		AddPage("room-b", "", []Event{event("b1", at(9, 0), at(9, 30))}, "p2").
		FailPage("room-b", "p2", transportErr)
	assembler := setupAssembler(t, remote, bus)

	entries, err := assembler.Schedule(context.Background(), Request{
		CalendarIDs: []string{"room-a", "room-b"},
		TimeRange:   TimeRange{Min: at(9, 0), Max: at(11, 0)},
	})

	assert.Nil(t, entries)
	assert.ErrorIs(t, err, transportErr)
	require.Len(t, failed, 1)
	assert.Equal(t, []string{"room-a", "room-b"}, failed[0].CalendarIDs)
}

func TestAssembler_PublishesProvidedEvent(t *testing.T) {
	bus := event_bus.NewEventBus()
	var provided []event_bus.ScheduleProvided
	event_bus.SubscribeTyped(bus, event_bus.ScheduleProvidedType, func(e event_bus.EventT[event_bus.ScheduleProvided]) error {
		provided = append(provided, e.Data)
		return nil
	})
	remote := NewRemoteQueryStub().AddPage("room-a", "", []Event{event("a1", at(9, 0), at(9, 30))}, "")
	assembler := setupAssembler(t, remote, bus)

	_, err := assembler.Schedule(context.Background(), Request{
		CalendarIDs: []string{"room-a"},
		TimeRange:   TimeRange{Min: at(9, 0), Max: at(10, 0)},
	})

	require.NoError(t, err)
	require.Len(t, provided, 1)
	assert.Equal(t, 2, provided[0].Entries)
	assert.Equal(t, 1, provided[0].FreeEntries)
	assert.NotEmpty(t, provided[0].RequestId)
}

func TestAssembler_ProvideDispatchesCallbackOnce(t *testing.T) {
	remote := NewRemoteQueryStub().AddPage("room-a", "", []Event{event("a1", at(9, 0), at(9, 30))}, "")
	assembler := setupAssembler(t, remote, nil)

	dispatched := make(chan func(), 2)
	var mu sync.Mutex
	var calls int
	var result []CalendarEntry

	assembler.Provide(context.Background(), Request{
		CalendarIDs: []string{"room-a"},
		TimeRange:   TimeRange{Min: at(9, 0), Max: at(10, 0)},
	}, DispatcherFunc(func(fn func()) { dispatched <- fn }), func(entries []CalendarEntry, err error) {
		mu.Lock()
		defer mu.Unlock()
		calls++
		result = entries
		assert.NoError(t, err)
	})

	select {
	case fn := <-dispatched:
		mu.Lock()
		assert.Equal(t, 0, calls, "callback must only run through the dispatcher")
		mu.Unlock()
		fn()
	case <-time.After(5 * time.Second):
		t.Fatal("callback was not dispatched")
	}

	select {
	case <-dispatched:
		t.Fatal("callback dispatched twice")
	case <-time.After(50 * time.Millisecond):
	}
	assert.Equal(t, 1, calls)
	assert.Len(t, result, 2)
}

func TestAssembler_Cancellation(t *testing.T) {
	remote := NewRemoteQueryStub().AddPage("room-a", "", nil, "")
	remote.Block = make(chan struct{})
	assembler := setupAssembler(t, remote, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := assembler.Schedule(ctx, Request{
			CalendarIDs: []string{"room-a"},
			TimeRange:   TimeRange{Min: at(9, 0), Max: at(10, 0)},
		})
		done <- err
	}()
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("schedule did not return after cancellation")
	}
}
