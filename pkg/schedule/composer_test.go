package schedule

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var longAgo = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

func TestCompose(t *testing.T) {
	tr := TimeRange{Min: at(9, 0), Max: at(11, 0)}
	entries := []CalendarEntry{busy("room-a", at(9, 45), at(10, 15))}

	tests := []struct {
		name     string
		minimum  time.Duration
		expected []span
	}{
		{
			name:    "gap shorter than a step abuts the busy entry",
			minimum: 15 * time.Minute,
			expected: []span{
				{true, at(9, 0), at(9, 30)},
				{true, at(9, 30), at(9, 45)},
				{false, at(9, 45), at(10, 15)},
				{true, at(10, 15), at(10, 45)},
				{true, at(10, 45), at(11, 0)},
			},
		},
		{
			name:    "slots below the minimum duration are dropped",
			minimum: 20 * time.Minute,
			expected: []span{
				{true, at(9, 0), at(9, 30)},
				{false, at(9, 45), at(10, 15)},
				{true, at(10, 15), at(10, 45)},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Compose(tr, entries, allDaysPolicy(tt.minimum), longAgo)
			assert.Equal(t, tt.expected, spans(result))
			assert.Equal(t, "room-a", result[indexOfBusy(tt.expected)].CalendarID)
		})
	}
}

func indexOfBusy(s []span) int {
	for i, sp := range s {
		if !sp.free {
			return i
		}
	}
	return -1
}

func TestCompose_EmptyCalendars(t *testing.T) {
	result := Compose(TimeRange{Min: at(9, 0), Max: at(10, 0)}, nil, allDaysPolicy(0), longAgo)

	assert.Equal(t, []span{
		{true, at(9, 0), at(9, 30)},
		{true, at(9, 30), at(10, 0)},
	}, spans(result))
}

func TestCompose_EmptyRange(t *testing.T) {
	result := Compose(TimeRange{Min: at(9, 0), Max: at(9, 0)}, nil, allDaysPolicy(0), longAgo)
	assert.Empty(t, result)
}

func TestCompose_OverlappingBusyEntries(t *testing.T) {
	entries := []CalendarEntry{
		busy("room-a", at(9, 0), at(10, 0)),
		busy("room-b", at(9, 30), at(9, 45)),
		busy("room-b", at(9, 50), at(10, 30)),
	}

	result := Compose(TimeRange{Min: at(9, 0), Max: at(11, 0)}, entries, allDaysPolicy(0), longAgo)

	assert.Equal(t, []span{
		{false, at(9, 0), at(10, 0)},
		{false, at(9, 30), at(9, 45)},
		{false, at(9, 50), at(10, 30)},
		{true, at(10, 30), at(11, 0)},
	}, spans(result))
}

func TestCompose_BusyEntryStraddlingRangeStart(t *testing.T) {
	entries := []CalendarEntry{busy("room-a", at(8, 0), at(9, 30))}

	result := Compose(TimeRange{Min: at(9, 0), Max: at(11, 0)}, entries, allDaysPolicy(0), longAgo)

	assert.Equal(t, []span{
		{false, at(8, 0), at(9, 30)},
		{true, at(9, 30), at(10, 0)},
		{true, at(10, 0), at(10, 30)},
		{true, at(10, 30), at(11, 0)},
	}, spans(result))
}

func TestCompose_SkipsMalformedEntries(t *testing.T) {
	start := at(10, 0)
	entries := []CalendarEntry{
		{CalendarID: "room-a", Event: Event{ID: "no-start-or-end"}},
		{CalendarID: "room-a", Event: Event{ID: "no-end", Start: &start}},
		busy("room-a", at(9, 30), at(10, 0)),
	}
	SortEntries(entries)

	result := Compose(TimeRange{Min: at(9, 0), Max: at(10, 30)}, entries, allDaysPolicy(0), longAgo)

	assert.Equal(t, []span{
		{true, at(9, 0), at(9, 30)},
		{false, at(9, 30), at(10, 0)},
		{true, at(10, 0), at(10, 30)},
	}, spans(result))
}

func TestCompose_WeekdayExclusion(t *testing.T) {
	policy := allDaysPolicy(0)
	policy.BookingDays = []time.Weekday{time.Tuesday}
	tr := TimeRange{Min: day, Max: day.Add(48 * time.Hour)}

	result := Compose(tr, nil, policy, longAgo)

	require.NotEmpty(t, result)
	for _, e := range result {
		assert.Equal(t, time.Tuesday, e.Event.Start.Weekday())
	}
	assert.Len(t, result, 48)
}

func TestCompose_TimeOfDayRange(t *testing.T) {
	policy := allDaysPolicy(0)
	policy.BookingRangeOfDay = DayRange{Min: 8 * time.Hour, Max: 9 * time.Hour}

	result := Compose(TimeRange{Min: at(7, 0), Max: at(10, 0)}, nil, policy, longAgo)

	assert.Equal(t, []span{
		{true, at(8, 0), at(8, 30)},
		{true, at(8, 30), at(9, 0)},
		{true, at(9, 0), at(9, 30)},
	}, spans(result))
}

func TestCompose_PolicyLocation(t *testing.T) {
	tokyo, err := time.LoadLocation("Asia/Tokyo")
	require.NoError(t, err)
	policy := allDaysPolicy(0)
	policy.Location = tokyo
	policy.BookingRangeOfDay = DayRange{Min: 9 * time.Hour, Max: 9*time.Hour + 30*time.Minute}

	// 00:00 UTC is 09:00 in Tokyo.
	result := Compose(TimeRange{Min: day.Add(-time.Hour), Max: day.Add(2 * time.Hour)}, nil, policy, longAgo)

	assert.Equal(t, []span{
		{true, day, day.Add(30 * time.Minute)},
		{true, day.Add(30 * time.Minute), day.Add(time.Hour)},
	}, spans(result))
}

func TestCompose_PastClamp(t *testing.T) {
	tr := TimeRange{Min: at(9, 0), Max: at(10, 0)}

	t.Run("start is clamped to now", func(t *testing.T) {
		result := Compose(tr, nil, allDaysPolicy(15*time.Minute), at(9, 10))
		assert.Equal(t, []span{
			{true, at(9, 10), at(9, 30)},
			{true, at(9, 30), at(10, 0)},
		}, spans(result))
	})

	t.Run("clamped slot below the minimum is dropped", func(t *testing.T) {
		result := Compose(tr, nil, allDaysPolicy(15*time.Minute), at(9, 20))
		assert.Equal(t, []span{
			{true, at(9, 30), at(10, 0)},
		}, spans(result))
	})

	t.Run("slots entirely in the past are dropped", func(t *testing.T) {
		result := Compose(tr, nil, allDaysPolicy(0), at(12, 0))
		assert.Empty(t, result)
	})
}

func TestCompose_NonPositiveStepReturnsInput(t *testing.T) {
	entries := []CalendarEntry{busy("room-a", at(9, 0), at(10, 0))}
	policy := allDaysPolicy(0)
	policy.TimeStep = 0

	result := Compose(TimeRange{Min: at(8, 0), Max: at(12, 0)}, entries, policy, longAgo)

	assert.Equal(t, entries, result)
}

func TestCompose_SubSecondGapIsRoundedUp(t *testing.T) {
	entries := []CalendarEntry{busy("room-a", at(9, 0).Add(500*time.Millisecond), at(9, 30))}

	result := Compose(TimeRange{Min: at(9, 0), Max: at(9, 30)}, entries, allDaysPolicy(0), longAgo)

	require.Len(t, result, 2)
	assert.True(t, result[0].IsFree())
	assert.Equal(t, at(9, 0).Add(time.Second), *result[0].Event.End)
	assert.False(t, result[1].IsFree())
}

// Randomized timelines must terminate and cover the range without holes or overlapping free slots.
func TestCompose_TerminationAndCoverage(t *testing.T) {
	rnd := rand.New(rand.NewSource(42))
	tr := TimeRange{Min: at(0, 0), Max: at(0, 0).Add(72 * time.Hour)}

	for iteration := 0; iteration < 200; iteration++ {
		var entries []CalendarEntry
		n := rnd.Intn(20)
		for i := 0; i < n; i++ {
			start := tr.Min.Add(time.Duration(rnd.Intn(72*60)) * time.Minute)
			end := start.Add(time.Duration(rnd.Intn(180)+1) * time.Minute)
			entries = append(entries, busy("room", start, end))
		}
		SortEntries(entries)
		entries = dedupeEntries(entries)

		result := Compose(tr, entries, allDaysPolicy(0), longAgo)

		covered := tr.Min
		var lastFreeEnd time.Time
		for i, e := range result {
			if i > 0 {
				assert.False(t, e.Event.Start.Before(*result[i-1].Event.Start), "output must be sorted")
			}
			if e.IsFree() {
				assert.False(t, e.Event.Start.Before(lastFreeEnd), "free slots must not overlap")
				assert.False(t, e.Event.Start.Before(covered), "free slot must not overlap busy time")
				assert.LessOrEqual(t, e.Event.Duration(), 30*time.Minute)
				lastFreeEnd = *e.Event.End
			} else {
				assert.False(t, e.Event.Start.After(covered), "no holes before busy entry")
			}
			assert.False(t, e.Event.Start.After(covered), "no holes in coverage")
			if e.Event.End.After(covered) {
				covered = *e.Event.End
			}
		}
		assert.False(t, covered.Before(tr.Max), "range must be covered")
	}
}

func TestSortEntries(t *testing.T) {
	entries := []CalendarEntry{
		busy("b", at(10, 0), at(11, 0)),
		{CalendarID: "broken"},
		busy("a", at(9, 0), at(10, 0)),
		busy("c", at(10, 0), at(10, 30)),
	}

	SortEntries(entries)

	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, e.CalendarID)
	}
	assert.Equal(t, []string{"broken", "a", "b", "c"}, ids)
}

func TestDedupeEntries(t *testing.T) {
	entries := []CalendarEntry{
		busy("a", at(9, 0), at(10, 0)),
		busy("a", at(9, 0), at(9, 30)),
		busy("b", at(9, 0), at(10, 0)),
		{CalendarID: "a"},
		{CalendarID: "a"},
	}

	result := dedupeEntries(entries)

	assert.Len(t, result, 4)
	assert.Equal(t, at(10, 0), *result[0].Event.End)
}

func TestCeilSecond(t *testing.T) {
	assert.Equal(t, time.Second, ceilSecond(time.Millisecond))
	assert.Equal(t, time.Duration(0), ceilSecond(-time.Millisecond))
	assert.Equal(t, -time.Second, ceilSecond(-1500*time.Millisecond))
	assert.Equal(t, 2*time.Second, ceilSecond(2*time.Second))
}
