package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBookingPolicy_Validate(t *testing.T) {
	assert.NoError(t, DefaultPolicy().Validate())

	noStep := DefaultPolicy()
	noStep.TimeStep = 0
	assert.Error(t, noStep.Validate())

	reversed := DefaultPolicy()
	reversed.BookingRangeOfDay = DayRange{Min: 18 * time.Hour, Max: 8 * time.Hour}
	assert.Error(t, reversed.Validate())

	negative := DefaultPolicy()
	negative.MinimumEventDuration = -time.Minute
	assert.Error(t, negative.Validate())
}

func TestBookingPolicy_Admit(t *testing.T) {
	policy := DefaultPolicy()
	saturday := day.AddDate(0, 0, 5)

	tests := []struct {
		name       string
		start, end time.Time
		now        time.Time
		admitted   bool
		start2     time.Time
	}{
		{"weekday within range", at(9, 0), at(9, 30), longAgo, true, at(9, 0)},
		{"weekend", saturday.Add(9 * time.Hour), saturday.Add(9*time.Hour + 30*time.Minute), longAgo, false, time.Time{}},
		{"before range of day", at(7, 30), at(8, 0), longAgo, false, time.Time{}},
		{"at the end of range of day", at(20, 0), at(20, 30), longAgo, true, at(20, 0)},
		{"after range of day", at(20, 30), at(21, 0), longAgo, false, time.Time{}},
		{"clamped to now", at(9, 0), at(9, 30), at(9, 10), true, at(9, 10)},
		{"too short after clamping", at(9, 0), at(9, 30), at(9, 20), false, time.Time{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start, ok := policy.admit(tt.start, tt.end, tt.now)
			assert.Equal(t, tt.admitted, ok)
			if tt.admitted {
				assert.Equal(t, tt.start2, start)
			}
		})
	}
}
