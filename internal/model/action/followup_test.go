package action

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScheduleTimesAtCheckInHour(t *testing.T) {
	from := time.Date(2025, 3, 30, 9, 15, 0, 0, time.UTC)

	got := ScheduleTimes(from, DefaultFollowUpIntervals)

	require.Len(t, got, len(DefaultFollowUpIntervals))
	assert.Equal(t, time.Date(2025, 4, 1, 18, 0, 0, 0, time.UTC), got[0])
	assert.Equal(t, time.Date(2025, 4, 20, 18, 0, 0, 0, time.UTC), got[len(got)-1])
	for _, ts := range got {
		assert.Equal(t, CheckInHour, ts.Hour())
		assert.True(t, ts.After(from))
	}
}

func TestStatusTransitions(t *testing.T) {
	assert.True(t, StatusPending.CanTransition(StatusCompleted))
	assert.True(t, StatusPending.CanTransition(StatusCancelled))
	assert.False(t, StatusPending.CanTransition(StatusPending))
	assert.False(t, StatusCompleted.CanTransition(StatusCancelled))
	assert.False(t, StatusCancelled.CanTransition(StatusPending))
}

func TestValidIntervals(t *testing.T) {
	assert.True(t, ValidIntervals(nil))
	assert.True(t, ValidIntervals(DefaultFollowUpIntervals))
	assert.True(t, ValidIntervals([]int{1, MaxFollowUpDays}))
	assert.False(t, ValidIntervals([]int{0}))
	assert.False(t, ValidIntervals([]int{-2, 4}))
	assert.False(t, ValidIntervals([]int{MaxFollowUpDays + 1}))
	assert.False(t, ValidIntervals(make([]int, len(DefaultFollowUpIntervals)+1)))
}
