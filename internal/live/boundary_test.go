package live

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNextIntervalBoundaryMinuteGrid(t *testing.T) {
	now := time.Date(2024, 6, 15, 10, 2, 30, 0, time.UTC)
	got, err := NextIntervalBoundary("1m", now)
	require.NoError(t, err)
	require.Equal(t, time.Date(2024, 6, 15, 10, 3, 0, 0, time.UTC), got)

	got, err = NextIntervalBoundary("5m", now)
	require.NoError(t, err)
	require.Equal(t, time.Date(2024, 6, 15, 10, 5, 0, 0, time.UTC), got)
}

func TestNextIntervalBoundaryHourGrid(t *testing.T) {
	now := time.Date(2024, 6, 15, 10, 2, 30, 0, time.UTC)
	got, err := NextIntervalBoundary("1h", now)
	require.NoError(t, err)
	require.Equal(t, time.Date(2024, 6, 15, 11, 0, 0, 0, time.UTC), got)

	got, err = NextIntervalBoundary("4h", now)
	require.NoError(t, err)
	require.Equal(t, time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC), got)
}

func TestNextIntervalBoundaryDayGrid(t *testing.T) {
	now := time.Date(2024, 6, 15, 23, 59, 0, 0, time.UTC)
	got, err := NextIntervalBoundary("1d", now)
	require.NoError(t, err)
	require.Equal(t, time.Date(2024, 6, 16, 0, 0, 0, 0, time.UTC), got)
}

func TestNextIntervalBoundaryWeekGridMondayAligned(t *testing.T) {
	// 2024-06-15 is a Saturday.
	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	got, err := NextIntervalBoundary("1w", now)
	require.NoError(t, err)
	require.Equal(t, time.Date(2024, 6, 17, 0, 0, 0, 0, time.UTC), got)
	require.Equal(t, time.Monday, got.Weekday())
}

func TestNextIntervalBoundaryMonthGrid(t *testing.T) {
	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	got, err := NextIntervalBoundary("1M", now)
	require.NoError(t, err)
	require.Equal(t, time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC), got)
}

func TestNextIntervalBoundaryUnsupported(t *testing.T) {
	_, err := NextIntervalBoundary("3m", time.Now())
	require.Error(t, err)
}
