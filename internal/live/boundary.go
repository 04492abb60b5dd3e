package live

import (
	"fmt"
	"time"
)

// errUnsupportedInterval is returned by NextIntervalBoundary for an
// interval string outside the supported grid.
var errUnsupportedInterval = fmt.Errorf("live: unsupported interval")

// NextIntervalBoundary returns the next UTC instant on the grid implied
// by interval, strictly after now, rolling over day/week/month
// boundaries as appropriate (§4.G). The weekly grid is Monday-aligned.
func NextIntervalBoundary(interval string, now time.Time) (time.Time, error) {
	now = now.UTC()

	switch interval {
	case "1m":
		return nextMinuteGrid(now, 1), nil
	case "5m":
		return nextMinuteGrid(now, 5), nil
	case "15m":
		return nextMinuteGrid(now, 15), nil
	case "30m":
		return nextMinuteGrid(now, 30), nil
	case "1h":
		return nextHourGrid(now, 1), nil
	case "4h":
		return nextHourGrid(now, 4), nil
	case "1d":
		return nextDayBoundary(now), nil
	case "1w":
		return nextWeekBoundary(now), nil
	case "1M":
		return nextMonthBoundary(now), nil
	default:
		return time.Time{}, fmt.Errorf("%w: %q", errUnsupportedInterval, interval)
	}
}

func nextMinuteGrid(now time.Time, stepMinutes int) time.Time {
	floor := now.Truncate(time.Duration(stepMinutes) * time.Minute)
	if !floor.After(now) {
		floor = floor.Add(time.Duration(stepMinutes) * time.Minute)
	}
	return floor
}

func nextHourGrid(now time.Time, stepHours int) time.Time {
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	elapsed := now.Sub(dayStart)
	step := time.Duration(stepHours) * time.Hour
	floor := dayStart.Add((elapsed / step) * step)
	if !floor.After(now) {
		floor = floor.Add(step)
	}
	return floor
}

func nextDayBoundary(now time.Time) time.Time {
	d := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	if !d.After(now) {
		d = d.AddDate(0, 0, 1)
	}
	return d
}

func nextWeekBoundary(now time.Time) time.Time {
	d := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	// time.Monday == 1, time.Sunday == 0; days-until-next-Monday in [0,7).
	daysUntilMonday := (8 - int(d.Weekday())) % 7
	next := d.AddDate(0, 0, daysUntilMonday)
	if !next.After(now) {
		next = next.AddDate(0, 0, 7)
	}
	return next
}

func nextMonthBoundary(now time.Time) time.Time {
	m := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	if !m.After(now) {
		m = m.AddDate(0, 1, 0)
	}
	return m
}
