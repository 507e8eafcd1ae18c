package model

import (
	"strings"
	"time"
)

// Range keys accepted by the history and indicator endpoints.
const (
	Range1D  = "1D"
	Range1W  = "1W"
	Range1M  = "1M"
	Range3M  = "3M"
	Range1Y  = "1Y"
	RangeMax = "MAX"
)

// ValidRange reports whether key is a known range key.
func ValidRange(key string) bool {
	switch key {
	case Range1D, Range1W, Range1M, Range3M, Range1Y, RangeMax:
		return true
	}
	return false
}

// RangeStart returns the inclusive start of the requested window ending at now.
// Unknown keys fall back to one month, matching the UI default.
func RangeStart(key string, now time.Time) time.Time {
	switch key {
	case Range1D:
		return now.AddDate(0, 0, -1)
	case Range1W:
		return now.AddDate(0, 0, -7)
	case Range1M:
		return now.AddDate(0, -1, 0)
	case Range3M:
		return now.AddDate(0, -3, 0)
	case Range1Y:
		return now.AddDate(-1, 0, 0)
	case RangeMax:
		return now.AddDate(-5, 0, 0)
	default:
		return now.AddDate(0, -1, 0)
	}
}

// IntervalStep returns the nominal spacing between bars for an interval key.
// Intraday intervals look like "intraday_5min".
func IntervalStep(interval string) time.Duration {
	switch interval {
	case "weekly":
		return 7 * 24 * time.Hour
	case "monthly":
		return 31 * 24 * time.Hour
	case "daily":
		return 24 * time.Hour
	}
	if strings.HasPrefix(interval, "intraday_") {
		step := strings.TrimPrefix(interval, "intraday_")
		if d, err := time.ParseDuration(strings.Replace(step, "min", "m", 1)); err == nil && d > 0 {
			return d
		}
	}
	return 24 * time.Hour
}

// SliceRange trims an ascending series to the requested window ending at now.
func SliceRange(series []Bar, rangeKey string, now time.Time) []Bar {
	if len(series) == 0 {
		return series
	}
	start := RangeStart(rangeKey, now)
	lo := 0
	for lo < len(series) && series[lo].Timestamp.Before(start) {
		lo++
	}
	return series[lo:]
}
