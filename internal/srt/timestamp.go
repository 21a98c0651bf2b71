package srt

import (
	"fmt"
	"math"
)

const (
	millisPerSecond = 1000
	millisPerMinute = 60 * millisPerSecond
	millisPerHour   = 60 * millisPerMinute

	// truncateEpsilon is in milliseconds.
	truncateEpsilon = 1e-6
)

// FormatTimestamp renders an offset in seconds as HH:MM:SS,mmm.
//
// Milliseconds are truncated, not rounded. A nanosecond-sized epsilon absorbs
// binary float noise (1.2 stored as 1.19999...) without carrying 59.9999996
// into the next second. Negative and NaN offsets render as zero.
func FormatTimestamp(seconds float64) string {
	millis := truncateMillis(seconds)

	hours := millis / millisPerHour
	minutes := (millis % millisPerHour) / millisPerMinute
	secs := (millis % millisPerMinute) / millisPerSecond
	ms := millis % millisPerSecond

	return fmt.Sprintf("%02d:%02d:%02d,%03d", hours, minutes, secs, ms)
}

func truncateMillis(seconds float64) int64 {
	if math.IsNaN(seconds) || seconds <= 0 {
		return 0
	}
	if math.IsInf(seconds, 1) || seconds > math.MaxInt64/1e6 {
		return math.MaxInt64 / 1000
	}

	return int64(math.Floor(seconds*millisPerSecond + truncateEpsilon))
}
