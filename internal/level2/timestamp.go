package level2

import "time"

// formatTimestamp implements spec.md §4.3: strftime("%Y%m%d_%H%M%S", epoch_utc
// + (julian_day-1) days + ms milliseconds). Julian day is 1-based from
// 1970-01-01.
func formatTimestamp(julianDay, ms uint32) string {
	epoch := time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC)
	t := epoch.AddDate(0, 0, int(julianDay)-1).Add(time.Duration(ms) * time.Millisecond)
	return t.Format("20060102_150405")
}
