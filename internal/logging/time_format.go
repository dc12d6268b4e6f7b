package logging

import "time"

const logTimestampLayout = "15:04:05.000"

// formatTimestamp renders console timestamps in local time. The date is
// omitted; the JSON file log keeps full UTC timestamps.
func formatTimestamp(ts time.Time) string {
	if ts.IsZero() {
		return ""
	}
	return ts.In(time.Local).Format(logTimestampLayout)
}
