package util //nolint:revive // package name util hosts shared formatting helpers for CLI and log output

import "time"

// FormatProcessingDuration renders a duration for table and log output.
// Zero and negative durations show as "—"; anything at millisecond scale or
// above is truncated to whole milliseconds so columns stay readable.
func FormatProcessingDuration(d time.Duration) string {
	if d <= 0 {
		return "—"
	}
	if d < time.Millisecond {
		return d.String()
	}
	return d.Truncate(time.Millisecond).String()
}
