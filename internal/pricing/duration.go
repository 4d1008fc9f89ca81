package pricing

import (
	"fmt"
	"time"
)

// Duration derives the elapsed whole minutes between entry and exit along
// with a human readable rendering. When exit is nil the session is still
// open and now is used instead, which is how live estimates are produced.
// Callers guarantee exit >= entry; the result is floored, never rounded.
func Duration(entryAt time.Time, exitAt *time.Time, now time.Time) (int, string) {
	end := now
	if exitAt != nil {
		end = *exitAt
	}
	minutes := int(end.Sub(entryAt) / time.Minute)
	if minutes < 0 {
		minutes = 0
	}
	return minutes, FormatDuration(minutes)
}

// FormatDuration renders minutes as "{d}d {h}h {m}m", "{h}h {m}m" or "{m}m"
// depending on magnitude. Diagnostic text only, never localized.
func FormatDuration(minutes int) string {
	if minutes < 0 {
		minutes = 0
	}
	switch {
	case minutes >= 24*60:
		days := minutes / (24 * 60)
		hours := (minutes % (24 * 60)) / 60
		return fmt.Sprintf("%dd %dh %dm", days, hours, minutes%60)
	case minutes >= 60:
		return fmt.Sprintf("%dh %dm", minutes/60, minutes%60)
	default:
		return fmt.Sprintf("%dm", minutes)
	}
}
