package analytics

import (
	"time"

	"github.com/angelmondragon/storeconsole/internal/events"
)

// StartOfDay returns midnight UTC of the day containing t.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// todayStart returns the start of today and whether it still falls inside w.
// It is false when w ends at or before midnight.
func todayStart(now time.Time, w *events.Window) (time.Time, bool) {
	start := StartOfDay(now)
	if w != nil && !w.To.IsZero() && !start.Before(w.To) {
		return start, false
	}
	return start, true
}
