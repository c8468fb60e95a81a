package analytics

import (
	"net/http"
	"strings"
	"time"

	analyticsvc "github.com/angelmondragon/storeconsole/internal/analytics"
	"github.com/angelmondragon/storeconsole/internal/events"
	pkgerrors "github.com/angelmondragon/storeconsole/pkg/errors"
)

const defaultPreset = "30d"

var timeNowUTC = func() time.Time {
	return time.Now().UTC()
}

// resolveWindow reads either an explicit from/to pair or a preset.
// A nil window means the snapshot covers every event the store has.
func resolveWindow(r *http.Request, now time.Time) (*events.Window, error) {
	query := r.URL.Query()
	from := strings.TrimSpace(query.Get("from"))
	to := strings.TrimSpace(query.Get("to"))

	if from != "" || to != "" {
		if from == "" || to == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "from and to must be provided together")
		}
		start, err := time.Parse(time.RFC3339, from)
		if err != nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid from timestamp")
		}
		end, err := time.Parse(time.RFC3339, to)
		if err != nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid to timestamp")
		}
		start = start.UTC()
		end = end.UTC()
		if !end.After(start) {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "end must be after start")
		}
		return &events.Window{From: start, To: end}, nil
	}

	preset := strings.ToLower(strings.TrimSpace(query.Get("preset")))
	if preset == "" {
		preset = defaultPreset
	}
	switch preset {
	case "all":
		return nil, nil
	case "today":
		return &events.Window{From: analyticsvc.StartOfDay(now)}, nil
	}

	duration, ok := presetDuration(preset)
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid preset").
			WithDetails(map[string]any{"preset": preset, "allowed": []string{"7d", "30d", "90d", "today", "all"}})
	}
	return &events.Window{From: now.Add(-duration), To: now}, nil
}

func presetDuration(value string) (time.Duration, bool) {
	switch value {
	case "7d":
		return 7 * 24 * time.Hour, true
	case "30d":
		return 30 * 24 * time.Hour, true
	case "90d":
		return 90 * 24 * time.Hour, true
	default:
		return 0, false
	}
}
