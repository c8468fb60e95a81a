package warehouse

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	cloudbigquery "cloud.google.com/go/bigquery"

	"github.com/angelmondragon/storeconsole/internal/events"
)

// Inserter streams rows into the events table.
type Inserter interface {
	InsertEvents(ctx context.Context, rows []any) error
}

// Mirror copies ingested events into the warehouse so the BigQuery source sees them.
type Mirror struct {
	inserter Inserter
}

// NewMirror wraps an inserter as an events.Appender.
func NewMirror(inserter Inserter) (*Mirror, error) {
	if inserter == nil {
		return nil, errors.New("warehouse inserter required")
	}
	return &Mirror{inserter: inserter}, nil
}

// Append streams one event. The event id doubles as the insert id so retried
// inserts are deduplicated by BigQuery on a best-effort basis.
func (m *Mirror) Append(ctx context.Context, e events.Event) error {
	row, err := newInsertRow(e)
	if err != nil {
		return err
	}
	if err := m.inserter.InsertEvents(ctx, []any{row}); err != nil {
		return fmt.Errorf("insert warehouse event %s: %w", e.ID, err)
	}
	return nil
}

type insertRow struct {
	event   events.Event
	payload string
}

func newInsertRow(e events.Event) (*insertRow, error) {
	if strings.TrimSpace(e.ID) == "" {
		return nil, errors.New("event id required")
	}
	row := &insertRow{event: e}
	if len(e.Payload) > 0 {
		raw, err := json.Marshal(e.Payload)
		if err != nil {
			return nil, fmt.Errorf("encode payload: %w", err)
		}
		row.payload = string(raw)
	}
	return row, nil
}

// Save implements bigquery.ValueSaver.
func (r *insertRow) Save() (map[string]cloudbigquery.Value, string, error) {
	values := map[string]cloudbigquery.Value{
		"id":          r.event.ID,
		"store_id":    r.event.Owner,
		"event_type":  r.event.Type.String(),
		"occurred_at": r.event.Timestamp.UTC(),
	}
	if r.event.ConversationID != "" {
		values["conversation_id"] = r.event.ConversationID
	}
	if r.event.Role != "" {
		values["role"] = string(r.event.Role)
	}
	if r.payload != "" {
		values["payload"] = r.payload
	}
	return values, r.event.ID, nil
}
