package ingest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"

	"github.com/angelmondragon/storeconsole/internal/events"
	"github.com/angelmondragon/storeconsole/pkg/enums"
	pkgerrors "github.com/angelmondragon/storeconsole/pkg/errors"
	"github.com/angelmondragon/storeconsole/pkg/validate"
)

// Envelope is the message body console write paths publish for every store event.
type Envelope struct {
	EventID        string          `json:"event_id" validate:"required,uuid"`
	StoreID        string          `json:"store_id" validate:"required,uuid"`
	EventType      string          `json:"event_type" validate:"required,max=64"`
	OccurredAt     time.Time       `json:"occurred_at" validate:"required"`
	ConversationID string          `json:"conversation_id,omitempty" validate:"omitempty,max=128"`
	Role           string          `json:"role,omitempty" validate:"omitempty,oneof=initiator responder"`
	Payload        json.RawMessage `json:"payload,omitempty"`
}

// decodeEnvelope reads the message body. Ids and type missing from the body
// are taken from the message attributes.
func decodeEnvelope(msg *gcppubsub.Message) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(msg.Data, &env); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode event envelope")
	}

	env.EventID = firstNonEmpty(env.EventID, msg.Attributes["event_id"])
	env.StoreID = firstNonEmpty(env.StoreID, msg.Attributes["store_id"])
	env.EventType = strings.ToLower(firstNonEmpty(env.EventType, msg.Attributes["event_type"]))
	env.ConversationID = strings.TrimSpace(env.ConversationID)
	env.Role = strings.ToLower(strings.TrimSpace(env.Role))

	if err := validate.Struct(env); err != nil {
		return nil, err
	}
	if env.OccurredAt.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "occurred_at is required")
	}
	return &env, nil
}

// Event converts the envelope into the engine's read model.
func (e Envelope) Event() (events.Event, error) {
	payload, err := e.payloadMap()
	if err != nil {
		return events.Event{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode event payload")
	}
	return events.Event{
		ID:             e.EventID,
		Type:           enums.EventType(e.EventType),
		Timestamp:      e.OccurredAt.UTC(),
		Owner:          e.StoreID,
		Payload:        payload,
		ConversationID: e.ConversationID,
		Role:           enums.ConversationRole(e.Role),
	}, nil
}

func (e Envelope) payloadMap() (map[string]any, error) {
	if len(bytes.TrimSpace(e.Payload)) == 0 || bytes.Equal(bytes.TrimSpace(e.Payload), []byte("null")) {
		return nil, nil
	}
	var out map[string]any
	if err := json.Unmarshal(e.Payload, &out); err != nil {
		return nil, fmt.Errorf("payload must be a json object: %w", err)
	}
	return out, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
