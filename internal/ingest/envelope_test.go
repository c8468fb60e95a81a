package ingest

import (
	"testing"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/angelmondragon/storeconsole/pkg/errors"
)

func TestDecodeEnvelopeNormalizes(t *testing.T) {
	msg := &gcppubsub.Message{
		Data: []byte(`{"event_id":"7f1c5a8e-2b1d-4a39-9f8e-0d4c1a2b3c4d","store_id":"1a2b3c4d-5e6f-4a1b-8c9d-0e1f2a3b4c5d","event_type":"Order_Created","occurred_at":"2025-03-01T10:00:00Z","role":" Responder ","payload":null}`),
	}

	env, err := decodeEnvelope(msg)
	require.NoError(t, err)
	assert.Equal(t, "order_created", env.EventType)
	assert.Equal(t, "responder", env.Role)

	event, err := env.Event()
	require.NoError(t, err)
	assert.Nil(t, event.Payload)
	assert.False(t, event.Conversational())
}

func TestDecodeEnvelopeTypeFromAttributes(t *testing.T) {
	msg := &gcppubsub.Message{
		Data:       []byte(`{"event_id":"7f1c5a8e-2b1d-4a39-9f8e-0d4c1a2b3c4d","store_id":"1a2b3c4d-5e6f-4a1b-8c9d-0e1f2a3b4c5d","occurred_at":"2025-03-01T10:00:00Z"}`),
		Attributes: map[string]string{"event_type": "review_submitted"},
	}

	env, err := decodeEnvelope(msg)
	require.NoError(t, err)
	assert.Equal(t, "review_submitted", env.EventType)
}

func TestDecodeEnvelopeValidationCode(t *testing.T) {
	_, err := decodeEnvelope(&gcppubsub.Message{Data: []byte(`{}`)})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}
