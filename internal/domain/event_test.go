package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventEnvelope(t *testing.T) {
	event, err := NewEvent(EventRunCreated, "run-1", RunCreatedPayload{Purpose: "eligibility"})
	require.NoError(t, err)

	data, err := json.Marshal(event)
	require.NoError(t, err)

	var wire map[string]any
	require.NoError(t, json.Unmarshal(data, &wire))
	assert.Equal(t, "run.created", wire["type"])
	assert.Equal(t, "run-1", wire["run_id"])
	assert.Equal(t, "api", wire["source"])
	assert.NotEmpty(t, wire["ts"])
	assert.Equal(t, map[string]any{"purpose": "eligibility"}, wire["payload"])
	_, hasBatch := wire["batch_id"]
	assert.False(t, hasBatch)

	parsed, err := ParseEvent(data)
	require.NoError(t, err)
	payload, err := parsed.DecodePayload()
	require.NoError(t, err)
	assert.Equal(t, &RunCreatedPayload{Purpose: "eligibility"}, payload)
}

func TestDecodePayloadVariants(t *testing.T) {
	failed, err := NewEvent(EventRunFailed, "run-1", RunFailedPayload{FlowID: "f", ErrorCode: ErrorCodeMfaTimeout, ErrorMsg: ErrorMsgMfaTimeout})
	require.NoError(t, err)
	payload, err := failed.DecodePayload()
	require.NoError(t, err)
	assert.Equal(t, ErrorCodeMfaTimeout, payload.(*RunFailedPayload).ErrorCode)

	custom, err := ParseEvent([]byte(`{"type":"batch.progress","payload":{"done":3}}`))
	require.NoError(t, err)
	assert.Equal(t, DefaultEventSource, custom.Source)
	payload, err = custom.DecodePayload()
	require.NoError(t, err)
	assert.Equal(t, CustomPayload{"done": float64(3)}, payload)

	_, err = ParseEvent([]byte(`{"payload":{}}`))
	assert.ErrorIs(t, err, ErrValidation)
}

func TestEventFilter(t *testing.T) {
	a := Event{Type: EventRunCreated, RunID: "a", BatchID: "b1"}
	b := Event{Type: EventRunCreated, RunID: "b"}

	assert.True(t, EventFilter{}.Matches(a))
	assert.True(t, EventFilter{RunID: "a"}.Matches(a))
	assert.False(t, EventFilter{RunID: "a"}.Matches(b))
	assert.True(t, EventFilter{BatchID: "b1"}.Matches(a))
	assert.False(t, EventFilter{BatchID: "b1"}.Matches(b))
	assert.False(t, EventFilter{RunID: "a", BatchID: "b2"}.Matches(a))
}
