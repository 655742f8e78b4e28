package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

type EventType string

const (
	EventRunCreated   EventType = "run.created"
	EventMfaRequested EventType = "breakpoint.mfa.requested"
	EventRunSucceeded EventType = "run.succeeded"
	EventRunFailed    EventType = "run.failed"
)

const DefaultEventSource = "api"

// Event is the wire envelope broadcast on the event bus.
type Event struct {
	Type    EventType       `json:"type"`
	Payload json.RawMessage `json:"payload"`
	RunID   string          `json:"run_id,omitempty"`
	BatchID string          `json:"batch_id,omitempty"`
	Source  string          `json:"source"`
	TS      time.Time       `json:"ts"`
}

type RunCreatedPayload struct {
	Purpose string `json:"purpose"`
}

type MfaRequestedPayload struct {
	FlowID     string `json:"flow_id"`
	InstanceID string `json:"instance_id"`
}

type RunSucceededPayload struct {
	FlowID string         `json:"flow_id"`
	Output map[string]any `json:"output,omitempty"`
}

type RunFailedPayload struct {
	FlowID    string `json:"flow_id"`
	ErrorCode string `json:"error_code"`
	ErrorMsg  string `json:"error_msg"`
}

// CustomPayload carries any event type this build does not know about.
type CustomPayload map[string]any

// NewEvent stamps an envelope around a typed payload.
func NewEvent(eventType EventType, runID string, payload any) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("failed to marshal %s payload: %w", eventType, err)
	}
	return Event{
		Type:    eventType,
		Payload: raw,
		RunID:   runID,
		Source:  DefaultEventSource,
		TS:      time.Now().UTC(),
	}, nil
}

func (e Event) WithBatch(batchID string) Event {
	e.BatchID = batchID
	return e
}

func (e Event) WithSource(source string) Event {
	if source != "" {
		e.Source = source
	}
	return e
}

// DecodePayload returns the typed payload variant for known event types
// and a CustomPayload otherwise.
func (e Event) DecodePayload() (any, error) {
	var target any
	switch e.Type {
	case EventRunCreated:
		target = &RunCreatedPayload{}
	case EventMfaRequested:
		target = &MfaRequestedPayload{}
	case EventRunSucceeded:
		target = &RunSucceededPayload{}
	case EventRunFailed:
		target = &RunFailedPayload{}
	default:
		custom := CustomPayload{}
		if len(e.Payload) > 0 {
			if err := json.Unmarshal(e.Payload, &custom); err != nil {
				return nil, fmt.Errorf("failed to decode %s payload: %w", e.Type, err)
			}
		}
		return custom, nil
	}

	if len(e.Payload) > 0 {
		if err := json.Unmarshal(e.Payload, target); err != nil {
			return nil, fmt.Errorf("failed to decode %s payload: %w", e.Type, err)
		}
	}
	return target, nil
}

// ParseEvent decodes a wire envelope, defaulting source when absent.
func ParseEvent(data []byte) (Event, error) {
	var e Event
	if err := json.Unmarshal(data, &e); err != nil {
		return Event{}, fmt.Errorf("failed to unmarshal event: %w", err)
	}
	if e.Type == "" {
		return Event{}, Validationf("event type is required")
	}
	if e.Source == "" {
		e.Source = DefaultEventSource
	}
	return e, nil
}

// EventFilter selects events by run or batch identity. Zero value matches all.
type EventFilter struct {
	RunID   string
	BatchID string
}

func (f EventFilter) Matches(e Event) bool {
	if f.RunID != "" && e.RunID != f.RunID {
		return false
	}
	if f.BatchID != "" && e.BatchID != f.BatchID {
		return false
	}
	return true
}
