package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// RunStatus is the persisted lifecycle status of a run.
type RunStatus string

const (
	RunStatusQueued    RunStatus = "queued"
	RunStatusRunning   RunStatus = "running"
	RunStatusSucceeded RunStatus = "succeeded"
	RunStatusFailed    RunStatus = "failed"
)

var runTransitions = map[RunStatus][]RunStatus{
	RunStatusQueued:  {RunStatusRunning},
	RunStatusRunning: {RunStatusSucceeded, RunStatusFailed},
}

// IsTerminal reports whether no further transition is allowed.
func (s RunStatus) IsTerminal() bool {
	return s == RunStatusSucceeded || s == RunStatusFailed
}

func (s RunStatus) Valid() bool {
	switch s {
	case RunStatusQueued, RunStatusRunning, RunStatusSucceeded, RunStatusFailed:
		return true
	}
	return false
}

// CanTransition reports whether from -> to is a legal forward move.
func CanTransition(from, to RunStatus) bool {
	for _, next := range runTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ValidateTransition returns ErrConflict for a move the state machine forbids.
func ValidateTransition(from, to RunStatus) error {
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: illegal run transition %s -> %s", ErrConflict, from, to)
	}
	return nil
}

// Run is one unit of orchestrated work.
type Run struct {
	RunID        string         `json:"id" dynamodbav:"run_id"`
	Purpose      string         `json:"purpose" dynamodbav:"purpose"`
	PayerID      string         `json:"payer_id" dynamodbav:"payer_id"`
	ProviderNPI  string         `json:"provider_npi,omitempty" dynamodbav:"provider_npi,omitempty"`
	Status       RunStatus      `json:"status" dynamodbav:"status"`
	Source       string         `json:"source,omitempty" dynamodbav:"source,omitempty"`
	InputPayload map[string]any `json:"input" dynamodbav:"input_payload"`
	Output       map[string]any `json:"output,omitempty" dynamodbav:"output_payload,omitempty"`
	ErrorCode    string         `json:"error_code,omitempty" dynamodbav:"error_code,omitempty"`
	ErrorMsg     string         `json:"error_msg,omitempty" dynamodbav:"error_msg,omitempty"`
	CreatedAt    int64          `json:"created_at" dynamodbav:"created_at"`
	UpdatedAt    int64          `json:"updated_at" dynamodbav:"updated_at"`
}

// NewRun builds a queued run with a fresh identity.
func NewRun(purpose, payerID, providerNPI string, input map[string]any) *Run {
	now := time.Now().UnixMilli()
	if input == nil {
		input = make(map[string]any)
	}

	return &Run{
		RunID:        uuid.New().String(),
		Purpose:      purpose,
		PayerID:      payerID,
		ProviderNPI:  providerNPI,
		Status:       RunStatusQueued,
		InputPayload: input,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// TerminalOutcome is what the orchestrator records when a run finishes.
type TerminalOutcome struct {
	Status    RunStatus
	Output    map[string]any
	ErrorCode string
	ErrorMsg  string
}

func Succeeded(output map[string]any) TerminalOutcome {
	if output == nil {
		output = make(map[string]any)
	}
	return TerminalOutcome{Status: RunStatusSucceeded, Output: output}
}

func Failed(code, msg string) TerminalOutcome {
	return TerminalOutcome{Status: RunStatusFailed, ErrorCode: code, ErrorMsg: msg}
}

// Validate enforces output iff succeeded and error iff failed.
func (o TerminalOutcome) Validate() error {
	switch o.Status {
	case RunStatusSucceeded:
		if o.Output == nil || o.ErrorCode != "" || o.ErrorMsg != "" {
			return fmt.Errorf("%w: succeeded outcome requires output and no error", ErrValidation)
		}
	case RunStatusFailed:
		if o.ErrorCode == "" || o.ErrorMsg == "" || o.Output != nil {
			return fmt.Errorf("%w: failed outcome requires error code and message", ErrValidation)
		}
	default:
		return fmt.Errorf("%w: %q is not a terminal status", ErrValidation, o.Status)
	}
	return nil
}

// Apply moves the run into the terminal state described by o.
func (r *Run) Apply(o TerminalOutcome) error {
	if err := o.Validate(); err != nil {
		return err
	}
	if err := ValidateTransition(r.Status, o.Status); err != nil {
		return err
	}
	r.Status = o.Status
	r.Output = o.Output
	r.ErrorCode = o.ErrorCode
	r.ErrorMsg = o.ErrorMsg
	r.UpdatedAt = time.Now().UnixMilli()
	return nil
}

// IdempotencyMapping indexes a fingerprint to the run it created.
type IdempotencyMapping struct {
	Key       string `json:"key" dynamodbav:"idempotency_key"`
	RunID     string `json:"run_id" dynamodbav:"run_id"`
	CreatedAt int64  `json:"created_at" dynamodbav:"created_at"`
}
