package domain

import "time"

// InstancePhase is the durable phase of one orchestrator instance.
type InstancePhase string

const (
	PhasePending      InstancePhase = "pending"
	PhaseAwaitingCode InstancePhase = "awaiting_code"
	PhaseExecuting    InstancePhase = "executing"
	PhaseCompleted    InstancePhase = "completed"
	PhaseFailed       InstancePhase = "failed"
)

func (p InstancePhase) IsTerminal() bool {
	return p == PhaseCompleted || p == PhaseFailed
}

// Step is one opaque flow step, e.g. {"op": "noop"}.
type Step map[string]any

// Instance is the persisted state of one orchestrator instance.
type Instance struct {
	InstanceID   string         `json:"instance_id" dynamodbav:"instance_id"`
	RunID        string         `json:"run_id,omitempty" dynamodbav:"run_id,omitempty"`
	BatchID      string         `json:"batch_id,omitempty" dynamodbav:"batch_id,omitempty"`
	FlowID       string         `json:"flow_id" dynamodbav:"flow_id"`
	Steps        []Step         `json:"steps" dynamodbav:"steps"`
	Input        map[string]any `json:"input,omitempty" dynamodbav:"input,omitempty"`
	Phase        InstancePhase  `json:"phase" dynamodbav:"phase"`
	WaitingMfa   bool           `json:"waiting_mfa" dynamodbav:"waiting_mfa"`
	MfaCode      string         `json:"mfa_code,omitempty" dynamodbav:"mfa_code,omitempty"`
	Output       map[string]any `json:"output,omitempty" dynamodbav:"output,omitempty"`
	ErrorCode    string         `json:"error_code,omitempty" dynamodbav:"error_code,omitempty"`
	ErrorMsg     string         `json:"error_msg,omitempty" dynamodbav:"error_msg,omitempty"`
	CodeDeadline int64          `json:"code_deadline,omitempty" dynamodbav:"code_deadline,omitempty"`
	// Settled is set once a terminal instance has written its outcome to the
	// run and announced it on the bus.
	Settled      bool           `json:"settled,omitempty" dynamodbav:"settled,omitempty"`
	Version      int64          `json:"version" dynamodbav:"version"`
	CreatedAt    int64          `json:"created_at" dynamodbav:"created_at"`
	UpdatedAt    int64          `json:"updated_at" dynamodbav:"updated_at"`
}

// StartRequest describes a new orchestrator instance.
type StartRequest struct {
	InstanceID string
	RunID      string
	BatchID    string
	FlowID     string
	Steps      []Step
	Input      map[string]any
}

func NewInstance(req StartRequest) *Instance {
	now := time.Now().UnixMilli()
	steps := req.Steps
	if steps == nil {
		steps = []Step{}
	}
	return &Instance{
		InstanceID: req.InstanceID,
		RunID:      req.RunID,
		BatchID:    req.BatchID,
		FlowID:     req.FlowID,
		Steps:      steps,
		Input:      req.Input,
		Phase:      PhasePending,
		Version:    1,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// Outcome is the terminal result a completed or failed instance records on its run.
func (i *Instance) Outcome() TerminalOutcome {
	if i.Phase == PhaseFailed {
		return Failed(i.ErrorCode, i.ErrorMsg)
	}
	return Succeeded(i.Output)
}

func (i *Instance) Clone() *Instance {
	c := *i
	return &c
}

// DeadlinePassed reports whether the code wait expired at now.
func (i *Instance) DeadlinePassed(now time.Time) bool {
	return i.CodeDeadline > 0 && now.UnixMilli() >= i.CodeDeadline
}

// RunExecutionState is the read-only snapshot exposed to queries.
type RunExecutionState struct {
	InstanceID string         `json:"instance_id"`
	RunID      string         `json:"run_id,omitempty"`
	Phase      InstancePhase  `json:"phase"`
	WaitingMfa bool           `json:"waiting_mfa"`
	MfaCode    *string        `json:"mfa_code"`
	Output     map[string]any `json:"output"`
	ErrorCode  string         `json:"error_code,omitempty"`
	ErrorMsg   string         `json:"error_msg,omitempty"`
	Deadline   *time.Time     `json:"deadline,omitempty"`
}

func (i *Instance) Snapshot() RunExecutionState {
	state := RunExecutionState{
		InstanceID: i.InstanceID,
		RunID:      i.RunID,
		Phase:      i.Phase,
		WaitingMfa: i.WaitingMfa,
		Output:     i.Output,
		ErrorCode:  i.ErrorCode,
		ErrorMsg:   i.ErrorMsg,
	}
	if i.MfaCode != "" {
		code := i.MfaCode
		state.MfaCode = &code
	}
	if i.CodeDeadline > 0 && i.Phase == PhaseAwaitingCode {
		deadline := time.UnixMilli(i.CodeDeadline).UTC()
		state.Deadline = &deadline
	}
	return state
}
