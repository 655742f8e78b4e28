package dto

import "time"

type CreateRunRequest struct {
	Purpose          string         `json:"purpose" binding:"required"`
	PayerID          string         `json:"payer_id" binding:"required"`
	ProviderNPI      string         `json:"provider_npi,omitempty"`
	BusinessDate     string         `json:"business_date,omitempty"`
	Input            map[string]any `json:"input"`
	IdempotencyHints map[string]any `json:"idempotency_hints,omitempty"`
	// BatchID tags the run's events; it is not part of the dedupe key.
	BatchID          string         `json:"batch_id,omitempty"`
}

// RunResponse is the public representation of a run. Unset optional
// fields are sent as null rather than omitted.
type RunResponse struct {
	ID          string         `json:"id"`
	Purpose     string         `json:"purpose"`
	PayerID     string         `json:"payer_id"`
	ProviderNPI *string        `json:"provider_npi"`
	Status      string         `json:"status"`
	Source      string         `json:"source"`
	Input       map[string]any `json:"input"`
	Output      map[string]any `json:"output"`
	ErrorCode   *string        `json:"error_code"`
	ErrorMsg    *string        `json:"error_msg"`
	CreatedAt   int64          `json:"created_at"`
	UpdatedAt   int64          `json:"updated_at"`
}

type CreateRunResponse struct {
	RunResponse
	Deduplicated bool `json:"deduplicated"`
}

type RunStateResponse struct {
	InstanceID string         `json:"instance_id"`
	RunID      string         `json:"run_id,omitempty"`
	Phase      string         `json:"phase"`
	WaitingMfa bool           `json:"waiting_mfa"`
	MfaCode    *string        `json:"mfa_code"`
	Output     map[string]any `json:"output"`
	ErrorCode  string         `json:"error_code,omitempty"`
	ErrorMsg   string         `json:"error_msg,omitempty"`
	Deadline   *time.Time     `json:"deadline,omitempty"`
}

type SignalRunRequest struct {
	Code string `json:"code"`
}

type SignalRunResponse struct {
	RunID    string `json:"run_id"`
	Accepted bool   `json:"accepted"`
}

// OutcomeResponse reports "completed" with the output, or "pending" when the
// wait ran out first.
type OutcomeResponse struct {
	RunID  string         `json:"run_id"`
	Status string         `json:"status"`
	Output map[string]any `json:"output,omitempty"`
}

type ArtifactResponse struct {
	Key string `json:"key"`
	URL string `json:"url"`
}

type ListArtifactsResponse struct {
	Artifacts []ArtifactResponse `json:"artifacts"`
}
