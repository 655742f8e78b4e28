package dto

type StartPortalFlowRequest struct {
	WorkflowID string           `json:"workflow_id"`
	FlowID     string           `json:"flow_id"`
	Steps      []map[string]any `json:"steps"`
	FlowYAML   string           `json:"flow_yaml,omitempty"`
	Input      map[string]any   `json:"input,omitempty"`
}

type StartPortalFlowResponse struct {
	WorkflowID string `json:"workflow_id"`
	// State is an empty object when the snapshot could not be read.
	State any `json:"state"`
}

type PortalMfaRequest struct {
	Code string `json:"code"`
}

type PortalMfaResponse struct {
	Result map[string]any `json:"result,omitempty"`
	Status string         `json:"status,omitempty"`
}
