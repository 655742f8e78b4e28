package service

import (
	"context"
	"errors"
	"time"

	"rcmos/internal/domain"
	"rcmos/internal/flow"
	"rcmos/internal/logger"
	"rcmos/internal/orchestrator"
)

const (
	DefaultPortalFlowID     = "test-flow"
	DefaultPortalWorkflowID = "wf-test-1"
)

// StartFlowRequest drives a portal flow without a run record. FlowYAML,
// when set, supplies the steps.
type StartFlowRequest struct {
	WorkflowID string
	FlowID     string
	Steps      []domain.Step
	FlowYAML   string
	Input      map[string]any
}

// PortalService is the test harness over bare orchestrator instances.
type PortalService interface {
	StartFlow(ctx context.Context, req StartFlowRequest) (workflowID string, state *domain.RunExecutionState, err error)
	State(ctx context.Context, workflowID string) (domain.RunExecutionState, error)
	// ProvideMfa signals the code and waits up to timeout for the result.
	// pending is true when the flow has not finished by then.
	ProvideMfa(ctx context.Context, workflowID, code string, timeout time.Duration) (result map[string]any, pending bool, err error)
}

type portalService struct {
	orchestrator orchestrator.Client
	awaitTimeout time.Duration
	logger       logger.Logger
}

func NewPortalService(client orchestrator.Client, awaitTimeout time.Duration, log logger.Logger) PortalService {
	return &portalService{
		orchestrator: client,
		awaitTimeout: awaitTimeout,
		logger:       log.With(logger.String("component", "portal_service")),
	}
}

func (s *portalService) StartFlow(ctx context.Context, req StartFlowRequest) (string, *domain.RunExecutionState, error) {
	if req.WorkflowID == "" {
		req.WorkflowID = DefaultPortalWorkflowID
	}
	if req.FlowID == "" {
		req.FlowID = DefaultPortalFlowID
	}
	if req.FlowYAML != "" {
		def, err := flow.ParseDefinition(req.FlowYAML)
		if err != nil {
			return "", nil, err
		}
		req.Steps = def.Steps
		if def.FlowID != "" {
			req.FlowID = def.FlowID
		}
	}
	if len(req.Steps) == 0 {
		req.Steps = []domain.Step{{"op": "noop"}}
	}

	id, err := s.orchestrator.Start(ctx, domain.StartRequest{
		InstanceID: req.WorkflowID,
		FlowID:     req.FlowID,
		Steps:      req.Steps,
		Input:      req.Input,
	})
	if err != nil {
		return "", nil, err
	}

	state, err := s.orchestrator.Query(ctx, id)
	if err != nil {
		s.logger.Warn("state unavailable after start",
			logger.String("workflow_id", id),
			logger.Error(err))
		return id, nil, nil
	}
	return id, &state, nil
}

func (s *portalService) State(ctx context.Context, workflowID string) (domain.RunExecutionState, error) {
	return s.orchestrator.Query(ctx, workflowID)
}

func (s *portalService) ProvideMfa(ctx context.Context, workflowID, code string, timeout time.Duration) (map[string]any, bool, error) {
	if err := s.orchestrator.SignalMfaCode(ctx, workflowID, code); err != nil {
		return nil, false, err
	}

	if timeout <= 0 {
		timeout = s.awaitTimeout
	}
	result, err := s.orchestrator.AwaitResult(ctx, workflowID, timeout)
	if errors.Is(err, domain.ErrStillRunning) {
		return nil, true, nil
	}
	if err != nil {
		return nil, false, err
	}
	return result, false, nil
}
