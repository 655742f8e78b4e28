package handler

import (
	"context"

	"rcmos/commons/error_handler"
	"rcmos/commons/handler"
	"rcmos/internal/domain"
	"rcmos/internal/dto"
	"rcmos/internal/logger"
	"rcmos/internal/service"
)

type PortalHandler struct {
	logger logger.Logger
	portal service.PortalService
}

func NewPortalHandler(log logger.Logger, portal service.PortalService) *PortalHandler {
	return &PortalHandler{
		logger: log.With(logger.String("component", "portal_handler")),
		portal: portal,
	}
}

func (h *PortalHandler) StartFlowService(
	ctx context.Context,
	ioutil *handler.RequestIo[dto.StartPortalFlowRequest],
) (dto.StartPortalFlowResponse, *error_handler.ErrorCollection) {
	body := ioutil.Body
	steps := make([]domain.Step, 0, len(body.Steps))
	for _, s := range body.Steps {
		steps = append(steps, domain.Step(s))
	}

	id, state, err := h.portal.StartFlow(ctx, service.StartFlowRequest{
		WorkflowID: body.WorkflowID,
		FlowID:     body.FlowID,
		Steps:      steps,
		FlowYAML:   body.FlowYAML,
		Input:      body.Input,
	})
	if err != nil {
		h.logger.Warn("failed to start portal flow",
			logger.String("workflow_id", body.WorkflowID),
			logger.Error(err))
		return dto.StartPortalFlowResponse{}, error_handler.FromError(err)
	}

	resp := dto.StartPortalFlowResponse{WorkflowID: id, State: map[string]any{}}
	if state != nil {
		resp.State = toRunStateResponse(*state)
	}
	return resp, nil
}

func (h *PortalHandler) StateService(
	ctx context.Context,
	ioutil *handler.RequestIo[dto.EmptyRequest],
) (dto.RunStateResponse, *error_handler.ErrorCollection) {
	id := ioutil.PathParams["workflow_id"]
	state, err := h.portal.State(ctx, id)
	if err != nil {
		return dto.RunStateResponse{}, error_handler.FromError(err)
	}
	return toRunStateResponse(state), nil
}

func (h *PortalHandler) ProvideMfaService(
	ctx context.Context,
	ioutil *handler.RequestIo[dto.PortalMfaRequest],
) (dto.PortalMfaResponse, *error_handler.ErrorCollection) {
	id := ioutil.PathParams["workflow_id"]
	if ioutil.Body.Code == "" {
		return dto.PortalMfaResponse{}, error_handler.NewErrorCollection().
			AddError(error_handler.CodeUnprocessable, "code is required", nil)
	}

	result, pending, err := h.portal.ProvideMfa(ctx, id, ioutil.Body.Code, 0)
	if err != nil {
		h.logger.Warn("failed to deliver portal mfa code",
			logger.String("workflow_id", id),
			logger.Error(err))
		return dto.PortalMfaResponse{}, error_handler.FromError(err)
	}
	if pending {
		return dto.PortalMfaResponse{Status: "pending"}, nil
	}
	return dto.PortalMfaResponse{Result: result}, nil
}
