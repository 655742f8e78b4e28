package handler

import (
	"context"
	"errors"
	"strconv"
	"time"

	"rcmos/commons/error_handler"
	"rcmos/commons/handler"
	"rcmos/internal/domain"
	"rcmos/internal/dto"
	"rcmos/internal/logger"
	"rcmos/internal/service"
)

type RunHandler struct {
	logger logger.Logger
	runs   service.RunService
}

func NewRunHandler(log logger.Logger, runs service.RunService) *RunHandler {
	return &RunHandler{
		logger: log.With(logger.String("component", "run_handler")),
		runs:   runs,
	}
}

func (h *RunHandler) CreateRunService(
	ctx context.Context,
	ioutil *handler.RequestIo[dto.CreateRunRequest],
) (dto.CreateRunResponse, *error_handler.ErrorCollection) {
	body := ioutil.Body
	run, created, err := h.runs.SubmitRun(ctx, service.SubmitRunRequest{
		Purpose:          body.Purpose,
		PayerID:          body.PayerID,
		ProviderNPI:      body.ProviderNPI,
		BusinessDate:     body.BusinessDate,
		Input:            body.Input,
		IdempotencyHints: body.IdempotencyHints,
		BatchID:          body.BatchID,
	})
	if err != nil {
		h.logger.Error("failed to submit run",
			logger.String("purpose", body.Purpose),
			logger.Error(err))
		return dto.CreateRunResponse{}, error_handler.FromError(err)
	}

	return dto.CreateRunResponse{
		RunResponse:  toRunResponse(run),
		Deduplicated: !created,
	}, nil
}

func (h *RunHandler) GetRunService(
	ctx context.Context,
	ioutil *handler.RequestIo[dto.EmptyRequest],
) (dto.RunResponse, *error_handler.ErrorCollection) {
	runID := ioutil.PathParams["id"]
	run, err := h.runs.GetRun(ctx, runID)
	if err != nil {
		return dto.RunResponse{}, h.fail("failed to get run", runID, err)
	}
	return toRunResponse(run), nil
}

func (h *RunHandler) GetRunStateService(
	ctx context.Context,
	ioutil *handler.RequestIo[dto.EmptyRequest],
) (dto.RunStateResponse, *error_handler.ErrorCollection) {
	runID := ioutil.PathParams["id"]
	state, err := h.runs.GetRunState(ctx, runID)
	if err != nil {
		return dto.RunStateResponse{}, h.fail("failed to query run state", runID, err)
	}
	return toRunStateResponse(state), nil
}

func (h *RunHandler) SignalRunService(
	ctx context.Context,
	ioutil *handler.RequestIo[dto.SignalRunRequest],
) (dto.SignalRunResponse, *error_handler.ErrorCollection) {
	runID := ioutil.PathParams["id"]
	if ioutil.Body.Code == "" {
		return dto.SignalRunResponse{}, error_handler.NewErrorCollection().
			AddError(error_handler.CodeUnprocessable, "code is required", nil)
	}

	if err := h.runs.Signal(ctx, runID, ioutil.Body.Code); err != nil {
		return dto.SignalRunResponse{}, h.fail("failed to signal run", runID, err)
	}
	return dto.SignalRunResponse{RunID: runID, Accepted: true}, nil
}

func (h *RunHandler) GetOutcomeService(
	ctx context.Context,
	ioutil *handler.RequestIo[dto.EmptyRequest],
) (dto.OutcomeResponse, *error_handler.ErrorCollection) {
	runID := ioutil.PathParams["id"]
	timeout, err := parseTimeout(ioutil.QueryParams["timeout"])
	if err != nil {
		return dto.OutcomeResponse{}, error_handler.NewErrorCollection().
			AddError(error_handler.CodeValidationError, "timeout must be seconds or a duration like 5s", nil)
	}

	output, err := h.runs.AwaitOutcome(ctx, runID, timeout)
	if errors.Is(err, domain.ErrStillRunning) {
		return dto.OutcomeResponse{RunID: runID, Status: "pending"}, nil
	}
	if err != nil {
		return dto.OutcomeResponse{}, h.fail("failed to await run outcome", runID, err)
	}
	return dto.OutcomeResponse{RunID: runID, Status: "completed", Output: output}, nil
}

func (h *RunHandler) ListArtifactsService(
	ctx context.Context,
	ioutil *handler.RequestIo[dto.EmptyRequest],
) (dto.ListArtifactsResponse, *error_handler.ErrorCollection) {
	runID := ioutil.PathParams["id"]
	list, err := h.runs.ListArtifacts(ctx, runID)
	if err != nil {
		return dto.ListArtifactsResponse{}, h.fail("failed to list artifacts", runID, err)
	}

	resp := dto.ListArtifactsResponse{Artifacts: make([]dto.ArtifactResponse, 0, len(list))}
	for _, a := range list {
		resp.Artifacts = append(resp.Artifacts, dto.ArtifactResponse{Key: a.Key, URL: a.URL})
	}
	return resp, nil
}

func (h *RunHandler) fail(msg, runID string, err error) *error_handler.ErrorCollection {
	h.logger.Warn(msg,
		logger.String("run_id", runID),
		logger.Error(err))
	return error_handler.FromError(err)
}

// parseTimeout accepts whole seconds or a Go duration; empty means the
// service default.
func parseTimeout(raw string) (time.Duration, error) {
	if raw == "" {
		return 0, nil
	}
	if secs, err := strconv.Atoi(raw); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d < 0 {
		return 0, domain.Validationf("invalid timeout %q", raw)
	}
	return d, nil
}

func toRunResponse(run *domain.Run) dto.RunResponse {
	return dto.RunResponse{
		ID:          run.RunID,
		Purpose:     run.Purpose,
		PayerID:     run.PayerID,
		ProviderNPI: nullable(run.ProviderNPI),
		Status:      string(run.Status),
		Source:      run.Source,
		Input:       run.InputPayload,
		Output:      run.Output,
		ErrorCode:   nullable(run.ErrorCode),
		ErrorMsg:    nullable(run.ErrorMsg),
		CreatedAt:   run.CreatedAt,
		UpdatedAt:   run.UpdatedAt,
	}
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func toRunStateResponse(state domain.RunExecutionState) dto.RunStateResponse {
	return dto.RunStateResponse{
		InstanceID: state.InstanceID,
		RunID:      state.RunID,
		Phase:      string(state.Phase),
		WaitingMfa: state.WaitingMfa,
		MfaCode:    state.MfaCode,
		Output:     state.Output,
		ErrorCode:  state.ErrorCode,
		ErrorMsg:   state.ErrorMsg,
		Deadline:   state.Deadline,
	}
}
