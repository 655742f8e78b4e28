package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"rcmos/internal/artifacts"
	cache "rcmos/internal/cache/iface"
	"rcmos/internal/domain"
	eventbus "rcmos/internal/eventbus/iface"
	"rcmos/internal/flow"
	"rcmos/internal/idempotency"
	"rcmos/internal/logger"
	"rcmos/internal/metrics"
	"rcmos/internal/orchestrator"
	repository "rcmos/internal/repository/iface"
)

const runCacheKeyPrefix = "rcmos:run:"

type SubmitRunRequest struct {
	Purpose          string
	PayerID          string
	ProviderNPI      string
	BusinessDate     string
	Input            map[string]any
	IdempotencyHints map[string]any
	BatchID          string
}

// RunService is the control plane for runs.
type RunService interface {
	// SubmitRun returns the run for the request's fingerprint, creating and
	// starting it on first sight. created reports whether this call made it.
	SubmitRun(ctx context.Context, req SubmitRunRequest) (run *domain.Run, created bool, err error)
	GetRun(ctx context.Context, runID string) (*domain.Run, error)
	GetRunState(ctx context.Context, runID string) (domain.RunExecutionState, error)
	Signal(ctx context.Context, runID, code string) error
	// AwaitOutcome falls back to the configured await timeout when timeout <= 0.
	AwaitOutcome(ctx context.Context, runID string, timeout time.Duration) (map[string]any, error)
	ListArtifacts(ctx context.Context, runID string) ([]artifacts.Artifact, error)
}

type RunServiceConfig struct {
	AwaitTimeout time.Duration
	TerminalTTL  time.Duration
}

type runService struct {
	runs         repository.RunRepository
	orchestrator orchestrator.Client
	bus          eventbus.Bus
	cache        cache.Cache
	artifacts    artifacts.Store
	config       RunServiceConfig
	logger       logger.Logger
}

func NewRunService(
	runs repository.RunRepository,
	client orchestrator.Client,
	bus eventbus.Bus,
	c cache.Cache,
	store artifacts.Store,
	config RunServiceConfig,
	log logger.Logger,
) RunService {
	return &runService{
		runs:         runs,
		orchestrator: client,
		bus:          bus,
		cache:        c,
		artifacts:    store,
		config:       config,
		logger:       log.With(logger.String("component", "run_service")),
	}
}

func (s *runService) SubmitRun(ctx context.Context, req SubmitRunRequest) (*domain.Run, bool, error) {
	key, err := idempotency.Derive(idempotency.Material{
		Purpose:      req.Purpose,
		PayerID:      req.PayerID,
		ProviderNPI:  req.ProviderNPI,
		Business:     idempotency.MergeHints(req.Input, req.IdempotencyHints),
		BusinessDate: req.BusinessDate,
	})
	if err != nil {
		return nil, false, err
	}

	candidate := domain.NewRun(req.Purpose, req.PayerID, req.ProviderNPI, req.Input)
	run, created, err := s.runs.CreateRunIfAbsent(ctx, key, candidate)
	if err != nil {
		return nil, false, err
	}

	if !created {
		metrics.IncRunSubmitted("deduplicated")
		s.logger.Info("duplicate submission",
			logger.String("run_id", run.RunID),
			logger.String("status", string(run.Status)))
		// an earlier submit may have committed the run and then failed to start it
		if run.Status == domain.RunStatusQueued {
			if err := s.start(ctx, run, req.BatchID); err != nil {
				return nil, false, err
			}
		}
		return run, false, nil
	}

	metrics.IncRunSubmitted("created")
	metrics.IncRunTransition(domain.RunStatusQueued)
	s.logger.Info("run created",
		logger.String("run_id", run.RunID),
		logger.String("purpose", run.Purpose))

	s.publish(ctx, domain.EventRunCreated, run.RunID, req.BatchID, domain.RunCreatedPayload{Purpose: run.Purpose})

	if err := s.start(ctx, run, req.BatchID); err != nil {
		return nil, false, err
	}
	return run, true, nil
}

func (s *runService) start(ctx context.Context, run *domain.Run, batchID string) error {
	def := flow.ForPurpose(run.Purpose)
	_, err := s.orchestrator.Start(ctx, domain.StartRequest{
		InstanceID: run.RunID,
		RunID:      run.RunID,
		BatchID:    batchID,
		FlowID:     def.FlowID,
		Steps:      def.Steps,
		Input:      run.InputPayload,
	})
	if err != nil {
		s.logger.Error("failed to start orchestrator instance",
			logger.String("run_id", run.RunID),
			logger.Error(err))
		return err
	}
	return nil
}

// publish is fire and forget; a bus outage never fails a submission.
func (s *runService) publish(ctx context.Context, eventType domain.EventType, runID, batchID string, payload any) {
	event, err := domain.NewEvent(eventType, runID, payload)
	if err == nil {
		err = s.bus.Publish(ctx, event.WithBatch(batchID))
	}
	if err != nil {
		s.logger.Warn("failed to publish event",
			logger.String("type", string(eventType)),
			logger.String("run_id", runID),
			logger.Error(err))
		return
	}
	metrics.IncEventPublished(eventType)
}

func (s *runService) GetRun(ctx context.Context, runID string) (*domain.Run, error) {
	if run, ok := s.cachedRun(ctx, runID); ok {
		return run, nil
	}

	run, err := s.runs.Get(ctx, runID)
	if err != nil {
		return nil, err
	}
	if run.Status.IsTerminal() {
		s.cacheRun(ctx, run)
	}
	return run, nil
}

// cachedRun only ever holds terminal runs, which never change again.
func (s *runService) cachedRun(ctx context.Context, runID string) (*domain.Run, bool) {
	if s.cache == nil {
		return nil, false
	}
	raw, err := s.cache.Get(ctx, runCacheKeyPrefix+runID)
	if err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			s.logger.Warn("run cache read failed", logger.Error(err))
		}
		return nil, false
	}

	var run domain.Run
	if err := json.Unmarshal([]byte(raw), &run); err != nil {
		s.logger.Warn("discarding corrupt cached run",
			logger.String("run_id", runID),
			logger.Error(err))
		return nil, false
	}
	return &run, true
}

func (s *runService) cacheRun(ctx context.Context, run *domain.Run) {
	if s.cache == nil {
		return
	}
	raw, err := json.Marshal(run)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, runCacheKeyPrefix+run.RunID, string(raw), s.config.TerminalTTL); err != nil {
		s.logger.Warn("run cache write failed", logger.Error(err))
	}
}

func (s *runService) GetRunState(ctx context.Context, runID string) (domain.RunExecutionState, error) {
	return s.orchestrator.Query(ctx, runID)
}

func (s *runService) Signal(ctx context.Context, runID, code string) error {
	return s.orchestrator.SignalMfaCode(ctx, runID, code)
}

func (s *runService) AwaitOutcome(ctx context.Context, runID string, timeout time.Duration) (map[string]any, error) {
	if timeout <= 0 {
		timeout = s.config.AwaitTimeout
	}
	return s.orchestrator.AwaitResult(ctx, runID, timeout)
}

func (s *runService) ListArtifacts(ctx context.Context, runID string) ([]artifacts.Artifact, error) {
	if _, err := s.GetRun(ctx, runID); err != nil {
		return nil, err
	}
	return s.artifacts.List(ctx, runID)
}
