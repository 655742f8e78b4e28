package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"rcmos/internal/domain"
	"rcmos/internal/logger"
	"rcmos/internal/metrics"
	repository "rcmos/internal/repository/iface"
)

// Client is the control plane's handle on orchestrator instances.
type Client interface {
	// Start creates the instance, or returns the existing one with the same id.
	Start(ctx context.Context, req domain.StartRequest) (string, error)
	Query(ctx context.Context, instanceID string) (domain.RunExecutionState, error)
	SignalMfaCode(ctx context.Context, instanceID, code string) error
	// AwaitResult returns domain.ErrStillRunning when timeout elapses first.
	AwaitResult(ctx context.Context, instanceID string, timeout time.Duration) (map[string]any, error)
}

type client struct {
	instances    repository.InstanceRepository
	tasks        TaskQueue
	pollInterval time.Duration
	logger       logger.Logger
	now          func() time.Time
}

func NewClient(instances repository.InstanceRepository, tasks TaskQueue, opts Options, log logger.Logger) Client {
	opts = opts.withDefaults()
	return &client{
		instances:    instances,
		tasks:        tasks,
		pollInterval: opts.AwaitPollInterval,
		logger:       log.With(logger.String("component", "orchestrator_client")),
		now:          time.Now,
	}
}

func (c *client) Start(ctx context.Context, req domain.StartRequest) (string, error) {
	if req.InstanceID == "" {
		return "", domain.Validationf("instance id is required")
	}

	err := c.instances.Create(ctx, domain.NewInstance(req))
	if errors.Is(err, repository.ErrInstanceExists) {
		existing, err := c.instances.Get(ctx, req.InstanceID)
		if err != nil {
			return "", err
		}
		// a start whose first task was lost leaves the instance pending
		if existing.Phase == domain.PhasePending {
			if err := c.tasks.Enqueue(ctx, Task{InstanceID: existing.InstanceID, Reason: ReasonKick}); err != nil {
				return "", err
			}
		}
		c.logger.Debug("instance already started",
			logger.String("instance_id", req.InstanceID),
			logger.String("phase", string(existing.Phase)))
		return existing.InstanceID, nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to create instance: %w", err)
	}
	metrics.IncInstancePhase(domain.PhasePending)

	if err := c.tasks.Enqueue(ctx, Task{InstanceID: req.InstanceID, Reason: ReasonStart}); err != nil {
		return "", err
	}

	c.logger.Info("instance started",
		logger.String("instance_id", req.InstanceID),
		logger.String("run_id", req.RunID),
		logger.String("flow_id", req.FlowID))
	return req.InstanceID, nil
}

func (c *client) Query(ctx context.Context, instanceID string) (domain.RunExecutionState, error) {
	instance, err := c.instances.Get(ctx, instanceID)
	if err != nil {
		return domain.RunExecutionState{}, err
	}
	return instance.Snapshot(), nil
}

// SignalMfaCode stores the code on the instance. A code sent while the
// instance is still pending is kept and consumed once the wait opens.
func (c *client) SignalMfaCode(ctx context.Context, instanceID, code string) error {
	if code == "" {
		metrics.IncSignal("invalid")
		return domain.Validationf("code is required")
	}

	for {
		instance, err := c.instances.Get(ctx, instanceID)
		if err != nil {
			metrics.IncSignal("not_found")
			return err
		}

		switch {
		case instance.Phase.IsTerminal(), instance.Phase == domain.PhaseExecuting:
			metrics.IncSignal("conflict")
			return domain.Conflictf("instance %s is %s and no longer accepts a code", instanceID, instance.Phase)
		case instance.Phase == domain.PhaseAwaitingCode && instance.DeadlinePassed(c.now()):
			metrics.IncSignal("conflict")
			return domain.Conflictf("instance %s code wait has expired", instanceID)
		}

		next := instance.Clone()
		next.MfaCode = code
		next.WaitingMfa = false
		err = c.instances.Update(ctx, next)
		if repository.IsOptimisticLockError(err) {
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to store code: %w", err)
		}
		break
	}

	if err := c.tasks.Enqueue(ctx, Task{InstanceID: instanceID, Reason: ReasonSignal}); err != nil {
		return err
	}

	metrics.IncSignal("delivered")
	c.logger.Info("mfa code delivered",
		logger.String("instance_id", instanceID))
	return nil
}

func (c *client) AwaitResult(ctx context.Context, instanceID string, timeout time.Duration) (map[string]any, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		instance, err := c.instances.Get(ctx, instanceID)
		if err != nil {
			if ctx.Err() != nil {
				return nil, domain.ErrStillRunning
			}
			return nil, err
		}

		// a terminal instance counts once its run record agrees with it
		switch {
		case !instance.Settled:
		case instance.Phase == domain.PhaseCompleted:
			return instance.Output, nil
		case instance.Phase == domain.PhaseFailed:
			return nil, &domain.OrchestrationFailure{Code: instance.ErrorCode, Message: instance.ErrorMsg}
		}

		select {
		case <-ctx.Done():
			return nil, domain.ErrStillRunning
		case <-ticker.C:
		}
	}
}
