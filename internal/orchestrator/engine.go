package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"rcmos/internal/domain"
	eventbus "rcmos/internal/eventbus/iface"
	"rcmos/internal/flow"
	"rcmos/internal/logger"
	"rcmos/internal/metrics"
	repository "rcmos/internal/repository/iface"
	"rcmos/internal/slack"
)

// maxAdvanceRounds bounds one task; every successful CAS costs a round.
const maxAdvanceRounds = 16

// Engine moves instances through pending -> awaiting_code -> executing ->
// completed|failed. It holds no goroutine while an instance waits for a code.
type Engine interface {
	Advance(ctx context.Context, instanceID string) error
}

type EngineDeps struct {
	Instances repository.InstanceRepository
	Runs      repository.RunRepository
	Bus       eventbus.Bus
	Flow      flow.Executor
	Timers    Timers
	Notifier  slack.Client
}

type engine struct {
	instances repository.InstanceRepository
	runs      repository.RunRepository
	flow      flow.Executor
	timers    Timers
	acts      *activities
	opts      Options
	logger    logger.Logger
	now       func() time.Time
}

func NewEngine(deps EngineDeps, opts Options, log logger.Logger) Engine {
	opts = opts.withDefaults()
	log = log.With(logger.String("component", "orchestrator_engine"))
	return &engine{
		instances: deps.Instances,
		runs:      deps.Runs,
		flow:      deps.Flow,
		timers:    deps.Timers,
		acts: &activities{
			bus:             deps.Bus,
			notifier:        deps.Notifier,
			operatorChannel: opts.OperatorChannel,
			policy:          opts.ActivityRetry,
			logger:          log,
		},
		opts:   opts,
		logger: log,
		now:    time.Now,
	}
}

func (e *engine) Advance(ctx context.Context, instanceID string) error {
	start := time.Now()
	defer func() { metrics.ObserveAdvanceDuration(time.Since(start)) }()

	for round := 0; round < maxAdvanceRounds; round++ {
		instance, err := e.instances.Get(ctx, instanceID)
		if err != nil {
			return err
		}

		var stepErr error
		switch instance.Phase {
		case domain.PhaseCompleted, domain.PhaseFailed:
			if instance.Settled {
				return nil
			}
			stepErr = e.settle(ctx, instance)
		case domain.PhasePending:
			stepErr = e.requestCode(ctx, instance)
		case domain.PhaseAwaitingCode:
			var suspended bool
			suspended, stepErr = e.checkCode(ctx, instance)
			if suspended {
				e.logger.Debug("instance suspended awaiting code",
					logger.String("instance_id", instanceID))
				return nil
			}
		case domain.PhaseExecuting:
			stepErr = e.execute(ctx, instance)
		default:
			return fmt.Errorf("instance %s has unknown phase %q", instanceID, instance.Phase)
		}

		if repository.IsOptimisticLockError(stepErr) {
			e.logger.Debug("lost instance race, reloading",
				logger.String("instance_id", instanceID),
				logger.String("phase", string(instance.Phase)))
			continue
		}
		if stepErr != nil {
			return stepErr
		}
	}

	return fmt.Errorf("instance %s did not settle after %d rounds", instanceID, maxAdvanceRounds)
}

// requestCode marks the run running, announces the breakpoint and opens the code wait.
func (e *engine) requestCode(ctx context.Context, instance *domain.Instance) error {
	if instance.RunID != "" {
		_, err := e.runs.MarkRunning(ctx, instance.RunID)
		switch {
		case errors.Is(err, repository.ErrAlreadyTerminal):
			e.logger.Warn("run already terminal at start",
				logger.String("run_id", instance.RunID))
		case err != nil:
			return fmt.Errorf("failed to mark run running: %w", err)
		default:
			metrics.IncRunTransition(domain.RunStatusRunning)
		}
	}

	payload := domain.MfaRequestedPayload{FlowID: instance.FlowID, InstanceID: instance.InstanceID}
	if err := e.acts.emit(ctx, domain.EventMfaRequested, instance, payload); err != nil {
		return err
	}

	next := instance.Clone()
	next.Phase = domain.PhaseAwaitingCode
	next.WaitingMfa = instance.MfaCode == ""
	next.CodeDeadline = e.now().Add(e.opts.MfaTimeout).UnixMilli()
	if err := e.instances.Update(ctx, next); err != nil {
		return err
	}
	metrics.IncInstancePhase(domain.PhaseAwaitingCode)

	e.logger.Info("awaiting mfa code",
		logger.String("instance_id", next.InstanceID),
		logger.String("run_id", next.RunID),
		logger.Int64("deadline", next.CodeDeadline))

	if next.WaitingMfa {
		e.acts.notifyOperator(ctx, next)
	}
	return nil
}

// checkCode consumes a delivered code, expires the wait, or suspends.
func (e *engine) checkCode(ctx context.Context, instance *domain.Instance) (bool, error) {
	if instance.MfaCode != "" {
		next := instance.Clone()
		next.Phase = domain.PhaseExecuting
		next.WaitingMfa = false
		next.CodeDeadline = 0
		if err := e.instances.Update(ctx, next); err != nil {
			return false, err
		}
		metrics.IncInstancePhase(domain.PhaseExecuting)
		e.cancelTimer(ctx, instance.InstanceID)
		return false, nil
	}

	if instance.DeadlinePassed(e.now()) {
		e.logger.Info("mfa code wait expired",
			logger.String("instance_id", instance.InstanceID))
		return false, e.fail(ctx, instance, domain.ErrorCodeMfaTimeout, domain.ErrorMsgMfaTimeout)
	}

	if err := e.timers.Register(ctx, instance.InstanceID, time.UnixMilli(instance.CodeDeadline)); err != nil {
		return false, err
	}
	return true, nil
}

func (e *engine) execute(ctx context.Context, instance *domain.Instance) error {
	output, err := e.flow.Execute(ctx, instance.FlowID, instance.Steps, instance.Input)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		e.logger.Warn("flow execution failed",
			logger.String("instance_id", instance.InstanceID),
			logger.Error(err))
		return e.fail(ctx, instance, domain.ErrorCodeStepFailed, err.Error())
	}
	return e.complete(ctx, instance, output)
}

// complete and fail move the instance to its terminal phase first. The CAS
// is what decides between a late code and an expired wait; the run record and
// the terminal event follow from the winning phase in settle.
func (e *engine) complete(ctx context.Context, instance *domain.Instance, output map[string]any) error {
	next := instance.Clone()
	next.Phase = domain.PhaseCompleted
	next.WaitingMfa = false
	next.Output = output
	if err := e.instances.Update(ctx, next); err != nil {
		return err
	}
	metrics.IncInstancePhase(domain.PhaseCompleted)

	e.logger.Info("instance completed",
		logger.String("instance_id", instance.InstanceID),
		logger.String("run_id", instance.RunID))
	return e.settle(ctx, next)
}

func (e *engine) fail(ctx context.Context, instance *domain.Instance, code, msg string) error {
	next := instance.Clone()
	next.Phase = domain.PhaseFailed
	next.WaitingMfa = false
	next.CodeDeadline = 0
	next.ErrorCode = code
	next.ErrorMsg = msg
	if err := e.instances.Update(ctx, next); err != nil {
		return err
	}
	metrics.IncInstancePhase(domain.PhaseFailed)
	e.cancelTimer(ctx, instance.InstanceID)

	e.logger.Info("instance failed",
		logger.String("instance_id", instance.InstanceID),
		logger.String("run_id", instance.RunID),
		logger.String("error_code", code))
	return e.settle(ctx, next)
}

// settle copies a terminal instance's outcome onto its run and emits the
// terminal event. It is replayed until the instance is marked settled, so the
// event may be seen more than once but never with a different outcome.
func (e *engine) settle(ctx context.Context, instance *domain.Instance) error {
	outcome := instance.Outcome()
	if err := e.recordOutcome(ctx, instance, outcome); err != nil {
		return err
	}

	var err error
	if outcome.Status == domain.RunStatusFailed {
		err = e.acts.emit(ctx, domain.EventRunFailed, instance, domain.RunFailedPayload{
			FlowID: instance.FlowID, ErrorCode: instance.ErrorCode, ErrorMsg: instance.ErrorMsg,
		})
	} else {
		err = e.acts.emit(ctx, domain.EventRunSucceeded, instance, domain.RunSucceededPayload{
			FlowID: instance.FlowID, Output: instance.Output,
		})
	}
	if err != nil {
		return err
	}

	next := instance.Clone()
	next.Settled = true
	return e.instances.Update(ctx, next)
}

// recordOutcome persists the terminal outcome on the run. A replayed task
// finds the run already terminal, which is fine.
func (e *engine) recordOutcome(ctx context.Context, instance *domain.Instance, outcome domain.TerminalOutcome) error {
	if instance.RunID == "" {
		return nil
	}
	_, err := e.runs.UpdateTerminal(ctx, instance.RunID, outcome)
	if errors.Is(err, repository.ErrAlreadyTerminal) {
		e.logger.Debug("run already terminal",
			logger.String("run_id", instance.RunID))
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to record run outcome: %w", err)
	}
	metrics.IncRunTransition(outcome.Status)
	return nil
}

func (e *engine) cancelTimer(ctx context.Context, instanceID string) {
	if err := e.timers.Cancel(ctx, instanceID); err != nil {
		e.logger.Warn("failed to cancel timer",
			logger.String("instance_id", instanceID),
			logger.Error(err))
	}
}
