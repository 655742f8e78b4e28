package orchestrator_queue

import (
	"context"
	"errors"

	consumer "rcmos/internal/consumer/orchestrator_queue/iface"
	"rcmos/internal/domain"
	"rcmos/internal/logger"
	"rcmos/internal/orchestrator"
	repository "rcmos/internal/repository/iface"
)

type orchestratorConsumer struct {
	engine orchestrator.Engine
	logger logger.Logger
}

func NewOrchestratorConsumer(engine orchestrator.Engine, log logger.Logger) consumer.OrchestratorConsumer {
	return &orchestratorConsumer{
		engine: engine,
		logger: log.With(logger.String("component", "orchestrator_consumer")),
	}
}

func (c *orchestratorConsumer) ProcessMessage(ctx context.Context, task orchestrator.Task) bool {
	if task.InstanceID == "" {
		c.logger.Warn("dropping task without instance id",
			logger.String("reason", string(task.Reason)))
		return true
	}

	err := c.engine.Advance(ctx, task.InstanceID)
	if err == nil {
		return true
	}

	log := c.logger.With(
		logger.String("instance_id", task.InstanceID),
		logger.String("reason", string(task.Reason)),
		logger.Error(err))
	if retryable(err) {
		log.Warn("advance interrupted, task will be redelivered")
		return false
	}
	if errors.Is(err, domain.ErrNotFound) {
		log.Warn("dropping task for unknown instance")
		return true
	}
	// replaying would fail the same way
	log.Error("advance failed, dropping task")
	return true
}

// retryable errors come from infrastructure or from contention, not from the instance itself.
func retryable(err error) bool {
	return errors.Is(err, domain.ErrTransport) ||
		repository.IsOptimisticLockError(err) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}
