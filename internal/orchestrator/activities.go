package orchestrator

import (
	"context"
	"fmt"
	"time"

	"rcmos/internal/domain"
	eventbus "rcmos/internal/eventbus/iface"
	"rcmos/internal/logger"
	"rcmos/internal/metrics"
	"rcmos/internal/retry"
	"rcmos/internal/slack"
)

const eventSource = "worker"

// activities are the side effects of advancing an instance. Each may run
// more than once for the same transition, so subscribers see duplicates at worst.
type activities struct {
	bus             eventbus.Bus
	notifier        slack.Client
	operatorChannel string
	policy          retry.Policy
	logger          logger.Logger
}

func (a *activities) emit(ctx context.Context, eventType domain.EventType, instance *domain.Instance, payload any) error {
	runID := instance.RunID
	event, err := domain.NewEvent(eventType, runID, payload)
	if err != nil {
		return err
	}
	event = event.WithSource(eventSource).WithBatch(instance.BatchID)

	err = retry.Do(ctx, a.policy, func(ctx context.Context) error {
		return a.bus.Publish(ctx, event)
	}, func(err error, wait time.Duration) {
		metrics.IncActivityRetries()
		a.logger.Warn("event publish failed, retrying",
			logger.String("type", string(eventType)),
			logger.String("run_id", runID),
			logger.Duration("wait", wait),
			logger.Error(err))
	})
	if err != nil {
		return fmt.Errorf("failed to emit %s: %w", eventType, err)
	}

	metrics.IncEventPublished(eventType)
	return nil
}

// notifyOperator is best effort: the event already went out on the bus.
func (a *activities) notifyOperator(ctx context.Context, instance *domain.Instance) {
	if a.notifier == nil || a.operatorChannel == "" {
		return
	}
	target := instance.InstanceID
	if instance.RunID != "" {
		target = "run " + instance.RunID
	}
	message := fmt.Sprintf("MFA code needed for %s (flow %s). Submit it before %s.",
		target, instance.FlowID, time.UnixMilli(instance.CodeDeadline).UTC().Format(time.RFC3339))

	if err := a.notifier.SendMessage(ctx, a.operatorChannel, message); err != nil {
		a.logger.Warn("operator notification failed",
			logger.String("instance_id", instance.InstanceID),
			logger.Error(err))
	}
}
