package orchestrator_queue

import (
	"context"

	"rcmos/commons/config"
	consumer "rcmos/internal/consumer/orchestrator_queue/iface"
	consumerImpl "rcmos/internal/consumer/orchestrator_queue/impl"
	"rcmos/internal/logger"
	"rcmos/internal/orchestrator"
	queue "rcmos/internal/queue/iface"
	"rcmos/internal/queue/memory"
	"rcmos/internal/queue/sqs"

	awssqs "github.com/aws/aws-sdk-go-v2/service/sqs"
	"go.uber.org/fx"
)

// OrchestratorQueueParams holds dependencies for the orchestrator queue
type OrchestratorQueueParams struct {
	fx.In

	Logger   logger.Logger
	Settings config.Settings
	Engine   orchestrator.Engine
	// absent when store.driver=memory, which keeps tasks in process
	SQSClient *awssqs.Client `optional:"true"`
}

// OrchestratorQueueResult holds what this module provides
type OrchestratorQueueResult struct {
	fx.Out

	Consumer consumer.OrchestratorConsumer
	Queue    queue.Queue
}

// ProvideOrchestratorQueueAndConsumer builds the queue with a processor that
// forwards to the consumer created right after it.
func ProvideOrchestratorQueueAndConsumer(params OrchestratorQueueParams) OrchestratorQueueResult {
	var c consumer.OrchestratorConsumer

	processor := queue.MessageProcessorFunc[orchestrator.Task](func(ctx context.Context, task orchestrator.Task) bool {
		return c.ProcessMessage(ctx, task)
	})

	var q queue.Queue
	if params.SQSClient == nil {
		q = memory.NewMemoryQueue[orchestrator.Task](processor, params.Settings.Queue.WorkerCount, params.Logger)
	} else {
		q = sqs.NewSQSQueue[orchestrator.Task](
			params.SQSClient,
			sqs.QueueConfig{
				QueueURL:          params.Settings.Queue.URL,
				WorkerCount:       params.Settings.Queue.WorkerCount,
				MaxMessages:       1,
				WaitTimeSeconds:   params.Settings.Queue.WaitTimeSeconds,
				VisibilityTimeout: params.Settings.Queue.VisibilityTimeout,
			},
			processor,
			params.Logger,
		)
	}

	c = consumerImpl.NewOrchestratorConsumer(params.Engine, params.Logger)

	return OrchestratorQueueResult{
		Consumer: c,
		Queue:    q,
	}
}

// OrchestratorQueueModule provides the queue, its consumer and the consumer lifecycle
func OrchestratorQueueModule() fx.Option {
	return fx.Options(
		fx.Provide(
			ProvideOrchestratorQueueAndConsumer,
		),
		fx.Invoke(func(params struct {
			fx.In
			Lifecycle fx.Lifecycle
			Queue     queue.Queue
			Logger    logger.Logger
		}) {
			params.Lifecycle.Append(fx.Hook{
				OnStart: func(ctx context.Context) error {
					params.Logger.Info("starting orchestrator queue consumer")
					return params.Queue.StartConsumer(ctx)
				},
				OnStop: func(ctx context.Context) error {
					params.Logger.Info("stopping orchestrator queue consumer")
					return params.Queue.StopConsumer(ctx)
				},
			})
		}),
	)
}
