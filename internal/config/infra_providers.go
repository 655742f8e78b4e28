package config

import (
	"rcmos/commons/config"
	cache "rcmos/internal/cache/iface"
	cacheMemory "rcmos/internal/cache/memory"
	coordinator "rcmos/internal/coordinator/iface"
	"rcmos/internal/coordinator/local"
	eventbus "rcmos/internal/eventbus/iface"
	busMemory "rcmos/internal/eventbus/memory"
	"rcmos/internal/logger"
	"rcmos/internal/orchestrator"
	queue "rcmos/internal/queue/iface"

	"go.uber.org/fx"
)

// InfraModule provides the event bus, cache, coordinator and task sender.
// The memory driver keeps all of them in process; fx only dials what a
// binary actually asks for.
func InfraModule(settings config.Settings) fx.Option {
	shared := fx.Provide(
		config.ProvideSlackClient,
		ProvideOrchestratorOptions,
		ProvideTaskQueue,
	)

	if settings.Store.Driver == "memory" {
		return fx.Options(shared, fx.Provide(
			ProvideMemoryEventBus,
			ProvideMemoryCache,
			ProvideLocalCoordinator,
		))
	}

	return fx.Options(shared, fx.Provide(
		config.ProvideAWSConfig,
		config.ProvideSQSClient,
		config.ProvideRedisClient,
		config.ProvideRedisCache,
		config.ProvideRedisEventBus,
		config.ProvideZooKeeperCoordinator,
	))
}

func ProvideOrchestratorOptions(settings config.Settings) orchestrator.Options {
	return orchestrator.Options{
		MfaTimeout:        settings.Orchestrator.MfaTimeout,
		AwaitPollInterval: settings.Orchestrator.AwaitPollInterval,
		ActivityRetry:     settings.Orchestrator.ActivityRetry,
		OperatorChannel:   settings.Notify.OperatorChannel,
	}
}

// ProvideTaskQueue wraps whichever queue.Queue the binary provides.
func ProvideTaskQueue(q queue.Queue) orchestrator.TaskQueue {
	return orchestrator.NewTaskQueue(q)
}

func ProvideMemoryEventBus(log logger.Logger) eventbus.Bus {
	return busMemory.NewMemoryBus(log)
}

func ProvideMemoryCache() cache.Cache {
	return cacheMemory.NewMemoryCache()
}

func ProvideLocalCoordinator() coordinator.Coordinator {
	return local.NewLocalCoordinator()
}
