package config

import (
	"context"
	"fmt"
	"os"

	"rcmos/commons/config"
	"rcmos/commons/routes"
	"rcmos/commons/server"
	cache "rcmos/internal/cache/iface"
	orchestratorQueue "rcmos/internal/consumer/orchestrator_queue/init"
	coordinator "rcmos/internal/coordinator/iface"
	"rcmos/internal/dto"
	eventbus "rcmos/internal/eventbus/iface"
	"rcmos/internal/flow"
	"rcmos/internal/handler"
	"rcmos/internal/logger"
	"rcmos/internal/metrics"
	"rcmos/internal/orchestrator"
	repository "rcmos/internal/repository/iface"
	internalRoutes "rcmos/internal/routes"
	"rcmos/internal/slack"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/fx"
)

// WorkerCoreModule runs orchestrator instances: the task consumer, the
// instance state machine and the timer sweeper.
func WorkerCoreModule() fx.Option {
	return fx.Options(
		fx.Provide(
			ProvideFlowExecutor,
			ProvideTimers,
			ProvideOrchestratorEngine,
			ProvideSweeper,
		),
		orchestratorQueue.OrchestratorQueueModule(),
		fx.Invoke(ManageSweeperLifecycle),
	)
}

// WorkerModule is the worker binary: the core plus its health and metrics
// endpoints.
func WorkerModule() fx.Option {
	return fx.Options(
		WorkerCoreModule(),
		fx.Provide(
			ProvideWorkerHealthHandler,
			ProvideWorkerRouterConfig,
			ProvideWorkerServerConfig,
			ProvideWorkerRouteInitializer,
		),
	)
}

func ProvideFlowExecutor(log logger.Logger) flow.Executor {
	return flow.NewEngine(log)
}

func ProvideTimers(c cache.Cache) orchestrator.Timers {
	return orchestrator.NewCacheTimers(c, orchestrator.DefaultTimersKey)
}

type EngineParams struct {
	fx.In

	Instances repository.InstanceRepository
	Runs      repository.RunRepository
	Bus       eventbus.Bus
	Flow      flow.Executor
	Timers    orchestrator.Timers
	Notifier  slack.Client
	Options   orchestrator.Options
	Logger    logger.Logger
}

func ProvideOrchestratorEngine(p EngineParams) orchestrator.Engine {
	metrics.Init()
	return orchestrator.NewEngine(orchestrator.EngineDeps{
		Instances: p.Instances,
		Runs:      p.Runs,
		Bus:       p.Bus,
		Flow:      p.Flow,
		Timers:    p.Timers,
		Notifier:  p.Notifier,
	}, p.Options, p.Logger)
}

func ProvideSweeper(
	timers orchestrator.Timers,
	tasks orchestrator.TaskQueue,
	coord coordinator.Coordinator,
	settings config.Settings,
	log logger.Logger,
) *orchestrator.Sweeper {
	return orchestrator.NewSweeper(timers, tasks, coord, orchestrator.SweeperConfig{
		Spec:     settings.Orchestrator.SweepSpec,
		LockPath: settings.ZooKeeper.SweeperLock,
		NodeID:   nodeID(),
	}, log)
}

func nodeID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "worker"
	}
	return fmt.Sprintf("%s-%s", host, uuid.NewString()[:8])
}

func ManageSweeperLifecycle(lc fx.Lifecycle, sweeper *orchestrator.Sweeper, log logger.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("starting timer sweeper")
			return sweeper.Start(ctx)
		},
		OnStop: func(ctx context.Context) error {
			log.Info("stopping timer sweeper")
			return sweeper.Stop(ctx)
		},
	})
}

func ProvideWorkerHealthHandler(log logger.Logger, settings config.Settings) *handler.HealthHandler {
	return handler.NewHealthHandler(log, "worker", infoFrom(settings), settings.App.Version)
}

func ProvideWorkerRouterConfig() routes.RouterConfig {
	return routes.RouterConfig{
		ServiceName: "worker",
		Version:     "v1",
	}
}

func ProvideWorkerServerConfig(settings config.Settings) server.ServerConfig {
	return server.ServerConfig{
		Port: settings.HTTP.WorkerPort,
	}
}

func ProvideWorkerRouteInitializer(
	healthHandler *handler.HealthHandler,
) func(*gin.Engine, routes.RouteDependencies) {
	return func(router *gin.Engine, deps routes.RouteDependencies) {
		internalRoutes.InitHealthRoutes(router, healthHandler, deps.Logger)
		internalRoutes.InitMetricsRoute(router)
	}
}

func infoFrom(settings config.Settings) dto.InfoResponse {
	return dto.InfoResponse{
		App:         settings.App.Name,
		Env:         settings.App.Env,
		QueueURL:    settings.Queue.URL,
		StoreDriver: settings.Store.Driver,
	}
}
