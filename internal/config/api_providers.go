package config

import (
	"context"
	"time"

	"rcmos/commons/config"
	"rcmos/commons/routes"
	"rcmos/commons/server"
	"rcmos/internal/artifacts"
	cache "rcmos/internal/cache/iface"
	eventbus "rcmos/internal/eventbus/iface"
	"rcmos/internal/handler"
	"rcmos/internal/logger"
	"rcmos/internal/metrics"
	"rcmos/internal/orchestrator"
	queue "rcmos/internal/queue/iface"
	"rcmos/internal/queue/sqs"
	repository "rcmos/internal/repository/iface"
	internalRoutes "rcmos/internal/routes"
	"rcmos/internal/schemas"
	"rcmos/internal/service"

	awssqs "github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
)

const eventHeartbeat = 15 * time.Second

// APIModule is the control plane. With the memory driver it also hosts the
// worker core, since tasks never leave the process.
func APIModule(settings config.Settings) fx.Option {
	taskSource := WorkerCoreModule()
	if settings.Store.Driver != "memory" {
		taskSource = fx.Provide(ProvideTaskSender)
	}

	return fx.Options(
		taskSource,
		fx.Provide(
			ProvideArtifactStore,
			ProvideSchemaCatalog,
			ProvideOrchestratorClient,
			ProvideRunService,
			ProvidePortalService,
			ProvideAPIHealthHandler,
			ProvideRunHandler,
			ProvidePortalHandler,
			ProvideSchemaHandler,
			ProvideEventsHandler,
			ProvideAPIRouterConfig,
			ProvideAPIServerConfig,
			ProvideAPIRouteInitializer,
		),
	)
}

// ProvideTaskSender is a send-only SQS queue; the worker binary consumes it.
func ProvideTaskSender(client *awssqs.Client, settings config.Settings, log logger.Logger) queue.Queue {
	return sqs.NewSQSQueue[struct{}](
		client,
		sqs.QueueConfig{QueueURL: settings.Queue.URL},
		nil,
		log,
	)
}

func ProvideArtifactStore(settings config.Settings, log logger.Logger) (artifacts.Store, error) {
	if settings.S3.Endpoint == "" {
		log.Warn("no object store configured, artifact listing disabled")
		return artifacts.NewEmptyStore(), nil
	}
	client, err := config.ProvideMinioClient(settings, log)
	if err != nil {
		return nil, err
	}
	return artifacts.NewMinioStore(client, settings.S3.Bucket, settings.S3.PresignTTL, log), nil
}

func ProvideSchemaCatalog() (schemas.Catalog, error) {
	return schemas.Build()
}

func ProvideOrchestratorClient(
	instances repository.InstanceRepository,
	tasks orchestrator.TaskQueue,
	opts orchestrator.Options,
	log logger.Logger,
) orchestrator.Client {
	return orchestrator.NewClient(instances, tasks, opts, log)
}

type RunServiceParams struct {
	fx.In

	Runs      repository.RunRepository
	Client    orchestrator.Client
	Bus       eventbus.Bus
	Cache     cache.Cache
	Artifacts artifacts.Store
	Settings  config.Settings
	Logger    logger.Logger
}

func ProvideRunService(p RunServiceParams) service.RunService {
	metrics.Init()
	return service.NewRunService(p.Runs, p.Client, p.Bus, p.Cache, p.Artifacts, service.RunServiceConfig{
		AwaitTimeout: p.Settings.Orchestrator.AwaitTimeout,
		TerminalTTL:  p.Settings.Redis.TerminalTTL,
	}, p.Logger)
}

func ProvidePortalService(client orchestrator.Client, settings config.Settings, log logger.Logger) service.PortalService {
	return service.NewPortalService(client, settings.Orchestrator.AwaitTimeout, log)
}

func ProvideAPIHealthHandler(log logger.Logger, settings config.Settings) *handler.HealthHandler {
	return handler.NewHealthHandler(log, "api", infoFrom(settings), settings.App.Version)
}

func ProvideRunHandler(log logger.Logger, runs service.RunService) *handler.RunHandler {
	return handler.NewRunHandler(log, runs)
}

func ProvidePortalHandler(log logger.Logger, portal service.PortalService) *handler.PortalHandler {
	return handler.NewPortalHandler(log, portal)
}

func ProvideSchemaHandler(catalog schemas.Catalog) *handler.SchemaHandler {
	return handler.NewSchemaHandler(catalog)
}

func ProvideEventsHandler(log logger.Logger, bus eventbus.Bus) *handler.EventsHandler {
	return handler.NewEventsHandler(log, bus, eventHeartbeat)
}

func ProvideAPIRouterConfig() routes.RouterConfig {
	return routes.RouterConfig{
		ServiceName: "api",
		Version:     "v1",
	}
}

func ProvideAPIServerConfig(settings config.Settings) server.ServerConfig {
	return server.ServerConfig{
		Port: settings.HTTP.APIPort,
	}
}

func ProvideAPIRouteInitializer(
	healthHandler *handler.HealthHandler,
	runHandler *handler.RunHandler,
	portalHandler *handler.PortalHandler,
	schemaHandler *handler.SchemaHandler,
	eventsHandler *handler.EventsHandler,
) func(*gin.Engine, routes.RouteDependencies) {
	return func(router *gin.Engine, deps routes.RouteDependencies) {
		internalRoutes.InitHealthRoutes(router, healthHandler, deps.Logger)
		internalRoutes.InitMetricsRoute(router)
		internalRoutes.InitRunRoutes(router, runHandler, deps.Logger)
		internalRoutes.InitPortalRoutes(router, portalHandler, deps.Logger)
		internalRoutes.InitSchemaRoutes(router, schemaHandler, deps.Logger)
		internalRoutes.InitEventRoutes(router, eventsHandler)
	}
}

// ManageAPILifecycle logs readiness once every provider resolved.
func ManageAPILifecycle(lc fx.Lifecycle, srv *server.HTTPServer, settings config.Settings, log logger.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("control plane ready",
				logger.String("store_driver", settings.Store.Driver),
				logger.String("env", settings.App.Env))
			return nil
		},
	})
}
