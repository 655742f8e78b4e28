package routes

import (
	"net/http"

	"rcmos/commons/routes"
	"rcmos/internal/dto"
	"rcmos/internal/handler"
	"rcmos/internal/logger"

	"github.com/gin-gonic/gin"
)

func InitRunRoutes(
	router *gin.Engine,
	runHandler *handler.RunHandler,
	log logger.Logger,
) {
	apiV1 := routes.CreateAPIGroup(router, "v1")

	deps := routes.RouteDependencies{
		Logger: log,
	}

	routes.RegisterRoute(
		apiV1,
		deps,
		routes.RouteOptions[dto.CreateRunRequest, dto.CreateRunResponse]{
			Path:        "/runs",
			Method:      http.MethodPost,
			ServiceFunc: runHandler.CreateRunService,
		},
	)

	routes.RegisterRoute(
		apiV1,
		deps,
		routes.RouteOptions[dto.EmptyRequest, dto.RunResponse]{
			Path:        "/runs/:id",
			Method:      http.MethodGet,
			ServiceFunc: runHandler.GetRunService,
		},
	)

	routes.RegisterRoute(
		apiV1,
		deps,
		routes.RouteOptions[dto.EmptyRequest, dto.RunStateResponse]{
			Path:        "/runs/:id/state",
			Method:      http.MethodGet,
			ServiceFunc: runHandler.GetRunStateService,
		},
	)

	routes.RegisterRoute(
		apiV1,
		deps,
		routes.RouteOptions[dto.SignalRunRequest, dto.SignalRunResponse]{
			Path:        "/runs/:id/mfa",
			Method:      http.MethodPost,
			ServiceFunc: runHandler.SignalRunService,
		},
	)

	routes.RegisterRoute(
		apiV1,
		deps,
		routes.RouteOptions[dto.EmptyRequest, dto.OutcomeResponse]{
			Path:        "/runs/:id/outcome",
			Method:      http.MethodGet,
			ServiceFunc: runHandler.GetOutcomeService,
		},
	)

	routes.RegisterRoute(
		apiV1,
		deps,
		routes.RouteOptions[dto.EmptyRequest, dto.ListArtifactsResponse]{
			Path:        "/runs/:id/artifacts",
			Method:      http.MethodGet,
			ServiceFunc: runHandler.ListArtifactsService,
		},
	)
}
