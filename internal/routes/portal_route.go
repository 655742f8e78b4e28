package routes

import (
	"net/http"

	"rcmos/commons/routes"
	"rcmos/internal/dto"
	"rcmos/internal/handler"
	"rcmos/internal/logger"

	"github.com/gin-gonic/gin"
)

func InitPortalRoutes(
	router *gin.Engine,
	portalHandler *handler.PortalHandler,
	log logger.Logger,
) {
	portal := routes.CreateAPIGroup(router, "v1").Group("/test/portal")

	deps := routes.RouteDependencies{
		Logger: log,
	}

	routes.RegisterRoute(
		portal,
		deps,
		routes.RouteOptions[dto.StartPortalFlowRequest, dto.StartPortalFlowResponse]{
			Path:        "/run",
			Method:      http.MethodPost,
			ServiceFunc: portalHandler.StartFlowService,
		},
	)

	routes.RegisterRoute(
		portal,
		deps,
		routes.RouteOptions[dto.EmptyRequest, dto.RunStateResponse]{
			Path:        "/:workflow_id/state",
			Method:      http.MethodGet,
			ServiceFunc: portalHandler.StateService,
		},
	)

	routes.RegisterRoute(
		portal,
		deps,
		routes.RouteOptions[dto.PortalMfaRequest, dto.PortalMfaResponse]{
			Path:        "/:workflow_id/mfa",
			Method:      http.MethodPost,
			ServiceFunc: portalHandler.ProvideMfaService,
		},
	)
}
