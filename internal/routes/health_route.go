package routes

import (
	"net/http"

	"rcmos/commons/routes"
	"rcmos/internal/dto"
	"rcmos/internal/handler"
	"rcmos/internal/logger"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func InitHealthRoutes(
	router *gin.Engine,
	healthHandler *handler.HealthHandler,
	log logger.Logger,
) {
	apiV1 := routes.CreateAPIGroup(router, "v1")

	deps := routes.RouteDependencies{
		Logger: log,
	}

	// /health and /healthz are aliases
	for _, path := range []string{"/health", "/healthz"} {
		routes.RegisterRoute(
			apiV1,
			deps,
			routes.RouteOptions[dto.EmptyRequest, dto.HealthResponse]{
				Path:        path,
				Method:      http.MethodGet,
				ServiceFunc: healthHandler.HealthService,
			},
		)
	}

	routes.RegisterRoute(
		apiV1,
		deps,
		routes.RouteOptions[dto.EmptyRequest, dto.InfoResponse]{
			Path:        "/info",
			Method:      http.MethodGet,
			ServiceFunc: healthHandler.InfoService,
		},
	)

	routes.RegisterRoute(
		apiV1,
		deps,
		routes.RouteOptions[dto.EmptyRequest, dto.VersionResponse]{
			Path:        "/version",
			Method:      http.MethodGet,
			ServiceFunc: healthHandler.VersionService,
		},
	)
}

// InitMetricsRoute exposes the prometheus registry outside the API group.
func InitMetricsRoute(router *gin.Engine) {
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
}
