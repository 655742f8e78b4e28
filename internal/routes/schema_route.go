package routes

import (
	"net/http"

	"rcmos/commons/routes"
	"rcmos/internal/dto"
	"rcmos/internal/handler"
	"rcmos/internal/logger"
	"rcmos/internal/schemas"

	"github.com/gin-gonic/gin"
)

func InitSchemaRoutes(
	router *gin.Engine,
	schemaHandler *handler.SchemaHandler,
	log logger.Logger,
) {
	apiV1 := routes.CreateAPIGroup(router, "v1")

	routes.RegisterRoute(
		apiV1,
		routes.RouteDependencies{Logger: log},
		routes.RouteOptions[dto.EmptyRequest, schemas.Catalog]{
			Path:        "/schemas",
			Method:      http.MethodGet,
			ServiceFunc: schemaHandler.ListSchemasService,
		},
	)
}
