package routes

import (
	"rcmos/commons/routes"
	"rcmos/internal/handler"

	"github.com/gin-gonic/gin"
)

// InitEventRoutes registers the SSE stream directly; it cannot go through the
// JSON envelope.
func InitEventRoutes(router *gin.Engine, eventsHandler *handler.EventsHandler) {
	apiV1 := routes.CreateAPIGroup(router, "v1")
	apiV1.GET("/events", eventsHandler.Stream)
}
