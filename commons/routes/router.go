package routes

import (
	"net/http"

	"rcmos/commons/handler"
	"rcmos/internal/logger"

	"github.com/gin-gonic/gin"
)

type RouterConfig struct {
	ServiceName string
	Version     string
}

type RouteDependencies struct {
	Logger logger.Logger
}

type RouteOptions[InputDto any, OutputDto any] struct {
	Path        string
	Method      string
	ServiceFunc handler.ServiceFunc[InputDto, OutputDto]
}

// NewRouter builds a gin engine with the shared middleware chain. Method
// mismatches answer 405 instead of falling through to 404.
func NewRouter(config RouterConfig, deps RouteDependencies) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.HandleMethodNotAllowed = true

	log := deps.Logger.With(logger.String("service", config.ServiceName))

	r.Use(handler.RequestIDMiddleware())
	r.Use(handler.LoggingMiddleware(log))
	r.Use(handler.MetricsMiddleware())
	r.Use(handler.ErrorHandlingMiddleware(log))
	r.Use(handler.CORSMiddleware())

	r.NoRoute(handler.NoRouteHandler())
	r.NoMethod(handler.NoMethodHandler())

	return r
}

func RegisterRoute[InputDto any, OutputDto any](
	group gin.IRouter,
	deps RouteDependencies,
	options RouteOptions[InputDto, OutputDto],
) {
	if !isSupportedMethod(options.Method) {
		deps.Logger.Error("unsupported HTTP method",
			logger.String("method", options.Method),
			logger.String("path", options.Path))
		return
	}

	handlerDeps := handler.HandlerDependencies{
		Logger: deps.Logger,
	}

	group.Handle(options.Method, options.Path, handler.HandleFunc(handlerDeps, options.ServiceFunc))
}

func CreateAPIGroup(router *gin.Engine, version string) *gin.RouterGroup {
	return router.Group("/api/" + version)
}

func isSupportedMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodPatch:
		return true
	}
	return false
}
