package handler

import (
	"fmt"
	"net/http"
	"time"

	"rcmos/commons/error_handler"
	"rcmos/commons/response"
	"rcmos/internal/logger"
	"rcmos/internal/metrics"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	RequestIDHeader = "X-Request-Id"
	requestIDKey    = "request_id"
)

// RequestIDMiddleware reuses the caller's X-Request-Id or mints one, echoes
// it back and attaches it to the request context for logging.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(RequestIDHeader, id)
		c.Request = c.Request.WithContext(logger.ContextWithRequestID(c.Request.Context(), id))
		c.Next()
	}
}

func ErrorHandlingMiddleware(log logger.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		log.WithContext(c.Request.Context()).Error("panic recovered in middleware",
			logger.String("path", c.Request.URL.Path),
			logger.String("method", c.Request.Method),
			logger.Any("panic", recovered))

		resp := response.Failure(nil, []response.Errors{
			error_handler.GetInternalServerError("An unexpected error occurred"),
		})
		c.AbortWithStatusJSON(http.StatusInternalServerError, resp.WithRequestID(c.GetString(requestIDKey)))
	})
}

func LoggingMiddleware(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []logger.Field{
			logger.String("method", c.Request.Method),
			logger.String("path", c.Request.URL.Path),
			logger.Int("status_code", c.Writer.Status()),
			logger.Duration("latency", time.Since(start)),
			logger.String("remote_addr", c.ClientIP()),
		}
		reqLog := log.WithContext(c.Request.Context())
		if c.Writer.Status() >= http.StatusInternalServerError {
			reqLog.Warn("request completed", fields...)
			return
		}
		reqLog.Info("request completed", fields...)
	}
}

// MetricsMiddleware records request counts and latency per matched route.
func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		metrics.ObserveHTTPRequest(c.Request.Method, c.FullPath(), c.Writer.Status(), time.Since(start))
	}
}

func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With, "+RequestIDHeader)
		c.Header("Access-Control-Expose-Headers", RequestIDHeader)
		c.Header("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE, PATCH")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

func NoRouteHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		message := fmt.Sprintf("The requested route '%s %s' was not found", c.Request.Method, c.Request.URL.Path)
		SendErrorResponse(c, any(nil), error_handler.NewErrorCollection().
			AddError(error_handler.CodeNotFound, message, nil))
	}
}

func NoMethodHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		message := fmt.Sprintf("Method '%s' is not allowed for route '%s'", c.Request.Method, c.Request.URL.Path)
		resp := response.Failure(nil, []response.Errors{
			{ErrorCode: http.StatusMethodNotAllowed, Message: message},
		})
		c.JSON(http.StatusMethodNotAllowed, resp.WithRequestID(c.GetString(requestIDKey)))
	}
}
