package handler

import (
	"net/http"

	"rcmos/internal/logger"

	"github.com/gin-gonic/gin"
)

// RequestIo is what a ServiceFunc sees of the request. Multi-valued query
// params and headers keep their first value only.
type RequestIo[T any] struct {
	Body        T
	RawBody     []byte
	RequestID   string
	PathParams  map[string]string
	QueryParams map[string]string
	Headers     map[string]string
}

type HandlerDependencies struct {
	Logger logger.Logger
}

func BuildRequestIo[T any](c *gin.Context) *RequestIo[T] {
	path := make(map[string]string, len(c.Params))
	for _, p := range c.Params {
		path[p.Key] = p.Value
	}
	return &RequestIo[T]{
		RequestID:   c.GetString(requestIDKey),
		PathParams:  path,
		QueryParams: firstValues(c.Request.URL.Query()),
		Headers:     firstValues(c.Request.Header),
	}
}

// Query returns the query param key, or def when it is absent or empty.
func (io *RequestIo[T]) Query(key, def string) string {
	if v := io.QueryParams[key]; v != "" {
		return v
	}
	return def
}

// Header looks a header up by any casing of its name.
func (io *RequestIo[T]) Header(key string) string {
	return io.Headers[http.CanonicalHeaderKey(key)]
}

func firstValues[M ~map[string][]string](values M) map[string]string {
	out := make(map[string]string, len(values))
	for k, v := range values {
		if len(v) > 0 {
			out[k] = v[0]
		}
	}
	return out
}
