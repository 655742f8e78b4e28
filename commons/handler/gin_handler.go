package handler

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"

	"rcmos/commons/error_handler"
	"rcmos/commons/response"
	"rcmos/internal/logger"

	"github.com/gin-gonic/gin"
)

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 1 << 20

type ServiceFunc[InputDto any, OutputDto any] func(
	ctx context.Context,
	ioutil *RequestIo[InputDto],
) (OutputDto, *error_handler.ErrorCollection)

// HandleFunc adapts a ServiceFunc to gin: it binds the JSON body for write
// methods, runs the service and wraps the result in a StandardResponse.
func HandleFunc[InputDto any, OutputDto any](
	deps HandlerDependencies,
	serviceFunc ServiceFunc[InputDto, OutputDto],
) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		log := deps.Logger.WithContext(ctx)

		ioutil := BuildRequestIo[InputDto](c)

		bodyBytes, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes))
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				SendErrorResponse(c, *new(OutputDto), error_handler.NewErrorCollection().
					AddError(error_handler.CodeValidationError, "request body too large", nil))
				return
			}
			log.Error("unable to read request body", logger.Error(err))
			SendErrorResponse(c, *new(OutputDto), error_handler.NewErrorCollection().
				AddError(error_handler.CodeInternalServerError, "unable to read request body", nil))
			return
		}
		ioutil.RawBody = bodyBytes

		if hasBody(c.Request.Method) {
			if len(bodyBytes) == 0 {
				bodyBytes = []byte("{}")
			}
			c.Request.Body = io.NopCloser(bytes.NewReader(bodyBytes))

			if err := c.ShouldBindJSON(&ioutil.Body); err != nil {
				log.Warn("unable to bind request body",
					logger.String("path", c.FullPath()),
					logger.Error(err))
				SendErrorResponse(c, *new(OutputDto), error_handler.NewErrorCollection().
					AddError(error_handler.CodeValidationError, err.Error(), nil))
				return
			}
		}

		outputDto, errorCollection := serviceFunc(ctx, ioutil)

		if errorCollection != nil && errorCollection.HasErrors() {
			SendErrorResponse(c, outputDto, errorCollection)
		} else {
			SendSuccessResponse(c, outputDto)
		}
	}
}

func hasBody(method string) bool {
	return method == http.MethodPost || method == http.MethodPut || method == http.MethodPatch
}

func SendSuccessResponse[T any](c *gin.Context, data T) {
	c.JSON(http.StatusOK, response.Success(data).WithRequestID(c.GetString(requestIDKey)))
}

// SendErrorResponse answers with the most severe status in the collection.
func SendErrorResponse[T any](c *gin.Context, data T, errorCollection *error_handler.ErrorCollection) {
	c.JSON(errorCollection.GetHTTPStatus(),
		response.Failure(data, errorCollection.GetErrors()).WithRequestID(c.GetString(requestIDKey)))
}
