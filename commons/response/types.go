// Package response defines the JSON envelope every API endpoint answers with.
package response

type StatusEnum string

const (
	StatusSuccess        StatusEnum = "SUCCESS"
	StatusPartialSuccess StatusEnum = "PARTIAL_SUCCESS"
	StatusFailed         StatusEnum = "FAILED"
)

type StandardResponse struct {
	Status    StatusEnum `json:"status"`
	ErrorCode int        `json:"errorCode"`
	Message   string     `json:"message"`
	RequestID string     `json:"requestId,omitempty"`
	Data      any        `json:"data"`
	Errors    []Errors   `json:"errors"`
}

// Errors is one entry of the errors list. Data carries machine readable
// detail such as a domain error code.
type Errors struct {
	ErrorCode int    `json:"errorCode"`
	Message   string `json:"message"`
	Data      any    `json:"data"`
}

func Success(data any) StandardResponse {
	return StandardResponse{
		Status:  StatusSuccess,
		Message: "Success",
		Data:    data,
		Errors:  []Errors{},
	}
}

// Failure promotes the first error to the envelope's code and message.
func Failure(data any, errs []Errors) StandardResponse {
	resp := StandardResponse{
		Status:    StatusFailed,
		ErrorCode: 500,
		Message:   "Internal server error",
		Data:      data,
		Errors:    errs,
	}
	if len(errs) > 0 {
		resp.ErrorCode = errs[0].ErrorCode
		resp.Message = errs[0].Message
	}
	if resp.Errors == nil {
		resp.Errors = []Errors{}
	}
	return resp
}

func (r StandardResponse) WithRequestID(id string) StandardResponse {
	r.RequestID = id
	return r
}
