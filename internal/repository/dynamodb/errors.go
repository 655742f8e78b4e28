package dynamodb

import (
	"errors"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

const conditionalCheckFailed = "ConditionalCheckFailed"

// isConditionFailure reports whether a write was rejected by its condition expression.
func isConditionFailure(err error) bool {
	var condErr *types.ConditionalCheckFailedException
	return errors.As(err, &condErr)
}

// cancelledByCondition reports whether a transaction was cancelled because
// one of its condition checks failed (as opposed to throttling or conflicts).
func cancelledByCondition(err error) bool {
	var canceled *types.TransactionCanceledException
	if !errors.As(err, &canceled) {
		return false
	}
	for _, reason := range canceled.CancellationReasons {
		if reason.Code != nil && *reason.Code == conditionalCheckFailed {
			return true
		}
	}
	return false
}
