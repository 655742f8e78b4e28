package orchestrator_queue

import (
	"context"

	"rcmos/internal/orchestrator"
)

// OrchestratorConsumer processes advance tasks from the orchestrator queue.
type OrchestratorConsumer interface {
	// ProcessMessage returns true when the task is done with and can be
	// deleted, false to have the queue redeliver it.
	ProcessMessage(ctx context.Context, task orchestrator.Task) bool
}
