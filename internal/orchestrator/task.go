package orchestrator

import (
	"context"
	"fmt"

	queue "rcmos/internal/queue/iface"
)

type TaskReason string

const (
	ReasonStart  TaskReason = "start"
	ReasonKick   TaskReason = "kick"
	ReasonSignal TaskReason = "signal"
	ReasonTimer  TaskReason = "timer"
)

// Task asks a worker to advance one instance as far as it can go.
type Task struct {
	InstanceID string     `json:"instance_id"`
	Reason     TaskReason `json:"reason"`
}

// TaskQueue hands advance tasks to the worker fleet.
type TaskQueue interface {
	Enqueue(ctx context.Context, task Task) error
}

type queueTaskSender struct {
	queue queue.Queue
}

// NewTaskQueue sends tasks through q. Only the worker consumes q.
func NewTaskQueue(q queue.Queue) TaskQueue {
	return &queueTaskSender{queue: q}
}

func (s *queueTaskSender) Enqueue(ctx context.Context, task Task) error {
	if err := s.queue.Send(ctx, task); err != nil {
		return fmt.Errorf("failed to enqueue %s task for %s: %w", task.Reason, task.InstanceID, err)
	}
	return nil
}
