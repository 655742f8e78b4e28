// Package queue is the task transport between the API and the workers.
// Delivery is at least once: a processor must tolerate seeing a message
// again.
package queue

import (
	"context"
	"time"
)

// MessageProcessor handles one decoded message. Returning false leaves the
// message on the queue for redelivery.
type MessageProcessor[T any] interface {
	ProcessMessage(ctx context.Context, message T) bool
}

type MessageProcessorFunc[T any] func(ctx context.Context, message T) bool

func (f MessageProcessorFunc[T]) ProcessMessage(ctx context.Context, message T) bool {
	return f(ctx, message)
}

type Queue interface {
	Send(ctx context.Context, message any) error
	// SendDelayed makes the message visible to consumers after delay.
	// Backends may cap the delay.
	SendDelayed(ctx context.Context, message any, delay time.Duration) error
	// StartConsumer starts background workers that keep running after ctx
	// is done, until StopConsumer.
	StartConsumer(ctx context.Context) error
	StopConsumer(ctx context.Context) error
}
