// Package memory provides an in-process Queue with the same delivery
// contract as the SQS queue: a message is redelivered until the processor
// reports success.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"rcmos/internal/logger"
	queue "rcmos/internal/queue/iface"
)

const redeliveryDelay = 200 * time.Millisecond

type MemoryQueue[T any] struct {
	processor queue.MessageProcessor[T]
	logger    logger.Logger
	workers   int
	ch        chan []byte

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func NewMemoryQueue[T any](processor queue.MessageProcessor[T], workers int, log logger.Logger) *MemoryQueue[T] {
	if workers <= 0 {
		workers = 1
	}
	return &MemoryQueue[T]{
		processor: processor,
		logger:    log.With(logger.String("component", "memory_queue")),
		workers:   workers,
		ch:        make(chan []byte, 1024),
	}
}

func (q *MemoryQueue[T]) Send(ctx context.Context, message any) error {
	body, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	select {
	case q.ch <- body:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *MemoryQueue[T]) SendDelayed(ctx context.Context, message any, delay time.Duration) error {
	if delay <= 0 {
		return q.Send(ctx, message)
	}
	body, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	time.AfterFunc(delay, func() { q.ch <- body })
	return nil
}

func (q *MemoryQueue[T]) StartConsumer(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.running {
		return fmt.Errorf("consumer already running")
	}
	q.running = true

	workerCtx, cancel := context.WithCancel(context.Background())
	q.cancel = cancel
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker(workerCtx)
	}
	return nil
}

func (q *MemoryQueue[T]) StopConsumer(ctx context.Context) error {
	q.mu.Lock()
	if !q.running {
		q.mu.Unlock()
		return fmt.Errorf("consumer not running")
	}
	q.running = false
	q.cancel()
	q.mu.Unlock()

	q.wg.Wait()
	return nil
}

func (q *MemoryQueue[T]) worker(ctx context.Context) {
	defer q.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case body := <-q.ch:
			var message T
			if err := json.Unmarshal(body, &message); err != nil {
				q.logger.Error("dropping malformed message", logger.Error(err))
				continue
			}
			if !q.processor.ProcessMessage(ctx, message) {
				time.AfterFunc(redeliveryDelay, func() { q.ch <- body })
			}
		}
	}
}
