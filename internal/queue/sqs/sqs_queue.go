package sqs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"rcmos/internal/logger"
	queue "rcmos/internal/queue/iface"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

// maxDelay is the SQS ceiling for per-message DelaySeconds.
const maxDelay = 15 * time.Minute

const receiveBackoff = time.Second

// ErrSendOnly is returned by StartConsumer on a queue built without a processor.
var ErrSendOnly = errors.New("queue has no processor")

// Client is the subset of the SQS API the queue uses.
type Client interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

type QueueConfig struct {
	QueueURL          string
	WorkerCount       int
	MaxMessages       int32
	WaitTimeSeconds   int32
	VisibilityTimeout int32
}

func (c QueueConfig) withDefaults() QueueConfig {
	if c.WorkerCount <= 0 {
		c.WorkerCount = 5
	}
	if c.MaxMessages <= 0 {
		c.MaxMessages = 1
	}
	if c.WaitTimeSeconds <= 0 {
		c.WaitTimeSeconds = 20
	}
	if c.VisibilityTimeout <= 0 {
		c.VisibilityTimeout = 60
	}
	return c
}

// SQSQueue carries JSON encoded T over one SQS queue. A message is deleted
// only when the processor accepts it or it cannot be decoded; anything else
// reappears after the visibility timeout.
type SQSQueue[T any] struct {
	client    Client
	config    QueueConfig
	logger    logger.Logger
	processor queue.MessageProcessor[T]

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewSQSQueue builds a queue. A nil processor gives a send-only queue.
func NewSQSQueue[T any](
	client Client,
	config QueueConfig,
	processor queue.MessageProcessor[T],
	log logger.Logger,
) queue.Queue {
	config = config.withDefaults()
	return &SQSQueue[T]{
		client:    client,
		config:    config,
		processor: processor,
		logger: log.With(
			logger.String("component", "sqs_queue"),
			logger.String("queue_url", config.QueueURL)),
	}
}

func (q *SQSQueue[T]) Send(ctx context.Context, message any) error {
	return q.SendDelayed(ctx, message, 0)
}

func (q *SQSQueue[T]) SendDelayed(ctx context.Context, message any, delay time.Duration) error {
	body, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	input := &sqs.SendMessageInput{
		QueueUrl:     aws.String(q.config.QueueURL),
		MessageBody:  aws.String(string(body)),
		DelaySeconds: delaySeconds(delay),
	}
	if _, err := q.client.SendMessage(ctx, input); err != nil {
		q.logger.Error("sqs send failed", logger.Error(err))
		return fmt.Errorf("failed to send message: %w", err)
	}

	q.logger.Debug("sqs message sent", logger.Int("delay_seconds", int(input.DelaySeconds)))
	return nil
}

func delaySeconds(delay time.Duration) int32 {
	switch {
	case delay <= 0:
		return 0
	case delay > maxDelay:
		return int32(maxDelay / time.Second)
	default:
		return int32(delay / time.Second)
	}
}

// StartConsumer launches the polling workers. They outlive ctx and stop on
// StopConsumer.
func (q *SQSQueue[T]) StartConsumer(ctx context.Context) error {
	if q.processor == nil {
		return ErrSendOnly
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.cancel != nil {
		return fmt.Errorf("consumer already running")
	}

	pollCtx, cancel := context.WithCancel(context.Background())
	q.cancel = cancel
	for i := 1; i <= q.config.WorkerCount; i++ {
		q.wg.Add(1)
		go q.poll(pollCtx, q.logger.With(logger.Int("worker_id", i)))
	}

	q.logger.Info("sqs consumer started", logger.Int("worker_count", q.config.WorkerCount))
	return nil
}

func (q *SQSQueue[T]) StopConsumer(ctx context.Context) error {
	q.mu.Lock()
	cancel := q.cancel
	q.cancel = nil
	q.mu.Unlock()
	if cancel == nil {
		return fmt.Errorf("consumer not running")
	}

	cancel()
	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		q.logger.Info("sqs consumer stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("sqs consumer did not drain: %w", ctx.Err())
	}
}

func (q *SQSQueue[T]) poll(ctx context.Context, log logger.Logger) {
	defer q.wg.Done()

	for ctx.Err() == nil {
		msgs, err := q.receive(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Error("sqs receive failed", logger.Error(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(receiveBackoff):
			}
			continue
		}

		for _, msg := range msgs {
			if ctx.Err() != nil {
				return
			}
			q.handle(ctx, log, msg)
		}
	}
}

func (q *SQSQueue[T]) receive(ctx context.Context) ([]types.Message, error) {
	// long poll plus slack for the round trip
	ctx, cancel := context.WithTimeout(ctx, time.Duration(q.config.WaitTimeSeconds+5)*time.Second)
	defer cancel()

	out, err := q.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(q.config.QueueURL),
		MaxNumberOfMessages: q.config.MaxMessages,
		WaitTimeSeconds:     q.config.WaitTimeSeconds,
		VisibilityTimeout:   q.config.VisibilityTimeout,
		MessageSystemAttributeNames: []types.MessageSystemAttributeName{
			types.MessageSystemAttributeNameApproximateReceiveCount,
		},
	})
	if err != nil {
		return nil, err
	}
	return out.Messages, nil
}

// handle runs the processor with a deadline matching the visibility timeout,
// so a message is never worked on after SQS has handed it to someone else.
func (q *SQSQueue[T]) handle(ctx context.Context, log logger.Logger, msg types.Message) {
	log = log.With(
		logger.String("message_id", aws.ToString(msg.MessageId)),
		logger.String("receive_count", msg.Attributes[string(types.MessageSystemAttributeNameApproximateReceiveCount)]))

	var message T
	if err := json.Unmarshal([]byte(aws.ToString(msg.Body)), &message); err != nil {
		log.Error("dropping undecodable message", logger.Error(err))
		q.delete(ctx, log, msg)
		return
	}

	workCtx, cancel := context.WithTimeout(
		context.WithoutCancel(ctx), time.Duration(q.config.VisibilityTimeout)*time.Second)
	defer cancel()

	if !q.processor.ProcessMessage(workCtx, message) {
		log.Warn("message left for redelivery")
		return
	}
	q.delete(workCtx, log, msg)
}

func (q *SQSQueue[T]) delete(ctx context.Context, log logger.Logger, msg types.Message) {
	_, err := q.client.DeleteMessage(context.WithoutCancel(ctx), &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(q.config.QueueURL),
		ReceiptHandle: msg.ReceiptHandle,
	})
	if err != nil {
		log.Error("sqs delete failed", logger.Error(err))
	}
}
