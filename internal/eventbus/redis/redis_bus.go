package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"rcmos/internal/domain"
	eventbus "rcmos/internal/eventbus/iface"
	"rcmos/internal/logger"

	"github.com/redis/go-redis/v9"
)

type redisBus struct {
	client  *redis.Client
	channel string
	logger  logger.Logger
}

// NewRedisBus publishes and subscribes on a single Redis Pub/Sub channel.
func NewRedisBus(client *redis.Client, channel string, log logger.Logger) eventbus.Bus {
	return &redisBus{
		client:  client,
		channel: channel,
		logger:  log.With(logger.String("component", "redis_event_bus")),
	}
}

func (b *redisBus) Publish(ctx context.Context, event domain.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	receivers, err := b.client.Publish(ctx, b.channel, data).Result()
	if err != nil {
		b.logger.Error("failed to publish event",
			logger.String("type", string(event.Type)),
			logger.String("run_id", event.RunID),
			logger.Error(err))
		return domain.Transport("publish event", err)
	}

	b.logger.Debug("event published",
		logger.String("type", string(event.Type)),
		logger.String("run_id", event.RunID),
		logger.Int64("receivers", receivers))
	return nil
}

func (b *redisBus) Subscribe(ctx context.Context, filter domain.EventFilter) (eventbus.Subscription, error) {
	pubsub := b.client.Subscribe(ctx, b.channel)

	// Wait for the subscription confirmation so nothing published after
	// Subscribe returns is missed.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, domain.Transport("subscribe", err)
	}

	sub := &subscription{
		events: make(chan domain.Event, 64),
		done:   make(chan struct{}),
		closer: pubsub.Close,
	}
	go func() {
		defer sub.Close()
		forward(ctx, pubsub.Channel(), filter, sub.events, sub.done, b.logger)
	}()

	b.logger.Debug("subscription opened",
		logger.String("run_id", filter.RunID),
		logger.String("batch_id", filter.BatchID))
	return sub, nil
}

type subscription struct {
	events chan domain.Event
	done   chan struct{}
	closer func() error
	once   sync.Once
	err    error
}

func (s *subscription) Events() <-chan domain.Event {
	return s.events
}

func (s *subscription) Close() error {
	s.once.Do(func() {
		close(s.done)
		s.err = s.closer()
	})
	return s.err
}

// forward decodes and filters messages until ctx ends, done closes or in is
// drained. It always closes out.
func forward(ctx context.Context, in <-chan *redis.Message, filter domain.EventFilter, out chan<- domain.Event, done <-chan struct{}, log logger.Logger) {
	defer close(out)

	for {
		select {
		case <-ctx.Done():
			return
		case <-done:
			return
		case msg, ok := <-in:
			if !ok {
				return
			}
			event, err := domain.ParseEvent([]byte(msg.Payload))
			if err != nil {
				log.Warn("dropping malformed event", logger.Error(err))
				continue
			}
			if !filter.Matches(event) {
				continue
			}
			select {
			case out <- event:
			case <-ctx.Done():
				return
			case <-done:
				return
			}
		}
	}
}
