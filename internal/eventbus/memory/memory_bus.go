// Package memory is a process-local event bus used by tests and single-node runs.
package memory

import (
	"context"
	"sync"

	"rcmos/internal/domain"
	eventbus "rcmos/internal/eventbus/iface"
	"rcmos/internal/logger"
)

const subscriberBuffer = 64

type memoryBus struct {
	mu          sync.RWMutex
	subscribers map[*subscription]struct{}
	logger      logger.Logger
	// watchers tracks the goroutines tying subscriptions to their ctx.
	watchers sync.WaitGroup
}

func NewMemoryBus(log logger.Logger) eventbus.Bus {
	return &memoryBus{
		subscribers: make(map[*subscription]struct{}),
		logger:      log.With(logger.String("component", "memory_event_bus")),
	}
}

// Publish never blocks; a subscriber whose buffer is full misses the event.
func (b *memoryBus) Publish(ctx context.Context, event domain.Event) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for sub := range b.subscribers {
		if !sub.filter.Matches(event) {
			continue
		}
		select {
		case sub.events <- event:
		default:
			b.logger.Warn("subscriber buffer full, dropping event",
				logger.String("type", string(event.Type)))
		}
	}
	return nil
}

func (b *memoryBus) Subscribe(ctx context.Context, filter domain.EventFilter) (eventbus.Subscription, error) {
	sub := &subscription{
		bus:    b,
		filter: filter,
		events: make(chan domain.Event, subscriberBuffer),
		done:   make(chan struct{}),
	}

	b.mu.Lock()
	b.subscribers[sub] = struct{}{}
	b.mu.Unlock()

	b.watchers.Add(1)
	go func() {
		defer b.watchers.Done()
		select {
		case <-ctx.Done():
			sub.Close()
		case <-sub.done:
		}
	}()
	return sub, nil
}

// Subscribers reports the number of open subscriptions.
func Subscribers(bus eventbus.Bus) int {
	b, ok := bus.(*memoryBus)
	if !ok {
		return 0
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

type subscription struct {
	bus    *memoryBus
	filter domain.EventFilter
	events chan domain.Event
	done   chan struct{}
	once   sync.Once
}

func (s *subscription) Events() <-chan domain.Event {
	return s.events
}

func (s *subscription) Close() error {
	s.once.Do(func() {
		s.bus.mu.Lock()
		delete(s.bus.subscribers, s)
		close(s.events)
		s.bus.mu.Unlock()
		close(s.done)
	})
	return nil
}
