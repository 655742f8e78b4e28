package eventbus

import (
	"context"

	"rcmos/internal/domain"
)

// Bus broadcasts lifecycle events to whoever is subscribed at publish time.
type Bus interface {
	Publish(ctx context.Context, event domain.Event) error
	// Subscribe opens a live subscription. Events not matching filter are
	// dropped before they reach the consumer.
	Subscribe(ctx context.Context, filter domain.EventFilter) (Subscription, error)
}

// Subscription is an unbounded, non-restartable stream. Close releases the
// transport channel and is safe to call more than once.
type Subscription interface {
	Events() <-chan domain.Event
	Close() error
}
