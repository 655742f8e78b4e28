// Package slack sends operator notifications.
package slack

import (
	"context"
	"errors"
)

var ErrNoChannel = errors.New("notification channel is required")

type Client interface {
	SendMessage(ctx context.Context, channel, message string) error
}
