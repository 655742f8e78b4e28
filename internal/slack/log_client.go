package slack

import (
	"context"

	"rcmos/internal/logger"
)

type logClient struct {
	logger logger.Logger
}

// NewLogClient writes notifications to the application log instead of a
// workspace. Used wherever no Slack app is configured.
func NewLogClient(log logger.Logger) Client {
	return &logClient{
		logger: log.With(logger.String("component", "operator_notifier")),
	}
}

func (c *logClient) SendMessage(ctx context.Context, channel, message string) error {
	if channel == "" {
		return ErrNoChannel
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	c.logger.Info("operator notification",
		logger.String("channel", channel),
		logger.String("message", message))
	return nil
}
