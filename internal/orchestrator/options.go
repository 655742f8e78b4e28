package orchestrator

import (
	"time"

	"rcmos/internal/retry"
)

// Options tune the instance state machine.
type Options struct {
	MfaTimeout        time.Duration
	AwaitPollInterval time.Duration
	ActivityRetry     retry.Policy
	OperatorChannel   string
}

func DefaultOptions() Options {
	return Options{
		MfaTimeout:        5 * time.Minute,
		AwaitPollInterval: 500 * time.Millisecond,
		ActivityRetry:     retry.DefaultPolicy(),
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.MfaTimeout <= 0 {
		o.MfaTimeout = d.MfaTimeout
	}
	if o.AwaitPollInterval <= 0 {
		o.AwaitPollInterval = d.AwaitPollInterval
	}
	if o.ActivityRetry.MaxAttempts == 0 {
		o.ActivityRetry = d.ActivityRetry
	}
	return o
}
