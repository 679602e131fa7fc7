package realtime

import (
	"time"

	"github.com/cenkalti/backoff/v5"
)

const DefaultReconnectDelay = 5 * time.Second

// NewReconnectPolicy returns the delay schedule between reconnect attempts.
// "exponential" doubles from delay up to maxDelay with jitter; anything
// else waits a fixed delay.
func NewReconnectPolicy(strategy string, delay, maxDelay time.Duration) backoff.BackOff {
	if delay <= 0 {
		delay = DefaultReconnectDelay
	}
	if strategy != "exponential" {
		return backoff.NewConstantBackOff(delay)
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = delay
	b.RandomizationFactor = 0.5
	b.Multiplier = 2
	if maxDelay > 0 {
		b.MaxInterval = maxDelay
	}
	b.Reset()
	return b
}
