package app

import (
	"math/rand"
	"time"
)

// Default retry configuration values.
const (
	DefaultRetryMaxDelay = 10 * time.Second
)

// RetryPolicy controls automatic reconnection after a recoverable
// failure. The zero delay retries immediately.
type RetryPolicy struct {
	Enabled bool

	// MaxAttempts bounds consecutive retries. Zero means unlimited.
	MaxAttempts int

	// InitialDelay is the first delay. Later delays double up to
	// MaxDelay with ±20% jitter.
	InitialDelay time.Duration
	MaxDelay     time.Duration
}

// DefaultRetryPolicy retries immediately and without limit.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		Enabled:  true,
		MaxDelay: DefaultRetryMaxDelay,
	}
}

// backoff implements exponential backoff with jitter for retries.
type backoff struct {
	policy   RetryPolicy
	current  time.Duration
	attempts int
	jitter   func() float64
}

func newBackoff(policy RetryPolicy) *backoff {
	if policy.MaxDelay <= 0 {
		policy.MaxDelay = DefaultRetryMaxDelay
	}
	return &backoff{
		policy:  policy,
		current: policy.InitialDelay,
		jitter:  rand.Float64,
	}
}

// Next returns the delay before the next retry. ok is false when retries
// are disabled or the attempt limit has been reached.
func (b *backoff) Next() (delay time.Duration, ok bool) {
	if !b.policy.Enabled {
		return 0, false
	}
	if b.policy.MaxAttempts > 0 && b.attempts >= b.policy.MaxAttempts {
		return 0, false
	}
	b.attempts++

	if b.current <= 0 {
		return 0, true
	}

	// Add jitter: ±20%
	jitter := float64(b.current) * 0.2 * (b.jitter()*2 - 1)
	delay = time.Duration(float64(b.current) + jitter)

	b.current *= 2
	if b.current > b.policy.MaxDelay {
		b.current = b.policy.MaxDelay
	}
	return delay, true
}

// Reset clears the attempt count after a successful connection.
func (b *backoff) Reset() {
	b.current = b.policy.InitialDelay
	b.attempts = 0
}

// Attempts returns the retries made since the last reset.
func (b *backoff) Attempts() int {
	return b.attempts
}
