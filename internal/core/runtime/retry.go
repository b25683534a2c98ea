package runtime

import (
	"time"
)

// RetryConfig controls reconnect behaviour after transport failures.
type RetryConfig struct {
	// MaxRetries is the maximum number of consecutive failed attempts before
	// Run gives up. Negative values retry forever; zero never retries.
	MaxRetries int
	// InitialBackoff is the delay before the first retry.
	InitialBackoff time.Duration
	// MaxBackoff caps the delay between retries.
	MaxBackoff time.Duration
	// Multiplier is the factor by which backoff increases with each retry (exponential backoff).
	Multiplier float64
}

// DefaultRetryConfig retries forever, starting at half a second and
// doubling up to eight seconds.
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxRetries:     -1,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     8 * time.Second,
		Multiplier:     2.0,
	}
}

// exhausted reports whether attempt (1-based) is past the retry budget.
func (c *RetryConfig) exhausted(attempt int) bool {
	if c == nil {
		return true
	}
	return c.MaxRetries >= 0 && attempt > c.MaxRetries
}

// backoff returns the wait before retry number attempt (1-based).
func (c *RetryConfig) backoff(attempt int) time.Duration {
	if c == nil || c.InitialBackoff <= 0 {
		return 0
	}
	multiplier := c.Multiplier
	if multiplier < 1 {
		multiplier = 1
	}

	delay := c.InitialBackoff
	for i := 1; i < attempt; i++ {
		delay = time.Duration(float64(delay) * multiplier)
		if c.MaxBackoff > 0 && delay >= c.MaxBackoff {
			return c.MaxBackoff
		}
	}
	if c.MaxBackoff > 0 && delay > c.MaxBackoff {
		return c.MaxBackoff
	}
	return delay
}
