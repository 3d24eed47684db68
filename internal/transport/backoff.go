package transport

import "time"

// retryDelay is the wait after failed connect attempt N (1-based). With
// MaxRetryDelay unset the wait is RetryDelay every time; otherwise it
// doubles per failure up to MaxRetryDelay.
func (c Config) retryDelay(attempt int) time.Duration {
	delay := c.RetryDelay
	if c.MaxRetryDelay <= c.RetryDelay {
		return delay
	}
	for i := 1; i < attempt && delay < c.MaxRetryDelay; i++ {
		delay *= 2
	}
	return min(delay, c.MaxRetryDelay)
}
