package stream

import "time"

// Reconnect backoff bounds.
const (
	// defaultBackoffBase is the delay before the first reconnect attempt.
	defaultBackoffBase = 500 * time.Millisecond

	// defaultBackoffCap bounds the delay between reconnect attempts.
	defaultBackoffCap = 5 * time.Second

	// maxBackoffShift bounds the exponent to avoid duration overflow on
	// long outages; the cap dominates well before this is reached.
	maxBackoffShift = 16
)

// backoffDelay computes the reconnect delay for the given attempt count:
// min(cap, base * 2^attempt). Attempt 0 yields the base delay.
func backoffDelay(attempt int, base, cap time.Duration) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if attempt > maxBackoffShift {
		attempt = maxBackoffShift
	}
	d := base << uint(attempt)
	if d > cap || d <= 0 {
		return cap
	}
	return d
}
