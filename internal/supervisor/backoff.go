package supervisor

import "time"

// calculateBackoff returns base * 2^(attempt-1), capped at maxDelay.
func calculateBackoff(attempt int, base, maxDelay time.Duration) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	shift := min(attempt-1, 30)
	delay := base * time.Duration(1<<uint(shift))

	// Cap delay at maxDelay, overflow included
	if delay > maxDelay || delay <= 0 {
		delay = maxDelay
	}
	return delay
}
