// Package backoff computes capped exponential waits for retries and
// failed rebuilds.
package backoff

import "time"

// Max caps every computed wait.
const Max = 30 * time.Second

// Delay returns base doubled once per failure, capped at Max. Zero or
// negative failures yield base; a non-positive base yields zero.
func Delay(failures int, base time.Duration) time.Duration {
	if base <= 0 {
		return 0
	}
	if failures <= 0 {
		return base
	}
	d := base
	for i := 0; i < failures; i++ {
		d *= 2
		if d >= Max {
			return Max
		}
	}
	return d
}
