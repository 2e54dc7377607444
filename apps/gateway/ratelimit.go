package main

import (
	"time"

	"golang.org/x/time/rate"
)

// newFrameLimiter allows burst frames at once, refilled at burst per refill.
func newFrameLimiter(burst int, refill time.Duration) *rate.Limiter {
	if burst <= 0 {
		burst = 1
	}
	if refill <= 0 {
		refill = time.Second
	}
	return rate.NewLimiter(rate.Every(refill/time.Duration(burst)), burst)
}
