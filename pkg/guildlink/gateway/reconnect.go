package gateway

import (
	"fmt"
	"time"
)

// Backoff is a capped exponential delay between reconnect attempts.
type Backoff struct {
	Initial time.Duration
	Max     time.Duration
	Factor  float64
}

// DefaultBackoff starts at one second and doubles up to a minute.
var DefaultBackoff = Backoff{
	Initial: time.Second,
	Max:     time.Minute,
	Factor:  2.0,
}

// Validate checks that the backoff can make progress.
func (b Backoff) Validate() error {
	if b.Initial <= 0 {
		return fmt.Errorf("initial reconnect delay must be positive, got %s", b.Initial)
	}
	if b.Max < b.Initial {
		return fmt.Errorf("max reconnect delay %s is below initial delay %s", b.Max, b.Initial)
	}
	if b.Factor < 1 {
		return fmt.Errorf("backoff factor must be at least 1, got %g", b.Factor)
	}
	return nil
}

// Delay returns the wait before the given attempt (1-based).
func (b Backoff) Delay(attempt int) time.Duration {
	delay := b.Initial
	for i := 1; i < attempt; i++ {
		delay = b.Next(delay)
		if delay == b.Max {
			break
		}
	}
	return delay
}

// Next returns the delay that follows current.
func (b Backoff) Next(current time.Duration) time.Duration {
	next := float64(current) * b.Factor
	if next >= float64(b.Max) || next <= 0 {
		return b.Max
	}
	return time.Duration(next)
}
