package libemit

import (
	"math"
	"time"
)

// BackoffFunc returns how long to wait before reconnection attempt number
// attempts (starting at 1).
type BackoffFunc func(attempts int) time.Duration

func ExponentialBackoff(attempts int) float64 {
	return (math.Pow(2.0, float64(attempts)) - 1) / 2
}

func ExponentialBackoffSeconds(attempts int) time.Duration {
	return time.Duration(ExponentialBackoff(attempts) * float64(time.Second))
}

// ConstantBackoff waits d before every attempt.
func ConstantBackoff(d time.Duration) BackoffFunc {
	return func(int) time.Duration { return d }
}
