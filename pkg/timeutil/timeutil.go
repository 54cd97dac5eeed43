package timeutil

import (
	"math"
	"math/rand"
	"time"
)

// DurationPtr is a helper function to create a pointer to a time.Duration
func DurationPtr(d time.Duration) *time.Duration {
	return &d
}

// MaxDuration returns the largest duration in the given slice. An empty
// slice returns zero.
func MaxDuration(durations []time.Duration) time.Duration {
	var max time.Duration
	for i, d := range durations {
		if i == 0 || d > max {
			max = d
		}
	}
	return max
}

// ComputeJitter returns a pseudo-random duration in [0, max), or 0 when
// max is not positive.
func ComputeJitter(max time.Duration, rng rand.Rand) time.Duration {
	if max <= 0 {
		return 0
	}
	return time.Duration(rng.Int63n(int64(max)))
}

// ExponentialBackoffDelay computes the delay for the given attempt number
// (1-indexed) using the supplied backoff parameters, adding up to `jitter`
// of random slack on top.
func ExponentialBackoffDelay(attempt int, jitter time.Duration, rng rand.Rand, params BackoffParam) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	exponent := float64(attempt - 1)
	delay := float64(params.InitialDuration()) * math.Pow(params.Multiplier(), exponent)
	if max := float64(params.MaxDuration()); params.MaxDuration() > 0 && delay > max {
		delay = max
	}

	result := time.Duration(delay)
	if jitter > 0 {
		result += time.Duration(rng.Int63n(int64(jitter)))
	}
	return result
}

// Sleeper abstracts time.Sleep so worker/queue/retry code can be tested
// without incurring real wall-clock delays.
type Sleeper interface {
	Sleep(d time.Duration)
}

type realSleeper struct{}

// NewRealSleeper returns a Sleeper backed by time.Sleep.
func NewRealSleeper() Sleeper {
	return realSleeper{}
}

func (realSleeper) Sleep(d time.Duration) {
	time.Sleep(d)
}
