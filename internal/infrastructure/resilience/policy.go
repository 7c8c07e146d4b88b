package resilience

import "time"

// Config tunes retries and breakers for calls to the answering backend.
//
// Status polls run every few seconds per document, so a dead backend shows up
// as a slow trickle of failures rather than a burst; the breaker therefore
// also trips on consecutive failures, and counts are cleared every
// BreakerInterval while closed.
type Config struct {
	RetryMaxAttempts    int
	RetryInitialBackoff time.Duration
	RetryMaxBackoff     time.Duration
	RetryMultiplier     float64

	BreakerEnabled             bool
	BreakerMinRequests         uint32
	BreakerFailureRatio        float64
	BreakerConsecutiveFailures uint32
	BreakerInterval            time.Duration
	BreakerOpenTimeout         time.Duration
	BreakerHalfOpenMaxCalls    uint32
}

func DefaultConfig() Config {
	return Config{
		RetryMaxAttempts:    3,
		RetryInitialBackoff: 200 * time.Millisecond,
		RetryMaxBackoff:     time.Second,
		RetryMultiplier:     2.0,

		BreakerEnabled:             true,
		BreakerMinRequests:         6,
		BreakerFailureRatio:        0.6,
		BreakerConsecutiveFailures: 5,
		BreakerInterval:            time.Minute,
		BreakerOpenTimeout:         15 * time.Second,
		BreakerHalfOpenMaxCalls:    1,
	}
}

// RetryBudget is the longest total time spent sleeping between attempts of
// one call.
func (c Config) RetryBudget() time.Duration {
	c = c.normalize()
	var total time.Duration
	wait := c.RetryInitialBackoff
	for attempt := 1; attempt < c.RetryMaxAttempts; attempt++ {
		total += min(wait, c.RetryMaxBackoff)
		wait = nextBackoff(wait, c.RetryMultiplier, c.RetryMaxBackoff)
	}
	return total
}

// FitWithin shrinks the backoff cap so a retried call sleeps at most half of
// interval. A status query must settle before the next poll tick fires.
func (c Config) FitWithin(interval time.Duration) Config {
	out := c.normalize()
	if interval <= 0 || out.RetryMaxAttempts <= 1 {
		return out
	}
	limit := interval / 2
	if out.RetryBudget() <= limit {
		return out
	}
	perWait := limit / time.Duration(out.RetryMaxAttempts-1)
	if perWait <= 0 {
		perWait = time.Millisecond
	}
	out.RetryMaxBackoff = perWait
	if out.RetryInitialBackoff > perWait {
		out.RetryInitialBackoff = perWait
	}
	return out
}

func (c Config) normalize() Config {
	out := c
	def := DefaultConfig()

	if out.RetryMaxAttempts <= 0 {
		out.RetryMaxAttempts = def.RetryMaxAttempts
	}
	if out.RetryInitialBackoff <= 0 {
		out.RetryInitialBackoff = def.RetryInitialBackoff
	}
	if out.RetryMaxBackoff <= 0 {
		out.RetryMaxBackoff = def.RetryMaxBackoff
	}
	out.RetryMaxBackoff = max(out.RetryMaxBackoff, out.RetryInitialBackoff)
	if out.RetryMultiplier < 1.0 {
		out.RetryMultiplier = def.RetryMultiplier
	}

	if out.BreakerMinRequests == 0 {
		out.BreakerMinRequests = def.BreakerMinRequests
	}
	if out.BreakerFailureRatio <= 0 || out.BreakerFailureRatio > 1 {
		out.BreakerFailureRatio = def.BreakerFailureRatio
	}
	if out.BreakerConsecutiveFailures == 0 {
		out.BreakerConsecutiveFailures = def.BreakerConsecutiveFailures
	}
	if out.BreakerInterval <= 0 {
		out.BreakerInterval = def.BreakerInterval
	}
	if out.BreakerOpenTimeout <= 0 {
		out.BreakerOpenTimeout = def.BreakerOpenTimeout
	}
	if out.BreakerHalfOpenMaxCalls == 0 {
		out.BreakerHalfOpenMaxCalls = def.BreakerHalfOpenMaxCalls
	}

	return out
}

func nextBackoff(current time.Duration, multiplier float64, limit time.Duration) time.Duration {
	return min(time.Duration(float64(current)*multiplier), limit)
}
