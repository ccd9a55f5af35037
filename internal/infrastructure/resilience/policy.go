package resilience

import "time"

// RetryPolicy bounds repeated attempts of one call. Attempts of 1 disables retries.
type RetryPolicy struct {
	Attempts       int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Multiplier     float64
}

type BreakerPolicy struct {
	Enabled       bool
	MinRequests   uint32
	FailureRatio  float64
	OpenTimeout   time.Duration
	HalfOpenCalls uint32
}

type Policy struct {
	Retry   RetryPolicy
	Breaker BreakerPolicy
}

// DefaultPolicy makes a single attempt per call and trips the breaker when
// half of at least ten calls fail.
func DefaultPolicy() Policy {
	return Policy{
		Retry: RetryPolicy{
			Attempts:       1,
			InitialBackoff: 200 * time.Millisecond,
			MaxBackoff:     2 * time.Second,
			Multiplier:     2,
		},
		Breaker: BreakerPolicy{
			Enabled:       true,
			MinRequests:   10,
			FailureRatio:  0.5,
			OpenTimeout:   30 * time.Second,
			HalfOpenCalls: 1,
		},
	}
}

func (p Policy) withDefaults() Policy {
	def := DefaultPolicy()

	if p.Retry.Attempts <= 0 {
		p.Retry.Attempts = def.Retry.Attempts
	}
	if p.Retry.InitialBackoff <= 0 {
		p.Retry.InitialBackoff = def.Retry.InitialBackoff
	}
	if p.Retry.MaxBackoff < p.Retry.InitialBackoff {
		p.Retry.MaxBackoff = max(def.Retry.MaxBackoff, p.Retry.InitialBackoff)
	}
	if p.Retry.Multiplier < 1 {
		p.Retry.Multiplier = def.Retry.Multiplier
	}

	if p.Breaker.MinRequests == 0 {
		p.Breaker.MinRequests = def.Breaker.MinRequests
	}
	if p.Breaker.FailureRatio <= 0 || p.Breaker.FailureRatio > 1 {
		p.Breaker.FailureRatio = def.Breaker.FailureRatio
	}
	if p.Breaker.OpenTimeout <= 0 {
		p.Breaker.OpenTimeout = def.Breaker.OpenTimeout
	}
	if p.Breaker.HalfOpenCalls == 0 {
		p.Breaker.HalfOpenCalls = def.Breaker.HalfOpenCalls
	}
	return p
}
