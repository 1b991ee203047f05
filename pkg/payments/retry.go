package payments

import (
	"context"
	"math/rand"
	"time"
)

// RetryPolicy bounds exponential backoff for gateway calls.
type RetryPolicy struct {
	MaxAttempts int
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
}

func (p RetryPolicy) normalized() RetryPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 1
	}
	if p.BaseBackoff <= 0 {
		p.BaseBackoff = 100 * time.Millisecond
	}
	if p.MaxBackoff <= 0 || p.MaxBackoff < p.BaseBackoff {
		p.MaxBackoff = p.BaseBackoff
	}
	return p
}

// Backoff returns the delay before the given (1-based) retry, with up to 20% jitter.
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	p = p.normalized()
	delay := p.BaseBackoff
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= p.MaxBackoff {
			delay = p.MaxBackoff
			break
		}
	}
	jitter := time.Duration(rand.Int63n(int64(delay)/5 + 1))
	return delay + jitter
}

// Retry calls fn until it succeeds, the attempts run out, or ctx is done.
// It returns the number of attempts made and the last error.
func Retry(ctx context.Context, policy RetryPolicy, fn func(ctx context.Context, attempt int) error) (int, error) {
	policy = policy.normalized()
	var err error
	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		if err = fn(ctx, attempt); err == nil {
			return attempt, nil
		}
		if attempt == policy.MaxAttempts {
			return attempt, err
		}
		timer := time.NewTimer(policy.Backoff(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return attempt, ctx.Err()
		case <-timer.C:
		}
	}
	return policy.MaxAttempts, err
}
