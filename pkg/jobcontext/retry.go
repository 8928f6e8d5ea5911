package jobcontext

import (
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Defaults for stage retries: three more attempts, one minute apart
const (
	DefaultMaxRetries    = 3
	DefaultRetryInterval = 60 * time.Second
)

// RetryPolicy decides whether a failed job runs again and after how long.
// It is independent of the queue that stores the job.
type RetryPolicy struct {
	MaxRetries int
	Interval   time.Duration
}

// NoRetry abandons a job after its first failure
var NoRetry = RetryPolicy{}

// DefaultRetryPolicy returns the fixed 3 x 60s policy
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxRetries: DefaultMaxRetries, Interval: DefaultRetryInterval}
}

func (p RetryPolicy) backOff() backoff.BackOff {
	return backoff.WithMaxRetries(backoff.NewConstantBackOff(p.Interval), uint64(max(p.MaxRetries, 0)))
}

// NextDelay returns the wait before the next attempt given how many retries already ran.
// ok is false once the policy is exhausted.
func (p RetryPolicy) NextDelay(retries int) (delay time.Duration, ok bool) {
	if retries < 0 {
		retries = 0
	}
	b := p.backOff()
	for i := 0; i <= retries; i++ {
		delay = b.NextBackOff()
		if delay == backoff.Stop {
			return 0, false
		}
	}
	return delay, true
}

// Schedule lists every delay the policy allows, in order
func (p RetryPolicy) Schedule() []time.Duration {
	var out []time.Duration
	b := p.backOff()
	for d := b.NextBackOff(); d != backoff.Stop; d = b.NextBackOff() {
		out = append(out, d)
	}
	return out
}

// Permanent marks err as not worth retrying
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return backoff.Permanent(err)
}

// IsPermanent reports whether err, or anything it wraps, was marked permanent
func IsPermanent(err error) bool {
	var perm *backoff.PermanentError
	return errors.As(err, &perm)
}
