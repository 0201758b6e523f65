package pipeline

import (
	"errors"
	"math/rand/v2"
	"time"

	"github.com/dgallion1/scoreslice/internal/recognize"
)

// IsRetryable checks if an error is worth retrying.
func IsRetryable(err error) bool {
	var retryErr *recognize.RetryableError
	return errors.As(err, &retryErr)
}

// RetryPolicy bounds retries of transient render and recognition failures.
type RetryPolicy struct {
	Attempts int
	Base     time.Duration
	Max      time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{Attempts: 3, Base: time.Second, Max: 30 * time.Second}
}

// Delay returns the wait before retry n (0-indexed): exponential from Base,
// capped at Max, plus up to 50% jitter.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	base := p.Base << uint(attempt)
	if base <= 0 || base > p.Max {
		base = p.Max
	}
	if base <= 0 {
		return 0
	}
	half := int64(base) / 2
	if half <= 0 {
		return base
	}
	return base + time.Duration(rand.Int64N(half))
}
