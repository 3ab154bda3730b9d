// Package retry runs an operation under a bounded number of attempts, retrying
// only the failures a classifier accepts.
package retry

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"
)

var ErrInvalidPolicy = errors.New("invalid_retry_policy")

// Classifier reports whether an error may be retried.
type Classifier func(err error) bool

// Policy bounds a retried operation. MaxAttempts counts the first call.
type Policy struct {
	MaxAttempts int
	Retryable   Classifier
	Delay       time.Duration
	// OnRetry is called before every retry with the failed attempt number.
	OnRetry func(attempt int, err error)
}

// Do calls fn until it succeeds, fails with an error the policy does not
// classify as retryable, or the attempt limit is reached. The returned
// error is the last one fn produced.
func Do(ctx context.Context, policy Policy, fn func(attempt int) error) error {
	if policy.MaxAttempts <= 0 || fn == nil {
		return ErrInvalidPolicy
	}
	retryable := policy.Retryable
	if retryable == nil {
		retryable = Never
	}

	var b backoff.BackOff = &backoff.ZeroBackOff{}
	if policy.Delay > 0 {
		b = backoff.NewConstantBackOff(policy.Delay)
	}

	attempt := 0
	operation := func() (struct{}, error) {
		attempt++
		err := fn(attempt)
		if err == nil {
			return struct{}{}, nil
		}
		if !retryable(err) {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	}

	opts := []backoff.RetryOption{
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(policy.MaxAttempts)),
		backoff.WithMaxElapsedTime(0),
	}
	if policy.OnRetry != nil {
		opts = append(opts, backoff.WithNotify(func(err error, _ time.Duration) {
			policy.OnRetry(attempt, err)
		}))
	}

	_, err := backoff.Retry(ctx, operation, opts...)
	var permanent *backoff.PermanentError
	if errors.As(err, &permanent) {
		return permanent.Unwrap()
	}
	return err
}

// Never classifies every error as permanent.
func Never(error) bool { return false }
