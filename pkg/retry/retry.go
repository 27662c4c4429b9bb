package retry

import (
	"context"
	"math/rand"
	"strings"
	"time"
)

// RetryFunc is a function that can be retried
type RetryFunc func() (interface{}, error)

// IsRetryableFunc is a function that determines if an error is retryable
type IsRetryableFunc func(error) bool

// Options configures the retry behavior
type Options struct {
	// MaxRetries is the maximum number of retry attempts (not including the initial attempt)
	MaxRetries int

	// InitialDelay is the delay before the first retry
	InitialDelay time.Duration

	// MaxDelay is the maximum delay between retries
	MaxDelay time.Duration

	// BackoffFactor is the factor by which the delay increases after each retry
	BackoffFactor float64

	// JitterFactor adds randomness to the delay (0.0 = no jitter, 1.0 = 100% jitter)
	JitterFactor float64

	// RetryableErrors lists message fragments that mark an error as retryable
	RetryableErrors []string

	// IsRetryableFunc is a function that determines if an error is retryable
	// If provided, this takes precedence over RetryableErrors
	IsRetryableFunc IsRetryableFunc

	// OnRetry is called before each wait with the attempt number, delay and error
	OnRetry func(attempt int, delay time.Duration, err error)
}

// Do executes fn, retrying retryable errors with exponential backoff.
// Waiting stops early when ctx is done, returning the last error from fn.
func Do(ctx context.Context, fn RetryFunc, opts Options) (interface{}, error) {
	var delay time.Duration

	rnd := rand.New(rand.NewSource(time.Now().UnixNano()))

	for attempt := 0; ; attempt++ {
		result, err := fn()
		if err == nil {
			return result, nil
		}

		if !isRetryable(err, opts) || attempt >= opts.MaxRetries {
			return nil, err
		}

		// Calculate delay for the next retry
		if attempt == 0 {
			delay = opts.InitialDelay
		} else {
			delay = time.Duration(float64(delay) * opts.BackoffFactor)
			if opts.MaxDelay > 0 && delay > opts.MaxDelay {
				delay = opts.MaxDelay
			}
		}

		wait := delay
		if opts.JitterFactor > 0 {
			jitter := float64(delay) * opts.JitterFactor
			wait = time.Duration(float64(delay) + (rnd.Float64()*jitter*2 - jitter))
		}

		if opts.OnRetry != nil {
			opts.OnRetry(attempt+1, wait, err)
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, err
		case <-timer.C:
		}
	}
}

// IsRetryable reports whether err's message contains any of the given fragments
func IsRetryable(err error, fragments []string) bool {
	if err == nil {
		return false
	}

	errMsg := strings.ToLower(err.Error())
	for _, fragment := range fragments {
		if fragment != "" && strings.Contains(errMsg, strings.ToLower(fragment)) {
			return true
		}
	}

	return false
}

// isRetryable checks if an error is retryable based on the options
func isRetryable(err error, opts Options) bool {
	if opts.IsRetryableFunc != nil {
		return opts.IsRetryableFunc(err)
	}
	return IsRetryable(err, opts.RetryableErrors)
}
