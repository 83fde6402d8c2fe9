package services

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	// DefaultMaxRetries is the number of re-attempts after the first call.
	DefaultMaxRetries     = 2
	defaultRetryBaseDelay = 1 * time.Second
	defaultRetryMaxDelay  = 10 * time.Second
)

// HTTPStatusError carries a non-2xx provider response together with any
// server-supplied retry hint.
type HTTPStatusError struct {
	StatusCode int
	Body       string
	RetryAfter time.Duration
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("http %d: %s", e.StatusCode, strings.TrimSpace(e.Body))
}

// RetryPolicy describes the retry/backoff contract shared by stage clients.
// The zero value applies repository defaults. Sleeper is injectable for tests.
type RetryPolicy struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	Sleeper    func(time.Duration)
}

// Attempts returns the total number of calls the policy allows.
func (p RetryPolicy) Attempts() int {
	retries := p.MaxRetries
	if retries < 0 {
		retries = 0
	}
	if p.MaxRetries == 0 {
		retries = DefaultMaxRetries
	}
	return retries + 1
}

func (p RetryPolicy) baseDelay() time.Duration {
	if p.BaseDelay > 0 {
		return p.BaseDelay
	}
	return defaultRetryBaseDelay
}

func (p RetryPolicy) maxDelay() time.Duration {
	if p.MaxDelay > 0 {
		return p.MaxDelay
	}
	return defaultRetryMaxDelay
}

// Delay returns the backoff before the attempt following 1-based attempt.
// attempt 1 -> base, attempt 2 -> base*2, attempt 3 -> base*4, capped.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	base := p.baseDelay()
	maxDelay := p.maxDelay()
	if attempt < 1 {
		attempt = 1
	}
	delay := base
	for i := 1; i < attempt; i++ {
		if delay > maxDelay/2 {
			delay = maxDelay
			break
		}
		delay *= 2
	}
	return p.CapDelay(delay)
}

// CapDelay clamps delay to the policy's maximum.
func (p RetryPolicy) CapDelay(delay time.Duration) time.Duration {
	if delay < 0 {
		return 0
	}
	if maxDelay := p.maxDelay(); delay > maxDelay {
		return maxDelay
	}
	return delay
}

// Sleep waits for delay, honoring the injectable sleeper and the context.
func (p RetryPolicy) Sleep(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if p.Sleeper != nil {
		p.Sleeper(delay)
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Run invokes fn under the policy, retrying retryable failures with
// exponential backoff. A server-supplied Retry-After hint overrides the
// computed schedule. Configuration and not-found errors never retry.
func Run(ctx context.Context, policy RetryPolicy, op string, fn func(context.Context) error) error {
	attempts := policy.Attempts()
	var lastErr error

	for attempt := 1; attempt <= attempts; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if attempt >= attempts {
			break
		}
		hint, retry := Retryable(ctx, err)
		if !retry {
			return err
		}
		delay := policy.Delay(attempt)
		if hint > 0 {
			delay = policy.CapDelay(hint)
		}
		if sleepErr := policy.Sleep(ctx, delay); sleepErr != nil {
			return sleepErr
		}
	}

	if lastErr == nil {
		lastErr = errors.New("unknown retry failure")
	}
	return fmt.Errorf("%s: failed after %d attempts: %w", op, attempts, lastErr)
}

// Retryable classifies err, returning a server-supplied delay hint (zero
// when none) and whether the policy should retry.
func Retryable(ctx context.Context, err error) (time.Duration, bool) {
	if ctx.Err() != nil {
		return 0, false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return 0, false
	}
	if IsConfiguration(err) || IsNotFound(err) {
		return 0, false
	}
	// Malformed payloads are retried: providers occasionally return a
	// garbled body for an otherwise healthy request.
	if errors.Is(err, ErrMalformed) {
		return 0, true
	}
	if IsTransient(err) {
		var statusErr *HTTPStatusError
		if errors.As(err, &statusErr) {
			return statusErr.RetryAfter, true
		}
		return 0, true
	}

	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		switch {
		case statusErr.StatusCode == http.StatusRequestTimeout,
			statusErr.StatusCode == http.StatusTooManyRequests,
			statusErr.StatusCode >= http.StatusInternalServerError:
			return statusErr.RetryAfter, true
		default:
			return 0, false
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return 0, true
	}

	return 0, false
}

// ParseRetryAfter interprets a Retry-After header as either seconds or an
// HTTP date.
func ParseRetryAfter(value string) (time.Duration, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		if seconds < 0 {
			return 0, false
		}
		return time.Duration(seconds) * time.Second, true
	}
	if when, err := http.ParseTime(value); err == nil {
		delay := time.Until(when)
		if delay < 0 {
			return 0, false
		}
		return delay, true
	}
	return 0, false
}
