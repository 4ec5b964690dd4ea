package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/amishk599/jobreach/internal/model"
)

// Policy controls how many times a call is repeated and how long to wait.
type Policy struct {
	MaxRetries int           // additional attempts after the first failure
	BaseDelay  time.Duration // delay before the first retry, doubled afterwards
}

// Do calls fn and retries transient failures with exponential backoff and
// jitter. A Retry-After duration on an HTTP 429 takes precedence.
func Do[T any](ctx context.Context, p Policy, logger *slog.Logger, op string, fn func(context.Context) (T, error)) (T, error) {
	v, err := fn(ctx)
	if err == nil || !IsRetryable(err) {
		return v, err
	}

	lastErr := err
	for attempt := 1; attempt <= p.MaxRetries; attempt++ {
		delay := backoffDelay(p.BaseDelay, attempt, lastErr)

		logger.Warn("retrying after transient error",
			"op", op,
			"attempt", attempt,
			"max_retries", p.MaxRetries,
			"delay", delay,
			"error", lastErr,
		)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			var zero T
			return zero, fmt.Errorf("retry cancelled: %w", ctx.Err())
		case <-timer.C:
		}

		v, err = fn(ctx)
		if err == nil || !IsRetryable(err) {
			return v, err
		}
		lastErr = err
	}

	var zero T
	return zero, lastErr
}

// Source is a decorator that retries transient failures of the wrapped JobSource.
type Source struct {
	inner  model.JobSource
	policy Policy
	name   string
	logger *slog.Logger
}

// NewSource wraps a JobSource with retry logic. name identifies the board in logs.
func NewSource(inner model.JobSource, policy Policy, name string, logger *slog.Logger) *Source {
	return &Source{
		inner:  inner,
		policy: policy,
		name:   name,
		logger: logger,
	}
}

func (s *Source) FetchJobs(ctx context.Context) ([]model.Job, error) {
	return Do(ctx, s.policy, s.logger, s.name, s.inner.FetchJobs)
}

// backoffDelay computes base * 2^(attempt-1) with ±30% jitter.
func backoffDelay(base time.Duration, attempt int, err error) time.Duration {
	var httpErr *model.HTTPError
	if errors.As(err, &httpErr) && httpErr.RetryAfter > 0 {
		return httpErr.RetryAfter
	}

	delay := base
	for i := 1; i < attempt; i++ {
		delay *= 2
	}

	jitter := float64(delay) * 0.3
	return time.Duration(float64(delay) + (rand.Float64()*2-1)*jitter)
}

// IsRetryable reports whether err is a transient failure worth retrying:
// 429, 5xx and non-HTTP errors. Cancellation never is.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var httpErr *model.HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.Transient()
	}
	return true
}
