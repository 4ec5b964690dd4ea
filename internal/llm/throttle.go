package llm

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// ThrottledProvider is a decorator that applies a client-side token bucket
// before delegating to the wrapped Provider.
type ThrottledProvider struct {
	inner   Provider
	limiter *rate.Limiter
}

// Throttle wraps p so it sends at most rps requests per second. A
// non-positive rps returns p unchanged.
func Throttle(p Provider, rps float64) Provider {
	if rps <= 0 {
		return p
	}
	return &ThrottledProvider{inner: p, limiter: rate.NewLimiter(rate.Limit(rps), 1)}
}

func (t *ThrottledProvider) Name() string { return t.inner.Name() }

func (t *ThrottledProvider) Complete(ctx context.Context, req Request) (string, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("%s throttle: %w", t.inner.Name(), err)
	}
	return t.inner.Complete(ctx, req)
}
