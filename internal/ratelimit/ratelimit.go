package ratelimit

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/amishk599/jobreach/internal/model"
)

// KeyLimiter enforces a minimum delay between requests sharing a key, such as
// all boards hosted by the same ATS.
type KeyLimiter struct {
	mu        sync.Mutex
	lastCall  map[string]time.Time
	minDelay  time.Duration
	overrides map[string]time.Duration
}

// NewKeyLimiter creates a limiter with a default gap and optional per-key overrides.
func NewKeyLimiter(minDelay time.Duration, overrides map[string]time.Duration) *KeyLimiter {
	return &KeyLimiter{
		lastCall:  make(map[string]time.Time),
		minDelay:  minDelay,
		overrides: overrides,
	}
}

func (r *KeyLimiter) delayFor(key string) time.Duration {
	if d, ok := r.overrides[key]; ok {
		return d
	}
	return r.minDelay
}

// Wait blocks until enough time has passed since the last request for key.
// The slot is reserved before sleeping so concurrent callers queue up.
func (r *KeyLimiter) Wait(ctx context.Context, key string) error {
	gap := r.delayFor(key)

	r.mu.Lock()
	now := time.Now()
	next := now
	if last, ok := r.lastCall[key]; ok && last.Add(gap).After(now) {
		next = last.Add(gap)
	}
	r.lastCall[key] = next
	r.mu.Unlock()

	remaining := next.Sub(now)
	if remaining <= 0 {
		return nil
	}

	timer := time.NewTimer(remaining)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("rate limiter wait for %s: %w", key, ctx.Err())
	case <-timer.C:
		return nil
	}
}

// LimitedSource waits on a shared KeyLimiter before delegating to the wrapped source.
type LimitedSource struct {
	inner   model.JobSource
	limiter *KeyLimiter
	key     string
}

// NewLimitedSource wraps a JobSource. All sources targeting the same ATS
// should share one limiter and key.
func NewLimitedSource(inner model.JobSource, limiter *KeyLimiter, key string) *LimitedSource {
	return &LimitedSource{inner: inner, limiter: limiter, key: key}
}

func (s *LimitedSource) FetchJobs(ctx context.Context) ([]model.Job, error) {
	if err := s.limiter.Wait(ctx, s.key); err != nil {
		return nil, err
	}
	return s.inner.FetchJobs(ctx)
}

// HostLimiter is a token bucket per hostname, used when crawling company sites.
type HostLimiter struct {
	mu sync.Mutex
	m  map[string]*rate.Limiter
	r  rate.Limit
	b  int
}

// NewHostLimiter allows reqPerSec requests per host with the given burst.
func NewHostLimiter(reqPerSec float64, burst int) *HostLimiter {
	if burst < 1 {
		burst = 1
	}
	return &HostLimiter{
		m: make(map[string]*rate.Limiter),
		r: rate.Limit(reqPerSec),
		b: burst,
	}
}

func (hl *HostLimiter) limiterFor(host string) *rate.Limiter {
	hl.mu.Lock()
	defer hl.mu.Unlock()

	if lim, ok := hl.m[host]; ok {
		return lim
	}
	lim := rate.NewLimiter(hl.r, hl.b)
	hl.m[host] = lim
	return lim
}

// WaitURL blocks until the host of raw may be requested again. Unparseable
// URLs share one bucket.
func (hl *HostLimiter) WaitURL(ctx context.Context, raw string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return hl.limiterFor("_").Wait(ctx)
	}
	return hl.limiterFor(u.Host).Wait(ctx)
}
