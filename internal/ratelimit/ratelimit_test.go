package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/amishk599/jobreach/internal/model"
)

func TestWait_SameKey_EnforcesMinDelay(t *testing.T) {
	limiter := NewKeyLimiter(100*time.Millisecond, nil)
	ctx := context.Background()

	if err := limiter.Wait(ctx, "greenhouse"); err != nil {
		t.Fatalf("first wait: %v", err)
	}

	start := time.Now()
	if err := limiter.Wait(ctx, "greenhouse"); err != nil {
		t.Fatalf("second wait: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 80*time.Millisecond {
		t.Errorf("expected >= 80ms wait, got %v", elapsed)
	}
}

func TestWait_DifferentKeys_NoCrossBlocking(t *testing.T) {
	limiter := NewKeyLimiter(200*time.Millisecond, nil)
	ctx := context.Background()

	if err := limiter.Wait(ctx, "greenhouse"); err != nil {
		t.Fatalf("greenhouse wait: %v", err)
	}

	start := time.Now()
	if err := limiter.Wait(ctx, "lever"); err != nil {
		t.Fatalf("lever wait: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 50*time.Millisecond {
		t.Errorf("expected lever wait to be near-instant, got %v", elapsed)
	}
}

func TestWait_OverrideShortensGap(t *testing.T) {
	limiter := NewKeyLimiter(5*time.Second, map[string]time.Duration{"ashby": 0})
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 3; i++ {
		if err := limiter.Wait(ctx, "ashby"); err != nil {
			t.Fatalf("wait %d: %v", i, err)
		}
	}
	if elapsed := time.Since(start); elapsed > 50*time.Millisecond {
		t.Errorf("override of 0 should not block, took %v", elapsed)
	}
}

func TestWait_ConcurrentCallersAreSpaced(t *testing.T) {
	limiter := NewKeyLimiter(50*time.Millisecond, nil)
	ctx := context.Background()

	start := time.Now()
	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := limiter.Wait(ctx, "lever"); err != nil {
				t.Errorf("wait: %v", err)
			}
		}()
	}
	wg.Wait()

	// Three callers need two gaps.
	if elapsed := time.Since(start); elapsed < 80*time.Millisecond {
		t.Errorf("expected >= 80ms for three concurrent callers, got %v", elapsed)
	}
}

func TestWait_ContextCancellation(t *testing.T) {
	limiter := NewKeyLimiter(5*time.Second, nil)

	if err := limiter.Wait(context.Background(), "greenhouse"); err != nil {
		t.Fatalf("first wait: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := limiter.Wait(ctx, "greenhouse"); err == nil {
		t.Fatal("expected error from cancelled context, got nil")
	}
}

type recordingSource struct {
	called bool
}

func (f *recordingSource) FetchJobs(_ context.Context) ([]model.Job, error) {
	f.called = true
	return nil, nil
}

func TestLimitedSource_WaitsBeforeDelegating(t *testing.T) {
	limiter := NewKeyLimiter(100*time.Millisecond, nil)
	inner := &recordingSource{}
	src := NewLimitedSource(inner, limiter, "greenhouse")
	ctx := context.Background()

	if _, err := src.FetchJobs(ctx); err != nil {
		t.Fatalf("first fetch: %v", err)
	}
	if !inner.called {
		t.Fatal("inner source was not called on first fetch")
	}
	inner.called = false

	start := time.Now()
	if _, err := src.FetchJobs(ctx); err != nil {
		t.Fatalf("second fetch: %v", err)
	}
	if !inner.called {
		t.Fatal("inner source was not called on second fetch")
	}
	if elapsed := time.Since(start); elapsed < 80*time.Millisecond {
		t.Errorf("expected >= 80ms wait on second fetch, got %v", elapsed)
	}
}

func TestHostLimiter_PerHostBuckets(t *testing.T) {
	hl := NewHostLimiter(2, 1) // one token every 500ms
	ctx := context.Background()

	if err := hl.WaitURL(ctx, "https://acme.com/"); err != nil {
		t.Fatalf("acme: %v", err)
	}

	start := time.Now()
	if err := hl.WaitURL(ctx, "https://beta.io/contact"); err != nil {
		t.Fatalf("beta: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 50*time.Millisecond {
		t.Errorf("different host should not wait, took %v", elapsed)
	}

	start = time.Now()
	if err := hl.WaitURL(ctx, "https://acme.com/about"); err != nil {
		t.Fatalf("acme again: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 400*time.Millisecond {
		t.Errorf("same host should wait ~500ms, took %v", elapsed)
	}
}

func TestHostLimiter_Cancelled(t *testing.T) {
	hl := NewHostLimiter(0.1, 1)
	ctx, cancel := context.WithCancel(context.Background())

	if err := hl.WaitURL(ctx, "https://acme.com/"); err != nil {
		t.Fatalf("first: %v", err)
	}
	cancel()
	if err := hl.WaitURL(ctx, "https://acme.com/"); err == nil {
		t.Fatal("expected error after cancel")
	}
}
