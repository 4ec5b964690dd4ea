package notifier

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSlackNotifier_PostsSummary(t *testing.T) {
	var body []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := NewSlackNotifier(srv.URL, srv.Client(), discardLogger())
	if err := n.Notify(context.Background(), sampleSummary()); err != nil {
		t.Fatalf("Notify() = %v, want nil", err)
	}

	var payload slackPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}

	if header := payload.Blocks[0].Text.Text; header != "📬 jobreach run: full" {
		t.Errorf("header text = %q", header)
	}
	if f := payload.Blocks[1].Fields[0].Text; f != "*Processed:*\n5" {
		t.Errorf("processed field = %q", f)
	}
	email := payload.Blocks[2].Text.Text
	if !strings.HasPrefix(email, "*Job emails*  5/50 processed") {
		t.Errorf("email section = %q", email)
	}
	if !strings.Contains(payload.Blocks[3].Text.Text, "company cache corrupt") {
		t.Errorf("prospect section should carry the error, got %q", payload.Blocks[3].Text.Text)
	}
	if payload.Blocks[len(payload.Blocks)-1].Type != "divider" {
		t.Error("last block should be a divider")
	}
}

func TestSlackNotifier_DryRunTitle(t *testing.T) {
	s := sampleSummary()
	s.DryRun = true
	if got := buildPayload(s).Text; got != "jobreach run: full (dry-run)" {
		t.Errorf("title = %q", got)
	}
}

func TestSlackNotifier_SlackReturnsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	n := NewSlackNotifier(srv.URL, srv.Client(), discardLogger())
	if err := n.Notify(context.Background(), sampleSummary()); err == nil {
		t.Error("expected error on 500, got nil")
	}
}

func TestSlackNotifier_RateLimitRetry(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := NewSlackNotifier(srv.URL, srv.Client(), discardLogger())
	if err := n.Notify(context.Background(), sampleSummary()); err != nil {
		t.Fatalf("Notify() = %v, want nil after retry", err)
	}
	if c := calls.Load(); c != 2 {
		t.Errorf("expected 2 HTTP calls (1 rate-limited + 1 retry), got %d", c)
	}
}

func TestSlackNotifier_RateLimitCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "30")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	n := NewSlackNotifier(srv.URL, &http.Client{Transport: cancelAfterResponse{srv.Client().Transport, cancel}}, discardLogger())
	if err := n.Notify(ctx, sampleSummary()); err == nil {
		t.Error("expected context error while waiting to retry")
	}
}

// cancelAfterResponse cancels the caller's context once a response arrives.
type cancelAfterResponse struct {
	rt     http.RoundTripper
	cancel context.CancelFunc
}

func (c cancelAfterResponse) RoundTrip(r *http.Request) (*http.Response, error) {
	resp, err := c.rt.RoundTrip(r)
	c.cancel()
	return resp, err
}

func TestSlackNotifier_SendTestMessage(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := NewSlackNotifier(srv.URL, srv.Client(), discardLogger())
	if err := n.SendTestMessage(context.Background()); err != nil {
		t.Fatalf("SendTestMessage() = %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("expected 1 call, got %d", calls.Load())
	}
}
