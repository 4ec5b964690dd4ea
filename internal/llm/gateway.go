package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/amishk599/jobreach/internal/model"
	"github.com/amishk599/jobreach/internal/repair"
)

// MaxAttempts is the attempt budget of one Chat call, shared across
// provider switches.
const MaxAttempts = 3

// ErrProvidersExhausted is matched by every ExhaustedError.
var ErrProvidersExhausted = errors.New("all LLM providers failed")

// ExhaustedError is returned when the attempt budget runs out.
type ExhaustedError struct {
	Providers []string
	Attempts  int
	Err       error // last provider error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("%v after %d attempts (%s): last error: %v",
		ErrProvidersExhausted, e.Attempts, strings.Join(e.Providers, ", "), e.Err)
}

func (e *ExhaustedError) Is(target error) bool { return target == ErrProvidersExhausted }

func (e *ExhaustedError) Unwrap() error { return e.Err }

// Session holds the index of the current provider. Once advanced it never
// moves back, so later calls keep using the provider that last worked.
type Session struct {
	mu     sync.Mutex
	cursor int
}

// Current returns the current provider index.
func (s *Session) Current() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor
}

// advance moves to the next of n providers and reports whether it could.
func (s *Session) advance(n int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cursor+1 >= n {
		return false
	}
	s.cursor++
	return true
}

// Sleeper pauses for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithSession shares a session between gateways.
func WithSession(s *Session) Option { return func(g *Gateway) { g.session = s } }

// WithSleeper replaces the backoff sleep.
func WithSleeper(s Sleeper) Option { return func(g *Gateway) { g.sleep = s } }

// WithExtractor sets the JSON recovery mode used by ChatJSON.
func WithExtractor(x repair.Extractor) Option { return func(g *Gateway) { g.extractor = x } }

// Gateway sends chat requests to the current provider of a Registry and
// fails over on rate limits and errors.
type Gateway struct {
	registry  *Registry
	session   *Session
	sleep     Sleeper
	extractor repair.Extractor
	logger    *slog.Logger
}

// NewGateway creates a gateway with a fresh session.
func NewGateway(registry *Registry, logger *slog.Logger, opts ...Option) *Gateway {
	g := &Gateway{
		registry: registry,
		session:  &Session{},
		sleep:    sleepContext,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Current returns the name of the provider the next call will use.
func (g *Gateway) Current() string {
	return g.registry.At(g.session.Current()).Name()
}

type chatState int

const (
	stateAttempting chatState = iota
	stateSwitched
	stateBackoff
	stateExhausted
)

// Chat sends req and returns the trimmed response text. An empty response is
// a valid result.
func (g *Gateway) Chat(ctx context.Context, req Request) (string, error) {
	var (
		state       = stateAttempting
		attempt     int
		lastErr     error
		rateLimited bool
	)

	for {
		switch state {
		case stateAttempting, stateSwitched:
			p := g.registry.At(g.session.Current())
			text, err := p.Complete(ctx, req)
			if err == nil {
				return strings.TrimSpace(text), nil
			}
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return "", err
			}
			lastErr = err
			rateLimited = IsRateLimited(err)

			if !rateLimited {
				g.logger.Error("llm request failed", "provider", p.Name(), "attempt", attempt+1, "error", err)
				state = stateBackoff
				continue
			}

			g.logger.Warn("llm rate limited",
				"provider", p.Name(),
				"attempt", attempt+1,
				"max_attempts", MaxAttempts,
			)
			if !g.session.advance(g.registry.Len()) {
				state = stateBackoff
				continue
			}
			g.logger.Warn("switching llm provider", "provider", g.Current())
			attempt++
			state = stateSwitched
			if attempt >= MaxAttempts {
				state = stateExhausted
			}

		case stateBackoff:
			if attempt >= MaxAttempts-1 {
				state = stateExhausted
				continue
			}
			wait := backoffDelay(attempt)
			g.logger.Info("retrying llm request", "delay", wait)
			if err := g.sleep(ctx, wait); err != nil {
				return "", fmt.Errorf("llm backoff: %w", err)
			}
			if !rateLimited && g.session.advance(g.registry.Len()) {
				g.logger.Warn("switching llm provider", "provider", g.Current())
			}
			attempt++
			state = stateAttempting

		case stateExhausted:
			return "", &ExhaustedError{
				Providers: g.registry.Names(),
				Attempts:  MaxAttempts,
				Err:       lastErr,
			}
		}
	}
}

// ChatJSON asks for a JSON response. It first uses the provider's JSON mode;
// if that call fails or returns invalid JSON it retries in plain mode and
// recovers the JSON value from the text.
func (g *Gateway) ChatJSON(ctx context.Context, messages []Message, temperature float64, maxTokens int) (json.RawMessage, error) {
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	req := Request{
		Messages:    messages,
		Temperature: temperature,
		MaxTokens:   maxTokens,
		JSONMode:    true,
	}

	text, err := g.Chat(ctx, req)
	switch {
	case err == nil && json.Valid([]byte(text)):
		return json.RawMessage(text), nil
	case err == nil:
		g.logger.Warn("json mode returned invalid JSON, retrying in plain mode")
	case ctx.Err() != nil:
		return nil, err
	default:
		g.logger.Warn("json mode request failed, retrying in plain mode", "error", err)
	}

	req.JSONMode = false
	text, err = g.Chat(ctx, req)
	if err != nil {
		return nil, err
	}
	return g.extractor.Extract(text)
}

// backoffDelay is 2^(attempt+1) seconds for a 0-based attempt.
func backoffDelay(attempt int) time.Duration {
	return time.Duration(1<<(attempt+1)) * time.Second
}

// IsRateLimited reports whether err looks like a provider rate limit: an
// HTTP 429, or a message mentioning "429" or "rate".
func IsRateLimited(err error) bool {
	if err == nil {
		return false
	}
	var httpErr *model.HTTPError
	if errors.As(err, &httpErr) && httpErr.StatusCode == 429 {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "429") || strings.Contains(strings.ToLower(msg), "rate")
}
