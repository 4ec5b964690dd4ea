package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/amishk599/jobreach/internal/model"
	"github.com/amishk599/jobreach/internal/repair"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type reply struct {
	text string
	err  error
}

// scriptedProvider returns its replies in order and repeats the last one.
type scriptedProvider struct {
	name    string
	mu      sync.Mutex
	replies []reply
	reqs    []Request
}

func (p *scriptedProvider) Name() string { return p.name }

func (p *scriptedProvider) Complete(_ context.Context, req Request) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reqs = append(p.reqs, req)
	i := len(p.reqs) - 1
	if i >= len(p.replies) {
		i = len(p.replies) - 1
	}
	return p.replies[i].text, p.replies[i].err
}

func (p *scriptedProvider) calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.reqs)
}

type recordingSleeper struct {
	waits []time.Duration
}

func (s *recordingSleeper) sleep(_ context.Context, d time.Duration) error {
	s.waits = append(s.waits, d)
	return nil
}

func rateLimitErr() error {
	return &model.HTTPError{StatusCode: 429, Err: errors.New("too many requests")}
}

func newTestGateway(t *testing.T, sleeper *recordingSleeper, providers ...Provider) *Gateway {
	t.Helper()
	reg, err := NewRegistry(providers...)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	return NewGateway(reg, discardLogger(), WithSleeper(sleeper.sleep))
}

func TestChat_FailsOverRateLimitedProviders(t *testing.T) {
	p1 := &scriptedProvider{name: "groq", replies: []reply{{err: rateLimitErr()}}}
	p2 := &scriptedProvider{name: "openrouter", replies: []reply{{err: errors.New("Rate limit reached for model")}}}
	p3 := &scriptedProvider{name: "gemini", replies: []reply{{text: "  hello  "}}}
	sleeper := &recordingSleeper{}
	g := newTestGateway(t, sleeper, p1, p2, p3)

	got, err := g.Chat(context.Background(), Request{Messages: []Message{User("hi")}})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if got != "hello" {
		t.Errorf("got %q, want trimmed %q", got, "hello")
	}
	if len(sleeper.waits) != 0 {
		t.Errorf("expected no backoff sleeps on switch, got %v", sleeper.waits)
	}
	if g.Current() != "gemini" {
		t.Errorf("cursor on %q, want gemini", g.Current())
	}

	// The cursor is sticky: the next call goes straight to the last provider.
	if _, err := g.Chat(context.Background(), Request{}); err != nil {
		t.Fatalf("second Chat: %v", err)
	}
	if p1.calls() != 1 || p2.calls() != 1 || p3.calls() != 2 {
		t.Errorf("calls = %d/%d/%d, want 1/1/2", p1.calls(), p2.calls(), p3.calls())
	}
}

func TestChat_GenericFailureBacksOffAndExhausts(t *testing.T) {
	boom := errors.New("connection reset")
	p := &scriptedProvider{name: "groq", replies: []reply{{err: boom}}}
	sleeper := &recordingSleeper{}
	g := newTestGateway(t, sleeper, p)

	_, err := g.Chat(context.Background(), Request{})
	if !errors.Is(err, ErrProvidersExhausted) {
		t.Fatalf("expected ErrProvidersExhausted, got %v", err)
	}
	if !errors.Is(err, boom) {
		t.Errorf("expected last error to be wrapped, got %v", err)
	}
	var exhausted *ExhaustedError
	if !errors.As(err, &exhausted) || !reflect.DeepEqual(exhausted.Providers, []string{"groq"}) {
		t.Errorf("unexpected error value %#v", err)
	}
	if p.calls() != 3 {
		t.Errorf("calls = %d, want 3", p.calls())
	}
	want := []time.Duration{2 * time.Second, 4 * time.Second}
	if !reflect.DeepEqual(sleeper.waits, want) {
		t.Errorf("waits = %v, want %v", sleeper.waits, want)
	}
}

func TestChat_GenericFailureAdvancesAfterBackoff(t *testing.T) {
	p1 := &scriptedProvider{name: "a", replies: []reply{{err: errors.New("internal error")}}}
	p2 := &scriptedProvider{name: "b", replies: []reply{{text: "ok"}}}
	sleeper := &recordingSleeper{}
	g := newTestGateway(t, sleeper, p1, p2)

	got, err := g.Chat(context.Background(), Request{})
	if err != nil || got != "ok" {
		t.Fatalf("Chat = %q, %v", got, err)
	}
	if !reflect.DeepEqual(sleeper.waits, []time.Duration{2 * time.Second}) {
		t.Errorf("waits = %v, want [2s]", sleeper.waits)
	}
	if g.Current() != "b" {
		t.Errorf("cursor on %q, want b", g.Current())
	}
}

func TestChat_RateLimitedWithoutFallbackBacksOff(t *testing.T) {
	p := &scriptedProvider{name: "groq", replies: []reply{{err: rateLimitErr()}, {text: "done"}}}
	sleeper := &recordingSleeper{}
	g := newTestGateway(t, sleeper, p)

	got, err := g.Chat(context.Background(), Request{})
	if err != nil || got != "done" {
		t.Fatalf("Chat = %q, %v", got, err)
	}
	if !reflect.DeepEqual(sleeper.waits, []time.Duration{2 * time.Second}) {
		t.Errorf("waits = %v, want [2s]", sleeper.waits)
	}
}

func TestChat_SwitchesConsumeBudget(t *testing.T) {
	var providers []Provider
	for _, name := range []string{"a", "b", "c", "d"} {
		providers = append(providers, &scriptedProvider{name: name, replies: []reply{{err: rateLimitErr()}}})
	}
	sleeper := &recordingSleeper{}
	g := newTestGateway(t, sleeper, providers...)

	_, err := g.Chat(context.Background(), Request{})
	if !errors.Is(err, ErrProvidersExhausted) {
		t.Fatalf("expected exhaustion, got %v", err)
	}
	if calls := providers[3].(*scriptedProvider).calls(); calls != 0 {
		t.Errorf("fourth provider called %d times, want 0", calls)
	}
	if len(sleeper.waits) != 0 {
		t.Errorf("waits = %v, want none", sleeper.waits)
	}
}

func TestChat_CancelledContextIsTerminal(t *testing.T) {
	p := &scriptedProvider{name: "a", replies: []reply{{err: context.Canceled}}}
	sleeper := &recordingSleeper{}
	g := newTestGateway(t, sleeper, p)

	_, err := g.Chat(context.Background(), Request{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if p.calls() != 1 || len(sleeper.waits) != 0 {
		t.Errorf("calls = %d waits = %v, want 1 call and no waits", p.calls(), sleeper.waits)
	}
}

func TestChat_EmptyContentIsValid(t *testing.T) {
	p := &scriptedProvider{name: "a", replies: []reply{{text: ""}}}
	g := newTestGateway(t, &recordingSleeper{}, p)

	got, err := g.Chat(context.Background(), Request{})
	if err != nil || got != "" {
		t.Fatalf("Chat = %q, %v", got, err)
	}
}

func TestChatJSON_UsesJSONMode(t *testing.T) {
	p := &scriptedProvider{name: "a", replies: []reply{{text: `{"ok":true}`}}}
	g := newTestGateway(t, &recordingSleeper{}, p)

	raw, err := g.ChatJSON(context.Background(), []Message{User("x")}, 0.3, 0)
	if err != nil {
		t.Fatalf("ChatJSON: %v", err)
	}
	if string(raw) != `{"ok":true}` {
		t.Errorf("raw = %s", raw)
	}
	if p.calls() != 1 || !p.reqs[0].JSONMode || p.reqs[0].MaxTokens != DefaultMaxTokens {
		t.Errorf("unexpected requests %+v", p.reqs)
	}
}

func TestChatJSON_FallsBackToPlainModeAndRepairs(t *testing.T) {
	p := &scriptedProvider{name: "a", replies: []reply{
		{text: "not json at all"},
		{text: "Sure:\n```json\n[{\"index\":1,\"score\":90}]\n```"},
	}}
	g := newTestGateway(t, &recordingSleeper{}, p)

	raw, err := g.ChatJSON(context.Background(), []Message{User("x")}, 0.3, 512)
	if err != nil {
		t.Fatalf("ChatJSON: %v", err)
	}
	var got []map[string]int
	if err := json.Unmarshal(raw, &got); err != nil || len(got) != 1 || got[0]["score"] != 90 {
		t.Fatalf("unexpected result %s (%v)", raw, err)
	}
	if p.calls() != 2 || !p.reqs[0].JSONMode || p.reqs[1].JSONMode {
		t.Errorf("expected JSON mode then plain mode, got %+v", p.reqs)
	}
}

func TestChatJSON_JSONModeErrorFallsBack(t *testing.T) {
	jsonModeUnsupported := &model.HTTPError{StatusCode: 400, Err: errors.New("response_format not supported")}
	p := &scriptedProvider{name: "a", replies: []reply{
		{err: jsonModeUnsupported},
		{err: jsonModeUnsupported},
		{err: jsonModeUnsupported},
		{text: `{"subject":"hi"}`},
	}}
	g := newTestGateway(t, &recordingSleeper{}, p)

	raw, err := g.ChatJSON(context.Background(), nil, 0.3, 0)
	if err != nil {
		t.Fatalf("ChatJSON: %v", err)
	}
	if string(raw) != `{"subject":"hi"}` {
		t.Errorf("raw = %s", raw)
	}
}

func TestChatJSON_Unparsable(t *testing.T) {
	p := &scriptedProvider{name: "a", replies: []reply{{text: "no json here"}}}
	g := newTestGateway(t, &recordingSleeper{}, p)

	_, err := g.ChatJSON(context.Background(), nil, 0.3, 0)
	if !errors.Is(err, repair.ErrUnparsable) {
		t.Fatalf("expected ErrUnparsable, got %v", err)
	}
}

func TestChatJSON_StringAwareExtractor(t *testing.T) {
	text := `Result: {"reason": "fits } well", "score": 80}`
	p := &scriptedProvider{name: "a", replies: []reply{{text: text}}}
	reg, _ := NewRegistry(p)
	g := NewGateway(reg, discardLogger(), WithExtractor(repair.Extractor{StringAware: true}))

	raw, err := g.ChatJSON(context.Background(), nil, 0.3, 0)
	if err != nil {
		t.Fatalf("ChatJSON: %v", err)
	}
	var got struct{ Score int }
	if err := json.Unmarshal(raw, &got); err != nil || got.Score != 80 {
		t.Errorf("got %s (%v)", raw, err)
	}
}

func TestIsRateLimited(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{&model.HTTPError{StatusCode: 429}, true},
		{&model.HTTPError{StatusCode: 500, Err: errors.New("server error")}, false},
		{errors.New("status 429 returned"), true},
		{errors.New("Rate Limit Exceeded"), true},
		{errors.New("connection refused"), false},
	}
	for _, tt := range tests {
		if got := IsRateLimited(tt.err); got != tt.want {
			t.Errorf("IsRateLimited(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

func TestNewRegistry_Empty(t *testing.T) {
	if _, err := NewRegistry(); !errors.Is(err, ErrNoProviders) {
		t.Fatalf("expected ErrNoProviders, got %v", err)
	}
	if _, err := Build(context.Background(), nil, nil); !errors.Is(err, ErrNoProviders) {
		t.Fatalf("Build: expected ErrNoProviders, got %v", err)
	}
}

func TestBuild_RejectsUnknownKind(t *testing.T) {
	_, err := Build(context.Background(), []ProviderConfig{{Name: "x", Kind: "carrier-pigeon"}}, nil)
	if err == nil {
		t.Fatal("expected error for unknown kind")
	}
}

func TestBuild_KeepsOrder(t *testing.T) {
	reg, err := Build(context.Background(), []ProviderConfig{
		{Name: "groq", Kind: KindOpenAI, BaseURL: "https://api.groq.com/openai/v1", APIKey: "k", Model: "m"},
		{Name: "claude", Kind: KindAnthropic, APIKey: "k", Model: "m", RequestsPerSecond: 1},
	}, nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if got := reg.Names(); !reflect.DeepEqual(got, []string{"groq", "claude"}) {
		t.Errorf("Names = %v", got)
	}
	if _, ok := reg.At(1).(*ThrottledProvider); !ok {
		t.Errorf("expected throttled provider, got %T", reg.At(1))
	}
}
