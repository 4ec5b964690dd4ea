// Package llm talks to chat-completion providers and fails over between them
// when one is rate limited or unavailable.
package llm

import "context"

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Defaults used when a caller passes zero values.
const (
	DefaultMaxTokens       = 4096
	DefaultTemperature     = 0.7
	DefaultJSONTemperature = 0.3
)

// Message is one role-tagged chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// System returns a system message.
func System(content string) Message { return Message{Role: RoleSystem, Content: content} }

// User returns a user message.
func User(content string) Message { return Message{Role: RoleUser, Content: content} }

// Request is a single chat call. It is built fresh for every call.
type Request struct {
	Messages    []Message
	Temperature float64
	MaxTokens   int
	JSONMode    bool
}

// Provider sends one chat request to a single backend and returns the raw
// text of the first choice. Errors carrying an HTTP status should be
// *model.HTTPError so the gateway can recognise rate limits.
type Provider interface {
	Name() string
	Complete(ctx context.Context, req Request) (string, error)
}

// Kind selects the client implementation for a provider.
type Kind string

const (
	KindOpenAI    Kind = "openai"
	KindGemini    Kind = "gemini"
	KindAnthropic Kind = "anthropic"
)

// ProviderConfig describes one entry of the failover list.
type ProviderConfig struct {
	Name              string
	Kind              Kind
	BaseURL           string
	Model             string
	APIKey            string
	RequestsPerSecond float64
}
