package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// ErrNoProviders is returned when the failover list is empty.
var ErrNoProviders = errors.New("no LLM providers configured")

// Registry is the ordered, immutable failover list.
type Registry struct {
	providers []Provider
}

// NewRegistry returns ErrNoProviders when called without providers.
func NewRegistry(providers ...Provider) (*Registry, error) {
	if len(providers) == 0 {
		return nil, ErrNoProviders
	}
	return &Registry{providers: append([]Provider(nil), providers...)}, nil
}

// Build constructs a client for every config entry, in priority order.
func Build(ctx context.Context, cfgs []ProviderConfig, httpClient *http.Client) (*Registry, error) {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	providers := make([]Provider, 0, len(cfgs))
	for _, c := range cfgs {
		p, err := newProvider(ctx, c, httpClient)
		if err != nil {
			return nil, fmt.Errorf("provider %q: %w", c.Name, err)
		}
		providers = append(providers, Throttle(p, c.RequestsPerSecond))
	}
	return NewRegistry(providers...)
}

func newProvider(ctx context.Context, c ProviderConfig, httpClient *http.Client) (Provider, error) {
	switch c.Kind {
	case KindOpenAI, "":
		if c.BaseURL == "" {
			return nil, errors.New("base_url is required for openai providers")
		}
		return NewOpenAIProvider(c.Name, c.BaseURL, c.APIKey, c.Model, httpClient), nil
	case KindGemini:
		return NewGeminiProvider(ctx, c.Name, c.APIKey, c.Model, c.BaseURL)
	case KindAnthropic:
		return NewAnthropicProvider(c.Name, c.APIKey, c.Model, c.BaseURL, httpClient), nil
	default:
		return nil, fmt.Errorf("unknown provider kind %q", c.Kind)
	}
}

// Len returns the number of providers.
func (r *Registry) Len() int { return len(r.providers) }

// At returns the provider at index i.
func (r *Registry) At(i int) Provider { return r.providers[i] }

// Names lists provider names in priority order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.providers))
	for i, p := range r.providers {
		names[i] = p.Name()
	}
	return names
}
