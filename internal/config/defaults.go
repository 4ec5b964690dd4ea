package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/amishk599/jobreach/internal/llm"
	"github.com/amishk599/jobreach/internal/secrets"
)

const defaultMinScore = 40

var (
	defaultSearchTerms = []string{
		"product engineer",
		"fullstack developer",
		"python developer",
		"AI engineer",
	}
	defaultLocations = []string{"Remote", "Argentina", "Latin America"}
)

// envProvider is a provider registered from an API key in the environment.
type envProvider struct {
	env string
	cfg llm.ProviderConfig
}

// envProviders are tried in this order when llm.providers is empty.
var envProviders = []envProvider{
	{"GROQ_API_KEY", llm.ProviderConfig{Name: "groq", Kind: llm.KindOpenAI, BaseURL: "https://api.groq.com/openai/v1", Model: "llama-3.3-70b-versatile"}},
	{"OPENROUTER_API_KEY", llm.ProviderConfig{Name: "openrouter", Kind: llm.KindOpenAI, BaseURL: "https://openrouter.ai/api/v1", Model: "meta-llama/llama-3.2-3b-instruct:free"}},
	{"GEMINI_API_KEY", llm.ProviderConfig{Name: "gemini", Kind: llm.KindGemini, Model: "gemini-2.0-flash"}},
	{"ANTHROPIC_API_KEY", llm.ProviderConfig{Name: "anthropic", Kind: llm.KindAnthropic, Model: "claude-3-5-haiku-latest"}},
}

// parser accumulates conversion errors so Parse can report all of them.
type parser struct {
	errs []error
}

func (p *parser) err() error { return errors.Join(p.errs...) }

func (p *parser) duration(field, raw string, def time.Duration) time.Duration {
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("parse %s %q: %w", field, raw, err))
		return def
	}
	return d
}

func (p *parser) rng(field string, raw rawRange, def Range) Range {
	return Range{
		Min: p.duration(field+".min", raw.Min, def.Min),
		Max: p.duration(field+".max", raw.Max, def.Max),
	}
}

func (p *parser) secret(field, raw string) string {
	v, err := secrets.Resolve(strings.TrimSpace(raw))
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %w", field, err))
		return ""
	}
	return v
}

// providers resolves credentials and drops providers without one. With no
// configured providers the environment defaults are used.
func (p *parser) providers(raw []rawProvider) []llm.ProviderConfig {
	var out []llm.ProviderConfig
	if len(raw) == 0 {
		for _, ep := range envProviders {
			key := strings.TrimSpace(os.Getenv(ep.env))
			if key == "" {
				continue
			}
			c := ep.cfg
			c.APIKey = key
			out = append(out, c)
		}
		return out
	}

	for i, r := range raw {
		name := orDefault(r.Name, fmt.Sprintf("provider-%d", i+1))
		c := llm.ProviderConfig{
			Name:              name,
			Kind:              llm.Kind(orDefault(r.Kind, string(llm.KindOpenAI))),
			BaseURL:           r.BaseURL,
			Model:             r.Model,
			APIKey:            p.secret(fmt.Sprintf("llm.providers[%s].api_key", name), r.APIKey),
			RequestsPerSecond: r.RequestsPerSecond,
		}
		switch c.Kind {
		case llm.KindOpenAI, llm.KindGemini, llm.KindAnthropic:
		default:
			p.errs = append(p.errs, fmt.Errorf("llm.providers[%s]: unknown kind %q", name, c.Kind))
			continue
		}
		if c.Kind == llm.KindOpenAI && c.BaseURL == "" {
			p.errs = append(p.errs, fmt.Errorf("llm.providers[%s]: base_url is required for openai providers", name))
			continue
		}
		if c.Model == "" {
			p.errs = append(p.errs, fmt.Errorf("llm.providers[%s]: model is required", name))
			continue
		}
		if c.APIKey == "" {
			continue
		}
		out = append(out, c)
	}
	return out
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

func orDefaultInt(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

func orDefaultList(v, def []string) []string {
	if len(v) == 0 {
		return append([]string(nil), def...)
	}
	return v
}
