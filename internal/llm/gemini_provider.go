package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/amishk599/jobreach/internal/model"
)

// GeminiProvider calls Google Gemini through the genai SDK.
type GeminiProvider struct {
	name   string
	model  string
	client *genai.Client
}

// NewGeminiProvider creates a Gemini client. baseURL is optional and mainly
// useful for proxies and tests.
func NewGeminiProvider(ctx context.Context, name, apiKey, model, baseURL string) (*GeminiProvider, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("%s: api key is required", name)
	}
	cc := &genai.ClientConfig{
		APIKey:  strings.TrimSpace(apiKey),
		Backend: genai.BackendGeminiAPI,
	}
	if strings.TrimSpace(baseURL) != "" {
		cc.HTTPOptions.BaseURL = strings.TrimSpace(baseURL)
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("create %s client: %w", name, err)
	}
	return &GeminiProvider{name: name, model: model, client: client}, nil
}

func (p *GeminiProvider) Name() string { return p.name }

// Complete maps system messages to the system instruction and assistant
// messages to the model role.
func (p *GeminiProvider) Complete(ctx context.Context, req Request) (string, error) {
	var system []string
	contents := make([]*genai.Content, 0, len(req.Messages))
	for _, m := range req.Messages {
		switch m.Role {
		case RoleSystem:
			system = append(system, m.Content)
		case RoleAssistant:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleUser))
		}
	}

	cfg := &genai.GenerateContentConfig{
		Temperature:    genai.Ptr(float32(req.Temperature)),
		CandidateCount: 1,
	}
	if req.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(req.MaxTokens)
	}
	if len(system) > 0 {
		cfg.SystemInstruction = genai.NewContentFromText(strings.Join(system, "\n\n"), genai.RoleUser)
	}
	if req.JSONMode {
		cfg.ResponseMIMEType = "application/json"
	}

	resp, err := p.client.Models.GenerateContent(ctx, p.model, contents, cfg)
	if err != nil {
		return "", p.classifyErr(err)
	}
	return resp.Text(), nil
}

func (p *GeminiProvider) classifyErr(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return &model.HTTPError{StatusCode: apiErr.Code, Err: fmt.Errorf("%s: %w", p.name, err)}
	}
	return fmt.Errorf("%s: %w", p.name, err)
}
