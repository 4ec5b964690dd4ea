package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/amishk599/jobreach/internal/model"
)

const jsonInstruction = "Respond with a single valid JSON value and nothing else."

// AnthropicProvider calls the Anthropic Messages API.
type AnthropicProvider struct {
	name   string
	model  string
	client anthropic.Client
}

// NewAnthropicProvider creates a client with SDK retries disabled; the
// gateway owns retry and failover.
func NewAnthropicProvider(name, apiKey, model, baseURL string, httpClient *http.Client) *AnthropicProvider {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	if httpClient != nil {
		opts = append(opts, option.WithHTTPClient(httpClient))
	}
	return &AnthropicProvider{
		name:   name,
		model:  model,
		client: anthropic.NewClient(opts...),
	}
}

func (p *AnthropicProvider) Name() string { return p.name }

// Complete sends system messages as the system prompt. The Messages API has no
// JSON mode, so JSON requests get an extra system instruction.
func (p *AnthropicProvider) Complete(ctx context.Context, req Request) (string, error) {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(p.model),
		MaxTokens:   int64(maxTokens),
		Temperature: anthropic.Float(req.Temperature),
	}
	for _, m := range req.Messages {
		switch m.Role {
		case RoleSystem:
			params.System = append(params.System, anthropic.TextBlockParam{Text: m.Content})
		case RoleAssistant:
			params.Messages = append(params.Messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		default:
			params.Messages = append(params.Messages, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		}
	}
	if req.JSONMode {
		params.System = append(params.System, anthropic.TextBlockParam{Text: jsonInstruction})
	}

	msg, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return "", p.classifyErr(err)
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	return sb.String(), nil
}

func (p *AnthropicProvider) classifyErr(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		httpErr := &model.HTTPError{StatusCode: apiErr.StatusCode, Err: fmt.Errorf("%s: %w", p.name, err)}
		if apiErr.Response != nil {
			httpErr.RetryAfter = model.ParseRetryAfter(apiErr.Response.Header.Get("Retry-After"))
		}
		return httpErr
	}
	return fmt.Errorf("%s: %w", p.name, err)
}
