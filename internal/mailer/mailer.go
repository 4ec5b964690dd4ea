// Package mailer delivers composed emails.
package mailer

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/amishk599/jobreach/internal/model"
	"github.com/amishk599/jobreach/internal/retry"
)

const resendBaseURL = "https://api.resend.com"

// Message is one outgoing email with an optional PDF attachment.
type Message struct {
	To             string
	Subject        string
	HTML           string
	Text           string
	AttachmentPath string
	AttachmentName string
}

// Sender delivers a message and returns the provider's message id.
type Sender interface {
	Send(ctx context.Context, msg Message) (string, error)
}

var (
	_ Sender = (*ResendMailer)(nil)
	_ Sender = (*LogMailer)(nil)
)

// ResendMailer sends through the Resend HTTP API.
type ResendMailer struct {
	apiKey  string
	baseURL string
	from    string
	replyTo string
	client  *http.Client
	policy  retry.Policy
	logger  *slog.Logger
}

func NewResendMailer(apiKey, baseURL, fromEmail, fromName string, client *http.Client, policy retry.Policy, logger *slog.Logger) *ResendMailer {
	if baseURL == "" {
		baseURL = resendBaseURL
	}
	from := fromEmail
	if fromName != "" {
		from = fmt.Sprintf("%s <%s>", fromName, fromEmail)
	}
	return &ResendMailer{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		from:    from,
		replyTo: fromEmail,
		client:  client,
		policy:  policy,
		logger:  logger,
	}
}

type resendAttachment struct {
	Filename    string `json:"filename"`
	Content     string `json:"content"`
	ContentType string `json:"content_type"`
}

type resendRequest struct {
	From        string             `json:"from"`
	To          []string           `json:"to"`
	Subject     string             `json:"subject"`
	HTML        string             `json:"html"`
	Text        string             `json:"text,omitempty"`
	ReplyTo     string             `json:"reply_to,omitempty"`
	Attachments []resendAttachment `json:"attachments,omitempty"`
}

type resendResponse struct {
	ID string `json:"id"`
}

// Send posts msg to Resend. Transient failures are retried under the policy.
func (m *ResendMailer) Send(ctx context.Context, msg Message) (string, error) {
	payload, err := m.payload(msg)
	if err != nil {
		return "", err
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal resend payload: %w", err)
	}

	id, err := retry.Do(ctx, m.policy, m.logger, "resend "+msg.To, func(ctx context.Context) (string, error) {
		return m.post(ctx, body)
	})
	if err != nil {
		return "", fmt.Errorf("send to %s: %w", msg.To, err)
	}
	m.logger.Info("email sent", "to", msg.To, "subject", msg.Subject, "id", id)
	return id, nil
}

func (m *ResendMailer) payload(msg Message) (resendRequest, error) {
	req := resendRequest{
		From:    m.from,
		To:      []string{msg.To},
		Subject: msg.Subject,
		HTML:    msg.HTML,
		Text:    msg.Text,
		ReplyTo: m.replyTo,
	}
	if msg.AttachmentPath == "" {
		return req, nil
	}

	data, err := os.ReadFile(msg.AttachmentPath)
	if err != nil {
		return req, fmt.Errorf("read attachment: %w", err)
	}
	name := msg.AttachmentName
	if name == "" {
		name = filepath.Base(msg.AttachmentPath)
	}
	req.Attachments = []resendAttachment{{
		Filename:    name,
		Content:     base64.StdEncoding.EncodeToString(data),
		ContentType: "application/pdf",
	}}
	return req, nil
}

func (m *ResendMailer) post(ctx context.Context, body []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL+"/emails", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+m.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", &model.HTTPError{
			StatusCode: resp.StatusCode,
			RetryAfter: model.ParseRetryAfter(resp.Header.Get("Retry-After")),
			Err:        fmt.Errorf("resend: %s", strings.TrimSpace(string(snippet))),
		}
	}

	var out resendResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode resend response: %w", err)
	}
	if out.ID == "" {
		return "", fmt.Errorf("resend response has no id")
	}
	return out.ID, nil
}

// LogMailer records messages in the log instead of sending them.
type LogMailer struct {
	logger *slog.Logger
}

func NewLogMailer(logger *slog.Logger) *LogMailer {
	return &LogMailer{logger: logger}
}

func (m *LogMailer) Send(_ context.Context, msg Message) (string, error) {
	id := "log-" + uuid.NewString()
	m.logger.Info("email logged",
		"to", msg.To,
		"subject", msg.Subject,
		"attachment", msg.AttachmentName,
		"id", id,
	)
	return id, nil
}
