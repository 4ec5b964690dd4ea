package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/amishk599/jobreach/internal/model"
	"github.com/amishk599/jobreach/internal/pipeline"
)

// Ensure SlackNotifier implements Notifier.
var _ Notifier = (*SlackNotifier)(nil)

// SlackNotifier posts the run summary to a Slack channel via Incoming Webhooks.
type SlackNotifier struct {
	webhookURL string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewSlackNotifier returns a notifier that posts each summary to Slack via webhook.
func NewSlackNotifier(webhookURL string, httpClient *http.Client, logger *slog.Logger) *SlackNotifier {
	return &SlackNotifier{
		webhookURL: webhookURL,
		httpClient: httpClient,
		logger:     logger,
	}
}

// Notify sends the summary as one Block Kit message. A 429 is retried once
// after the Retry-After delay.
func (s *SlackNotifier) Notify(ctx context.Context, sum pipeline.Summary) error {
	body, err := json.Marshal(buildPayload(sum))
	if err != nil {
		return fmt.Errorf("marshal slack payload: %w", err)
	}

	status, retryAfter, err := s.post(ctx, body)
	if err != nil {
		return err
	}
	if status == http.StatusTooManyRequests {
		if retryAfter <= 0 {
			retryAfter = time.Second
		}
		s.logger.Warn("slack rate limited, retrying", "retry_after", retryAfter)
		if err := pipeline.Sleep(ctx, retryAfter); err != nil {
			return err
		}
		status, _, err = s.post(ctx, body)
		if err != nil {
			return fmt.Errorf("post to slack (retry): %w", err)
		}
		if status != http.StatusOK {
			return fmt.Errorf("slack returned %d on retry", status)
		}
		s.logger.Info("slack summary sent", "run_id", sum.RunID, "retried", true)
		return nil
	}

	if status != http.StatusOK {
		return fmt.Errorf("slack returned %d", status)
	}
	s.logger.Info("slack summary sent", "run_id", sum.RunID)
	return nil
}

func (s *SlackNotifier) post(ctx context.Context, body []byte) (int, time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewReader(body))
	if err != nil {
		return 0, 0, fmt.Errorf("build slack request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return 0, 0, fmt.Errorf("post to slack: %w", err)
	}
	defer resp.Body.Close()
	return resp.StatusCode, model.ParseRetryAfter(resp.Header.Get("Retry-After")), nil
}

// SendTestMessage posts an empty dry-run summary to verify the webhook works.
func (s *SlackNotifier) SendTestMessage(ctx context.Context) error {
	now := time.Now()
	return s.Notify(ctx, pipeline.Summary{
		RunID:      "test",
		Mode:       "test",
		DryRun:     true,
		StartedAt:  now,
		FinishedAt: now,
	})
}

// Block Kit payload types.

type slackPayload struct {
	Text   string       `json:"text"`
	Blocks []slackBlock `json:"blocks"`
}

type slackBlock struct {
	Type   string      `json:"type"`
	Text   *slackText  `json:"text,omitempty"`
	Fields []slackText `json:"fields,omitempty"`
}

type slackText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

var categoryTitles = map[model.Category]string{
	model.CategoryApply:    "Applications",
	model.CategoryEmail:    "Job emails",
	model.CategoryProspect: "Prospecting",
}

func buildPayload(sum pipeline.Summary) slackPayload {
	title := "jobreach run: " + sum.Mode
	if sum.DryRun {
		title += " (dry-run)"
	}
	t := sum.Totals()

	blocks := []slackBlock{
		{
			Type: "header",
			Text: &slackText{Type: "plain_text", Text: "📬 " + title},
		},
		{
			Type: "section",
			Fields: []slackText{
				{Type: "mrkdwn", Text: fmt.Sprintf("*Processed:*\n%d", t.Processed)},
				{Type: "mrkdwn", Text: fmt.Sprintf("*Duration:*\n%s", sum.Duration().Round(time.Second))},
			},
		},
	}

	for _, c := range sum.Categories {
		name := categoryTitles[c.Category]
		if name == "" {
			name = string(c.Category)
		}
		lines := []string{
			fmt.Sprintf("*%s*  %d/%d processed", name, c.Processed, c.Max),
			fmt.Sprintf("fetched %d • relevant %d • duplicates %d", c.Fetched, c.Relevant, c.Duplicates),
			fmt.Sprintf("ok %d • failed %d • dry-run %d • skipped %d", c.Succeeded, c.Failed, c.DryRun, c.Skipped),
		}
		if c.Err != nil {
			lines = append(lines, "⚠️ "+c.Err.Error())
		}
		blocks = append(blocks, slackBlock{
			Type: "section",
			Text: &slackText{Type: "mrkdwn", Text: strings.Join(lines, "\n")},
		})
	}

	blocks = append(blocks, slackBlock{Type: "divider"})
	return slackPayload{Text: title, Blocks: blocks}
}
