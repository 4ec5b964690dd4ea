package prospect

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/amishk599/jobreach/internal/model"
	"github.com/amishk599/jobreach/internal/retry"
)

const hunterBaseURL = "https://api.hunter.io"

// HunterClient queries the Hunter.io domain-search API.
type HunterClient struct {
	apiKey  string
	baseURL string
	client  *http.Client
	policy  retry.Policy
	logger  *slog.Logger
}

// NewHunterClient returns nil when apiKey is empty so callers can skip enrichment.
func NewHunterClient(apiKey, baseURL string, client *http.Client, policy retry.Policy, logger *slog.Logger) *HunterClient {
	if strings.TrimSpace(apiKey) == "" {
		return nil
	}
	if baseURL == "" {
		baseURL = hunterBaseURL
	}
	return &HunterClient{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
		policy:  policy,
		logger:  logger,
	}
}

type hunterEmail struct {
	Value        string `json:"value"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	Position     string `json:"position"`
	Verification struct {
		Status string `json:"status"`
	} `json:"verification"`
}

type hunterResponse struct {
	Data struct {
		Emails []hunterEmail `json:"emails"`
	} `json:"data"`
}

// DomainSearch returns the contacts Hunter knows for domain.
func (h *HunterClient) DomainSearch(ctx context.Context, domain string) ([]model.Contact, error) {
	return retry.Do(ctx, h.policy, h.logger, "hunter "+domain, func(ctx context.Context) ([]model.Contact, error) {
		return h.domainSearch(ctx, domain)
	})
}

func (h *HunterClient) domainSearch(ctx context.Context, domain string) ([]model.Contact, error) {
	q := url.Values{"domain": {domain}, "api_key": {h.apiKey}}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.baseURL+"/v2/domain-search?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("hunter domain search for %s: %w", domain, err)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("hunter domain search for %s: %w", domain, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 300))
		return nil, &model.HTTPError{
			StatusCode: resp.StatusCode,
			RetryAfter: model.ParseRetryAfter(resp.Header.Get("Retry-After")),
			Err:        fmt.Errorf("hunter domain search for %s: %s", domain, strings.TrimSpace(string(body))),
		}
	}

	var hr hunterResponse
	if err := json.NewDecoder(resp.Body).Decode(&hr); err != nil {
		return nil, fmt.Errorf("hunter domain search for %s: decode: %w", domain, err)
	}

	var out []model.Contact
	for _, e := range hr.Data.Emails {
		addr := strings.ToLower(strings.TrimSpace(e.Value))
		if !ValidEmail(addr) {
			continue
		}
		out = Merge(out, model.Contact{
			Email:    addr,
			Kind:     Classify(addr, e.Position),
			Source:   SourceHunter,
			Name:     strings.TrimSpace(e.FirstName + " " + e.LastName),
			Position: e.Position,
			Verified: e.Verification.Status == "valid",
		})
	}
	return out, nil
}
