package elevenlabs

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/eugeneleychenko/vyb-marine-demo/internal/domain"
)

// Client exchanges an agent id for a short-lived signed connection URL.
// A missing API key or a non-200 exchange fails the session start with an
// auth error so the caller can surface it as a configuration problem
// rather than a transient one.
type Client struct {
	httpClient *http.Client
	apiKey     string
	baseURL    string
}

// NewClient creates a new signing client
func NewClient(apiKey, baseURL string) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

type signedURLResponse struct {
	SignedURL string `json:"signed_url"`
}

// SignedURL performs the signing exchange for the given agent
func (c *Client) SignedURL(ctx context.Context, agentID string) (string, error) {
	if c.apiKey == "" {
		return "", fmt.Errorf("%w: API key is not configured", domain.ErrAuth)
	}

	reqURL := fmt.Sprintf("%s/v1/convai/conversation/get_signed_url?agent_id=%s",
		c.baseURL, url.QueryEscape(agentID))

	req, err := http.NewRequestWithContext(ctx, "GET", reqURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("xi-api-key", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrAuth, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("%w: status %d: %s", domain.ErrAuth, resp.StatusCode, string(body))
	}

	var parsed signedURLResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("failed to decode signed URL response: %w", err)
	}

	if parsed.SignedURL == "" {
		return "", fmt.Errorf("%w: empty signed URL in response", domain.ErrAuth)
	}

	return parsed.SignedURL, nil
}
