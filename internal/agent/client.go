package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"voicecampaign/internal/config"
)

const defaultBaseURL = "https://api.elevenlabs.io"

var ErrCredentialsMissing = errors.New("agent: api key not configured")

// Client negotiates sessions with the speech-agent provider. Opening a session
// is one HTTP round trip for a short-lived signed URL, then a websocket dial;
// everything after that is message-driven on the Session.
type Client struct {
	apiKey  string
	baseURL string

	httpClient *http.Client
	dialer     *websocket.Dialer
}

func NewClient(cfg config.AgentConfig) *Client {
	base := cfg.APIBaseURL
	if base == "" {
		base = defaultBaseURL
	}
	return &Client{
		apiKey:     cfg.APIKey,
		baseURL:    strings.TrimRight(base, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
		dialer:     websocket.DefaultDialer,
	}
}

type signedURLResponse struct {
	SignedURL string `json:"signed_url"`
}

// GetSignedURL requests a single-use connection URL scoped to the given agent.
func (c *Client) GetSignedURL(ctx context.Context, agentID string) (string, error) {
	if c.apiKey == "" {
		return "", ErrCredentialsMissing
	}
	if agentID == "" {
		return "", fmt.Errorf("agent: agent id required")
	}

	endpoint := fmt.Sprintf("%s/v1/convai/conversation/get-signed-url?agent_id=%s",
		c.baseURL, url.QueryEscape(agentID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("xi-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("agent: signed url request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return "", err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("agent: signed url negotiation failed: status %d", resp.StatusCode)
	}

	var out signedURLResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("agent: decoding signed url response: %w", err)
	}
	if out.SignedURL == "" {
		return "", fmt.Errorf("agent: signed url response empty")
	}
	return out.SignedURL, nil
}

// DialSession opens the websocket leg using a previously negotiated signed URL.
func (c *Client) DialSession(ctx context.Context, signedURL string) (*Session, error) {
	conn, resp, err := c.dialer.DialContext(ctx, signedURL, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("agent: websocket dial failed: %w", err)
	}
	return NewSession(conn), nil
}
