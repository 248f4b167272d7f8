package telephony

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"voicecampaign/internal/config"
)

const twilioDefaultBaseURL = "https://api.twilio.com"

// TwilioDialer places calls through the Twilio REST API.
type TwilioDialer struct {
	accountSID string
	authToken  string
	fromNumber string
	baseURL    string

	httpClient *http.Client
}

func NewTwilioDialer(cfg config.TelephonyConfig) *TwilioDialer {
	base := cfg.APIBaseURL
	if base == "" {
		base = twilioDefaultBaseURL
	}
	return &TwilioDialer{
		accountSID: cfg.AccountSID,
		authToken:  cfg.AuthToken,
		fromNumber: cfg.FromNumber,
		baseURL:    strings.TrimRight(base, "/"),
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

var _ Dialer = (*TwilioDialer)(nil)

type twilioCallResponse struct {
	SID    string `json:"sid"`
	Status string `json:"status"`
}

func (d *TwilioDialer) Dial(ctx context.Context, req DialRequest) (DialResult, error) {
	if d.accountSID == "" || d.authToken == "" || d.fromNumber == "" {
		return DialResult{}, fmt.Errorf("telephony: twilio credentials not configured")
	}
	if req.To == "" {
		return DialResult{}, fmt.Errorf("telephony: destination number required")
	}

	twiml, err := RenderStreamTwiML(req.StreamURL)
	if err != nil {
		return DialResult{}, err
	}

	form := url.Values{}
	form.Set("To", req.To)
	form.Set("From", d.fromNumber)
	form.Set("Twiml", twiml)
	if req.StatusCallbackURL != "" {
		form.Set("StatusCallback", req.StatusCallbackURL)
		for _, ev := range []string{"initiated", "ringing", "answered", "completed"} {
			form.Add("StatusCallbackEvent", ev)
		}
		form.Set("StatusCallbackMethod", "POST")
	}

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Calls.json", d.baseURL, d.accountSID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return DialResult{}, err
	}
	httpReq.SetBasicAuth(d.accountSID, d.authToken)
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := d.httpClient.Do(httpReq)
	if err != nil {
		return DialResult{}, fmt.Errorf("telephony: dial request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return DialResult{}, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return DialResult{}, fmt.Errorf("%w: status %d", ErrDialRejected, resp.StatusCode)
	}

	var out twilioCallResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return DialResult{}, fmt.Errorf("telephony: decoding dial response: %w", err)
	}
	if out.SID == "" {
		return DialResult{}, fmt.Errorf("telephony: dial response missing call sid")
	}
	return DialResult{ProviderCallID: out.SID}, nil
}
