package telephony

import (
	"context"
	"errors"
)

var ErrDialRejected = errors.New("telephony: dial rejected by provider")

// Dialer places outbound calls at the telephony provider.
//
// Rules:
// - No provider SDK calls outside telephony adapters.
// - Keep request/response types provider-agnostic; provider-specific payloads
//   stay inside the adapter.
type Dialer interface {
	// Dial asks the provider to place a call. The provider later connects a
	// media stream to StreamURL and posts status transitions to
	// StatusCallbackURL.
	Dial(ctx context.Context, req DialRequest) (DialResult, error)
}

type DialRequest struct {
	// To is the callee in E.164 where possible.
	To string

	// StreamURL is the websocket endpoint the provider connects the call's
	// media stream to (carries the campaign id in its path).
	StreamURL string

	// StatusCallbackURL receives call-status webhooks.
	StatusCallbackURL string
}

type DialResult struct {
	// ProviderCallID is the provider's identifier for the call leg.
	ProviderCallID string
}
