// Package pending stashes call-setup parameters between the dial step and the
// media-stream connect step. Entries are claim-once: the bridge consumes them
// exactly when the stream connects, and a second claim for the same key finds
// nothing. Entries expire so calls that dial but never connect a stream do not
// leak memory.
package pending

import "context"

// Params is what the dial step knows and the stream-connect step needs.
type Params struct {
	IsTestCall bool   `json:"is_test_call"`
	FirstName  string `json:"first_name"`
	// LeadID is empty for test calls.
	LeadID string `json:"lead_id,omitempty"`
}

type Store interface {
	// Put records parameters under key; must happen before the provider is
	// asked to dial.
	Put(ctx context.Context, key string, p Params) error

	// Claim returns and deletes the entry. ok is false when the key is
	// absent, already claimed, or expired.
	Claim(ctx context.Context, key string) (p Params, ok bool, err error)
}
