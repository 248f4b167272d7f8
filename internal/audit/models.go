package audit

import "time"

// Event is an immutable, append-only audit log record of operator actions.
//
// Invariants:
// - Events are never updated or deleted.
// - Actor and ip capture are best-effort; never block a call flow on audit
//   failures.
//
// Storage (Postgres): table audit_events, INSERT-only.

type Event struct {
	ID string `json:"id" db:"id"`

	// Type indicates the business category of the audit record.
	Type EventType `json:"type" db:"type"`

	// ActorUserID is the authenticated user causing the event (if applicable).
	ActorUserID string `json:"actor_user_id,omitempty" db:"actor_user_id"`
	ActorRole   string `json:"actor_role,omitempty" db:"actor_role"`

	// IPAddress should capture the original client IP when available.
	IPAddress string `json:"ip_address,omitempty" db:"ip_address"`

	// Target identifiers (optional, depending on the event type).
	CampaignID  string `json:"campaign_id,omitempty" db:"campaign_id"`
	PhoneNumber string `json:"phone_number,omitempty" db:"phone_number"`

	// Message is a short human-readable description for internal ops.
	Message string `json:"message,omitempty" db:"message"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type EventType string

const (
	EventTypeCampaignRun EventType = "campaign_run"
	EventTypeTestCall    EventType = "test_call"
)
