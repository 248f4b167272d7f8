package store

import "time"

// Campaign is the durable campaign record. CRUD for campaigns lives outside
// this core; the dialer and reconciler only read configuration and mutate
// status plus the aggregate counters.
//
// Counter invariants:
// - CompletedCalls counts calls that connected, regardless of talk duration.
// - SuccessfulCalls is a subset of CompletedCalls, gated by the configured
//   minimum-duration threshold.
// - FailedCalls counts only calls that never connected (failed/busy/no-answer
//   at the provider level). A connected-but-short call is completed, not failed.
type Campaign struct {
	ID   string `json:"id" db:"id"`
	Name string `json:"name" db:"name"`

	// AgentID identifies the speech-agent persona at the agent provider.
	AgentID string `json:"agent_id" db:"agent_id"`
	// VoiceID selects the synthesis voice at the agent provider.
	VoiceID string `json:"voice_id,omitempty" db:"voice_id"`

	// SystemPrompt and FirstMessage are templates; {{placeholders}} are
	// substituted by the agent provider, never server-side.
	SystemPrompt string `json:"system_prompt" db:"system_prompt"`
	FirstMessage string `json:"first_message" db:"first_message"`

	Status CampaignStatus `json:"status" db:"status"`

	TotalLeads      int `json:"total_leads" db:"total_leads"`
	CompletedCalls  int `json:"completed_calls" db:"completed_calls"`
	SuccessfulCalls int `json:"successful_calls" db:"successful_calls"`
	FailedCalls     int `json:"failed_calls" db:"failed_calls"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

type CampaignStatus string

const (
	CampaignStatusDraft     CampaignStatus = "draft"
	CampaignStatusActive    CampaignStatus = "active"
	CampaignStatusRunning   CampaignStatus = "running"
	CampaignStatusPaused    CampaignStatus = "paused"
	CampaignStatusCompleted CampaignStatus = "completed"
	CampaignStatusFailed    CampaignStatus = "failed"
)

// Lead is a contact targeted for one outbound call within a campaign.
type Lead struct {
	ID         string     `json:"id" db:"id"`
	CampaignID string     `json:"campaign_id" db:"campaign_id"`
	FirstName  string     `json:"first_name" db:"first_name"`
	LastName   string     `json:"last_name,omitempty" db:"last_name"`
	ContactNo  string     `json:"contact_no" db:"contact_no"`
	Status     LeadStatus `json:"status" db:"status"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

type LeadStatus string

const (
	LeadStatusPending   LeadStatus = "pending"
	LeadStatusCalling   LeadStatus = "calling"
	LeadStatusCompleted LeadStatus = "completed"
	LeadStatusFailed    LeadStatus = "failed"
)

// CallLog records one outbound call attempt. Created when a call is dialed,
// mutated as provider/agent events arrive, never deleted by this core.
type CallLog struct {
	ID         string `json:"id" db:"id"`
	CampaignID string `json:"campaign_id" db:"campaign_id"`

	// LeadID is nil for test calls.
	LeadID *string `json:"lead_id,omitempty" db:"lead_id"`

	PhoneNumber string     `json:"phone_number" db:"phone_number"`
	Status      CallStatus `json:"status" db:"status"`

	// DurationSeconds is nil until the call ends.
	DurationSeconds *int `json:"duration,omitempty" db:"duration_seconds"`

	ProviderCallID string `json:"provider_call_id,omitempty" db:"provider_call_id"`

	// AgentConversationID is filled asynchronously once discovered on the
	// agent leg; write-once.
	AgentConversationID string `json:"agent_conversation_id,omitempty" db:"agent_conversation_id"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

type CallStatus string

const (
	CallStatusInitiated CallStatus = "initiated"
	CallStatusRinging   CallStatus = "ringing"
	CallStatusAnswered  CallStatus = "answered"
	CallStatusCompleted CallStatus = "completed"
	CallStatusFailed    CallStatus = "failed"
	CallStatusBusy      CallStatus = "busy"
	CallStatusNoAnswer  CallStatus = "no-answer"
)

// Connected reports whether the status means the call was answered and talked.
func (s CallStatus) Connected() bool {
	return s == CallStatusCompleted
}

// NeverConnected reports whether the status means the call concluded without
// ever connecting.
func (s CallStatus) NeverConnected() bool {
	switch s {
	case CallStatusFailed, CallStatusBusy, CallStatusNoAnswer:
		return true
	default:
		return false
	}
}

// Terminal reports whether no further provider status is expected.
func (s CallStatus) Terminal() bool {
	return s.Connected() || s.NeverConnected()
}

// KnowledgeBaseDoc references a document already ingested at the agent
// provider; DocumentID is the provider-side identifier sent in the session
// configuration override.
type KnowledgeBaseDoc struct {
	ID         string    `json:"id" db:"id"`
	CampaignID string    `json:"campaign_id" db:"campaign_id"`
	Name       string    `json:"name" db:"name"`
	DocumentID string    `json:"document_id" db:"document_id"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}
