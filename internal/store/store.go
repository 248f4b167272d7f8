package store

import (
	"context"
	"errors"
)

var (
	ErrNotFound        = errors.New("store: not found")
	ErrInvalidArgument = errors.New("store: invalid argument")
)

// Store is the durable-state boundary used by the dialer, bridge and
// reconciler. Campaign/lead/knowledge-base CRUD behind the operator UI is an
// external collaborator; this interface covers only what the call core needs.
//
// Reads are expected to observe this process's own prior writes.
type Store interface {
	GetCampaign(ctx context.Context, id string) (Campaign, error)
	UpdateCampaign(ctx context.Context, id string, upd CampaignUpdate) error

	// IncrementCampaignCounters applies the delta atomically; concurrent
	// completions for the same campaign must not lose updates.
	IncrementCampaignCounters(ctx context.Context, id string, delta CounterDelta) error

	GetLeadsByCampaign(ctx context.Context, campaignID string) ([]Lead, error)
	UpdateLead(ctx context.Context, id string, upd LeadUpdate) error

	CreateCallLog(ctx context.Context, cl CallLog) error
	UpdateCallLog(ctx context.Context, id string, upd CallLogUpdate) error
	GetCallLogByProviderCallID(ctx context.Context, providerCallID string) (CallLog, error)
	FindCallLog(ctx context.Context, campaignID, providerCallID string) (CallLog, error)
	GetCallLogsByCampaign(ctx context.Context, campaignID string) ([]CallLog, error)
	GetActiveCallLogForLead(ctx context.Context, leadID string) (CallLog, error)
	GetAllCallLogs(ctx context.Context) ([]CallLog, error)

	// SetCallLogConversationID is write-once: an already-set identifier is
	// kept and the call reports success.
	SetCallLogConversationID(ctx context.Context, id, conversationID string) error

	GetKnowledgeBaseByCampaign(ctx context.Context, campaignID string) ([]KnowledgeBaseDoc, error)
}

// CampaignUpdate is a partial update; nil fields are left untouched.
type CampaignUpdate struct {
	Status     *CampaignStatus
	TotalLeads *int
}

// LeadUpdate is a partial update; nil fields are left untouched.
type LeadUpdate struct {
	Status *LeadStatus
}

// CallLogUpdate is a partial update; nil fields are left untouched.
type CallLogUpdate struct {
	Status          *CallStatus
	DurationSeconds *int
	ProviderCallID  *string
}

// CounterDelta carries campaign counter increments.
type CounterDelta struct {
	Completed  int
	Successful int
	Failed     int
}

// Ptr returns a pointer to v; convenience for building partial updates.
func Ptr[T any](v T) *T { return &v }
