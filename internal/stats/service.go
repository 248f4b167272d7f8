// Package stats aggregates call logs and campaign counters into the
// read-only summaries the dashboard renders. It never mutates state; the
// campaign driver and the reconciler own all writes.
package stats

import (
	"context"
	"errors"
	"fmt"

	"voicecampaign/internal/store"
)

var ErrInvalidRequest = errors.New("stats: invalid request")

// CampaignSummary is the per-campaign dashboard card.
type CampaignSummary struct {
	CampaignID   string               `json:"campaign_id"`
	CampaignName string               `json:"campaign_name"`
	Status       store.CampaignStatus `json:"status"`

	TotalLeads      int `json:"total_leads"`
	CompletedCalls  int `json:"completed_calls"`
	SuccessfulCalls int `json:"successful_calls"`
	FailedCalls     int `json:"failed_calls"`

	TotalCalls      int `json:"total_calls"`
	InProgressCalls int `json:"in_progress_calls"`
	NoAnswerCalls   int `json:"no_answer_calls"`
	BusyCalls       int `json:"busy_calls"`

	TotalDurationSeconds   int `json:"total_duration_seconds"`
	AverageDurationSeconds int `json:"average_duration_seconds"`

	// SuccessRate is successfulCalls over completedCalls, 0 when no call has
	// completed yet.
	SuccessRate float64 `json:"success_rate"`

	LeadsPending   int `json:"leads_pending"`
	LeadsCalling   int `json:"leads_calling"`
	LeadsCompleted int `json:"leads_completed"`
	LeadsFailed    int `json:"leads_failed"`
}

// CallRecord is one row of the campaign's call history view.
type CallRecord struct {
	ID                  string           `json:"id"`
	LeadID              *string          `json:"lead_id,omitempty"`
	PhoneNumber         string           `json:"phone_number"`
	Status              store.CallStatus `json:"status"`
	DurationSeconds     *int             `json:"duration_seconds,omitempty"`
	ProviderCallID      string           `json:"provider_call_id,omitempty"`
	AgentConversationID string           `json:"agent_conversation_id,omitempty"`
}

type Service struct {
	store store.Store
}

func NewService(st store.Store) *Service { return &Service{store: st} }

// CampaignSummary folds the campaign row, its leads and its call logs into
// one dashboard summary.
func (s *Service) CampaignSummary(ctx context.Context, campaignID string) (CampaignSummary, error) {
	if campaignID == "" {
		return CampaignSummary{}, ErrInvalidRequest
	}

	camp, err := s.store.GetCampaign(ctx, campaignID)
	if err != nil {
		return CampaignSummary{}, fmt.Errorf("stats: loading campaign: %w", err)
	}

	out := CampaignSummary{
		CampaignID:      camp.ID,
		CampaignName:    camp.Name,
		Status:          camp.Status,
		TotalLeads:      camp.TotalLeads,
		CompletedCalls:  camp.CompletedCalls,
		SuccessfulCalls: camp.SuccessfulCalls,
		FailedCalls:     camp.FailedCalls,
	}
	if camp.CompletedCalls > 0 {
		out.SuccessRate = float64(camp.SuccessfulCalls) / float64(camp.CompletedCalls)
	}

	logs, err := s.store.GetCallLogsByCampaign(ctx, campaignID)
	if err != nil {
		return CampaignSummary{}, fmt.Errorf("stats: listing call logs: %w", err)
	}
	for _, cl := range logs {
		out.TotalCalls++
		if cl.DurationSeconds != nil {
			out.TotalDurationSeconds += *cl.DurationSeconds
		}
		switch cl.Status {
		case store.CallStatusInitiated, store.CallStatusRinging, store.CallStatusAnswered:
			out.InProgressCalls++
		case store.CallStatusNoAnswer:
			out.NoAnswerCalls++
		case store.CallStatusBusy:
			out.BusyCalls++
		}
	}
	if out.TotalCalls > 0 {
		out.AverageDurationSeconds = out.TotalDurationSeconds / out.TotalCalls
	}

	leads, err := s.store.GetLeadsByCampaign(ctx, campaignID)
	if err != nil {
		return CampaignSummary{}, fmt.Errorf("stats: listing leads: %w", err)
	}
	for _, l := range leads {
		switch l.Status {
		case store.LeadStatusPending:
			out.LeadsPending++
		case store.LeadStatusCalling:
			out.LeadsCalling++
		case store.LeadStatusCompleted:
			out.LeadsCompleted++
		case store.LeadStatusFailed:
			out.LeadsFailed++
		}
	}
	return out, nil
}

// CallHistory lists a campaign's call logs in creation order.
func (s *Service) CallHistory(ctx context.Context, campaignID string) ([]CallRecord, error) {
	if campaignID == "" {
		return nil, ErrInvalidRequest
	}
	logs, err := s.store.GetCallLogsByCampaign(ctx, campaignID)
	if err != nil {
		return nil, fmt.Errorf("stats: listing call logs: %w", err)
	}
	out := make([]CallRecord, 0, len(logs))
	for _, cl := range logs {
		out = append(out, CallRecord{
			ID:                  cl.ID,
			LeadID:              cl.LeadID,
			PhoneNumber:         cl.PhoneNumber,
			Status:              cl.Status,
			DurationSeconds:     cl.DurationSeconds,
			ProviderCallID:      cl.ProviderCallID,
			AgentConversationID: cl.AgentConversationID,
		})
	}
	return out, nil
}
