package stats

import (
	"context"
	"errors"
	"testing"
	"time"

	"voicecampaign/internal/store"
)

func seed(m *store.Memory) {
	m.Campaigns["camp-1"] = store.Campaign{
		ID: "camp-1", Name: "q3 outreach", Status: store.CampaignStatusRunning,
		TotalLeads: 4, CompletedCalls: 2, SuccessfulCalls: 1, FailedCalls: 1,
	}
	m.Leads["l1"] = store.Lead{ID: "l1", CampaignID: "camp-1", Status: store.LeadStatusCompleted}
	m.Leads["l2"] = store.Lead{ID: "l2", CampaignID: "camp-1", Status: store.LeadStatusCompleted}
	m.Leads["l3"] = store.Lead{ID: "l3", CampaignID: "camp-1", Status: store.LeadStatusFailed}
	m.Leads["l4"] = store.Lead{ID: "l4", CampaignID: "camp-1", Status: store.LeadStatusCalling}

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	m.CallLogs["c1"] = store.CallLog{
		ID: "c1", CampaignID: "camp-1", LeadID: store.Ptr("l1"), PhoneNumber: "+15550001",
		Status: store.CallStatusCompleted, DurationSeconds: store.Ptr(40),
		ProviderCallID: "CA1", AgentConversationID: "conv-1", CreatedAt: base,
	}
	m.CallLogs["c2"] = store.CallLog{
		ID: "c2", CampaignID: "camp-1", LeadID: store.Ptr("l2"), PhoneNumber: "+15550002",
		Status: store.CallStatusCompleted, DurationSeconds: store.Ptr(2),
		ProviderCallID: "CA2", CreatedAt: base.Add(time.Minute),
	}
	m.CallLogs["c3"] = store.CallLog{
		ID: "c3", CampaignID: "camp-1", LeadID: store.Ptr("l3"), PhoneNumber: "+15550003",
		Status: store.CallStatusNoAnswer, ProviderCallID: "CA3", CreatedAt: base.Add(2 * time.Minute),
	}
	m.CallLogs["c4"] = store.CallLog{
		ID: "c4", CampaignID: "camp-1", LeadID: store.Ptr("l4"), PhoneNumber: "+15550004",
		Status: store.CallStatusRinging, ProviderCallID: "CA4", CreatedAt: base.Add(3 * time.Minute),
	}
	// Another campaign's call must not leak into camp-1's summary.
	m.CallLogs["other"] = store.CallLog{
		ID: "other", CampaignID: "camp-2", PhoneNumber: "+15559999",
		Status: store.CallStatusCompleted, DurationSeconds: store.Ptr(600), CreatedAt: base,
	}
}

func TestCampaignSummary(t *testing.T) {
	m := store.NewMemory()
	seed(m)
	s := NewService(m)

	got, err := s.CampaignSummary(context.Background(), "camp-1")
	if err != nil {
		t.Fatalf("CampaignSummary: %v", err)
	}

	if got.CampaignName != "q3 outreach" || got.Status != store.CampaignStatusRunning {
		t.Fatalf("campaign header = %q/%q", got.CampaignName, got.Status)
	}
	if got.CompletedCalls != 2 || got.SuccessfulCalls != 1 || got.FailedCalls != 1 {
		t.Fatalf("counters = %d/%d/%d, want 2/1/1", got.CompletedCalls, got.SuccessfulCalls, got.FailedCalls)
	}
	if got.SuccessRate != 0.5 {
		t.Fatalf("success rate = %v, want 0.5", got.SuccessRate)
	}
	if got.TotalCalls != 4 {
		t.Fatalf("total calls = %d, want 4 (other campaign excluded)", got.TotalCalls)
	}
	if got.InProgressCalls != 1 || got.NoAnswerCalls != 1 || got.BusyCalls != 0 {
		t.Fatalf("status breakdown = inprog %d noanswer %d busy %d", got.InProgressCalls, got.NoAnswerCalls, got.BusyCalls)
	}
	if got.TotalDurationSeconds != 42 {
		t.Fatalf("total duration = %d, want 42", got.TotalDurationSeconds)
	}
	if got.AverageDurationSeconds != 10 {
		t.Fatalf("average duration = %d, want 10", got.AverageDurationSeconds)
	}
	if got.LeadsPending != 0 || got.LeadsCalling != 1 || got.LeadsCompleted != 2 || got.LeadsFailed != 1 {
		t.Fatalf("lead breakdown = %d/%d/%d/%d", got.LeadsPending, got.LeadsCalling, got.LeadsCompleted, got.LeadsFailed)
	}
}

func TestCampaignSummary_EmptyCampaign(t *testing.T) {
	m := store.NewMemory()
	m.Campaigns["camp-empty"] = store.Campaign{ID: "camp-empty", Name: "fresh", Status: store.CampaignStatusDraft}
	s := NewService(m)

	got, err := s.CampaignSummary(context.Background(), "camp-empty")
	if err != nil {
		t.Fatalf("CampaignSummary: %v", err)
	}
	if got.TotalCalls != 0 || got.SuccessRate != 0 || got.AverageDurationSeconds != 0 {
		t.Fatalf("empty campaign summary = %+v", got)
	}
}

func TestCampaignSummary_NotFound(t *testing.T) {
	s := NewService(store.NewMemory())
	_, err := s.CampaignSummary(context.Background(), "nope")
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if _, err := s.CampaignSummary(context.Background(), ""); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("empty id err = %v, want ErrInvalidRequest", err)
	}
}

func TestCallHistory(t *testing.T) {
	m := store.NewMemory()
	seed(m)
	s := NewService(m)

	got, err := s.CallHistory(context.Background(), "camp-1")
	if err != nil {
		t.Fatalf("CallHistory: %v", err)
	}
	if len(got) != 4 {
		t.Fatalf("history rows = %d, want 4", len(got))
	}
	if got[0].ID != "c1" || got[3].ID != "c4" {
		t.Fatalf("history order = %q..%q, want c1..c4", got[0].ID, got[3].ID)
	}
	if got[0].AgentConversationID != "conv-1" {
		t.Fatalf("conversation id missing from history row: %+v", got[0])
	}
}
