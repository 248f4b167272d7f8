package store

import (
	"context"
	"testing"
	"time"
)

func TestMemory_ConversationIDWriteOnce(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	if err := m.CreateCallLog(ctx, CallLog{ID: "cl1", CampaignID: "camp", PhoneNumber: "+15551234567", Status: CallStatusInitiated}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := m.SetCallLogConversationID(ctx, "cl1", "conv-a"); err != nil {
		t.Fatalf("first set: %v", err)
	}
	if err := m.SetCallLogConversationID(ctx, "cl1", "conv-b"); err != nil {
		t.Fatalf("second set: %v", err)
	}
	if got := m.CallLogs["cl1"].AgentConversationID; got != "conv-a" {
		t.Fatalf("conversation id overwritten: got %q, want conv-a", got)
	}
}

func TestMemory_ActiveCallLogForLead(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	lead := "lead1"
	if err := m.CreateCallLog(ctx, CallLog{ID: "cl1", CampaignID: "camp", LeadID: &lead, PhoneNumber: "x", Status: CallStatusFailed}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := m.GetActiveCallLogForLead(ctx, lead); err != ErrNotFound {
		t.Fatalf("failed call log counted as active: %v", err)
	}

	if err := m.CreateCallLog(ctx, CallLog{ID: "cl2", CampaignID: "camp", LeadID: &lead, PhoneNumber: "x", Status: CallStatusInitiated}); err != nil {
		t.Fatalf("create: %v", err)
	}
	cl, err := m.GetActiveCallLogForLead(ctx, lead)
	if err != nil {
		t.Fatalf("expected active call log: %v", err)
	}
	if cl.ID != "cl2" {
		t.Fatalf("got %q, want cl2", cl.ID)
	}
}

func TestMemory_CounterIncrements(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	m.Campaigns["camp"] = Campaign{ID: "camp", Status: CampaignStatusActive}

	if err := m.IncrementCampaignCounters(ctx, "camp", CounterDelta{Completed: 1, Successful: 1}); err != nil {
		t.Fatalf("increment: %v", err)
	}
	if err := m.IncrementCampaignCounters(ctx, "camp", CounterDelta{Failed: 1}); err != nil {
		t.Fatalf("increment: %v", err)
	}
	c := m.Campaigns["camp"]
	if c.CompletedCalls != 1 || c.SuccessfulCalls != 1 || c.FailedCalls != 1 {
		t.Fatalf("unexpected counters: %+v", c)
	}
}

func TestMemory_LeadsOrderedByInsertion(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	base := time.Unix(1700000000, 0).UTC()
	m.Leads["b"] = Lead{ID: "b", CampaignID: "camp", Status: LeadStatusPending, CreatedAt: base.Add(time.Second)}
	m.Leads["a"] = Lead{ID: "a", CampaignID: "camp", Status: LeadStatusPending, CreatedAt: base}

	leads, err := m.GetLeadsByCampaign(ctx, "camp")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(leads) != 2 || leads[0].ID != "a" || leads[1].ID != "b" {
		t.Fatalf("unexpected order: %+v", leads)
	}
}
