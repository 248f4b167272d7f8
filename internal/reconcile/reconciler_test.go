package reconcile

import (
	"context"
	"testing"

	"voicecampaign/internal/store"
)

func seedCall(t *testing.T, m *store.Memory, campaignID, leadID, providerCallID string) store.CallLog {
	t.Helper()
	m.Campaigns[campaignID] = store.Campaign{ID: campaignID, Name: "q3 outreach", Status: store.CampaignStatusRunning}
	if leadID != "" {
		m.Leads[leadID] = store.Lead{ID: leadID, CampaignID: campaignID, Status: store.LeadStatusCalling}
	}
	cl := store.CallLog{
		ID:             "cl-" + providerCallID,
		CampaignID:     campaignID,
		PhoneNumber:    "+15550100",
		Status:         store.CallStatusInitiated,
		ProviderCallID: providerCallID,
	}
	if leadID != "" {
		cl.LeadID = store.Ptr(leadID)
	}
	if err := m.CreateCallLog(context.Background(), cl); err != nil {
		t.Fatalf("seeding call log: %v", err)
	}
	return cl
}

func newReconciler(m *store.Memory) *Reconciler {
	return New(m, NewMemoryDedup(), 3, nil)
}

func TestApplyStatusEvent_CompletedCall(t *testing.T) {
	m := store.NewMemory()
	cl := seedCall(t, m, "camp-1", "lead-1", "CA100")
	r := newReconciler(m)

	ev := StatusEvent{ProviderCallID: "CA100", Status: store.CallStatusCompleted, DurationSeconds: store.Ptr(45)}
	if err := r.ApplyStatusEvent(context.Background(), ev); err != nil {
		t.Fatalf("ApplyStatusEvent: %v", err)
	}

	got := m.CallLogs[cl.ID]
	if got.Status != store.CallStatusCompleted {
		t.Fatalf("call log status = %q, want completed", got.Status)
	}
	if got.DurationSeconds == nil || *got.DurationSeconds != 45 {
		t.Fatalf("call log duration = %v, want 45", got.DurationSeconds)
	}
	if m.Leads["lead-1"].Status != store.LeadStatusCompleted {
		t.Fatalf("lead status = %q, want completed", m.Leads["lead-1"].Status)
	}
	c := m.Campaigns["camp-1"]
	if c.CompletedCalls != 1 || c.SuccessfulCalls != 1 || c.FailedCalls != 0 {
		t.Fatalf("counters = %d/%d/%d, want 1/1/0", c.CompletedCalls, c.SuccessfulCalls, c.FailedCalls)
	}
}

func TestApplyStatusEvent_NoAnswer(t *testing.T) {
	m := store.NewMemory()
	seedCall(t, m, "camp-1", "lead-1", "CA101")
	r := newReconciler(m)

	ev := StatusEvent{ProviderCallID: "CA101", Status: store.CallStatusNoAnswer}
	if err := r.ApplyStatusEvent(context.Background(), ev); err != nil {
		t.Fatalf("ApplyStatusEvent: %v", err)
	}

	if m.Leads["lead-1"].Status != store.LeadStatusFailed {
		t.Fatalf("lead status = %q, want failed", m.Leads["lead-1"].Status)
	}
	c := m.Campaigns["camp-1"]
	if c.CompletedCalls != 0 || c.SuccessfulCalls != 0 || c.FailedCalls != 1 {
		t.Fatalf("counters = %d/%d/%d, want 0/0/1", c.CompletedCalls, c.SuccessfulCalls, c.FailedCalls)
	}
}

func TestApplyStatusEvent_UnknownCallDropped(t *testing.T) {
	m := store.NewMemory()
	seedCall(t, m, "camp-1", "lead-1", "CA102")
	r := newReconciler(m)

	ev := StatusEvent{ProviderCallID: "CA-nobody", Status: store.CallStatusCompleted, DurationSeconds: store.Ptr(10)}
	if err := r.ApplyStatusEvent(context.Background(), ev); err != nil {
		t.Fatalf("ApplyStatusEvent: %v", err)
	}

	c := m.Campaigns["camp-1"]
	if c.CompletedCalls != 0 || c.SuccessfulCalls != 0 || c.FailedCalls != 0 {
		t.Fatalf("counters = %d/%d/%d, want all zero", c.CompletedCalls, c.SuccessfulCalls, c.FailedCalls)
	}
	if m.Leads["lead-1"].Status != store.LeadStatusCalling {
		t.Fatalf("lead status = %q, want calling (untouched)", m.Leads["lead-1"].Status)
	}
}

func TestApplyStatusEvent_SuccessThresholdIsStrict(t *testing.T) {
	cases := []struct {
		name       string
		duration   int
		successful int
	}{
		{"at threshold", 3, 0},
		{"just above threshold", 4, 1},
		{"zero duration", 0, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m := store.NewMemory()
			seedCall(t, m, "camp-1", "lead-1", "CA103")
			r := newReconciler(m)

			ev := StatusEvent{ProviderCallID: "CA103", Status: store.CallStatusCompleted, DurationSeconds: store.Ptr(tc.duration)}
			if err := r.ApplyStatusEvent(context.Background(), ev); err != nil {
				t.Fatalf("ApplyStatusEvent: %v", err)
			}

			c := m.Campaigns["camp-1"]
			if c.CompletedCalls != 1 {
				t.Fatalf("completed = %d, want 1", c.CompletedCalls)
			}
			if c.SuccessfulCalls != tc.successful {
				t.Fatalf("successful = %d, want %d", c.SuccessfulCalls, tc.successful)
			}
			if c.FailedCalls != 0 {
				t.Fatalf("failed = %d, want 0; a short connected call is not a failure", c.FailedCalls)
			}
		})
	}
}

func TestApplyStatusEvent_RedeliveryDoesNotDoubleCount(t *testing.T) {
	m := store.NewMemory()
	seedCall(t, m, "camp-1", "lead-1", "CA104")
	r := newReconciler(m)

	ev := StatusEvent{ProviderCallID: "CA104", Status: store.CallStatusCompleted, DurationSeconds: store.Ptr(20)}
	for i := 0; i < 3; i++ {
		if err := r.ApplyStatusEvent(context.Background(), ev); err != nil {
			t.Fatalf("ApplyStatusEvent attempt %d: %v", i+1, err)
		}
	}

	c := m.Campaigns["camp-1"]
	if c.CompletedCalls != 1 || c.SuccessfulCalls != 1 {
		t.Fatalf("counters after redelivery = %d/%d, want 1/1", c.CompletedCalls, c.SuccessfulCalls)
	}
}

func TestApplyStatusEvent_DistinctStatusesBothCount(t *testing.T) {
	// A busy retry that later fails hard still only counts one failure per
	// distinct status; the call log tracks the latest.
	m := store.NewMemory()
	cl := seedCall(t, m, "camp-1", "lead-1", "CA105")
	r := newReconciler(m)

	ctx := context.Background()
	if err := r.ApplyStatusEvent(ctx, StatusEvent{ProviderCallID: "CA105", Status: store.CallStatusRinging}); err != nil {
		t.Fatalf("ringing: %v", err)
	}
	c := m.Campaigns["camp-1"]
	if c.CompletedCalls+c.SuccessfulCalls+c.FailedCalls != 0 {
		t.Fatalf("non-terminal status moved counters: %+v", c)
	}
	if m.CallLogs[cl.ID].Status != store.CallStatusRinging {
		t.Fatalf("call log status = %q, want ringing", m.CallLogs[cl.ID].Status)
	}

	if err := r.ApplyStatusEvent(ctx, StatusEvent{ProviderCallID: "CA105", Status: store.CallStatusBusy}); err != nil {
		t.Fatalf("busy: %v", err)
	}
	if got := m.Campaigns["camp-1"].FailedCalls; got != 1 {
		t.Fatalf("failed = %d, want 1", got)
	}
}

func TestApplyStatusEvent_UnrecognizedStatusIgnored(t *testing.T) {
	m := store.NewMemory()
	cl := seedCall(t, m, "camp-1", "lead-1", "CA106")
	r := newReconciler(m)

	if err := r.ApplyStatusEvent(context.Background(), StatusEvent{ProviderCallID: "CA106", Status: ""}); err != nil {
		t.Fatalf("ApplyStatusEvent: %v", err)
	}
	if m.CallLogs[cl.ID].Status != store.CallStatusInitiated {
		t.Fatalf("call log mutated by unrecognized status: %q", m.CallLogs[cl.ID].Status)
	}
}

func TestApplyStatusEvent_TestCallHasNoLead(t *testing.T) {
	m := store.NewMemory()
	seedCall(t, m, "camp-1", "", "CA107")
	r := newReconciler(m)

	ev := StatusEvent{ProviderCallID: "CA107", Status: store.CallStatusCompleted, DurationSeconds: store.Ptr(12)}
	if err := r.ApplyStatusEvent(context.Background(), ev); err != nil {
		t.Fatalf("ApplyStatusEvent: %v", err)
	}
	c := m.Campaigns["camp-1"]
	if c.CompletedCalls != 1 || c.SuccessfulCalls != 1 {
		t.Fatalf("counters = %d/%d, want 1/1", c.CompletedCalls, c.SuccessfulCalls)
	}
}

func TestCaptureConversationID(t *testing.T) {
	m := store.NewMemory()
	cl := seedCall(t, m, "camp-1", "lead-1", "CA108")
	r := newReconciler(m)
	ctx := context.Background()

	r.CaptureConversationID(ctx, "camp-1", "CA108", "conv-abc")
	if got := m.CallLogs[cl.ID].AgentConversationID; got != "conv-abc" {
		t.Fatalf("conversation id = %q, want conv-abc", got)
	}

	// First write wins.
	r.CaptureConversationID(ctx, "camp-1", "CA108", "conv-late")
	if got := m.CallLogs[cl.ID].AgentConversationID; got != "conv-abc" {
		t.Fatalf("conversation id overwritten to %q", got)
	}

	// No matching call log is a drop, not a crash.
	r.CaptureConversationID(ctx, "camp-1", "CA-missing", "conv-x")
	r.CaptureConversationID(ctx, "camp-1", "CA108", "")
}

func TestMemoryDedup_FirstDeliveryOnly(t *testing.T) {
	d := NewMemoryDedup()
	ctx := context.Background()

	first, err := d.MarkDelivered(ctx, "CA1", store.CallStatusCompleted)
	if err != nil || !first {
		t.Fatalf("first delivery = (%v, %v), want (true, nil)", first, err)
	}
	first, err = d.MarkDelivered(ctx, "CA1", store.CallStatusCompleted)
	if err != nil || first {
		t.Fatalf("redelivery = (%v, %v), want (false, nil)", first, err)
	}
	// Different status for the same call is a distinct delivery.
	first, err = d.MarkDelivered(ctx, "CA1", store.CallStatusFailed)
	if err != nil || !first {
		t.Fatalf("distinct status = (%v, %v), want (true, nil)", first, err)
	}
}
