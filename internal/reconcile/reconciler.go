// Package reconcile folds asynchronous provider events — telephony status
// webhooks and agent-session messages — into durable call/lead/campaign
// state. Events for the two sources arrive in either order relative to each
// other; both paths tolerate the call log being absent or already finalized.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"voicecampaign/internal/store"
	"voicecampaign/pkg/metrics"
)

type Reconciler struct {
	store store.Store
	dedup DedupSet
	log   *slog.Logger

	// successThresholdSeconds gates successfulCalls: a completed call counts
	// as successful only when duration is strictly greater than this.
	successThresholdSeconds int
}

func New(st store.Store, dedup DedupSet, successThresholdSeconds int, log *slog.Logger) *Reconciler {
	if log == nil {
		log = slog.Default()
	}
	if successThresholdSeconds <= 0 {
		successThresholdSeconds = 3
	}
	return &Reconciler{
		store:                   st,
		dedup:                   dedup,
		log:                     log,
		successThresholdSeconds: successThresholdSeconds,
	}
}

// StatusEvent is one telephony status webhook, already mapped to our status
// vocabulary. An empty Status means the provider sent something we do not
// recognize.
type StatusEvent struct {
	ProviderCallID  string
	Status          store.CallStatus
	DurationSeconds *int
}

// ApplyStatusEvent folds one webhook into durable state. Events for unknown
// calls are dropped, not errors: after a restart this process may receive
// webhooks for calls it no longer knows about, and the provider must still
// see success or it will retry forever.
//
// Counter deltas are applied once per (provider call id, status) pair;
// redelivered webhooks update the call log but do not double-count.
func (r *Reconciler) ApplyStatusEvent(ctx context.Context, ev StatusEvent) error {
	if ev.ProviderCallID == "" {
		r.log.Warn("status event missing provider call id")
		return nil
	}
	if ev.Status == "" {
		metrics.WebhookEvents.WithLabelValues("unknown").Inc()
		r.log.Warn("status event with unrecognized status dropped", "provider_call_id", ev.ProviderCallID)
		return nil
	}
	metrics.WebhookEvents.WithLabelValues(string(ev.Status)).Inc()

	cl, err := r.store.GetCallLogByProviderCallID(ctx, ev.ProviderCallID)
	if errors.Is(err, store.ErrNotFound) {
		r.log.Info("status event for unknown call dropped",
			"provider_call_id", ev.ProviderCallID, "status", string(ev.Status))
		return nil
	}
	if err != nil {
		return fmt.Errorf("reconcile: loading call log: %w", err)
	}

	upd := store.CallLogUpdate{Status: &ev.Status}
	if ev.DurationSeconds != nil {
		upd.DurationSeconds = ev.DurationSeconds
	}
	if err := r.store.UpdateCallLog(ctx, cl.ID, upd); err != nil {
		return fmt.Errorf("reconcile: updating call log %s: %w", cl.ID, err)
	}

	if cl.LeadID != nil {
		if err := r.updateLeadFromStatus(ctx, *cl.LeadID, ev.Status); err != nil {
			return err
		}
	}

	if !ev.Status.Terminal() {
		return nil
	}

	first, err := r.dedup.MarkDelivered(ctx, ev.ProviderCallID, ev.Status)
	if err != nil {
		return fmt.Errorf("reconcile: dedup check: %w", err)
	}
	if !first {
		r.log.Info("duplicate terminal webhook, counters unchanged",
			"provider_call_id", ev.ProviderCallID, "status", string(ev.Status))
		return nil
	}
	return r.applyCounters(ctx, cl.CampaignID, ev)
}

// updateLeadFromStatus maps call outcomes onto the lead: connected means
// completed, never-connected means failed, anything in-flight leaves the lead
// untouched.
func (r *Reconciler) updateLeadFromStatus(ctx context.Context, leadID string, s store.CallStatus) error {
	var leadStatus store.LeadStatus
	switch {
	case s.Connected():
		leadStatus = store.LeadStatusCompleted
	case s.NeverConnected():
		leadStatus = store.LeadStatusFailed
	default:
		return nil
	}
	err := r.store.UpdateLead(ctx, leadID, store.LeadUpdate{Status: &leadStatus})
	if errors.Is(err, store.ErrNotFound) {
		r.log.Warn("lead vanished before status update", "lead_id", leadID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("reconcile: updating lead %s: %w", leadID, err)
	}
	return nil
}

// applyCounters maintains the campaign aggregates:
// completedCalls counts every connected call; successfulCalls only those
// above the duration threshold; failedCalls only calls that never connected.
// A connected-but-short call is completed, never failed.
func (r *Reconciler) applyCounters(ctx context.Context, campaignID string, ev StatusEvent) error {
	var delta store.CounterDelta
	switch {
	case ev.Status.Connected():
		delta.Completed = 1
		if ev.DurationSeconds != nil && *ev.DurationSeconds > r.successThresholdSeconds {
			delta.Successful = 1
		}
	case ev.Status.NeverConnected():
		delta.Failed = 1
	default:
		return nil
	}

	err := r.store.IncrementCampaignCounters(ctx, campaignID, delta)
	if errors.Is(err, store.ErrNotFound) {
		r.log.Warn("campaign vanished before counter update", "campaign_id", campaignID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("reconcile: incrementing counters for %s: %w", campaignID, err)
	}
	return nil
}

// CaptureConversationID stores a conversation identifier discovered on the
// agent leg. Write-once per call log; no matching call log means log and
// drop, never fail the call.
func (r *Reconciler) CaptureConversationID(ctx context.Context, campaignID, providerCallID, conversationID string) {
	if conversationID == "" || providerCallID == "" {
		return
	}
	cl, err := r.store.FindCallLog(ctx, campaignID, providerCallID)
	if errors.Is(err, store.ErrNotFound) {
		r.log.Info("conversation id with no matching call log dropped",
			"campaign_id", campaignID, "provider_call_id", providerCallID)
		return
	}
	if err != nil {
		r.log.Error("conversation id lookup failed",
			"campaign_id", campaignID, "provider_call_id", providerCallID, "err", err)
		return
	}
	if err := r.store.SetCallLogConversationID(ctx, cl.ID, conversationID); err != nil {
		r.log.Error("storing conversation id failed", "call_log_id", cl.ID, "err", err)
	}
}
