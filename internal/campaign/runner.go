// Package campaign drives outbound dialing: it walks a campaign's pending
// leads, stashes per-call parameters for the media bridge, asks the telephony
// provider to dial, and watches for the campaign to drain. Call outcomes are
// not decided here; the reconciler owns those via status webhooks.
package campaign

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"voicecampaign/internal/config"
	"voicecampaign/internal/pending"
	"voicecampaign/internal/store"
	"voicecampaign/internal/telephony"
	"voicecampaign/pkg/metrics"
)

type Runner struct {
	store   store.Store
	pending pending.Store
	dialer  telephony.Dialer
	guard   RunGuard
	cfg     config.Config
	log     *slog.Logger

	// sleep is injectable so pacing and polling are testable without waiting.
	sleep func(ctx context.Context, d time.Duration) error
}

func NewRunner(st store.Store, pend pending.Store, d telephony.Dialer, guard RunGuard, cfg config.Config, log *slog.Logger) *Runner {
	if log == nil {
		log = slog.Default()
	}
	return &Runner{
		store:   st,
		pending: pend,
		dialer:  d,
		guard:   guard,
		cfg:     cfg,
		log:     log,
		sleep:   ctxSleep,
	}
}

// RunCampaign executes one full campaign run: dial every pending lead with
// pacing between dials, then poll until no lead is pending or calling, then
// mark the campaign completed. A run already in flight for the same campaign
// makes this a no-op.
//
// The guard is always released, including on error and panic, so a failed run
// never wedges its campaign.
func (r *Runner) RunCampaign(ctx context.Context, campaignID string) (err error) {
	acquired, gerr := r.guard.Acquire(ctx, campaignID)
	if gerr != nil {
		return fmt.Errorf("campaign: acquiring run guard: %w", gerr)
	}
	if !acquired {
		metrics.CampaignRuns.WithLabelValues("duplicate").Inc()
		r.log.Info("campaign already running, run skipped", "campaign_id", campaignID)
		return nil
	}
	defer func() {
		// Release with a fresh context: the run's context may already be
		// canceled, and a stuck guard blocks every future run.
		relCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if rerr := r.guard.Release(relCtx, campaignID); rerr != nil {
			r.log.Error("releasing run guard failed", "campaign_id", campaignID, "err", rerr)
		}
		if p := recover(); p != nil {
			r.markFailed(campaignID)
			panic(p)
		}
		if err != nil {
			r.markFailed(campaignID)
		}
	}()

	camp, err := r.store.GetCampaign(ctx, campaignID)
	if err != nil {
		return fmt.Errorf("campaign: loading %s: %w", campaignID, err)
	}
	if err = r.setStatus(ctx, campaignID, store.CampaignStatusRunning); err != nil {
		return err
	}
	r.log.Info("campaign run started", "campaign_id", campaignID, "name", camp.Name)

	leads, err := r.store.GetLeadsByCampaign(ctx, campaignID)
	if err != nil {
		return fmt.Errorf("campaign: listing leads: %w", err)
	}

	dialed := 0
	for _, lead := range leads {
		if lead.Status != store.LeadStatusPending {
			continue
		}
		if dialed > 0 {
			if err = r.sleep(ctx, r.cfg.Dialer.PaceDelay); err != nil {
				return fmt.Errorf("campaign: run canceled: %w", err)
			}
		}
		r.dialLead(ctx, camp, lead)
		dialed++
	}
	r.log.Info("campaign batch dialed", "campaign_id", campaignID, "attempted", dialed)

	if err = r.waitForDrain(ctx, campaignID); err != nil {
		return err
	}
	if err = r.setStatus(ctx, campaignID, store.CampaignStatusCompleted); err != nil {
		return err
	}
	metrics.CampaignRuns.WithLabelValues("completed").Inc()
	r.log.Info("campaign completed", "campaign_id", campaignID)
	return nil
}

// dialLead places one outbound call. Dial failures fail the lead and its call
// log and count toward failedCalls, but never abort the batch.
func (r *Runner) dialLead(ctx context.Context, camp store.Campaign, lead store.Lead) {
	// A lead with a live call log is already being handled; dialing it again
	// would double-call the contact.
	if _, err := r.store.GetActiveCallLogForLead(ctx, lead.ID); err == nil {
		r.log.Warn("lead already has an active call, skipped", "lead_id", lead.ID)
		return
	} else if !errors.Is(err, store.ErrNotFound) {
		r.log.Error("active-call check failed, lead skipped", "lead_id", lead.ID, "err", err)
		return
	}

	if err := r.store.UpdateLead(ctx, lead.ID, store.LeadUpdate{Status: store.Ptr(store.LeadStatusCalling)}); err != nil {
		r.log.Error("marking lead calling failed, lead skipped", "lead_id", lead.ID, "err", err)
		return
	}

	cl := store.CallLog{
		ID:          uuid.NewString(),
		CampaignID:  camp.ID,
		LeadID:      store.Ptr(lead.ID),
		PhoneNumber: lead.ContactNo,
		Status:      store.CallStatusInitiated,
	}
	if err := r.store.CreateCallLog(ctx, cl); err != nil {
		r.log.Error("creating call log failed, lead skipped", "lead_id", lead.ID, "err", err)
		r.failLead(ctx, camp.ID, lead.ID, "")
		return
	}

	// Parameters must be in place before the provider can connect the media
	// stream, so Put strictly precedes Dial.
	params := pending.Params{FirstName: lead.FirstName, LeadID: lead.ID}
	if err := r.pending.Put(ctx, camp.ID, params); err != nil {
		r.log.Error("stashing call parameters failed, lead skipped", "lead_id", lead.ID, "err", err)
		r.failLead(ctx, camp.ID, lead.ID, cl.ID)
		return
	}

	res, err := r.dialer.Dial(ctx, telephony.DialRequest{
		To:                lead.ContactNo,
		StreamURL:         r.cfg.MediaStreamURL(camp.ID),
		StatusCallbackURL: r.cfg.StatusWebhookURL(),
	})
	if err != nil {
		metrics.CallsDialed.WithLabelValues("error").Inc()
		r.log.Error("dial failed", "lead_id", lead.ID, "phone", lead.ContactNo, "err", err)
		r.failLead(ctx, camp.ID, lead.ID, cl.ID)
		return
	}
	metrics.CallsDialed.WithLabelValues("ok").Inc()

	if err := r.store.UpdateCallLog(ctx, cl.ID, store.CallLogUpdate{ProviderCallID: store.Ptr(res.ProviderCallID)}); err != nil {
		r.log.Error("recording provider call id failed", "call_log_id", cl.ID, "err", err)
	}
	r.log.Info("call dialed", "campaign_id", camp.ID, "lead_id", lead.ID, "provider_call_id", res.ProviderCallID)
}

// StartTestCall dials a single ad-hoc number against a campaign's agent
// configuration without touching any lead. The returned id is the provider's
// call identifier.
func (r *Runner) StartTestCall(ctx context.Context, campaignID, phoneNumber, firstName string) (string, error) {
	if phoneNumber == "" {
		return "", fmt.Errorf("campaign: phone number is required")
	}
	camp, err := r.store.GetCampaign(ctx, campaignID)
	if err != nil {
		return "", fmt.Errorf("campaign: loading %s: %w", campaignID, err)
	}

	cl := store.CallLog{
		ID:          uuid.NewString(),
		CampaignID:  camp.ID,
		PhoneNumber: phoneNumber,
		Status:      store.CallStatusInitiated,
	}
	if err := r.store.CreateCallLog(ctx, cl); err != nil {
		return "", fmt.Errorf("campaign: creating test call log: %w", err)
	}

	params := pending.Params{IsTestCall: true, FirstName: firstName}
	if err := r.pending.Put(ctx, camp.ID, params); err != nil {
		return "", fmt.Errorf("campaign: stashing test call parameters: %w", err)
	}

	res, err := r.dialer.Dial(ctx, telephony.DialRequest{
		To:                phoneNumber,
		StreamURL:         r.cfg.MediaStreamURL(camp.ID),
		StatusCallbackURL: r.cfg.StatusWebhookURL(),
	})
	if err != nil {
		metrics.CallsDialed.WithLabelValues("error").Inc()
		if uerr := r.store.UpdateCallLog(ctx, cl.ID, store.CallLogUpdate{Status: store.Ptr(store.CallStatusFailed)}); uerr != nil {
			r.log.Error("failing test call log failed", "call_log_id", cl.ID, "err", uerr)
		}
		return "", fmt.Errorf("campaign: test dial: %w", err)
	}
	metrics.CallsDialed.WithLabelValues("ok").Inc()

	if err := r.store.UpdateCallLog(ctx, cl.ID, store.CallLogUpdate{ProviderCallID: store.Ptr(res.ProviderCallID)}); err != nil {
		r.log.Error("recording provider call id failed", "call_log_id", cl.ID, "err", err)
	}
	r.log.Info("test call dialed", "campaign_id", campaignID, "provider_call_id", res.ProviderCallID)
	return res.ProviderCallID, nil
}

// waitForDrain polls until no lead is pending or calling. Polling is the
// completion signal here; the reconciler moves leads out of calling as
// webhooks arrive.
func (r *Runner) waitForDrain(ctx context.Context, campaignID string) error {
	for {
		leads, err := r.store.GetLeadsByCampaign(ctx, campaignID)
		if err != nil {
			return fmt.Errorf("campaign: polling leads: %w", err)
		}
		open := 0
		for _, l := range leads {
			if l.Status == store.LeadStatusPending || l.Status == store.LeadStatusCalling {
				open++
			}
		}
		if open == 0 {
			return nil
		}
		r.log.Debug("campaign still draining", "campaign_id", campaignID, "open_leads", open)
		if err := r.sleep(ctx, r.cfg.Dialer.CompletionPollInterval); err != nil {
			return fmt.Errorf("campaign: run canceled: %w", err)
		}
	}
}

// failLead marks the lead and its call log failed and counts the call as
// failed; it never connected, so no webhook will.
func (r *Runner) failLead(ctx context.Context, campaignID, leadID, callLogID string) {
	if err := r.store.UpdateLead(ctx, leadID, store.LeadUpdate{Status: store.Ptr(store.LeadStatusFailed)}); err != nil {
		r.log.Error("failing lead failed", "lead_id", leadID, "err", err)
	}
	if callLogID != "" {
		if err := r.store.UpdateCallLog(ctx, callLogID, store.CallLogUpdate{Status: store.Ptr(store.CallStatusFailed)}); err != nil {
			r.log.Error("failing call log failed", "call_log_id", callLogID, "err", err)
		}
	}
	if err := r.store.IncrementCampaignCounters(ctx, campaignID, store.CounterDelta{Failed: 1}); err != nil {
		r.log.Error("counting failed dial failed", "campaign_id", campaignID, "err", err)
	}
}

func (r *Runner) setStatus(ctx context.Context, campaignID string, s store.CampaignStatus) error {
	if err := r.store.UpdateCampaign(ctx, campaignID, store.CampaignUpdate{Status: &s}); err != nil {
		return fmt.Errorf("campaign: setting %s status %s: %w", campaignID, s, err)
	}
	return nil
}

// markFailed is best-effort terminal bookkeeping on an aborted run.
func (r *Runner) markFailed(campaignID string) {
	metrics.CampaignRuns.WithLabelValues("failed").Inc()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.setStatus(ctx, campaignID, store.CampaignStatusFailed); err != nil {
		r.log.Error("marking campaign failed failed", "campaign_id", campaignID, "err", err)
	}
}

func ctxSleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
