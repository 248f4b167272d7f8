package agent

import (
	"context"
	"fmt"
	"log/slog"

	"voicecampaign/internal/store"
)

// Initiator opens one configured agent session per call: resolve the owning
// campaign's persona/voice/knowledge-base configuration, negotiate a signed
// connection URL, dial, and send the initiation handshake.
//
// On any failure no session is returned and nothing is left half-open on the
// agent side; the caller owns the telephony leg and must close it.
type Initiator struct {
	client *Client
	store  store.Store
	log    *slog.Logger
}

func NewInitiator(client *Client, st store.Store, log *slog.Logger) *Initiator {
	if log == nil {
		log = slog.Default()
	}
	return &Initiator{client: client, store: st, log: log}
}

// OpenParams carries call correlation plus the per-lead dynamic variables.
type OpenParams struct {
	CampaignID     string
	StreamID       string
	ProviderCallID string

	// FirstName feeds the {{first_name}} template variable; substitution is
	// the provider's job, so templates are sent untouched.
	FirstName string
}

func (i *Initiator) Open(ctx context.Context, p OpenParams) (*Session, error) {
	if p.CampaignID == "" {
		return nil, fmt.Errorf("agent: campaign id required")
	}

	camp, err := i.store.GetCampaign(ctx, p.CampaignID)
	if err != nil {
		return nil, fmt.Errorf("agent: resolving campaign %s: %w", p.CampaignID, err)
	}

	kbDocs, err := i.store.GetKnowledgeBaseByCampaign(ctx, p.CampaignID)
	if err != nil {
		// Feature degraded, not fatal: the call proceeds without documents.
		i.log.Warn("knowledge base lookup failed",
			"campaign_id", p.CampaignID, "err", err)
		kbDocs = nil
	}

	signedURL, err := i.client.GetSignedURL(ctx, camp.AgentID)
	if err != nil {
		return nil, err
	}

	sess, err := i.client.DialSession(ctx, signedURL)
	if err != nil {
		return nil, err
	}

	if err := sess.SendInitiation(buildInitiation(camp, kbDocs, p.FirstName)); err != nil {
		_ = sess.Close()
		return nil, fmt.Errorf("agent: initiation handshake failed: %w", err)
	}

	i.log.Info("agent session opened",
		"campaign_id", p.CampaignID,
		"stream_id", p.StreamID,
		"provider_call_id", p.ProviderCallID)
	return sess, nil
}

func buildInitiation(camp store.Campaign, kbDocs []store.KnowledgeBaseDoc, firstName string) InitiationPayload {
	var kb []KnowledgeBaseRef
	for _, d := range kbDocs {
		kb = append(kb, KnowledgeBaseRef{Type: "file", ID: d.DocumentID, Name: d.Name})
	}

	override := ConfigOverride{
		Agent: AgentOverride{
			Prompt: PromptOverride{
				Prompt:        camp.SystemPrompt,
				KnowledgeBase: kb,
			},
			FirstMessage: camp.FirstMessage,
		},
	}
	if camp.VoiceID != "" {
		override.TTS = &TTSOverride{VoiceID: camp.VoiceID}
	}

	return InitiationPayload{
		Type:                       "conversation_initiation_client_data",
		ConversationConfigOverride: override,
		DynamicVariables:           map[string]string{"first_name": firstName},
	}
}
