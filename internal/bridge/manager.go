package bridge

import (
	"context"
	"log/slog"

	"voicecampaign/internal/agent"
	"voicecampaign/internal/pending"
)

// Manager constructs one Bridge per connecting media stream and owns the
// shared session registry. Built once at startup and injected where needed.
type Manager struct {
	registry *Registry
	pending  pending.Store
	opener   SessionOpener
	sink     ConversationSink
	log      *slog.Logger
}

func NewManager(reg *Registry, pend pending.Store, opener SessionOpener, sink ConversationSink, log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	return &Manager{registry: reg, pending: pend, opener: opener, sink: sink, log: log}
}

// HandleMediaStream serves one provider media-stream connection to completion.
// Blocking; the websocket handler calls it on the connection's goroutine.
func (m *Manager) HandleMediaStream(ctx context.Context, campaignID string, conn Conn) {
	b := New(campaignID, conn, m.registry, m.pending, m.opener, m.sink, m.log)
	b.Run(ctx)
}

// ActiveSessions reports how many calls are currently bridged.
func (m *Manager) ActiveSessions() int {
	return m.registry.Len()
}

// Shutdown closes every live session; used on process shutdown so the
// provider sees clean socket closes instead of timeouts.
func (m *Manager) Shutdown() {
	for _, s := range m.registry.Snapshot() {
		_ = s.Telephony.Close()
		if s.Agent != nil {
			_ = s.Agent.Close()
		}
		m.registry.Remove(s.StreamID)
	}
}

// InitiatorOpener adapts *agent.Initiator to the SessionOpener interface.
type InitiatorOpener struct {
	Initiator *agent.Initiator
}

func (o InitiatorOpener) Open(ctx context.Context, p agent.OpenParams) (AgentSession, error) {
	return o.Initiator.Open(ctx, p)
}
