package bridge

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"

	"voicecampaign/internal/agent"
	"voicecampaign/internal/pending"
	"voicecampaign/internal/telephony"
	"voicecampaign/pkg/metrics"
)

// Conn is the subset of *websocket.Conn the telephony leg needs; tests
// substitute a fake.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// AgentSession is the agent leg as the bridge sees it.
type AgentSession interface {
	SendAudioChunk(payloadB64 string) error
	SendPong(eventID int64) error
	Read() (agent.ServerMessage, error)
	Close() error
}

// SessionOpener opens the agent leg for a connecting call.
type SessionOpener interface {
	Open(ctx context.Context, p agent.OpenParams) (AgentSession, error)
}

// ConversationSink receives conversation identifiers discovered on the agent
// leg. Implemented by the event reconciler.
type ConversationSink interface {
	CaptureConversationID(ctx context.Context, campaignID, providerCallID, conversationID string)
}

// State is the bridge's lifecycle position. Transitions only move forward;
// Closed is terminal and reachable from every state.
type State int32

const (
	StateAwaitingStreamStart State = iota
	StateAwaitingAgentSession
	StateRelaying
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateAwaitingStreamStart:
		return "awaiting_stream_start"
	case StateAwaitingAgentSession:
		return "awaiting_agent_session"
	case StateRelaying:
		return "relaying"
	case StateClosed:
		return "closed"
	default:
		return "invalid"
	}
}

// Bridge relays audio and control signals between one telephony media stream
// and one agent session. One Bridge per call; it owns both sockets once
// relaying starts.
//
// Each leg is pumped by its own goroutine, so frame order is preserved per
// direction and every frame is forwarded as soon as it is parsed.
type Bridge struct {
	campaignID string
	telephony  Conn

	registry *Registry
	pending  pending.Store
	opener   SessionOpener
	sink     ConversationSink
	log      *slog.Logger

	state atomic.Int32

	mu             sync.Mutex
	streamID       string
	providerCallID string
	agentSess      AgentSession

	closeOnce sync.Once
}

func New(campaignID string, conn Conn, reg *Registry, pend pending.Store, opener SessionOpener, sink ConversationSink, log *slog.Logger) *Bridge {
	if log == nil {
		log = slog.Default()
	}
	return &Bridge{
		campaignID: campaignID,
		telephony:  conn,
		registry:   reg,
		pending:    pend,
		opener:     opener,
		sink:       sink,
		log:        log,
	}
}

func (b *Bridge) State() State {
	return State(b.state.Load())
}

func (b *Bridge) setState(s State) {
	b.state.Store(int32(s))
}

// Run drives the telephony leg until the call ends. It blocks; the websocket
// handler calls it on the connection's serving goroutine. The bridge is
// always closed and deregistered on return.
func (b *Bridge) Run(ctx context.Context) {
	defer b.close()

	for {
		_, data, err := b.telephony.ReadMessage()
		if err != nil {
			if b.State() == StateRelaying {
				b.log.Info("telephony socket closed", "stream_id", b.streamID, "err", err)
			}
			return
		}

		frame, err := telephony.ParseStreamFrame(data)
		if err != nil {
			b.log.Warn("unparseable telephony frame dropped", "campaign_id", b.campaignID, "err", err)
			continue
		}

		switch b.State() {
		case StateAwaitingStreamStart:
			if !b.handleAwaitingStart(ctx, frame) {
				return
			}
		case StateRelaying:
			if !b.handleRelaying(frame) {
				return
			}
		case StateClosed:
			return
		}
	}
}

// handleAwaitingStart consumes frames until the provider's start frame
// arrives, then claims pending parameters and opens the agent leg. Returns
// false when the bridge must stop.
func (b *Bridge) handleAwaitingStart(ctx context.Context, frame telephony.StreamFrame) bool {
	switch frame.Event {
	case telephony.StreamEventConnected:
		// Provider preamble, nothing to do yet.
		return true
	case telephony.StreamEventStop:
		return false
	case telephony.StreamEventStart:
		// handled below
	default:
		// Media before start is a protocol surprise; drop it.
		b.log.Warn("frame before stream start dropped", "event", string(frame.Event), "campaign_id", b.campaignID)
		return true
	}

	if frame.Start == nil || frame.Start.StreamSid == "" {
		b.log.Warn("start frame missing stream sid", "campaign_id", b.campaignID)
		return false
	}
	b.streamID = frame.Start.StreamSid
	b.providerCallID = frame.Start.CallSid

	params, ok, err := b.pending.Claim(ctx, b.campaignID)
	if err != nil {
		b.log.Error("pending params claim failed", "campaign_id", b.campaignID, "err", err)
		return false
	}
	if !ok {
		// Start without a prior initiate is a contract violation.
		b.log.Warn("stream start without pending call params",
			"campaign_id", b.campaignID, "stream_id", b.streamID)
		return false
	}

	b.setState(StateAwaitingAgentSession)

	sess, err := b.opener.Open(ctx, agent.OpenParams{
		CampaignID:     b.campaignID,
		StreamID:       b.streamID,
		ProviderCallID: b.providerCallID,
		FirstName:      params.FirstName,
	})
	if err != nil {
		// A half-open bridge (telephony connected, agent absent) is never
		// acceptable; Run's deferred close tears the telephony leg down.
		metrics.AgentSessionFailures.Inc()
		b.log.Error("agent session open failed",
			"campaign_id", b.campaignID, "stream_id", b.streamID, "err", err)
		return false
	}

	b.mu.Lock()
	b.agentSess = sess
	b.mu.Unlock()

	if err := b.registry.Register(&Session{
		StreamID:       b.streamID,
		ProviderCallID: b.providerCallID,
		CampaignID:     b.campaignID,
		Telephony:      b.telephony,
		Agent:          sess,
	}); err != nil {
		b.log.Error("session registration failed", "stream_id", b.streamID, "err", err)
		return false
	}

	b.setState(StateRelaying)
	metrics.BridgeSessionsActive.Inc()
	b.log.Info("bridge relaying",
		"campaign_id", b.campaignID,
		"stream_id", b.streamID,
		"provider_call_id", b.providerCallID,
		"test_call", params.IsTestCall)

	go b.pumpAgent(ctx, sess)
	return true
}

// handleRelaying forwards one telephony frame. Returns false when the stream
// ended.
func (b *Bridge) handleRelaying(frame telephony.StreamFrame) bool {
	switch frame.Event {
	case telephony.StreamEventMedia:
		if frame.Media == nil || frame.Media.Payload == "" {
			return true
		}
		if err := b.agentSess.SendAudioChunk(frame.Media.Payload); err != nil {
			b.log.Warn("forward to agent failed", "stream_id", b.streamID, "err", err)
			return false
		}
		return true
	case telephony.StreamEventStop:
		b.log.Info("stream stop received", "stream_id", b.streamID)
		return false
	case telephony.StreamEventMark, telephony.StreamEventConnected:
		// Playback checkpoints are not needed here; tolerated, not errors.
		return true
	default:
		return true
	}
}

// pumpAgent drives the agent leg: audio and control frames toward the
// telephony socket, pings answered in place.
func (b *Bridge) pumpAgent(ctx context.Context, sess AgentSession) {
	defer b.close()

	for {
		msg, err := sess.Read()
		if err != nil {
			if b.State() == StateRelaying {
				b.log.Info("agent socket closed", "stream_id", b.streamID, "err", err)
			}
			return
		}

		if msg.ConversationID != "" && b.sink != nil {
			b.sink.CaptureConversationID(ctx, b.campaignID, b.providerCallID, msg.ConversationID)
		}

		switch msg.Type {
		case agent.MessageTypeAudio:
			if msg.AudioB64 == "" {
				continue
			}
			out, err := telephony.EncodeMediaFrame(b.streamID, msg.AudioB64)
			if err != nil {
				continue
			}
			if err := b.telephony.WriteMessage(websocket.TextMessage, out); err != nil {
				return
			}
		case agent.MessageTypeInterruption:
			// Barge-in: stop playback of stale agent audio immediately.
			out, err := telephony.EncodeClearFrame(b.streamID)
			if err != nil {
				continue
			}
			if err := b.telephony.WriteMessage(websocket.TextMessage, out); err != nil {
				return
			}
		case agent.MessageTypePing:
			if err := sess.SendPong(msg.PingEventID); err != nil {
				return
			}
		case agent.MessageTypeAgentResponse, agent.MessageTypeUserTranscript,
			agent.MessageTypeInitiationMetadata:
			// Transcript and metadata traffic carries nothing to relay.
		default:
			b.log.Debug("unrecognized agent message", "stream_id", b.streamID)
		}
	}
}

// close tears the call down: deregister, then close both legs. Idempotent;
// closing an already-closed socket is a no-op, not an error.
func (b *Bridge) close() {
	b.closeOnce.Do(func() {
		wasRelaying := b.State() == StateRelaying
		b.setState(StateClosed)

		if b.streamID != "" {
			b.registry.Remove(b.streamID)
		}
		_ = b.telephony.Close()

		b.mu.Lock()
		sess := b.agentSess
		b.mu.Unlock()
		if sess != nil {
			_ = sess.Close()
		}

		if wasRelaying {
			metrics.BridgeSessionsActive.Dec()
		}
		b.log.Info("bridge closed", "campaign_id", b.campaignID, "stream_id", b.streamID)
	})
}
