package agent

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Wire protocol for the conversational speech-agent session.
//
// The provider's message shapes are not fully stable; in particular an audio
// payload and the conversation identifier each arrive in more than one known
// shape. Decoding is centralized here so call sites see one tagged message
// type instead of re-scanning raw JSON.

type MessageType string

const (
	MessageTypeInitiationMetadata MessageType = "conversation_initiation_metadata"
	MessageTypeAudio              MessageType = "audio"
	MessageTypeInterruption       MessageType = "interruption"
	MessageTypePing               MessageType = "ping"
	MessageTypeAgentResponse      MessageType = "agent_response"
	MessageTypeUserTranscript     MessageType = "user_transcript"
	MessageTypeUnknown            MessageType = "unknown"
)

// ServerMessage is the decoded form of one provider message.
type ServerMessage struct {
	Type MessageType

	// AudioB64 is set for audio messages (either provider shape).
	AudioB64 string

	// PingEventID is echoed back in the pong reply.
	PingEventID int64

	// ConversationID is set when the message carries a conversation
	// identifier under any known or fallback shape.
	ConversationID string

	// Raw is the undecoded payload, kept for logging unknown shapes.
	Raw json.RawMessage
}

type rawServerMessage struct {
	Type string `json:"type"`

	AudioEvent *struct {
		AudioBase64 string `json:"audio_base_64"`
	} `json:"audio_event"`
	Audio *struct {
		Chunk string `json:"chunk"`
	} `json:"audio"`

	PingEvent *struct {
		EventID int64 `json:"event_id"`
	} `json:"ping_event"`
}

// DecodeServerMessage parses one provider message into the tagged union.
// Messages of unrecognized type decode as MessageTypeUnknown rather than
// erroring; they may still carry a conversation identifier.
func DecodeServerMessage(data []byte) (ServerMessage, error) {
	var raw rawServerMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return ServerMessage{}, fmt.Errorf("agent: bad server message: %w", err)
	}

	msg := ServerMessage{Raw: json.RawMessage(append([]byte(nil), data...))}

	switch raw.Type {
	case string(MessageTypeInitiationMetadata):
		msg.Type = MessageTypeInitiationMetadata
	case string(MessageTypeAudio):
		msg.Type = MessageTypeAudio
	case string(MessageTypeInterruption):
		msg.Type = MessageTypeInterruption
	case string(MessageTypePing):
		msg.Type = MessageTypePing
	case string(MessageTypeAgentResponse):
		msg.Type = MessageTypeAgentResponse
	case string(MessageTypeUserTranscript):
		msg.Type = MessageTypeUserTranscript
	default:
		msg.Type = MessageTypeUnknown
	}

	// Audio arrives either as audio_event.audio_base_64 or audio.chunk.
	if raw.AudioEvent != nil && raw.AudioEvent.AudioBase64 != "" {
		msg.AudioB64 = raw.AudioEvent.AudioBase64
	} else if raw.Audio != nil && raw.Audio.Chunk != "" {
		msg.AudioB64 = raw.Audio.Chunk
	}

	if raw.PingEvent != nil {
		msg.PingEventID = raw.PingEvent.EventID
	}

	if id, ok := FindConversationID(data); ok {
		msg.ConversationID = id
	}
	return msg, nil
}

// FindConversationID extracts the conversation identifier from a raw provider
// message. Known shapes are checked first:
//
//  1. conversation_initiation_metadata_event.conversation_id
//  2. conversation_id (top level)
//  3. metadata.conversation_id
//
// As a fallback the body is scanned recursively for any string field whose
// name contains both "conversation" and "id".
func FindConversationID(data []byte) (string, bool) {
	var body map[string]any
	if err := json.Unmarshal(data, &body); err != nil {
		return "", false
	}

	if ev, ok := body["conversation_initiation_metadata_event"].(map[string]any); ok {
		if id, ok := stringField(ev, "conversation_id"); ok {
			return id, true
		}
	}
	if id, ok := stringField(body, "conversation_id"); ok {
		return id, true
	}
	if md, ok := body["metadata"].(map[string]any); ok {
		if id, ok := stringField(md, "conversation_id"); ok {
			return id, true
		}
	}
	return scanForConversationID(body)
}

func stringField(m map[string]any, key string) (string, bool) {
	s, ok := m[key].(string)
	return s, ok && s != ""
}

func scanForConversationID(v any) (string, bool) {
	switch t := v.(type) {
	case map[string]any:
		for k, val := range t {
			lk := strings.ToLower(k)
			if strings.Contains(lk, "conversation") && strings.Contains(lk, "id") {
				if s, ok := val.(string); ok && s != "" {
					return s, true
				}
			}
		}
		for _, val := range t {
			if s, ok := scanForConversationID(val); ok {
				return s, true
			}
		}
	case []any:
		for _, val := range t {
			if s, ok := scanForConversationID(val); ok {
				return s, true
			}
		}
	}
	return "", false
}

// --- client -> server messages ---

// InitiationPayload is the single configuration handshake sent right after the
// session opens. Prompt and first-message templates are sent as-is; the
// provider substitutes {{placeholders}} from DynamicVariables.
type InitiationPayload struct {
	Type                       string            `json:"type"`
	ConversationConfigOverride ConfigOverride    `json:"conversation_config_override"`
	DynamicVariables           map[string]string `json:"dynamic_variables,omitempty"`
}

type ConfigOverride struct {
	Agent AgentOverride `json:"agent"`
	TTS   *TTSOverride  `json:"tts,omitempty"`
}

type AgentOverride struct {
	Prompt       PromptOverride `json:"prompt"`
	FirstMessage string         `json:"first_message,omitempty"`
}

type PromptOverride struct {
	Prompt string `json:"prompt"`
	// KnowledgeBase lists provider-side document ids the agent may draw on.
	KnowledgeBase []KnowledgeBaseRef `json:"knowledge_base,omitempty"`
}

type KnowledgeBaseRef struct {
	Type string `json:"type"`
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

type TTSOverride struct {
	VoiceID string `json:"voice_id"`
}

type userAudioChunk struct {
	UserAudioChunk string `json:"user_audio_chunk"`
}

type pongMessage struct {
	Type    string `json:"type"`
	EventID int64  `json:"event_id"`
}
