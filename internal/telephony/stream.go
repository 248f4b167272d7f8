package telephony

import (
	"encoding/json"
	"fmt"
)

// Media-stream frame codec. The provider opens a websocket to us after the
// callee answers and exchanges JSON frames carrying control events and
// base64-encoded audio.

type StreamEvent string

const (
	StreamEventConnected StreamEvent = "connected"
	StreamEventStart     StreamEvent = "start"
	StreamEventMedia     StreamEvent = "media"
	StreamEventStop      StreamEvent = "stop"
	StreamEventMark      StreamEvent = "mark"
	StreamEventClear     StreamEvent = "clear"
)

// StreamFrame is one inbound frame from the provider's media stream.
type StreamFrame struct {
	Event     StreamEvent `json:"event"`
	StreamSid string      `json:"streamSid,omitempty"`

	Start *StreamStart `json:"start,omitempty"`
	Media *StreamMedia `json:"media,omitempty"`
	Stop  *StreamStop  `json:"stop,omitempty"`
}

type StreamStart struct {
	StreamSid        string            `json:"streamSid"`
	AccountSid       string            `json:"accountSid,omitempty"`
	CallSid          string            `json:"callSid"`
	Tracks           []string          `json:"tracks,omitempty"`
	CustomParameters map[string]string `json:"customParameters,omitempty"`
}

type StreamMedia struct {
	Track     string `json:"track,omitempty"`
	Chunk     string `json:"chunk,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	// Payload is base64-encoded audio (mu-law 8kHz for phone calls).
	Payload string `json:"payload"`
}

type StreamStop struct {
	AccountSid string `json:"accountSid,omitempty"`
	CallSid    string `json:"callSid,omitempty"`
}

// ParseStreamFrame decodes one provider frame. Unknown events are returned
// as-is; callers decide whether to ignore them.
func ParseStreamFrame(data []byte) (StreamFrame, error) {
	var f StreamFrame
	if err := json.Unmarshal(data, &f); err != nil {
		return StreamFrame{}, fmt.Errorf("telephony: bad stream frame: %w", err)
	}
	if f.Event == "" {
		return StreamFrame{}, fmt.Errorf("telephony: stream frame missing event")
	}
	return f, nil
}

type outboundMediaFrame struct {
	Event     StreamEvent `json:"event"`
	StreamSid string      `json:"streamSid"`
	Media     struct {
		Payload string `json:"payload"`
	} `json:"media"`
}

// EncodeMediaFrame wraps a base64 audio payload for playback on the given
// stream.
func EncodeMediaFrame(streamSid, payloadB64 string) ([]byte, error) {
	if streamSid == "" {
		return nil, fmt.Errorf("telephony: streamSid required")
	}
	f := outboundMediaFrame{Event: StreamEventMedia, StreamSid: streamSid}
	f.Media.Payload = payloadB64
	return json.Marshal(f)
}

type outboundClearFrame struct {
	Event     StreamEvent `json:"event"`
	StreamSid string      `json:"streamSid"`
}

// EncodeClearFrame tells the provider to drop any buffered outbound audio for
// the stream. Sent on agent barge-in so stale playback stops immediately.
func EncodeClearFrame(streamSid string) ([]byte, error) {
	if streamSid == "" {
		return nil, fmt.Errorf("telephony: streamSid required")
	}
	return json.Marshal(outboundClearFrame{Event: StreamEventClear, StreamSid: streamSid})
}
