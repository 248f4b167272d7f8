package agent

import "testing"

func TestDecodeServerMessage_AudioShapes(t *testing.T) {
	m, err := DecodeServerMessage([]byte(`{"type":"audio","audio_event":{"audio_base_64":"QUJD"}}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if m.Type != MessageTypeAudio || m.AudioB64 != "QUJD" {
		t.Fatalf("unexpected message: %+v", m)
	}

	m, err = DecodeServerMessage([]byte(`{"type":"audio","audio":{"chunk":"REVG"}}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if m.AudioB64 != "REVG" {
		t.Fatalf("alternate audio shape not decoded: %+v", m)
	}
}

func TestDecodeServerMessage_Ping(t *testing.T) {
	m, err := DecodeServerMessage([]byte(`{"type":"ping","ping_event":{"event_id":42}}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if m.Type != MessageTypePing || m.PingEventID != 42 {
		t.Fatalf("unexpected ping: %+v", m)
	}
}

func TestDecodeServerMessage_UnknownTypeStillDecodes(t *testing.T) {
	m, err := DecodeServerMessage([]byte(`{"type":"something_new","conversation_id":"conv1"}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if m.Type != MessageTypeUnknown {
		t.Fatalf("expected unknown type, got %q", m.Type)
	}
	if m.ConversationID != "conv1" {
		t.Fatalf("conversation id not captured: %+v", m)
	}
}

func TestFindConversationID_KnownShapes(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want string
	}{
		{
			"initiation metadata event",
			`{"type":"conversation_initiation_metadata","conversation_initiation_metadata_event":{"conversation_id":"conv-a","agent_output_audio_format":"ulaw_8000"}}`,
			"conv-a",
		},
		{
			"top level",
			`{"type":"agent_response","conversation_id":"conv-b"}`,
			"conv-b",
		},
		{
			"metadata object",
			`{"type":"agent_response","metadata":{"conversation_id":"conv-c"}}`,
			"conv-c",
		},
		{
			"fallback recursive scan",
			`{"type":"whatever","payload":{"inner":{"convAI_conversation_identifier":"conv-d"}}}`,
			"conv-d",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := FindConversationID([]byte(tc.raw))
			if !ok || got != tc.want {
				t.Fatalf("got (%q, %v), want (%q, true)", got, ok, tc.want)
			}
		})
	}
}

func TestFindConversationID_NotFound(t *testing.T) {
	if id, ok := FindConversationID([]byte(`{"type":"audio","audio_event":{"audio_base_64":"x"}}`)); ok {
		t.Fatalf("unexpected conversation id %q", id)
	}
}
