package agent

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"voicecampaign/internal/config"
	"voicecampaign/internal/store"
)

// fakeAgentServer serves the signed-url negotiation and accepts one websocket
// session, capturing the first message it receives.
type fakeAgentServer struct {
	srv      *httptest.Server
	received chan []byte
}

func newFakeAgentServer(t *testing.T) *fakeAgentServer {
	t.Helper()
	f := &fakeAgentServer{received: make(chan []byte, 1)}
	upgrader := websocket.Upgrader{}

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/convai/conversation/get-signed-url", func(w http.ResponseWriter, r *http.Request) {
		signed := "ws" + strings.TrimPrefix(f.srv.URL, "http") + "/session"
		json.NewEncoder(w).Encode(map[string]string{"signed_url": signed})
	})
	mux.HandleFunc("/session", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		f.received <- data
	})

	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

func seededStore() *store.Memory {
	st := store.NewMemory()
	st.Campaigns["camp"] = store.Campaign{
		ID:           "camp",
		AgentID:      "agent-1",
		VoiceID:      "voice-1",
		SystemPrompt: "You are a friendly caller for {{company}}.",
		FirstMessage: "Hi {{first_name}}, do you have a minute?",
		Status:       store.CampaignStatusActive,
	}
	st.KBDocs["camp"] = []store.KnowledgeBaseDoc{
		{ID: "kb1", CampaignID: "camp", Name: "pricing", DocumentID: "doc-123"},
	}
	return st
}

func TestInitiator_SendsUnsubstitutedTemplatesAndDynamicVars(t *testing.T) {
	f := newFakeAgentServer(t)
	st := seededStore()

	client := NewClient(config.AgentConfig{APIKey: "k", APIBaseURL: f.srv.URL})
	init := NewInitiator(client, st, nil)

	sess, err := init.Open(context.Background(), OpenParams{
		CampaignID:     "camp",
		StreamID:       "MZ1",
		ProviderCallID: "CA1",
		FirstName:      "Amy",
	})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer sess.Close()

	var got InitiationPayload
	select {
	case data := <-f.received:
		if err := json.Unmarshal(data, &got); err != nil {
			t.Fatalf("decode handshake: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("handshake not received")
	}

	if got.Type != "conversation_initiation_client_data" {
		t.Fatalf("unexpected type %q", got.Type)
	}
	if got.DynamicVariables["first_name"] != "Amy" {
		t.Fatalf("dynamic variables: %+v", got.DynamicVariables)
	}
	// Substitution is the provider's job: template must arrive untouched.
	if got.ConversationConfigOverride.Agent.FirstMessage != "Hi {{first_name}}, do you have a minute?" {
		t.Fatalf("first message was pre-substituted: %q", got.ConversationConfigOverride.Agent.FirstMessage)
	}
	kb := got.ConversationConfigOverride.Agent.Prompt.KnowledgeBase
	if len(kb) != 1 || kb[0].ID != "doc-123" {
		t.Fatalf("knowledge base refs: %+v", kb)
	}
	if got.ConversationConfigOverride.TTS == nil || got.ConversationConfigOverride.TTS.VoiceID != "voice-1" {
		t.Fatalf("voice override: %+v", got.ConversationConfigOverride.TTS)
	}
}

func TestInitiator_SignedURLFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	st := seededStore()
	client := NewClient(config.AgentConfig{APIKey: "k", APIBaseURL: srv.URL})
	init := NewInitiator(client, st, nil)

	if _, err := init.Open(context.Background(), OpenParams{CampaignID: "camp", FirstName: "Amy"}); err == nil {
		t.Fatalf("expected error when credential negotiation fails")
	}
}

func TestInitiator_UnknownCampaign(t *testing.T) {
	f := newFakeAgentServer(t)
	client := NewClient(config.AgentConfig{APIKey: "k", APIBaseURL: f.srv.URL})
	init := NewInitiator(client, store.NewMemory(), nil)

	if _, err := init.Open(context.Background(), OpenParams{CampaignID: "nope"}); err == nil {
		t.Fatalf("expected error for unknown campaign")
	}
}
