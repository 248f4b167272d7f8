package agent

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"voicecampaign/internal/config"
)

func TestClient_GetSignedURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/convai/conversation/get-signed-url" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if r.URL.Query().Get("agent_id") != "agent-1" {
			t.Errorf("unexpected agent_id %q", r.URL.Query().Get("agent_id"))
		}
		if r.Header.Get("xi-api-key") != "key-1" {
			t.Errorf("missing api key header")
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"signed_url":"wss://agent.example/session?token=abc"}`))
	}))
	defer srv.Close()

	c := NewClient(config.AgentConfig{APIKey: "key-1", APIBaseURL: srv.URL})
	got, err := c.GetSignedURL(context.Background(), "agent-1")
	if err != nil {
		t.Fatalf("get signed url: %v", err)
	}
	if got != "wss://agent.example/session?token=abc" {
		t.Fatalf("got %q", got)
	}
}

func TestClient_GetSignedURL_NonSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewClient(config.AgentConfig{APIKey: "bad", APIBaseURL: srv.URL})
	if _, err := c.GetSignedURL(context.Background(), "agent-1"); err == nil {
		t.Fatalf("expected error for 401 response")
	}
}

func TestClient_GetSignedURL_MissingKey(t *testing.T) {
	c := NewClient(config.AgentConfig{})
	if _, err := c.GetSignedURL(context.Background(), "agent-1"); err != ErrCredentialsMissing {
		t.Fatalf("expected ErrCredentialsMissing, got %v", err)
	}
}
