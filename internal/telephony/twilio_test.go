package telephony

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"voicecampaign/internal/config"
)

func testDialerConfig(baseURL string) config.TelephonyConfig {
	return config.TelephonyConfig{
		AccountSID: "AC123",
		AuthToken:  "secret",
		FromNumber: "+15550000000",
		APIBaseURL: baseURL,
	}
}

func TestTwilioDialer_Dial(t *testing.T) {
	var gotForm map[string][]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/2010-04-01/Accounts/AC123/Calls.json" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		user, pass, ok := r.BasicAuth()
		if !ok || user != "AC123" || pass != "secret" {
			t.Errorf("bad basic auth: %q %q", user, pass)
		}
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		gotForm = r.PostForm
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"sid":"CA999","status":"queued"}`))
	}))
	defer srv.Close()

	d := NewTwilioDialer(testDialerConfig(srv.URL))
	res, err := d.Dial(context.Background(), DialRequest{
		To:                "+15551234567",
		StreamURL:         "wss://example.test/ws/telephony/media/camp-1",
		StatusCallbackURL: "https://example.test/webhooks/telephony/status",
	})
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	if res.ProviderCallID != "CA999" {
		t.Fatalf("got call sid %q, want CA999", res.ProviderCallID)
	}
	if got := gotForm["To"]; len(got) != 1 || got[0] != "+15551234567" {
		t.Fatalf("unexpected To: %v", got)
	}
	if got := gotForm["Twiml"]; len(got) != 1 || !strings.Contains(got[0], "wss://example.test/ws/telephony/media/camp-1") {
		t.Fatalf("twiml does not carry stream url: %v", got)
	}
	if got := gotForm["StatusCallback"]; len(got) != 1 || got[0] != "https://example.test/webhooks/telephony/status" {
		t.Fatalf("unexpected StatusCallback: %v", got)
	}
	if got := gotForm["StatusCallbackEvent"]; len(got) != 4 {
		t.Fatalf("expected 4 status callback events, got %v", got)
	}
}

func TestTwilioDialer_DialRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"code":21211,"message":"invalid to number"}`))
	}))
	defer srv.Close()

	d := NewTwilioDialer(testDialerConfig(srv.URL))
	_, err := d.Dial(context.Background(), DialRequest{To: "+1bad", StreamURL: "wss://x/ws"})
	if err == nil {
		t.Fatalf("expected error for 400 response")
	}
}

func TestRenderStreamTwiML(t *testing.T) {
	out, err := RenderStreamTwiML("wss://example.test/ws/telephony/media/c1")
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(out, `<Connect>`) || !strings.Contains(out, `<Stream url="wss://example.test/ws/telephony/media/c1">`) {
		t.Fatalf("unexpected twiml: %s", out)
	}
	if _, err := RenderStreamTwiML(" "); err == nil {
		t.Fatalf("expected error for empty stream url")
	}
}
