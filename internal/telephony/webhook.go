package telephony

import (
	"net/http"
	"strconv"
	"strings"

	"voicecampaign/internal/store"
)

// StatusCallbackForm captures the subset of status-webhook fields we care
// about. Twilio sends application/x-www-form-urlencoded by default.
type StatusCallbackForm struct {
	CallSid      string
	AccountSid   string
	CallStatus   string
	CallDuration string
	From         string
	To           string
}

func ParseStatusCallback(r *http.Request) (StatusCallbackForm, error) {
	if err := r.ParseForm(); err != nil {
		return StatusCallbackForm{}, err
	}
	return StatusCallbackForm{
		CallSid:      r.PostFormValue("CallSid"),
		AccountSid:   r.PostFormValue("AccountSid"),
		CallStatus:   r.PostFormValue("CallStatus"),
		CallDuration: r.PostFormValue("CallDuration"),
		From:         strings.TrimSpace(r.PostFormValue("From")),
		To:           strings.TrimSpace(r.PostFormValue("To")),
	}, nil
}

// Duration returns the reported call duration in seconds, or nil when absent.
func (f StatusCallbackForm) Duration() *int {
	v := strings.TrimSpace(f.CallDuration)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return nil
	}
	return &n
}

// MapCallStatus translates the provider's status vocabulary into ours.
// Unknown values map to the empty status; callers treat that as a
// leave-unchanged signal.
func MapCallStatus(providerStatus string) store.CallStatus {
	switch strings.ToLower(strings.TrimSpace(providerStatus)) {
	case "queued", "initiated":
		return store.CallStatusInitiated
	case "ringing":
		return store.CallStatusRinging
	case "in-progress", "answered":
		return store.CallStatusAnswered
	case "completed":
		return store.CallStatusCompleted
	case "busy":
		return store.CallStatusBusy
	case "no-answer":
		return store.CallStatusNoAnswer
	case "failed", "canceled":
		return store.CallStatusFailed
	default:
		return ""
	}
}
