// Package metrics exposes the process's Prometheus collectors. Collectors are
// package-level and registered on the default registry; the /metrics endpoint
// serves them via promhttp.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// BridgeSessionsActive tracks calls currently relayed by a bridge.
	BridgeSessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "voicecampaign",
		Name:      "bridge_sessions_active",
		Help:      "Number of media streams currently bridged to an agent session.",
	})

	// CallsDialed counts dial attempts by outcome ("ok" or "error").
	CallsDialed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "voicecampaign",
		Name:      "calls_dialed_total",
		Help:      "Outbound dial attempts.",
	}, []string{"outcome"})

	// WebhookEvents counts telephony status webhooks by mapped status;
	// unknown statuses are labeled "unknown".
	WebhookEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "voicecampaign",
		Name:      "webhook_events_total",
		Help:      "Telephony status webhook deliveries received.",
	}, []string{"status"})

	// AgentSessionFailures counts agent legs that failed to open.
	AgentSessionFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "voicecampaign",
		Name:      "agent_session_failures_total",
		Help:      "Agent session negotiations that did not produce a session.",
	})

	// CampaignRuns counts campaign driver runs by terminal outcome
	// ("completed" or "failed").
	CampaignRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "voicecampaign",
		Name:      "campaign_runs_total",
		Help:      "Campaign driver runs that reached a terminal state.",
	}, []string{"outcome"})
)
