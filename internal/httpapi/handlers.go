// Package httpapi holds the HTTP surface of the dashboard. Handlers stay
// thin: parse/validate input, call internal services, return JSON. Anything
// the telephony provider calls back into (webhooks, media streams) lives
// here too, on unauthenticated routes.
package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"voicecampaign/internal/audit"
	"voicecampaign/internal/auth"
	"voicecampaign/internal/bridge"
	"voicecampaign/internal/campaign"
	"voicecampaign/internal/reconcile"
	"voicecampaign/internal/stats"
	"voicecampaign/internal/store"
	"voicecampaign/internal/telephony"
)

// Handlers groups HTTP handlers for dependency injection.
type Handlers struct {
	Auth       *auth.Manager
	Runner     *campaign.Runner
	Stats      *stats.Service
	Reconciler *reconcile.Reconciler
	Bridge     *bridge.Manager
	Audit      *audit.Service
	Log        *slog.Logger

	// Upgrader is shared across media-stream connects.
	Upgrader websocket.Upgrader
}

func (h Handlers) log() *slog.Logger {
	if h.Log != nil {
		return h.Log
	}
	return slog.Default()
}

// --- Auth ---

type loginRequest struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
}

// Login issues a JWT token pair.
//
// NOTE: This is a skeleton-only endpoint. Real systems must validate credentials.
func (h Handlers) Login(c *gin.Context) {
	if h.Auth == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "auth not configured"})
		return
	}
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.UserID == "" || req.Role == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "user_id, role required"})
		return
	}
	pair, err := h.Auth.IssuePair(time.Now(), req.UserID, req.Role)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "token issuance failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"access_token": pair.AccessToken, "refresh_token": pair.RefreshToken})
}

// --- Campaigns ---

// RunCampaign starts a campaign run in the background and returns
// immediately; a run already in progress for the campaign makes the new
// request a no-op, which is still accepted.
func (h Handlers) RunCampaign(c *gin.Context) {
	campaignID := c.Param("campaign_id")
	if campaignID == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "campaign_id required"})
		return
	}
	h.audit(c, func(ctx context.Context, userID, role string) error {
		return h.Audit.LogCampaignRun(ctx, userID, role, c.ClientIP(), campaignID)
	})
	go func() {
		// Detached from the request: the run outlives this HTTP exchange.
		if err := h.Runner.RunCampaign(context.Background(), campaignID); err != nil {
			h.log().Error("campaign run failed", "campaign_id", campaignID, "err", err)
		}
	}()
	c.JSON(http.StatusAccepted, gin.H{"status": "accepted", "campaign_id": campaignID})
}

func (h Handlers) CampaignSummary(c *gin.Context) {
	campaignID := c.Param("campaign_id")
	sum, err := h.Stats.CampaignSummary(c.Request.Context(), campaignID)
	if err != nil {
		status := http.StatusInternalServerError
		if isNotFound(err) {
			status = http.StatusNotFound
		}
		c.AbortWithStatusJSON(status, gin.H{"error": "summary lookup failed"})
		return
	}
	c.JSON(http.StatusOK, sum)
}

func (h Handlers) CampaignCalls(c *gin.Context) {
	campaignID := c.Param("campaign_id")
	history, err := h.Stats.CallHistory(c.Request.Context(), campaignID)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "call history lookup failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"calls": history})
}

// --- Test calls ---

type testCallRequest struct {
	CampaignID  string `json:"campaign_id"`
	PhoneNumber string `json:"phone_number"`
	FirstName   string `json:"first_name"`
}

// StartTestCall dials one ad-hoc number with a campaign's agent setup. The
// dial itself is synchronous (it is one provider API call); call progress
// arrives later via webhooks.
func (h Handlers) StartTestCall(c *gin.Context) {
	var req testCallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.CampaignID == "" || req.PhoneNumber == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "campaign_id, phone_number required"})
		return
	}
	h.audit(c, func(ctx context.Context, userID, role string) error {
		return h.Audit.LogTestCall(ctx, userID, role, c.ClientIP(), req.CampaignID, req.PhoneNumber)
	})
	sid, err := h.Runner.StartTestCall(c.Request.Context(), req.CampaignID, req.PhoneNumber, req.FirstName)
	if err != nil {
		h.log().Error("test call failed", "campaign_id", req.CampaignID, "err", err)
		status := http.StatusBadGateway
		if isNotFound(err) {
			status = http.StatusNotFound
		}
		c.AbortWithStatusJSON(status, gin.H{"error": "test call failed"})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "accepted", "provider_call_id": sid})
}

// --- Provider callbacks ---

// TelephonyStatusWebhook ingests call-status callbacks.
//
// It always answers 200 for parseable requests: the provider retries
// non-2xx responses, and a redelivered event is already harmless to us.
// NOTE: protect with provider signature validation in production.
func (h Handlers) TelephonyStatusWebhook(c *gin.Context) {
	form, err := telephony.ParseStatusCallback(c.Request)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid form"})
		return
	}
	ev := reconcile.StatusEvent{
		ProviderCallID:  form.CallSid,
		Status:          telephony.MapCallStatus(form.CallStatus),
		DurationSeconds: form.Duration(),
	}
	if err := h.Reconciler.ApplyStatusEvent(c.Request.Context(), ev); err != nil {
		// Swallowed on purpose; our storage hiccup is not the provider's
		// problem and a 5xx would trigger redelivery storms.
		h.log().Error("status webhook apply failed", "provider_call_id", form.CallSid, "err", err)
	}
	c.Status(http.StatusOK)
}

// MediaStream accepts the provider's media-stream websocket and hands it to
// the bridge. The call blocks until the stream ends.
func (h Handlers) MediaStream(c *gin.Context) {
	campaignID := c.Param("campaign_id")
	if campaignID == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "campaign_id required"})
		return
	}
	conn, err := h.Upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		h.log().Warn("media stream upgrade failed", "campaign_id", campaignID, "err", err)
		return
	}
	h.Bridge.HandleMediaStream(c.Request.Context(), campaignID, conn)
}

// --- Health ---

func (h Handlers) Healthz(c *gin.Context) {
	resp := gin.H{"status": "ok"}
	if h.Bridge != nil {
		resp["active_media_streams"] = h.Bridge.ActiveSessions()
	}
	c.JSON(http.StatusOK, resp)
}

// audit records an operator action best-effort; a failed audit write never
// blocks the action itself.
func (h Handlers) audit(c *gin.Context, fn func(ctx context.Context, userID, role string) error) {
	if h.Audit == nil {
		return
	}
	userID, _ := auth.UserID(c.Request.Context())
	role, _ := auth.Role(c.Request.Context())
	if err := fn(c.Request.Context(), userID, role); err != nil {
		h.log().Warn("audit write failed", "err", err)
	}
}

func isNotFound(err error) bool {
	return errors.Is(err, store.ErrNotFound)
}
