package main

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"voicecampaign/internal/httpapi"
	"voicecampaign/internal/rbac"
)

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers should delegate to internal modules.
func registerRoutes(r *gin.Engine, h httpapi.Handlers, authMW gin.HandlerFunc) {
	// public
	r.GET("/healthz", h.Healthz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Provider callbacks (public).
	// NOTE: These endpoints should be protected by provider signature
	// validation in production.
	r.POST("/webhooks/telephony/status", h.TelephonyStatusWebhook)
	r.GET("/ws/telephony/media/:campaign_id", h.MediaStream)

	// token issuance
	r.POST("/v1/auth/login", h.Login)

	// protected API group
	v1 := r.Group("/v1")
	v1.Use(authMW)
	{
		campaigns := v1.Group("/campaigns")
		{
			campaigns.POST("/:campaign_id/run", rbac.RequireAnyRole(rbac.RoleOperator), h.RunCampaign)
			campaigns.GET("/:campaign_id/summary", rbac.RequireAnyRole(rbac.RoleOperator, rbac.RoleViewer), h.CampaignSummary)
			campaigns.GET("/:campaign_id/calls", rbac.RequireAnyRole(rbac.RoleOperator, rbac.RoleViewer), h.CampaignCalls)
		}

		calls := v1.Group("/calls")
		calls.Use(rbac.RequireAnyRole(rbac.RoleOperator))
		{
			calls.POST("/test", h.StartTestCall)
		}
	}
}
