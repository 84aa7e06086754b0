package controller

import (
	"strings"
	"time"

	"github.com/steveiliop56/adhub/internal/model"
	"github.com/steveiliop56/adhub/internal/service"
	"github.com/steveiliop56/adhub/internal/utils/tlog"

	"github.com/gin-gonic/gin"
)

type DisconnectRequest struct {
	Revoke bool `form:"revoke"`
}

type CredentialsRequest struct {
	APIKey     string `json:"apiKey"`
	APISecret  string `json:"apiSecret"`
	AccountID  string `json:"accountId"`
	ShopDomain string `json:"shopDomain"`
}

// IntegrationResponse never includes tokens.
type IntegrationResponse struct {
	ID         string           `json:"id"`
	Platform   string           `json:"platform"`
	IsActive   bool             `json:"isActive"`
	ExpiresAt  *time.Time       `json:"expiresAt"`
	HasRefresh bool             `json:"hasRefreshToken"`
	Audit      model.AuditTrail `json:"audit"`
	CreatedAt  time.Time        `json:"createdAt"`
	UpdatedAt  time.Time        `json:"updatedAt"`
}

type IntegrationController struct {
	router *gin.RouterGroup
	status *service.IntegrationStatusService
	tokens *service.TokenLifecycleService
}

func NewIntegrationController(router *gin.RouterGroup, status *service.IntegrationStatusService, tokens *service.TokenLifecycleService) *IntegrationController {
	return &IntegrationController{
		router: router,
		status: status,
		tokens: tokens,
	}
}

func (controller *IntegrationController) SetupRoutes() {
	integrationsGroup := controller.router.Group("/integrations")
	integrationsGroup.GET("/status", controller.statusHandler)
	integrationsGroup.POST("/:platform/disconnect", controller.disconnectHandler)
	integrationsGroup.POST("/:platform/reconnect", controller.reconnectHandler)
	integrationsGroup.POST("/:platform/refresh", controller.refreshHandler)
	integrationsGroup.POST("/:platform/credentials", controller.credentialsHandler)
}

func (controller *IntegrationController) statusHandler(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}

	statuses, err := controller.status.GetStatus(c.Request.Context(), user.UserID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(200, gin.H{
		"status":    200,
		"message":   "OK",
		"platforms": statuses,
	})
}

func (controller *IntegrationController) disconnectHandler(c *gin.Context) {
	user, platform, ok := controller.bindPlatform(c)
	if !ok {
		return
	}

	var req DisconnectRequest

	if err := c.ShouldBindQuery(&req); err != nil {
		respond(c, 400, "Bad Request")
		return
	}

	integration, err := controller.tokens.Disconnect(c.Request.Context(), user, platform, req.Revoke)
	if err != nil {
		respondError(c, err)
		return
	}

	controller.respondIntegration(c, integration)
}

func (controller *IntegrationController) reconnectHandler(c *gin.Context) {
	user, platform, ok := controller.bindPlatform(c)
	if !ok {
		return
	}

	integration, err := controller.tokens.Reconnect(c.Request.Context(), user, platform)
	if err != nil {
		respondError(c, err)
		return
	}

	controller.respondIntegration(c, integration)
}

func (controller *IntegrationController) refreshHandler(c *gin.Context) {
	user, platform, ok := controller.bindPlatform(c)
	if !ok {
		return
	}

	integration, err := controller.tokens.Refresh(c.Request.Context(), user, platform)
	if err != nil {
		respondError(c, err)
		return
	}

	controller.respondIntegration(c, integration)
}

func (controller *IntegrationController) credentialsHandler(c *gin.Context) {
	user, platform, ok := controller.bindPlatform(c)
	if !ok {
		return
	}

	var req CredentialsRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		tlog.App.Debug().Err(err).Msg("Failed to bind credentials request")
		respond(c, 400, "Bad Request")
		return
	}

	integration, err := controller.tokens.ConfigureCredentials(c.Request.Context(), user, platform, model.CredentialBundle{
		APIKey:     strings.TrimSpace(req.APIKey),
		APISecret:  strings.TrimSpace(req.APISecret),
		AccountID:  strings.TrimSpace(req.AccountID),
		ShopDomain: strings.TrimSpace(req.ShopDomain),
	})
	if err != nil {
		respondError(c, err)
		return
	}

	controller.respondIntegration(c, integration)
}

func (controller *IntegrationController) bindPlatform(c *gin.Context) (string, string, bool) {
	user, ok := requireUser(c)
	if !ok {
		return "", "", false
	}

	var req PlatformRequest

	if err := c.ShouldBindUri(&req); err != nil {
		respond(c, 400, "Bad Request")
		return "", "", false
	}

	return user.UserID, strings.ToLower(req.Platform), true
}

func (controller *IntegrationController) respondIntegration(c *gin.Context, integration model.Integration) {
	c.JSON(200, gin.H{
		"status":  200,
		"message": "OK",
		"integration": IntegrationResponse{
			ID:         integration.ID,
			Platform:   integration.Platform,
			IsActive:   integration.IsActive,
			ExpiresAt:  integration.ExpiresAt,
			HasRefresh: integration.RefreshToken != nil,
			Audit:      integration.Metadata.Audit,
			CreatedAt:  integration.CreatedAt,
			UpdatedAt:  integration.UpdatedAt,
		},
	})
}
