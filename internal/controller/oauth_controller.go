package controller

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/steveiliop56/adhub/internal/config"
	"github.com/steveiliop56/adhub/internal/service"
	"github.com/steveiliop56/adhub/internal/utils/tlog"

	"github.com/gin-gonic/gin"
	"github.com/google/go-querystring/query"
)

type PlatformRequest struct {
	Platform string `uri:"platform" binding:"required"`
}

type OAuthCallbackRequest struct {
	Code             string `form:"code"`
	State            string `form:"state"`
	Error            string `form:"error"`
	ErrorDescription string `form:"error_description"`
}

type OAuthControllerConfig struct {
	AppURL string
}

type OAuthController struct {
	config OAuthControllerConfig
	router *gin.RouterGroup
	auth   *service.AuthorizationService
	tokens *service.TokenLifecycleService
}

func NewOAuthController(config OAuthControllerConfig, router *gin.RouterGroup, auth *service.AuthorizationService, tokens *service.TokenLifecycleService) *OAuthController {
	return &OAuthController{
		config: config,
		router: router,
		auth:   auth,
		tokens: tokens,
	}
}

func (controller *OAuthController) SetupRoutes() {
	oauthGroup := controller.router.Group("/oauth")
	oauthGroup.GET("/url/:platform", controller.oauthURLHandler)
	oauthGroup.GET("/callback", controller.oauthCallbackHandler)
}

func (controller *OAuthController) oauthURLHandler(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}

	var req PlatformRequest

	if err := c.ShouldBindUri(&req); err != nil {
		respond(c, 400, "Bad Request")
		return
	}

	authURL, err := controller.auth.BuildAuthorizationURL(c.Request.Context(), user.UserID, strings.ToLower(req.Platform))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(200, gin.H{
		"status":  200,
		"message": "OK",
		"url":     authURL,
	})
}

func (controller *OAuthController) oauthCallbackHandler(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}

	var req OAuthCallbackRequest

	if err := c.ShouldBindQuery(&req); err != nil {
		controller.redirectResult(c, config.ConnectResultQuery{Error: "invalid_request"})
		return
	}

	if req.Error != "" {
		tlog.App.Warn().Str("error", req.Error).Str("description", req.ErrorDescription).Msg("Platform denied the authorization")
		tlog.AuditConnectFailure(user.UserID, "", req.Error)
		controller.redirectResult(c, config.ConnectResultQuery{Error: req.Error})
		return
	}

	if req.Code == "" || req.State == "" {
		controller.redirectResult(c, config.ConnectResultQuery{Error: "invalid_request"})
		return
	}

	integration, err := controller.tokens.CompleteAuthorization(c.Request.Context(), user.UserID, req.Code, req.State)
	if err != nil {
		reason := "connection_failed"
		var exchangeErr *service.ExchangeError
		switch {
		case errors.Is(err, service.ErrInvalidState):
			reason = "invalid_state"
		case errors.Is(err, service.ErrNotConfigured):
			reason = "not_configured"
		case errors.As(err, &exchangeErr):
			reason = "exchange_failed"
		}
		tlog.App.Error().Err(err).Str("platform", integration.Platform).Msg("Failed to complete authorization")
		tlog.AuditConnectFailure(user.UserID, integration.Platform, reason)
		controller.redirectResult(c, config.ConnectResultQuery{Error: reason, Platform: integration.Platform})
		return
	}

	controller.redirectResult(c, config.ConnectResultQuery{Connected: integration.Platform})
}

func (controller *OAuthController) redirectResult(c *gin.Context, result config.ConnectResultQuery) {
	target := fmt.Sprintf("%s/integrations", strings.TrimSuffix(controller.config.AppURL, "/"))

	values, err := query.Values(result)
	if err != nil {
		tlog.App.Error().Err(err).Msg("Failed to encode redirect query")
		c.Redirect(http.StatusTemporaryRedirect, target)
		return
	}

	if encoded := values.Encode(); encoded != "" {
		target += "?" + encoded
	}

	c.Redirect(http.StatusTemporaryRedirect, target)
}
