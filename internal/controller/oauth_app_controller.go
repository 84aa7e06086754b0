package controller

import (
	"time"

	"github.com/steveiliop56/adhub/internal/service"
	"github.com/steveiliop56/adhub/internal/utils"
	"github.com/steveiliop56/adhub/internal/utils/tlog"

	"github.com/gin-gonic/gin"
)

type CreateOAuthAppRequest struct {
	Platform     string   `json:"platform" binding:"required"`
	ClientID     string   `json:"clientId" binding:"required"`
	ClientSecret *string  `json:"clientSecret"`
	Scopes       []string `json:"scopes"`
}

type UpdateOAuthAppRequest struct {
	ClientID     string   `json:"clientId" binding:"required"`
	ClientSecret *string  `json:"clientSecret"`
	Scopes       []string `json:"scopes"`
	IsActive     *bool    `json:"isActive"`
}

type OAuthAppIDRequest struct {
	ID string `uri:"id" binding:"required"`
}

// OAuthAppResponse is the external view of an app, the secret is always masked.
type OAuthAppResponse struct {
	ID           string    `json:"id"`
	Platform     string    `json:"platform"`
	ClientID     string    `json:"clientId"`
	ClientSecret string    `json:"clientSecret"`
	HasSecret    bool      `json:"hasSecret"`
	RedirectURI  string    `json:"redirectUri"`
	Scopes       []string  `json:"scopes"`
	IsActive     bool      `json:"isActive"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

type OAuthAppController struct {
	router *gin.RouterGroup
	apps   *service.OAuthAppService
}

func NewOAuthAppController(router *gin.RouterGroup, apps *service.OAuthAppService) *OAuthAppController {
	return &OAuthAppController{
		router: router,
		apps:   apps,
	}
}

func (controller *OAuthAppController) SetupRoutes() {
	appsGroup := controller.router.Group("/oauth-apps")
	appsGroup.GET("", controller.listHandler)
	appsGroup.POST("", controller.createHandler)
	appsGroup.PUT("/:id", controller.updateHandler)
	appsGroup.DELETE("/:id", controller.deleteHandler)
}

func (controller *OAuthAppController) listHandler(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}

	apps, err := controller.apps.List(c.Request.Context(), user.UserID)
	if err != nil {
		respondError(c, err)
		return
	}

	items := make([]OAuthAppResponse, 0, len(apps))
	for _, app := range apps {
		items = append(items, toOAuthAppResponse(app))
	}

	c.JSON(200, gin.H{
		"status":  200,
		"message": "OK",
		"apps":    items,
	})
}

func (controller *OAuthAppController) createHandler(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}

	var req CreateOAuthAppRequest

	err := c.ShouldBindJSON(&req)
	if err != nil {
		tlog.App.Debug().Err(err).Msg("Failed to bind create oauth app request")
		respond(c, 400, "Bad Request")
		return
	}

	app, err := controller.apps.Create(c.Request.Context(), user.UserID, service.CreateOAuthAppParams{
		Platform:     req.Platform,
		ClientID:     req.ClientID,
		ClientSecret: req.ClientSecret,
		Scopes:       req.Scopes,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(201, gin.H{
		"status":  201,
		"message": "Created",
		"app":     toOAuthAppResponse(app),
	})
}

func (controller *OAuthAppController) updateHandler(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}

	var uri OAuthAppIDRequest
	var req UpdateOAuthAppRequest

	if err := c.ShouldBindUri(&uri); err != nil {
		respond(c, 400, "Bad Request")
		return
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		tlog.App.Debug().Err(err).Msg("Failed to bind update oauth app request")
		respond(c, 400, "Bad Request")
		return
	}

	app, err := controller.apps.Update(c.Request.Context(), user.UserID, uri.ID, service.UpdateOAuthAppParams{
		ClientID:     req.ClientID,
		ClientSecret: req.ClientSecret,
		Scopes:       req.Scopes,
		IsActive:     req.IsActive,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(200, gin.H{
		"status":  200,
		"message": "OK",
		"app":     toOAuthAppResponse(app),
	})
}

func (controller *OAuthAppController) deleteHandler(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}

	var uri OAuthAppIDRequest

	if err := c.ShouldBindUri(&uri); err != nil {
		respond(c, 400, "Bad Request")
		return
	}

	if err := controller.apps.Delete(c.Request.Context(), user.UserID, uri.ID); err != nil {
		respondError(c, err)
		return
	}

	respond(c, 200, "Deleted")
}

func toOAuthAppResponse(app service.DecryptedOAuthApp) OAuthAppResponse {
	res := OAuthAppResponse{
		ID:          app.ID,
		Platform:    app.Platform,
		ClientID:    app.ClientID,
		HasSecret:   app.PlainSecret != nil,
		RedirectURI: app.RedirectURI,
		Scopes:      app.Scopes,
		IsActive:    app.IsActive,
		CreatedAt:   app.CreatedAt,
		UpdatedAt:   app.UpdatedAt,
	}
	if app.PlainSecret != nil {
		res.ClientSecret = utils.MaskSecret(*app.PlainSecret)
	}
	return res
}
