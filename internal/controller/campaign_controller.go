package controller

import (
	"github.com/steveiliop56/adhub/internal/service"
	"github.com/steveiliop56/adhub/internal/utils"

	"github.com/gin-gonic/gin"
)

type CampaignsRequest struct {
	Platforms string `form:"platforms"`
}

type CampaignController struct {
	router    *gin.RouterGroup
	campaigns *service.CampaignService
}

func NewCampaignController(router *gin.RouterGroup, campaigns *service.CampaignService) *CampaignController {
	return &CampaignController{
		router:    router,
		campaigns: campaigns,
	}
}

func (controller *CampaignController) SetupRoutes() {
	campaignsGroup := controller.router.Group("/campaigns")
	campaignsGroup.GET("", controller.campaignsHandler)
	campaignsGroup.POST("/sync", controller.syncHandler)
}

func (controller *CampaignController) campaignsHandler(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}

	var req CampaignsRequest

	if err := c.ShouldBindQuery(&req); err != nil {
		respond(c, 400, "Bad Request")
		return
	}

	overview, err := controller.campaigns.FetchAll(c.Request.Context(), user.UserID, utils.SplitList(req.Platforms))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(200, gin.H{
		"status":          200,
		"message":         "OK",
		"campaigns":       overview.Campaigns,
		"totals":          overview.Totals,
		"monthly":         overview.Monthly,
		"synthetic":       overview.Synthetic,
		"failedPlatforms": overview.FailedPlatforms,
	})
}

func (controller *CampaignController) syncHandler(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}

	var req CampaignsRequest

	if err := c.ShouldBindQuery(&req); err != nil {
		respond(c, 400, "Bad Request")
		return
	}

	result, err := controller.campaigns.Sync(c.Request.Context(), user.UserID, utils.SplitList(req.Platforms))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(200, gin.H{
		"status":          200,
		"message":         "OK",
		"synced":          result.Synced,
		"failedPlatforms": result.FailedPlatforms,
	})
}
