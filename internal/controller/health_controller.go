package controller

import (
	"context"
	"database/sql"
	"time"

	"github.com/steveiliop56/adhub/internal/config"
	"github.com/steveiliop56/adhub/internal/utils/tlog"

	"github.com/gin-gonic/gin"
)

type HealthController struct {
	router *gin.RouterGroup
	db     *sql.DB
}

func NewHealthController(router *gin.RouterGroup, db *sql.DB) *HealthController {
	return &HealthController{
		router: router,
		db:     db,
	}
}

func (controller *HealthController) SetupRoutes() {
	controller.router.GET("/health", controller.healthHandler)
	controller.router.HEAD("/health", controller.healthHandler)
}

func (controller *HealthController) healthHandler(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if err := controller.db.PingContext(ctx); err != nil {
		tlog.App.Error().Err(err).Msg("Health check failed to reach the database")
		c.JSON(503, gin.H{
			"status":  503,
			"message": "Database unavailable",
		})
		return
	}

	c.JSON(200, gin.H{
		"status":  200,
		"message": "Healthy",
		"version": config.Version,
	})
}
