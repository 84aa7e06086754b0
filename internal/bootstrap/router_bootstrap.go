package bootstrap

import (
	"fmt"

	"github.com/steveiliop56/adhub/internal/controller"
	"github.com/steveiliop56/adhub/internal/middleware"
	"github.com/steveiliop56/adhub/internal/utils"

	"github.com/gin-gonic/gin"
)

func (app *BootstrapApp) setupRouter() (*gin.Engine, error) {
	engine := gin.New()
	engine.Use(gin.Recovery())

	trustedProxies := utils.SplitList(app.config.Session.TrustedProxies)

	if len(trustedProxies) > 0 {
		err := engine.SetTrustedProxies(trustedProxies)

		if err != nil {
			return nil, fmt.Errorf("failed to set trusted proxies: %w", err)
		}
	}

	contextMiddleware := middleware.NewContextMiddleware(middleware.HeaderUserResolver{
		Header: app.config.Session.UserHeader,
	})

	err := contextMiddleware.Init()

	if err != nil {
		return nil, fmt.Errorf("failed to initialize context middleware: %w", err)
	}

	engine.Use(contextMiddleware.Middleware())

	zerologMiddleware := middleware.NewZerologMiddleware()

	err = zerologMiddleware.Init()

	if err != nil {
		return nil, fmt.Errorf("failed to initialize zerolog middleware: %w", err)
	}

	engine.Use(zerologMiddleware.Middleware())

	apiRouter := engine.Group("/api")

	oauthAppController := controller.NewOAuthAppController(apiRouter, app.services.oauthAppService)

	oauthAppController.SetupRoutes()

	oauthController := controller.NewOAuthController(controller.OAuthControllerConfig{
		AppURL: app.config.AppURL,
	}, apiRouter, app.services.authorizationService, app.services.tokenLifecycleService)

	oauthController.SetupRoutes()

	integrationController := controller.NewIntegrationController(apiRouter, app.services.integrationStatusService, app.services.tokenLifecycleService)

	integrationController.SetupRoutes()

	campaignController := controller.NewCampaignController(apiRouter, app.services.campaignService)

	campaignController.SetupRoutes()

	healthController := controller.NewHealthController(apiRouter, app.db)

	healthController.SetupRoutes()

	return engine, nil
}
