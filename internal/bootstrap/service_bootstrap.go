package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/steveiliop56/adhub/internal/repository"
	"github.com/steveiliop56/adhub/internal/service"
	"github.com/steveiliop56/adhub/internal/utils/tlog"

	"github.com/redis/go-redis/v9"
)

type Services struct {
	secretCipherService      *service.SecretCipherService
	oauthAppService          *service.OAuthAppService
	oauthStateService        *service.OAuthStateService
	platformBrokerService    *service.PlatformBrokerService
	authorizationService     *service.AuthorizationService
	tokenLifecycleService    *service.TokenLifecycleService
	integrationStatusService *service.IntegrationStatusService
	campaignService          *service.CampaignService
}

type initializer interface {
	Init() error
}

func initService[T initializer](name string, svc T) (T, error) {
	if err := svc.Init(); err != nil {
		var zero T
		return zero, fmt.Errorf("failed to initialize %s: %w", name, err)
	}
	tlog.App.Debug().Str("service", name).Msg("Initialized service")
	return svc, nil
}

func (app *BootstrapApp) initServices(queries *repository.Queries) (Services, error) {
	services := Services{}

	secretCipherService, err := initService("secret cipher", service.NewSecretCipherService(service.SecretCipherServiceConfig{
		Secret:        app.context.encryptionSecret,
		RequireSecret: app.config.Encryption.RequireSecret,
	}))

	if err != nil {
		return Services{}, err
	}

	services.secretCipherService = secretCipherService

	oauthAppService, err := initService("oauth app", service.NewOAuthAppService(service.OAuthAppServiceConfig{
		CallbackURL: app.config.CallbackURL(),
	}, queries, secretCipherService, app.catalog))

	if err != nil {
		return Services{}, err
	}

	services.oauthAppService = oauthAppService

	stateStore, err := app.setupStateStore(queries)

	if err != nil {
		return Services{}, err
	}

	oauthStateService, err := initService("oauth state", service.NewOAuthStateService(service.OAuthStateServiceConfig{
		TTL: time.Duration(app.config.State.TTL) * time.Second,
	}, stateStore, secretCipherService))

	if err != nil {
		return Services{}, err
	}

	services.oauthStateService = oauthStateService

	platformBrokerService, err := initService("platform broker", service.NewPlatformBrokerService(service.PlatformBrokerServiceConfig{
		Timeout:    time.Duration(app.config.Fetch.Timeout) * time.Second,
		MaxRetries: app.config.Fetch.MaxRetries,
		RateLimit:  app.config.Fetch.RateLimit,
		RateBurst:  app.config.Fetch.RateBurst,
		Overrides:  app.config.Platforms,
	}, app.catalog))

	if err != nil {
		return Services{}, err
	}

	services.platformBrokerService = platformBrokerService

	services.authorizationService = service.NewAuthorizationService(app.catalog, oauthAppService, oauthStateService, platformBrokerService)

	tokenLifecycleService, err := initService("token lifecycle", service.NewTokenLifecycleService(service.TokenLifecycleServiceConfig{
		RevokeTimeout: time.Duration(app.config.Fetch.Timeout) * time.Second,
	}, queries, app.catalog, secretCipherService, oauthAppService, oauthStateService, platformBrokerService))

	if err != nil {
		return Services{}, err
	}

	services.tokenLifecycleService = tokenLifecycleService

	services.integrationStatusService = service.NewIntegrationStatusService(queries, app.catalog)

	campaignService, err := initService("campaign", service.NewCampaignService(service.CampaignServiceConfig{
		FetchTimeout: time.Duration(app.config.Fetch.Timeout) * time.Second,
	}, queries, app.catalog, tokenLifecycleService, platformBrokerService))

	if err != nil {
		return Services{}, err
	}

	services.campaignService = campaignService

	return services, nil
}

func (app *BootstrapApp) setupStateStore(queries *repository.Queries) (service.OAuthStateStore, error) {
	if app.config.State.RedisURL == "" {
		return service.NewDatabaseStateStore(queries), nil
	}

	options, err := redis.ParseURL(app.config.State.RedisURL)

	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}

	client := redis.NewClient(options)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to reach redis: %w", err)
	}

	app.closers = append(app.closers, client.Close)

	tlog.App.Info().Str("addr", options.Addr).Msg("Using redis for oauth state")

	return service.NewRedisStateStore(client), nil
}
