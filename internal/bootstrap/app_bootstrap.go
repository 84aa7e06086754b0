package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/steveiliop56/adhub/internal/catalog"
	"github.com/steveiliop56/adhub/internal/config"
	"github.com/steveiliop56/adhub/internal/repository"
	"github.com/steveiliop56/adhub/internal/service"
	"github.com/steveiliop56/adhub/internal/utils"
	"github.com/steveiliop56/adhub/internal/utils/tlog"
)

type BootstrapApp struct {
	config  config.Config
	catalog *catalog.Catalog
	context struct {
		encryptionSecret string
	}
	db       *sql.DB
	services Services
	closers  []func() error
}

func NewBootstrapApp(config config.Config) *BootstrapApp {
	return &BootstrapApp{
		config:  config,
		catalog: catalog.Default(),
	}
}

func (app *BootstrapApp) Setup() error {
	// Validate app url, every redirect uri is derived from it
	appURL, err := url.Parse(app.config.AppURL)

	if err != nil || appURL.Scheme == "" || appURL.Host == "" {
		return errors.New("app url must be an absolute url, e.g. https://adhub.example.com")
	}

	// Encryption secret
	app.context.encryptionSecret = utils.GetSecret(app.config.Encryption.Secret, app.config.Encryption.SecretFile)

	// Dumps
	tlog.App.Trace().Str("appUrl", app.config.AppURL).Str("callbackUrl", app.config.CallbackURL()).Msg("Urls")
	tlog.App.Trace().Strs("platforms", app.catalog.IDs()).Msg("Platform catalog")

	// Database
	db, err := app.SetupDatabase(app.config.DatabasePath)

	if err != nil {
		return fmt.Errorf("failed to setup database: %w", err)
	}

	app.db = db
	app.closers = append(app.closers, db.Close)

	// Queries
	queries := repository.New(db)

	// Services
	services, err := app.initServices(queries)

	if err != nil {
		return fmt.Errorf("failed to initialize services: %w", err)
	}

	app.services = services

	tlog.App.Info().Str("callbackUrl", app.config.CallbackURL()).Msg("Register this redirect uri with every platform app")

	// Setup router
	router, err := app.setupRouter()

	if err != nil {
		return fmt.Errorf("failed to setup routes: %w", err)
	}

	// Start state cleanup routine
	tlog.App.Debug().Msg("Starting oauth state cleanup routine")
	go app.stateCleanup()

	defer app.close()

	// If we have an socket path, bind to it
	if app.config.Server.SocketPath != "" {
		if _, err := os.Stat(app.config.Server.SocketPath); err == nil {
			tlog.App.Info().Msgf("Removing existing socket file %s", app.config.Server.SocketPath)
			err := os.Remove(app.config.Server.SocketPath)
			if err != nil {
				return fmt.Errorf("failed to remove existing socket file: %w", err)
			}
		}

		tlog.App.Info().Msgf("Starting server on unix socket %s", app.config.Server.SocketPath)
		if err := router.RunUnix(app.config.Server.SocketPath); err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}

		return nil
	}

	// Start server
	address := fmt.Sprintf("%s:%d", app.config.Server.Address, app.config.Server.Port)
	tlog.App.Info().Msgf("Starting server on %s", address)
	if err := router.Run(address); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

func (app *BootstrapApp) close() {
	for i := len(app.closers) - 1; i >= 0; i-- {
		if err := app.closers[i](); err != nil {
			tlog.App.Warn().Err(err).Msg("Failed to close resource")
		}
	}
}

func (app *BootstrapApp) stateCleanup() {
	ticker := time.NewTicker(time.Duration(30) * time.Minute)
	defer ticker.Stop()
	ctx := context.Background()

	for ; true; <-ticker.C {
		tlog.App.Debug().Msg("Cleaning up expired oauth states")
		err := app.services.oauthStateService.Cleanup(ctx)
		if err != nil {
			tlog.App.Error().Err(err).Msg("Failed to clean up expired oauth states")
		}
	}
}

// SetupOAuthAppService opens the database and the services needed to manage oauth apps outside of the server.
// The returned close func releases the database.
func (app *BootstrapApp) SetupOAuthAppService() (*service.OAuthAppService, func(), error) {
	app.context.encryptionSecret = utils.GetSecret(app.config.Encryption.Secret, app.config.Encryption.SecretFile)

	db, err := app.SetupDatabase(app.config.DatabasePath)

	if err != nil {
		return nil, nil, fmt.Errorf("failed to setup database: %w", err)
	}

	app.closers = append(app.closers, db.Close)

	secretCipherService, err := initService("secret cipher", service.NewSecretCipherService(service.SecretCipherServiceConfig{
		Secret:        app.context.encryptionSecret,
		RequireSecret: app.config.Encryption.RequireSecret,
	}))

	if err != nil {
		app.close()
		return nil, nil, err
	}

	oauthAppService, err := initService("oauth app", service.NewOAuthAppService(service.OAuthAppServiceConfig{
		CallbackURL: app.config.CallbackURL(),
	}, repository.New(db), secretCipherService, app.catalog))

	if err != nil {
		app.close()
		return nil, nil, err
	}

	return oauthAppService, app.close, nil
}
