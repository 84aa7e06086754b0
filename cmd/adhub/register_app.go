package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/steveiliop56/adhub/internal/bootstrap"
	"github.com/steveiliop56/adhub/internal/catalog"
	"github.com/steveiliop56/adhub/internal/config"
	"github.com/steveiliop56/adhub/internal/service"
	"github.com/steveiliop56/adhub/internal/utils"
	"github.com/steveiliop56/adhub/internal/utils/tlog"

	"github.com/charmbracelet/huh"
	"github.com/traefik/paerser/cli"
)

type RegisterAppConfig struct {
	Interactive  bool                    `description:"Register an oauth app interactively."`
	User         string                  `description:"Id of the user owning the app."`
	Platform     string                  `description:"Platform id, e.g. meta or google."`
	ClientID     string                  `description:"OAuth client id."`
	ClientSecret string                  `description:"OAuth client secret."`
	Scopes       string                  `description:"Comma-separated scopes, the platform defaults are used when empty."`
	AppURL       string                  `description:"The base URL where the app is hosted."`
	DatabasePath string                  `description:"The path to the database file."`
	Encryption   config.EncryptionConfig `description:"Credential encryption configuration."`
}

func NewRegisterAppConfig() *RegisterAppConfig {
	defaults := config.NewDefaultConfiguration()
	return &RegisterAppConfig{
		Interactive:  false,
		DatabasePath: defaults.DatabasePath,
	}
}

func registerAppCmd() *cli.Command {
	tCfg := NewRegisterAppConfig()

	loaders := []cli.ResourceLoader{
		&cli.FlagLoader{},
	}

	return &cli.Command{
		Name:          "register-app",
		Description:   "Register a platform oauth app for a user",
		Configuration: tCfg,
		Resources:     loaders,
		Run: func(_ []string) error {
			tlog.NewSimpleLogger().Init()

			platforms := catalog.Default()

			if tCfg.Interactive {
				if err := registerAppForm(tCfg, platforms).WithTheme(huh.ThemeBase()).Run(); err != nil {
					return fmt.Errorf("failed to run interactive prompt: %w", err)
				}
			}

			if tCfg.User == "" || tCfg.Platform == "" || tCfg.ClientID == "" {
				return errors.New("user, platform and client id cannot be empty")
			}

			if tCfg.AppURL == "" {
				return errors.New("app url cannot be empty, it is needed to build the redirect uri")
			}

			app := bootstrap.NewBootstrapApp(config.Config{
				AppURL:       tCfg.AppURL,
				DatabasePath: tCfg.DatabasePath,
				Encryption:   tCfg.Encryption,
			})

			apps, closeApp, err := app.SetupOAuthAppService()

			if err != nil {
				return fmt.Errorf("failed to open database: %w", err)
			}

			defer closeApp()

			params := service.CreateOAuthAppParams{
				Platform: tCfg.Platform,
				ClientID: tCfg.ClientID,
				Scopes:   utils.SplitList(tCfg.Scopes),
			}

			if tCfg.ClientSecret != "" {
				params.ClientSecret = &tCfg.ClientSecret
			}

			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			created, err := apps.Create(ctx, tCfg.User, params)

			if err != nil {
				return fmt.Errorf("failed to register app: %w", err)
			}

			tlog.App.Info().
				Str("id", created.ID).
				Str("platform", created.Platform).
				Str("redirectUri", created.RedirectURI).
				Msg("App registered, add the redirect uri to the platform developer console")

			return nil
		},
	}
}

func registerAppForm(tCfg *RegisterAppConfig, platforms *catalog.Catalog) *huh.Form {
	options := make([]huh.Option[string], 0, platforms.Len())

	for _, entry := range platforms.All() {
		if entry.RequiresOAuth {
			options = append(options, huh.NewOption(entry.Name, entry.ID))
		}
	}

	notEmpty := func(field string) func(string) error {
		return func(s string) error {
			if s == "" {
				return fmt.Errorf("%s cannot be empty", field)
			}
			return nil
		}
	}

	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().Title("User id").Value(&tCfg.User).Validate(notEmpty("user id")),
			huh.NewSelect[string]().Title("Platform").Options(options...).Value(&tCfg.Platform),
			huh.NewInput().Title("Client id").Value(&tCfg.ClientID).Validate(notEmpty("client id")),
			huh.NewInput().Title("Client secret").EchoMode(huh.EchoModePassword).Value(&tCfg.ClientSecret),
			huh.NewInput().Title("Scopes (comma-separated, empty for defaults)").Value(&tCfg.Scopes),
			huh.NewInput().Title("App url").Value(&tCfg.AppURL).Validate(notEmpty("app url")),
		),
	)
}
