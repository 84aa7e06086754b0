package main

import (
	"fmt"

	"github.com/steveiliop56/adhub/internal/bootstrap"
	"github.com/steveiliop56/adhub/internal/config"
	"github.com/steveiliop56/adhub/internal/utils/loaders"
	"github.com/steveiliop56/adhub/internal/utils/tlog"

	"github.com/rs/zerolog/log"
	"github.com/traefik/paerser/cli"
)

func main() {
	tConfig := config.NewDefaultConfiguration()

	cmdAdhub := &cli.Command{
		Name:          "adhub",
		Description:   "Connect your marketing platforms and see every campaign in one place.",
		Configuration: tConfig,
		Resources:     loaders.Default(),
		Run: func(_ []string) error {
			return runCmd(*tConfig)
		},
	}

	subcommands := []*cli.Command{
		versionCmd(),
		healthcheckCmd(),
		generateSecretCmd(),
		registerAppCmd(),
	}

	for _, cmd := range subcommands {
		if err := cmdAdhub.AddCommand(cmd); err != nil {
			log.Fatal().Err(err).Msgf("Failed to add %s command", cmd.Name)
		}
	}

	if err := cli.Execute(cmdAdhub); err != nil {
		log.Fatal().Err(err).Msg("Failed to execute command")
	}
}

func runCmd(cfg config.Config) error {
	tlog.NewLogger(cfg.Log).Init()

	tlog.App.Info().Str("version", config.Version).Msg("Starting adhub")

	app := bootstrap.NewBootstrapApp(cfg)

	if err := app.Setup(); err != nil {
		return fmt.Errorf("failed to bootstrap app: %w", err)
	}

	return nil
}
