package main

import (
	"errors"
	"fmt"

	"github.com/steveiliop56/adhub/internal/config"
	"github.com/steveiliop56/adhub/internal/utils"
	"github.com/steveiliop56/adhub/internal/utils/tlog"

	"github.com/traefik/paerser/cli"
)

type GenerateSecretConfig struct {
	Length int `description:"Length of the generated secret."`
}

func NewGenerateSecretConfig() *GenerateSecretConfig {
	return &GenerateSecretConfig{
		Length: 48,
	}
}

func generateSecretCmd() *cli.Command {
	tCfg := NewGenerateSecretConfig()

	loaders := []cli.ResourceLoader{
		&cli.FlagLoader{},
	}

	return &cli.Command{
		Name:          "generate-secret",
		Description:   "Generate a random encryption secret",
		Configuration: tCfg,
		Resources:     loaders,
		Run: func(_ []string) error {
			tlog.NewSimpleLogger().Init()

			if tCfg.Length < 32 {
				return errors.New("secret length must be at least 32")
			}

			secret, err := utils.GetRandomString(tCfg.Length)

			if err != nil {
				return fmt.Errorf("failed to generate secret: %w", err)
			}

			tlog.App.Info().Msgf("Set %sENCRYPTION_SECRET to the value below, changing it later makes stored credentials unreadable.", config.DefaultNamePrefix)

			fmt.Println(secret)

			return nil
		},
	}
}
