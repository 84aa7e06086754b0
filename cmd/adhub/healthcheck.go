package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/steveiliop56/adhub/internal/config"
	"github.com/steveiliop56/adhub/internal/utils/tlog"

	"github.com/traefik/paerser/cli"
)

type healthResponse struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
	Version string `json:"version"`
}

func healthcheckCmd() *cli.Command {
	return &cli.Command{
		Name:          "healthcheck",
		Description:   "Perform a health check",
		Configuration: nil,
		Resources:     nil,
		AllowArg:      true,
		Run: func(args []string) error {
			tlog.NewSimpleLogger().Init()

			appURL := os.Getenv(config.DefaultNamePrefix + "APPURL")

			if len(args) > 0 {
				appURL = args[0]
			}

			if appURL == "" {
				return fmt.Errorf("%sAPPURL is not set and no argument was provided", config.DefaultNamePrefix)
			}

			tlog.App.Info().Str("app_url", appURL).Msg("Performing health check")

			health, err := checkHealth(&http.Client{Timeout: 30 * time.Second}, appURL)

			if err != nil {
				return err
			}

			tlog.App.Info().Interface("response", health).Msg("Adhub is healthy")

			return nil
		},
	}
}

func checkHealth(client *http.Client, appURL string) (healthResponse, error) {
	req, err := http.NewRequest(http.MethodGet, strings.TrimSuffix(appURL, "/")+"/api/health", nil)

	if err != nil {
		return healthResponse{}, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := client.Do(req)

	if err != nil {
		return healthResponse{}, fmt.Errorf("failed to perform request: %w", err)
	}

	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return healthResponse{}, fmt.Errorf("service is not healthy, got: %s", resp.Status)
	}

	body, err := io.ReadAll(resp.Body)

	if err != nil {
		return healthResponse{}, fmt.Errorf("failed to read response: %w", err)
	}

	var health healthResponse

	if err := json.Unmarshal(body, &health); err != nil {
		return healthResponse{}, fmt.Errorf("failed to decode response: %w", err)
	}

	if health.Status != http.StatusOK {
		return health, errors.New("service reported an unhealthy status")
	}

	return health, nil
}
