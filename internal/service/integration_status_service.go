package service

import (
	"context"
	"fmt"
	"time"

	"github.com/steveiliop56/adhub/internal/catalog"
	"github.com/steveiliop56/adhub/internal/model"
	"github.com/steveiliop56/adhub/internal/repository"
)

const (
	StatusConnected    = "connected"
	StatusDisconnected = "disconnected"
)

type PlatformStatus struct {
	Platform           string     `json:"platform"`
	Name               string     `json:"name"`
	Description        string     `json:"description"`
	Category           string     `json:"category"`
	RequiresOAuth      bool       `json:"requiresOAuth"`
	RequiresAPIKey     bool       `json:"requiresApiKey"`
	APIKeyFields       []string   `json:"apiKeyFields"`
	HasOAuthConfigured bool       `json:"hasOAuthConfigured"`
	Status             string     `json:"status"`
	CanReconnect       bool       `json:"canReconnect"`
	ConnectedAt        *time.Time `json:"connectedAt"`
	ExpiresAt          *time.Time `json:"expiresAt"`
	NeedsRefresh       bool       `json:"needsRefresh"`
}

type IntegrationStatusService struct {
	queries *repository.Queries
	catalog *catalog.Catalog
	now     func() time.Time
}

func NewIntegrationStatusService(queries *repository.Queries, platforms *catalog.Catalog) *IntegrationStatusService {
	return &IntegrationStatusService{
		queries: queries,
		catalog: platforms,
		now:     time.Now,
	}
}

func (status *IntegrationStatusService) GetStatus(ctx context.Context, userID string) ([]PlatformStatus, error) {
	apps, err := status.queries.ListOAuthApps(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list oauth apps: %w", err)
	}

	integrations, err := status.queries.ListIntegrations(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list integrations: %w", err)
	}

	return BuildStatus(status.catalog.All(), apps, integrations, status.now()), nil
}

// BuildStatus joins the catalog with the apps and integrations of one user. It yields exactly one row per catalog entry.
func BuildStatus(entries []catalog.Entry, apps []model.OAuthApp, integrations []model.Integration, now time.Time) []PlatformStatus {
	activeApps := make(map[string]bool, len(apps))
	for _, app := range apps {
		if app.IsActive {
			activeApps[app.Platform] = true
		}
	}

	byPlatform := make(map[string]model.Integration, len(integrations))
	for _, integration := range integrations {
		byPlatform[integration.Platform] = integration
	}

	statuses := make([]PlatformStatus, 0, len(entries))
	for _, entry := range entries {
		row := PlatformStatus{
			Platform:           entry.ID,
			Name:               entry.Name,
			Description:        entry.Description,
			Category:           entry.Category,
			RequiresOAuth:      entry.RequiresOAuth,
			RequiresAPIKey:     entry.RequiresAPIKey,
			APIKeyFields:       append([]string{}, entry.APIKeyFields...),
			HasOAuthConfigured: activeApps[entry.ID],
			Status:             StatusDisconnected,
		}

		if integration, ok := byPlatform[entry.ID]; ok {
			if integration.IsActive {
				row.Status = StatusConnected
			} else {
				row.CanReconnect = integration.AccessToken != ""
			}
			row.ConnectedAt = integration.Metadata.Audit.ConnectedAt
			row.ExpiresAt = integration.ExpiresAt
			row.NeedsRefresh = integration.IsExpired(now)
		}

		statuses = append(statuses, row)
	}

	return statuses
}
